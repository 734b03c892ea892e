// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package economy implements the orchestrator of the parking economy: cars
// park on parks, earn rewards while parked, can be taken by the park owner
// after the fine period, and carry components in their token-bound accounts
package economy

import (
	"errors"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot/account"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/token"
)

// DefaultFinePeriod is the time in seconds a car must be parked before the
// park owner may fine it
const DefaultFinePeriod uint64 = 3600

type Config struct {
	Token          *token.Fungible
	Cars           *token.NonFungible
	Parks          *token.NonFungible
	Components     *token.NonFungible
	Registry       *account.Registry
	RewardRate     *uint256.Int
	Address        common.Address
	Implementation common.Address
	ChainID        uint64
	FinePeriod     uint64
}

// Orchestrator coordinates parking, rewards, fines and component loading.
// It must hold MINTER_ROLE on the reward token and OPERATOR_ROLE on the car
// registry
type Orchestrator struct {
	*ledger.Dispatcher
	config Config
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Token == nil || cfg.Cars == nil || cfg.Parks == nil ||
		cfg.Components == nil || cfg.Registry == nil {
		return nil, errors.New("token, registries and account registry must be provided")
	}
	if cfg.RewardRate == nil {
		return nil, errors.New("a reward rate must be provided")
	}
	if cfg.FinePeriod == 0 {
		cfg.FinePeriod = DefaultFinePeriod
	}
	o := &Orchestrator{
		config: cfg,
	}
	o.Dispatcher = ledger.MustNewDispatcher(o.methods(), nil)
	return o, nil
}

func (o *Orchestrator) Address() common.Address {
	return o.config.Address
}

func (o *Orchestrator) RewardRate() *uint256.Int {
	return new(uint256.Int).Set(o.config.RewardRate)
}

func (o *Orchestrator) FinePeriod() uint64 {
	return o.config.FinePeriod
}

type parkingRecord struct {
	cbor.StructAsArray
	Park  uint64
	Start uint64
}

func parkingKey(car uint64) []byte {
	return ledger.Key("parking", car)
}

func occupantKey(park uint64) []byte {
	return ledger.Key("occupant", park)
}

// AccountKey returns the key of the token-bound account of car
func (o *Orchestrator) AccountKey(chainID uint64, car uint64) account.Key {
	if o.config.ChainID != 0 {
		chainID = o.config.ChainID
	}
	return account.Key{
		Implementation: o.config.Implementation,
		ChainID:        chainID,
		TokenContract:  o.config.Cars.Address(),
		TokenID:        car,
		Salt:           account.SaltFromUint64(car),
	}
}

// ParkCar parks the caller's car on a free park
func (o *Orchestrator) ParkCar(f *ledger.Frame, car, park uint64) error {
	return o.parkCar(f.Enter(o.config.Address), car, park)
}

// ViewCarOnPark returns the park the car is parked on, or 0
func (o *Orchestrator) ViewCarOnPark(f *ledger.Frame, car uint64) (uint64, error) {
	rec, _, err := getParking(f.Enter(o.config.Address), car)
	return rec.Park, err
}

// UnParkCar ends the parking of the caller's car and mints the reward for
// the parked time to the caller. It returns the reward
func (o *Orchestrator) UnParkCar(f *ledger.Frame, car uint64) (*uint256.Int, error) {
	return o.unParkCar(f.Enter(o.config.Address), car)
}

// FineCar moves the car parked on the caller's park to the caller once the
// fine period has passed. It returns the fined car
func (o *Orchestrator) FineCar(f *ledger.Frame, park uint64) (uint64, error) {
	return o.fineCar(f.Enter(o.config.Address), park)
}

// Load moves a component owned by the caller into the car's account. The
// caller must have approved the orchestrator for the component
func (o *Orchestrator) Load(f *ledger.Frame, car, component uint64) error {
	return o.load(f.Enter(o.config.Address), car, component)
}

// Unload moves a component from the car's account back to the caller. The
// car's account must have approved the orchestrator for the component
func (o *Orchestrator) Unload(f *ledger.Frame, car, component uint64) error {
	return o.unload(f.Enter(o.config.Address), car, component)
}

// ParkingOf returns the park and start time of a parked car, or zeros
func (o *Orchestrator) ParkingOf(f *ledger.Frame, car uint64) (uint64, uint64, error) {
	rec, _, err := getParking(f.Enter(o.config.Address), car)
	return rec.Park, rec.Start, err
}

// CarOnPark returns the car parked on park, or 0
func (o *Orchestrator) CarOnPark(f *ledger.Frame, park uint64) (uint64, error) {
	return ledger.GetUint64(f.Enter(o.config.Address), occupantKey(park))
}

// PendingReward returns the reward the car would earn if unparked now
func (o *Orchestrator) PendingReward(f *ledger.Frame, car uint64) (*uint256.Int, error) {
	return o.pendingReward(f.Enter(o.config.Address), car)
}

// AccountOf returns the address of the car's token-bound account
func (o *Orchestrator) AccountOf(f *ledger.Frame, car uint64) common.Address {
	return o.config.Registry.ComputeAddress(o.AccountKey(f.ChainID(), car))
}

func getParking(f *ledger.Frame, car uint64) (parkingRecord, bool, error) {
	var rec parkingRecord
	ok, err := ledger.GetRecord(f, parkingKey(car), &rec)
	if err != nil || !ok {
		return parkingRecord{}, false, err
	}
	return rec, true, nil
}

func (o *Orchestrator) clearParking(f *ledger.Frame, car uint64, park uint64) error {
	if err := f.Delete(parkingKey(car)); err != nil {
		return err
	}
	return f.Delete(occupantKey(park))
}

func (o *Orchestrator) requireOwner(
	f *ledger.Frame,
	registry *token.NonFungible,
	id uint64,
	reason string,
) (common.Address, error) {
	owner, err := registry.OwnerOf(f, id)
	if err != nil {
		return common.Address{}, err
	}
	if owner != f.Caller() {
		return common.Address{}, ledger.NewAuthorizationError(f.Caller(), reason)
	}
	return owner, nil
}

func (o *Orchestrator) reward(elapsed uint64) (*uint256.Int, error) {
	ret, overflow := new(uint256.Int).MulOverflow(
		uint256.NewInt(elapsed),
		o.config.RewardRate,
	)
	if overflow {
		return nil, ledger.NewStateConflictError("reward overflow")
	}
	return ret, nil
}

func (o *Orchestrator) parkCar(f *ledger.Frame, car, park uint64) error {
	release, err := f.NonReentrant()
	if err != nil {
		return err
	}
	defer release()
	// ID 0 marks an empty park
	if car == 0 || park == 0 {
		return ledger.ErrInvalidArgument
	}
	owner, err := o.requireOwner(f, o.config.Cars, car, "not car owner")
	if err != nil {
		return err
	}
	exists, err := o.config.Parks.Exists(f, park)
	if err != nil {
		return err
	}
	if !exists {
		return ledger.NewNotFoundError("park", park)
	}
	rec, parked, err := getParking(f, car)
	if err != nil {
		return err
	}
	if parked {
		return ledger.NewStateConflictError("car %d already parked on park %d", car, rec.Park)
	}
	occupant, err := ledger.GetUint64(f, occupantKey(park))
	if err != nil {
		return err
	}
	if occupant != 0 {
		return ledger.NewStateConflictError("park %d occupied by car %d", park, occupant)
	}
	err = ledger.SetRecord(f, parkingKey(car), &parkingRecord{
		Park:  park,
		Start: f.Now(),
	})
	if err != nil {
		return err
	}
	if err := ledger.SetUint64(f, occupantKey(park), car); err != nil {
		return err
	}
	return f.Emit("Parked", ParkedEvent{
		Car:   car,
		Park:  park,
		Owner: owner,
		Start: f.Now(),
	})
}

func (o *Orchestrator) pendingReward(f *ledger.Frame, car uint64) (*uint256.Int, error) {
	rec, parked, err := getParking(f, car)
	if err != nil {
		return nil, err
	}
	if !parked {
		return new(uint256.Int), nil
	}
	return o.reward(f.Now() - rec.Start)
}

func (o *Orchestrator) unParkCar(f *ledger.Frame, car uint64) (*uint256.Int, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return nil, err
	}
	defer release()
	owner, err := o.requireOwner(f, o.config.Cars, car, "not car owner")
	if err != nil {
		return nil, err
	}
	rec, parked, err := getParking(f, car)
	if err != nil {
		return nil, err
	}
	if !parked {
		return nil, ledger.NewStateConflictError("car %d not parked", car)
	}
	elapsed := f.Now() - rec.Start
	reward, err := o.reward(elapsed)
	if err != nil {
		return nil, err
	}
	if err := o.clearParking(f, car, rec.Park); err != nil {
		return nil, err
	}
	if !reward.IsZero() {
		if err := o.config.Token.Mint(f, owner, reward); err != nil {
			return nil, err
		}
	}
	err = f.Emit("Unparked", UnparkedEvent{
		Car:     car,
		Park:    rec.Park,
		Owner:   owner,
		Elapsed: elapsed,
		Reward:  reward,
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

func (o *Orchestrator) fineCar(f *ledger.Frame, park uint64) (uint64, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return 0, err
	}
	defer release()
	car, err := ledger.GetUint64(f, occupantKey(park))
	if err != nil {
		return 0, err
	}
	if car == 0 {
		return 0, ledger.NewStateConflictError("park %d unoccupied", park)
	}
	parkOwner, err := o.requireOwner(f, o.config.Parks, park, "not park owner")
	if err != nil {
		return 0, err
	}
	rec, _, err := getParking(f, car)
	if err != nil {
		return 0, err
	}
	elapsed := f.Now() - rec.Start
	if elapsed < o.config.FinePeriod {
		return 0, ledger.NewStateConflictError(
			"car %d parked for %d of %d seconds",
			car,
			elapsed,
			o.config.FinePeriod,
		)
	}
	carOwner, err := o.config.Cars.OwnerOf(f, car)
	if err != nil {
		return 0, err
	}
	if err := o.clearParking(f, car, park); err != nil {
		return 0, err
	}
	if err := o.config.Cars.TransferFrom(f, carOwner, parkOwner, car); err != nil {
		return 0, err
	}
	err = f.Emit("Fined", FinedEvent{
		Car:     car,
		Park:    park,
		From:    carOwner,
		To:      parkOwner,
		Elapsed: elapsed,
	})
	if err != nil {
		return 0, err
	}
	return car, nil
}

func (o *Orchestrator) load(f *ledger.Frame, car, component uint64) error {
	release, err := f.NonReentrant()
	if err != nil {
		return err
	}
	defer release()
	owner, err := o.requireOwner(f, o.config.Components, component, "not component owner")
	if err != nil {
		return err
	}
	if _, err := o.config.Cars.OwnerOf(f, car); err != nil {
		return err
	}
	acct, err := o.config.Registry.CreateAccount(f, o.AccountKey(f.ChainID(), car), nil)
	if err != nil {
		return err
	}
	if err := o.config.Components.TransferFrom(f, owner, acct, component); err != nil {
		return err
	}
	return f.Emit("Loaded", LoadEvent{
		Car:       car,
		Component: component,
		Account:   acct,
		Holder:    owner,
	})
}

func (o *Orchestrator) unload(f *ledger.Frame, car, component uint64) error {
	release, err := f.NonReentrant()
	if err != nil {
		return err
	}
	defer release()
	owner, err := o.requireOwner(f, o.config.Cars, car, "not car owner")
	if err != nil {
		return err
	}
	acct := o.config.Registry.ComputeAddress(o.AccountKey(f.ChainID(), car))
	holder, err := o.config.Components.OwnerOf(f, component)
	if err != nil {
		return err
	}
	if holder != acct {
		return ledger.NewStateConflictError("component %d not loaded on car %d", component, car)
	}
	if err := o.config.Components.TransferFrom(f, acct, owner, component); err != nil {
		return err
	}
	return f.Emit("Unloaded", LoadEvent{
		Car:       car,
		Component: component,
		Account:   acct,
		Holder:    owner,
	})
}
