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

package lotloot

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/account"
	"github.com/blinklabs-io/lotloot/economy"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/market"
	"github.com/blinklabs-io/lotloot/token"
)

// Contracts holds every contract deployed by the node. Addresses are
// derived from the admin address, so they are the same on every start
type Contracts struct {
	Loot           *token.Fungible
	Cars           *token.NonFungible
	Parks          *token.NonFungible
	Components     *token.NonFungible
	Registry       *account.Registry
	Implementation *account.Implementation
	ComponentStore *market.ComponentStore
	CarStore       *market.AssetStore
	ParkStore      *market.AssetStore
	Economy        *economy.Orchestrator
	// ImplementationAddress is the address of the token-bound account code
	ImplementationAddress common.Address
}

// Deployment order. The position of a contract is its deployment nonce
const (
	deployLoot = iota
	deployCars
	deployParks
	deployComponents
	deployRegistry
	deployImplementation
	deployComponentStore
	deployCarStore
	deployParkStore
	deployEconomy
)

func contractAddress(admin common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(admin, nonce)
}

func newContracts(cfg Config) (*Contracts, error) {
	addr := func(nonce uint64) common.Address {
		return contractAddress(cfg.admin, nonce)
	}
	c := &Contracts{
		Loot:                  token.NewFungible(addr(deployLoot), "Loot"),
		Cars:                  token.NewNonFungible(addr(deployCars), "Cars"),
		Parks:                 token.NewNonFungible(addr(deployParks), "Parks"),
		Components:            token.NewNonFungible(addr(deployComponents), "Components"),
		Registry:              account.NewRegistry(addr(deployRegistry)),
		Implementation:        account.NewImplementation(),
		ImplementationAddress: addr(deployImplementation),
	}
	var err error
	c.ComponentStore, err = market.NewComponentStore(market.ComponentStoreConfig{
		Address:    addr(deployComponentStore),
		Components: c.Components,
		Token:      c.Loot,
		MintPrice:  cfg.componentPrice,
	})
	if err != nil {
		return nil, err
	}
	c.CarStore, err = market.NewAssetStore(market.AssetStoreConfig{
		Address:        addr(deployCarStore),
		Assets:         c.Cars,
		Registry:       c.Registry,
		Implementation: c.ImplementationAddress,
		ChainID:        cfg.chainID,
	})
	if err != nil {
		return nil, err
	}
	c.ParkStore, err = market.NewAssetStore(market.AssetStoreConfig{
		Address:        addr(deployParkStore),
		Assets:         c.Parks,
		Registry:       c.Registry,
		Implementation: c.ImplementationAddress,
		ChainID:        cfg.chainID,
	})
	if err != nil {
		return nil, err
	}
	c.Economy, err = economy.New(economy.Config{
		Address:        addr(deployEconomy),
		Token:          c.Loot,
		Cars:           c.Cars,
		Parks:          c.Parks,
		Components:     c.Components,
		Registry:       c.Registry,
		Implementation: c.ImplementationAddress,
		ChainID:        cfg.chainID,
		RewardRate:     cfg.rewardRate,
		FinePeriod:     cfg.finePeriod,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

type deployment struct {
	contract ledger.Contract
	name     string
	address  common.Address
}

// deployments returns every contract with its address, in deployment order
func (c *Contracts) deployments() []deployment {
	return []deployment{
		{c.Loot, "loot", c.Loot.Address()},
		{c.Cars, "cars", c.Cars.Address()},
		{c.Parks, "parks", c.Parks.Address()},
		{c.Components, "components", c.Components.Address()},
		{c.Registry, "registry", c.Registry.Address()},
		{c.Implementation, "implementation", c.ImplementationAddress},
		{c.ComponentStore, "component_store", c.ComponentStore.Address()},
		{c.CarStore, "car_store", c.CarStore.Address()},
		{c.ParkStore, "park_store", c.ParkStore.Address()},
		{c.Economy, "economy", c.Economy.Address()},
	}
}

// Addresses returns the address of every contract by name
func (c *Contracts) Addresses() map[string]common.Address {
	ret := make(map[string]common.Address)
	for _, d := range c.deployments() {
		ret[d.name] = d.address
	}
	return ret
}

type genesisRecord struct {
	cbor.StructAsArray
	Admin   []byte
	ChainID uint64
	Time    uint64
}

var genesisKey = ledger.Key("genesis")

// genesis initializes the contracts and grants the roles they need to work
// together. It runs once per database
func (c *Contracts) genesis(f *ledger.Frame, chainID uint64) (bool, error) {
	var rec genesisRecord
	ok, err := ledger.GetRecord(f, genesisKey, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		if rec.ChainID != chainID {
			return false, fmt.Errorf(
				"database was created for chain %d, not %d",
				rec.ChainID,
				chainID,
			)
		}
		return false, nil
	}
	admin := f.Caller()
	err = errors.Join(
		c.Loot.Initialize(f, admin),
		c.Cars.Initialize(f, admin),
		c.Parks.Initialize(f, admin),
		c.Components.Initialize(f, admin),
		c.ComponentStore.Initialize(f, admin),
		c.CarStore.Initialize(f, admin),
		c.ParkStore.Initialize(f, admin),
	)
	if err != nil {
		return false, err
	}
	grants := []struct {
		grant   func(*ledger.Frame, common.Hash, common.Address) error
		role    common.Hash
		account common.Address
	}{
		{c.Cars.GrantRole, access.MinterRole, c.CarStore.Address()},
		{c.Cars.GrantRole, access.OperatorRole, c.Economy.Address()},
		{c.Parks.GrantRole, access.MinterRole, c.ParkStore.Address()},
		{c.Components.GrantRole, access.MinterRole, c.ComponentStore.Address()},
		{c.Loot.GrantRole, access.MinterRole, c.Economy.Address()},
		{c.Loot.GrantRole, access.MinterRole, admin},
	}
	for _, g := range grants {
		if err := g.grant(f, g.role, g.account); err != nil {
			return false, err
		}
	}
	err = ledger.SetRecord(f, genesisKey, &genesisRecord{
		Admin:   admin.Bytes(),
		ChainID: chainID,
		Time:    f.Now(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
