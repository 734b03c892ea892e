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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot"
	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/ledger"
)

// ScenarioFunding is the loot minted by the admin to each player
const ScenarioFunding = 1000

// ScenarioResult describes the state reached by RunScenario
type ScenarioResult struct {
	Reward        *uint256.Int   `json:"reward"`
	Owner         common.Address `json:"owner"`
	User          common.Address `json:"user"`
	CarAccount    common.Address `json:"carAccount"`
	FinalCarOwner common.Address `json:"finalCarOwner"`
	OwnerCar      uint64         `json:"ownerCar"`
	UserCar       uint64         `json:"userCar"`
	OwnerPark     uint64         `json:"ownerPark"`
	UserPark      uint64         `json:"userPark"`
	Component     uint64         `json:"component"`
	Elapsed       uint64         `json:"elapsed"`
}

// RunScenario plays one round of the game on a started node. The owner and
// the user each mint a car and a park. The owner buys a component, loads it
// onto their car and unloads it again, then parks on the user's park twice:
// the first stay ends with a reward, the second with a fine that hands the
// car to the user
func RunScenario(
	ctx context.Context,
	n *lotloot.Node,
	clock *ledger.ManualClock,
	owner common.Address,
	user common.Address,
	logger *slog.Logger,
) (*ScenarioResult, error) {
	if clock == nil {
		return nil, errors.New("scenario requires a manual clock")
	}
	c := n.Contracts()
	finePeriod := c.Economy.FinePeriod()
	ret := &ScenarioResult{
		Owner: owner,
		User:  user,
	}
	step := func(name string, caller common.Address, fn func(*ledger.Frame) error) error {
		if err := n.Execute(ctx, caller, fn); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.Info(
			"scenario step complete",
			"component", "scenario",
			"step", name,
			"caller", caller.Hex(),
		)
		return nil
	}
	err := step("fund players", n.Admin(), func(f *ledger.Frame) error {
		return errors.Join(
			c.Loot.Mint(f, owner, uint256.NewInt(ScenarioFunding)),
			c.Loot.Mint(f, user, uint256.NewInt(ScenarioFunding)),
		)
	})
	if err != nil {
		return nil, err
	}
	err = step("owner mints car and park", owner, func(f *ledger.Frame) error {
		var err error
		if ret.OwnerCar, _, err = c.CarStore.Mint(f); err != nil {
			return err
		}
		ret.OwnerPark, _, err = c.ParkStore.Mint(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = step("user mints car and park", user, func(f *ledger.Frame) error {
		var err error
		if ret.UserCar, _, err = c.CarStore.Mint(f); err != nil {
			return err
		}
		ret.UserPark, _, err = c.ParkStore.Mint(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = step("owner buys component", owner, func(f *ledger.Frame) error {
		if err := c.Loot.Approve(f, c.ComponentStore.Address(), c.ComponentStore.MintPrice()); err != nil {
			return err
		}
		var err error
		ret.Component, err = c.ComponentStore.Mint(f, [3]uint64{1, 2, 3})
		return err
	})
	if err != nil {
		return nil, err
	}
	err = step("owner loads component", owner, func(f *ledger.Frame) error {
		if err := c.Components.Approve(f, c.Economy.Address(), ret.Component); err != nil {
			return err
		}
		return c.Economy.Load(f, ret.OwnerCar, ret.Component)
	})
	if err != nil {
		return nil, err
	}
	err = step("owner unloads component", owner, func(f *ledger.Frame) error {
		ret.CarAccount = c.Economy.AccountOf(f, ret.OwnerCar)
		// The car account lets the orchestrator move the component back
		_, err := c.Registry.Account(ret.CarAccount).ExecuteCall(
			f,
			c.Components.Address(),
			nil,
			calldata.MustEncode(
				"approve(address,uint256)",
				c.Economy.Address(),
				ret.Component,
			),
		)
		if err != nil {
			return err
		}
		return c.Economy.Unload(f, ret.OwnerCar, ret.Component)
	})
	if err != nil {
		return nil, err
	}
	err = step("owner parks on user park", owner, func(f *ledger.Frame) error {
		return c.Economy.ParkCar(f, ret.OwnerCar, ret.UserPark)
	})
	if err != nil {
		return nil, err
	}
	ret.Elapsed = finePeriod
	clock.Advance(finePeriod)
	err = step("owner unparks", owner, func(f *ledger.Frame) error {
		var err error
		ret.Reward, err = c.Economy.UnParkCar(f, ret.OwnerCar)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = step("owner parks again", owner, func(f *ledger.Frame) error {
		return c.Economy.ParkCar(f, ret.OwnerCar, ret.UserPark)
	})
	if err != nil {
		return nil, err
	}
	clock.Advance(finePeriod)
	err = step("user fines owner", user, func(f *ledger.Frame) error {
		_, err := c.Economy.FineCar(f, ret.UserPark)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = n.View(ctx, func(f *ledger.Frame) error {
		var err error
		ret.FinalCarOwner, err = c.Cars.OwnerOf(f, ret.OwnerCar)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
