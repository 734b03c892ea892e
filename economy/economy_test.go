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

package economy_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lotloot"
	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/internal/test/testutil"
	"github.com/blinklabs-io/lotloot/ledger"
)

const rewardRate = 3

var (
	owner    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user     = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	stranger = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

// Token IDs minted by the fixture
const (
	ownerCar  = 1000
	userCar   = 1001
	ownerPark = 1000
	userPark  = 1001
)

type fixture struct {
	node  *lotloot.Node
	c     *lotloot.Contracts
	clock *ledger.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := ledger.NewManualClock(testutil.DefaultStartTime)
	n, err := lotloot.New(
		lotloot.NewConfig(
			lotloot.WithClock(clock),
			lotloot.WithRewardRate(uint256.NewInt(rewardRate)),
		),
	)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })
	fx := &fixture{
		node:  n,
		c:     n.Contracts(),
		clock: clock,
	}
	for _, player := range []common.Address{owner, user} {
		require.NoError(t, fx.exec(player, func(f *ledger.Frame) error {
			if _, _, err := fx.c.CarStore.Mint(f); err != nil {
				return err
			}
			_, _, err := fx.c.ParkStore.Mint(f)
			return err
		}))
	}
	return fx
}

func (fx *fixture) exec(caller common.Address, fn func(*ledger.Frame) error) error {
	return fx.node.Execute(context.Background(), caller, fn)
}

func (fx *fixture) view(t *testing.T, fn func(*ledger.Frame) error) {
	t.Helper()
	require.NoError(t, fx.node.View(context.Background(), fn))
}

func (fx *fixture) park(t *testing.T, car, park uint64) {
	t.Helper()
	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, car, park)
	}))
}

func (fx *fixture) lootBalance(t *testing.T, addr common.Address) string {
	t.Helper()
	var ret *uint256.Int
	fx.view(t, func(f *ledger.Frame) error {
		var err error
		ret, err = fx.c.Loot.BalanceOf(f, addr)
		return err
	})
	return ret.Dec()
}

func (fx *fixture) carOwner(t *testing.T, car uint64) common.Address {
	t.Helper()
	var ret common.Address
	fx.view(t, func(f *ledger.Frame) error {
		var err error
		ret, err = fx.c.Cars.OwnerOf(f, car)
		return err
	})
	return ret
}

func TestParkAndUnpark(t *testing.T) {
	fx := newFixture(t)
	fx.park(t, ownerCar, userPark)

	fx.view(t, func(f *ledger.Frame) error {
		park, err := fx.c.Economy.ViewCarOnPark(f, ownerCar)
		require.NoError(t, err)
		assert.Equal(t, uint64(userPark), park)
		car, err := fx.c.Economy.CarOnPark(f, userPark)
		require.NoError(t, err)
		assert.Equal(t, uint64(ownerCar), car)
		park, start, err := fx.c.Economy.ParkingOf(f, ownerCar)
		require.NoError(t, err)
		assert.Equal(t, uint64(userPark), park)
		assert.Equal(t, testutil.DefaultStartTime, start)
		return nil
	})

	fx.clock.Advance(3600)
	fx.view(t, func(f *ledger.Frame) error {
		pending, err := fx.c.Economy.PendingReward(f, ownerCar)
		require.NoError(t, err)
		assert.Equal(t, "10800", pending.Dec())
		return nil
	})

	var reward *uint256.Int
	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		var err error
		reward, err = fx.c.Economy.UnParkCar(f, ownerCar)
		return err
	}))
	assert.Equal(t, "10800", reward.Dec())
	assert.Equal(t, "10800", fx.lootBalance(t, owner))

	fx.view(t, func(f *ledger.Frame) error {
		park, err := fx.c.Economy.ViewCarOnPark(f, ownerCar)
		require.NoError(t, err)
		assert.Zero(t, park)
		car, err := fx.c.Economy.CarOnPark(f, userPark)
		require.NoError(t, err)
		assert.Zero(t, car)
		return nil
	})

	events, err := fx.node.Events(types.EventFilter{Name: "Unparked"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(events[0].Data, &evt))
	assert.Equal(t, "10800", evt["reward"])
	assert.InDelta(t, 3600, evt["elapsed"], 0)
}

func TestUnparkImmediatelyMintsNothing(t *testing.T) {
	fx := newFixture(t)
	fx.park(t, ownerCar, userPark)
	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		reward, err := fx.c.Economy.UnParkCar(f, ownerCar)
		if err == nil {
			assert.True(t, reward.IsZero())
		}
		return err
	}))
	assert.Equal(t, "0", fx.lootBalance(t, owner))
}

func TestParkCarFailures(t *testing.T) {
	fx := newFixture(t)
	testDefs := []struct {
		name   string
		caller common.Address
		car    uint64
		park   uint64
		target error
	}{
		{"not car owner", user, ownerCar, userPark, ledger.ErrAuthorization},
		{"unknown car", owner, 5000, userPark, ledger.ErrNotFound},
		{"park zero", owner, ownerCar, 0, ledger.ErrInvalidArgument},
		{"car zero", owner, 0, userPark, ledger.ErrInvalidArgument},
		{"unknown park", owner, ownerCar, 5000, ledger.ErrNotFound},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := fx.exec(testDef.caller, func(f *ledger.Frame) error {
				return fx.c.Economy.ParkCar(f, testDef.car, testDef.park)
			})
			require.ErrorIs(t, err, testDef.target)
		})
	}
}

func TestCarZeroCannotHoldPark(t *testing.T) {
	fx := newFixture(t)
	admin := fx.node.Admin()
	require.NoError(t, fx.exec(admin, func(f *ledger.Frame) error {
		if err := fx.c.Cars.GrantRole(f, access.MinterRole, admin); err != nil {
			return err
		}
		return fx.c.Cars.Mint(f, owner, 0, nil)
	}))
	err := fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, 0, userPark)
	})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// The park stays free for a real car and holds only that car
	fx.park(t, ownerCar, userPark)
	err = fx.exec(user, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, userCar, userPark)
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)
	fx.view(t, func(f *ledger.Frame) error {
		car, err := fx.c.Economy.CarOnPark(f, userPark)
		require.NoError(t, err)
		assert.Equal(t, uint64(ownerCar), car)
		return nil
	})
}

func TestParkCarConflicts(t *testing.T) {
	fx := newFixture(t)
	fx.park(t, ownerCar, userPark)

	// Same car again
	err := fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, ownerCar, ownerPark)
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	// Occupied park
	err = fx.exec(user, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, userCar, userPark)
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	// A car may park on its owner's own park
	require.NoError(t, fx.exec(user, func(f *ledger.Frame) error {
		return fx.c.Economy.ParkCar(f, userCar, ownerPark)
	}))
}

func TestUnparkFailures(t *testing.T) {
	fx := newFixture(t)
	err := fx.exec(owner, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.UnParkCar(f, ownerCar)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	fx.park(t, ownerCar, userPark)
	err = fx.exec(user, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.UnParkCar(f, ownerCar)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)
}

func TestFineCar(t *testing.T) {
	fx := newFixture(t)
	fx.park(t, ownerCar, userPark)
	fx.clock.Advance(3600)

	var fined uint64
	require.NoError(t, fx.exec(user, func(f *ledger.Frame) error {
		var err error
		fined, err = fx.c.Economy.FineCar(f, userPark)
		return err
	}))
	assert.Equal(t, uint64(ownerCar), fined)
	assert.Equal(t, user, fx.carOwner(t, ownerCar))
	// No reward for a fined car
	assert.Equal(t, "0", fx.lootBalance(t, owner))

	fx.view(t, func(f *ledger.Frame) error {
		car, err := fx.c.Economy.CarOnPark(f, userPark)
		require.NoError(t, err)
		assert.Zero(t, car)
		park, err := fx.c.Economy.ViewCarOnPark(f, ownerCar)
		require.NoError(t, err)
		assert.Zero(t, park)
		return nil
	})

	events, err := fx.node.Events(types.EventFilter{Name: "Fined"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fx.c.Economy.Address().Bytes(), events[0].Contract)
}

func TestFineCarFailures(t *testing.T) {
	fx := newFixture(t)

	// Nobody parked
	err := fx.exec(user, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.FineCar(f, userPark)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	fx.park(t, ownerCar, userPark)

	// Too early
	fx.clock.Advance(3599)
	err = fx.exec(user, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.FineCar(f, userPark)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	// Not the park owner
	fx.clock.Advance(1)
	err = fx.exec(stranger, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.FineCar(f, userPark)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)
	assert.Equal(t, owner, fx.carOwner(t, ownerCar))
}

func TestUnparkAfterFinePeriodStillRewards(t *testing.T) {
	fx := newFixture(t)
	fx.park(t, ownerCar, userPark)
	fx.clock.Advance(7200)
	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.UnParkCar(f, ownerCar)
		return err
	}))
	assert.Equal(t, "21600", fx.lootBalance(t, owner))
	err := fx.exec(user, func(f *ledger.Frame) error {
		_, err := fx.c.Economy.FineCar(f, userPark)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)
}

func TestLoadAndUnload(t *testing.T) {
	fx := newFixture(t)
	price := fx.c.ComponentStore.MintPrice()
	var component uint64
	require.NoError(t, fx.exec(fx.node.Admin(), func(f *ledger.Frame) error {
		return fx.c.Loot.Mint(f, owner, price)
	}))
	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		if err := fx.c.Loot.Approve(f, fx.c.ComponentStore.Address(), price); err != nil {
			return err
		}
		var err error
		component, err = fx.c.ComponentStore.Mint(f, [3]uint64{4, 5, 6})
		return err
	}))

	// Without approval the orchestrator cannot move the component
	err := fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.Load(f, ownerCar, component)
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)

	// Only the component owner can load it
	err = fx.exec(user, func(f *ledger.Frame) error {
		return fx.c.Economy.Load(f, userCar, component)
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)

	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		if err := fx.c.Components.Approve(f, fx.c.Economy.Address(), component); err != nil {
			return err
		}
		return fx.c.Economy.Load(f, ownerCar, component)
	}))

	var acct common.Address
	fx.view(t, func(f *ledger.Frame) error {
		acct = fx.c.Economy.AccountOf(f, ownerCar)
		holder, err := fx.c.Components.OwnerOf(f, component)
		require.NoError(t, err)
		assert.Equal(t, acct, holder)
		acctOwner, err := fx.c.Registry.Account(acct).Owner(f)
		require.NoError(t, err)
		assert.Equal(t, owner, acctOwner)
		return nil
	})

	// The car owner cannot unload until the account approves the orchestrator
	err = fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.Unload(f, ownerCar, component)
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)

	approve := calldata.MustEncode(
		"approve(address,uint256)",
		fx.c.Economy.Address(),
		component,
	)
	// Only the car owner can drive the account
	err = fx.exec(user, func(f *ledger.Frame) error {
		_, err := fx.c.Registry.Account(acct).ExecuteCall(f, fx.c.Components.Address(), nil, approve)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)

	require.NoError(t, fx.exec(owner, func(f *ledger.Frame) error {
		_, err := fx.c.Registry.Account(acct).ExecuteCall(f, fx.c.Components.Address(), nil, approve)
		if err != nil {
			return err
		}
		return fx.c.Economy.Unload(f, ownerCar, component)
	}))
	fx.view(t, func(f *ledger.Frame) error {
		holder, err := fx.c.Components.OwnerOf(f, component)
		require.NoError(t, err)
		assert.Equal(t, owner, holder)
		return nil
	})

	// Unloading again is a conflict
	err = fx.exec(owner, func(f *ledger.Frame) error {
		return fx.c.Economy.Unload(f, ownerCar, component)
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)
}

func TestCalldataInterface(t *testing.T) {
	fx := newFixture(t)
	ls := fx.node.LedgerState()
	ctx := context.Background()
	economyAddr := fx.c.Economy.Address()

	_, err := ls.Call(
		ctx,
		owner,
		economyAddr,
		nil,
		calldata.MustEncode("parkCar(uint256,uint256)", uint64(ownerCar), uint64(userPark)),
	)
	require.NoError(t, err)

	ret, err := ls.StaticCall(ctx, economyAddr, calldata.MustEncode("viewCarOnPark(uint256)", uint64(ownerCar)))
	require.NoError(t, err)
	park, err := calldata.DecodeUint64(ret)
	require.NoError(t, err)
	assert.Equal(t, uint64(userPark), park)

	fx.clock.Advance(100)
	ret, err = ls.StaticCall(ctx, economyAddr, calldata.MustEncode("pendingReward(uint256)", uint64(ownerCar)))
	require.NoError(t, err)
	pending, err := calldata.DecodeUint64(ret)
	require.NoError(t, err)
	assert.Equal(t, uint64(100*rewardRate), pending)

	_, err = ls.Call(ctx, owner, economyAddr, nil, calldata.MustEncode("unParkCar(uint256)", uint64(ownerCar)))
	require.NoError(t, err)
	assert.Equal(t, "300", fx.lootBalance(t, owner))

	_, err = ls.Call(ctx, user, economyAddr, nil, calldata.MustEncode("unParkCar(uint256)", uint64(ownerCar)))
	require.ErrorIs(t, err, ledger.ErrExternalCall)
	require.ErrorIs(t, err, ledger.ErrAuthorization)
}
