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

package account_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/account"
	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/internal/test/testutil"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/token"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	implAddr     = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	nftAddr      = common.HexToAddress("0x00000000000000000000000000000000000b0003")
	admin        = common.HexToAddress("0x0000000000000000000000000000000000000ad1")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fixture struct {
	*testutil.TestLedger
	registry *account.Registry
	nft      *token.NonFungible
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tl := testutil.NewLedgerState(t)
	fx := &fixture{
		TestLedger: tl,
		registry:   account.NewRegistry(registryAddr),
		nft:        token.NewNonFungible(nftAddr, "Cars"),
	}
	require.NoError(t, tl.Deploy(registryAddr, fx.registry))
	require.NoError(t, tl.Deploy(implAddr, account.NewImplementation()))
	require.NoError(t, tl.Deploy(nftAddr, fx.nft))
	err := tl.Execute(context.Background(), admin, func(f *ledger.Frame) error {
		if err := fx.nft.Initialize(f, admin); err != nil {
			return err
		}
		if err := fx.nft.GrantRole(f, access.MinterRole, admin); err != nil {
			return err
		}
		return fx.nft.Mint(f, alice, 1000, nil)
	})
	require.NoError(t, err)
	return fx
}

func carKey(tokenID uint64) account.Key {
	return account.Key{
		Implementation: implAddr,
		ChainID:        testutil.DefaultChainID,
		TokenContract:  nftAddr,
		TokenID:        tokenID,
		Salt:           account.SaltFromUint64(tokenID),
	}
}

func (fx *fixture) create(t *testing.T, key account.Key, initData []byte) common.Address {
	t.Helper()
	var addr common.Address
	err := fx.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		var err error
		addr, err = fx.registry.CreateAccount(f, key, initData)
		return err
	})
	require.NoError(t, err)
	return addr
}

func (fx *fixture) nonce(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	var nonce uint64
	err := fx.View(context.Background(), func(f *ledger.Frame) error {
		var err error
		nonce, err = fx.registry.Account(addr).Nonce(f)
		return err
	})
	require.NoError(t, err)
	return nonce
}

func TestComputeAddress(t *testing.T) {
	key := carKey(1000)
	addr := account.ComputeAddress(registryAddr, key)
	assert.Equal(t, addr, account.ComputeAddress(registryAddr, key))
	assert.NotEqual(t, addr, account.ComputeAddress(implAddr, key))

	variants := []func(k *account.Key){
		func(k *account.Key) { k.Implementation = bob },
		func(k *account.Key) { k.ChainID++ },
		func(k *account.Key) { k.TokenContract = bob },
		func(k *account.Key) { k.TokenID++ },
		func(k *account.Key) { k.Salt = account.SaltFromUint64(1) },
	}
	seen := map[common.Address]bool{addr: true}
	for _, variant := range variants {
		k := key
		variant(&k)
		other := account.ComputeAddress(registryAddr, k)
		assert.False(t, seen[other], "address collision for %s", k)
		seen[other] = true
	}
}

func TestComputeAddressThroughRegistry(t *testing.T) {
	fx := newFixture(t)
	key := carKey(1000)
	expected := fx.registry.ComputeAddress(key)
	payload := calldata.MustEncode(
		"account(address,uint256,address,uint256,uint256)",
		key.Implementation,
		key.ChainID,
		key.TokenContract,
		key.TokenID,
		new(uint256.Int).SetBytes(key.Salt.Bytes()),
	)
	ret, err := fx.StaticCall(context.Background(), registryAddr, payload)
	require.NoError(t, err)
	addr, err := calldata.DecodeAddress(ret)
	require.NoError(t, err)
	assert.Equal(t, expected, addr)

	// Creating the account does not move it
	assert.Equal(t, expected, fx.create(t, key, nil))
	ret, err = fx.StaticCall(context.Background(), registryAddr, payload)
	require.NoError(t, err)
	addr, err = calldata.DecodeAddress(ret)
	require.NoError(t, err)
	assert.Equal(t, expected, addr)
}

func TestComputeAddressTokenIDRange(t *testing.T) {
	fx := newFixture(t)
	key := carKey(1000)
	tooLarge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	payload := calldata.MustEncode(
		"account(address,uint256,address,uint256,uint256)",
		key.Implementation,
		key.ChainID,
		key.TokenContract,
		tooLarge,
		new(uint256.Int).SetBytes(key.Salt.Bytes()),
	)
	_, err := fx.StaticCall(context.Background(), registryAddr, payload)
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestCreateAccountIdempotent(t *testing.T) {
	fx := newFixture(t)
	key := carKey(1000)
	first := fx.create(t, key, nil)
	second := fx.create(t, key, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(0), fx.nonce(t, first))

	events, err := fx.Events(types.EventFilter{Name: "AccountCreated"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, registryAddr.Bytes(), events[0].Contract)
	assert.Contains(t, string(events[0].Data), "\"tokenId\":1000")

	err = fx.View(context.Background(), func(f *ledger.Frame) error {
		chainID, tokenContract, tokenID, err := fx.registry.Account(first).Token(f)
		require.NoError(t, err)
		assert.Equal(t, testutil.DefaultChainID, chainID)
		assert.Equal(t, nftAddr, tokenContract)
		assert.Equal(t, uint64(1000), tokenID)
		return nil
	})
	require.NoError(t, err)
}

func TestCreateAccountUnknownImplementation(t *testing.T) {
	fx := newFixture(t)
	key := carKey(1000)
	key.Implementation = bob
	err := fx.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		_, err := fx.registry.CreateAccount(f, key, nil)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateAccountWithInitData(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, carKey(1000), calldata.MustEncode("nonce()"))

	// Init data that fails aborts the creation
	key := carKey(1001)
	err := fx.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		_, err := fx.registry.CreateAccount(
			f,
			key,
			calldata.MustEncode("executeCall(address,uint256,bytes)", bob, 0, []byte{}),
		)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)
	err = fx.View(context.Background(), func(f *ledger.Frame) error {
		exists, err := f.HasCode(fx.registry.ComputeAddress(key))
		assert.False(t, exists)
		return err
	})
	require.NoError(t, err)
}

func TestOwnerFollowsToken(t *testing.T) {
	fx := newFixture(t)
	addr := fx.create(t, carKey(1000), nil)
	owner := func() common.Address {
		var ret common.Address
		err := fx.View(context.Background(), func(f *ledger.Frame) error {
			var err error
			ret, err = fx.registry.Account(addr).Owner(f)
			return err
		})
		require.NoError(t, err)
		return ret
	}
	assert.Equal(t, alice, owner())
	require.NoError(t, fx.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		return fx.nft.TransferFrom(f, alice, bob, 1000)
	}))
	assert.Equal(t, bob, owner())
}

func TestOwnerOnOtherChain(t *testing.T) {
	fx := newFixture(t)
	key := carKey(1000)
	key.ChainID = 1
	addr := fx.create(t, key, nil)
	err := fx.View(context.Background(), func(f *ledger.Frame) error {
		owner, err := fx.registry.Account(addr).Owner(f)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, owner)
		return nil
	})
	require.NoError(t, err)
	// Nobody controls a foreign account
	_, err = fx.Call(
		context.Background(),
		alice,
		addr,
		nil,
		calldata.MustEncode("executeCall(address,uint256,bytes)", bob, 0, []byte{}),
	)
	require.ErrorIs(t, err, ledger.ErrAuthorization)
}

func TestExecuteCall(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	addr := fx.create(t, carKey(1000), nil)
	require.NoError(t, fx.Fund(ctx, addr, uint256.NewInt(100)))
	handle := fx.registry.Account(addr)

	for range 2 {
		err := fx.Execute(ctx, alice, func(f *ledger.Frame) error {
			_, err := handle.ExecuteCall(f, bob, uint256.NewInt(10), nil)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(2), fx.nonce(t, addr))
	bal, err := fx.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), bal.Uint64())

	// The nested call result is passed back
	err = fx.Execute(ctx, alice, func(f *ledger.Frame) error {
		ret, err := handle.ExecuteCall(f, nftAddr, nil, calldata.MustEncode("ownerOf(uint256)", 1000))
		if err != nil {
			return err
		}
		owner, err := calldata.DecodeAddress(ret)
		assert.Equal(t, alice, owner)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), fx.nonce(t, addr))

	events, err := fx.Events(types.EventFilter{Name: "Executed", Contract: addr.Bytes()})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestExecuteCallFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	addr := fx.create(t, carKey(1000), nil)
	require.NoError(t, fx.Fund(ctx, addr, uint256.NewInt(5)))
	handle := fx.registry.Account(addr)

	// Not the token owner
	err := fx.Execute(ctx, bob, func(f *ledger.Frame) error {
		_, err := handle.ExecuteCall(f, bob, uint256.NewInt(1), nil)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrAuthorization)
	var authErr *ledger.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, bob, authErr.Caller)

	// The nested call fails and its reason is kept
	err = fx.Execute(ctx, alice, func(f *ledger.Frame) error {
		_, err := handle.ExecuteCall(
			f,
			nftAddr,
			nil,
			calldata.MustEncode("transferFrom(address,address,uint256)", bob, alice, 1000),
		)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrExternalCall)
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	// Not enough value in the account
	err = fx.Execute(ctx, alice, func(f *ledger.Frame) error {
		_, err := handle.ExecuteCall(f, bob, uint256.NewInt(6), nil)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalanceOrAllowance)

	// Re-entering the account from its own call
	err = fx.Execute(ctx, alice, func(f *ledger.Frame) error {
		_, err := handle.ExecuteCall(
			f,
			addr,
			nil,
			calldata.MustEncode("executeCall(address,uint256,bytes)", bob, 0, []byte{}),
		)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	assert.Equal(t, uint64(0), fx.nonce(t, addr))
	bal, err := fx.Balance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), bal.Uint64())
}

func TestAccountHoldsTokens(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	addr := fx.create(t, carKey(1000), nil)
	// The car's account receives another token and moves it on through executeCall
	require.NoError(t, fx.Execute(ctx, admin, func(f *ledger.Frame) error {
		return fx.nft.Mint(f, addr, 5, nil)
	}))
	err := fx.Execute(ctx, alice, func(f *ledger.Frame) error {
		_, err := fx.registry.Account(addr).ExecuteCall(
			f,
			nftAddr,
			nil,
			calldata.MustEncode("transferFrom(address,address,uint256)", addr, bob, 5),
		)
		return err
	})
	require.NoError(t, err)
	err = fx.View(ctx, func(f *ledger.Frame) error {
		owner, err := fx.nft.OwnerOf(f, 5)
		assert.Equal(t, bob, owner)
		return err
	})
	require.NoError(t, err)
}
