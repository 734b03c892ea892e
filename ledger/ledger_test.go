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

package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/internal/test/testutil"
	"github.com/blinklabs-io/lotloot/ledger"
)

var (
	vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000a001")
	otherAddr = common.HexToAddress("0x000000000000000000000000000000000000a002")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

var valueKey = ledger.Key("value")

// vault is a small contract used to exercise the execution environment
type vault struct {
	*ledger.Dispatcher
}

func newVault() *vault {
	v := &vault{}
	v.Dispatcher = ledger.MustNewDispatcher(
		[]ledger.Method{
			{
				Signature: "set(uint256)",
				Handler: func(f *ledger.Frame, args []any) ([]any, error) {
					val, err := ledger.Uint256Arg(args, 0)
					if err != nil {
						return nil, err
					}
					if err := ledger.SetUint256(f, valueKey, val); err != nil {
						return nil, err
					}
					return nil, f.Emit("Set", map[string]string{"value": val.Dec()})
				},
			},
			{
				Signature: "get()",
				Returns:   []string{"uint256"},
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					val, err := ledger.GetUint256(f, valueKey)
					if err != nil {
						return nil, err
					}
					return []any{val}, nil
				},
			},
			{
				Signature: "fail()",
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					if err := ledger.SetUint64(f, valueKey, 99); err != nil {
						return nil, err
					}
					return nil, ledger.NewAuthorizationError(f.Caller(), "always fails")
				},
			},
			{
				Signature: "forward(address,bytes)",
				Returns:   []string{"bytes"},
				Handler: func(f *ledger.Frame, args []any) ([]any, error) {
					target, err := ledger.AddressArg(args, 0)
					if err != nil {
						return nil, err
					}
					payload, err := ledger.BytesArg(args, 1)
					if err != nil {
						return nil, err
					}
					ret, err := f.Call(target, nil, payload)
					if err != nil {
						return nil, err
					}
					return []any{ret}, nil
				},
			},
			{
				Signature: "guarded(address,bytes)",
				Handler: func(f *ledger.Frame, args []any) ([]any, error) {
					release, err := f.NonReentrant()
					if err != nil {
						return nil, err
					}
					defer release()
					target, _ := ledger.AddressArg(args, 0)
					payload, _ := ledger.BytesArg(args, 1)
					_, err = f.Call(target, nil, payload)
					return nil, err
				},
			},
			{
				Signature: "recurse()",
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					_, err := f.Call(f.Self(), nil, calldata.MustEncode("recurse()"))
					return nil, err
				},
			},
			{
				Signature: "self()",
				Returns:   []string{"address", "address"},
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					return []any{f.Self(), f.Caller()}, nil
				},
			},
		},
		func(f *ledger.Frame) error {
			return f.Emit("Received", f.Value().Dec())
		},
	)
	return v
}

func newTestLedger(t *testing.T) *testutil.TestLedger {
	t.Helper()
	tl := testutil.NewLedgerState(t)
	require.NoError(t, tl.Deploy(vaultAddr, newVault()))
	require.NoError(t, tl.Deploy(otherAddr, newVault()))
	return tl
}

func getValue(t *testing.T, tl *testutil.TestLedger, addr common.Address) uint64 {
	t.Helper()
	ret, err := tl.StaticCall(context.Background(), addr, calldata.MustEncode("get()"))
	require.NoError(t, err)
	val, err := calldata.DecodeUint64(ret)
	require.NoError(t, err)
	return val
}

func TestExecuteCommitsStateAndJournal(t *testing.T) {
	tl := newTestLedger(t)
	_, evtCh := tl.EventBus.Subscribe(ledger.ContractEventType)
	_, err := tl.Call(
		context.Background(),
		alice,
		vaultAddr,
		nil,
		calldata.MustEncode("set(uint256)", 42),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), getValue(t, tl, vaultAddr))

	events, err := tl.Events(types.EventFilter{Name: "Set"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, vaultAddr.Bytes(), events[0].Contract)
	assert.JSONEq(t, `{"value":"42"}`, string(events[0].Data))
	assert.Equal(t, testutil.DefaultStartTime, events[0].Timestamp)

	evt := testutil.RequireReceive(t, evtCh, time.Second, "contract event")
	contractEvt, ok := evt.Data.(ledger.ContractEvent)
	require.True(t, ok)
	assert.Equal(t, "Set", contractEvt.Name)
	assert.Equal(t, events[0].OperationID, contractEvt.OperationID)
}

func TestExecuteRollsBackOnError(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	_, evtCh := tl.EventBus.Subscribe(ledger.ContractEventType)
	_, err := tl.Call(ctx, alice, vaultAddr, nil, calldata.MustEncode("set(uint256)", 7))
	require.NoError(t, err)

	err = tl.Execute(ctx, alice, func(f *ledger.Frame) error {
		if _, err := f.Call(vaultAddr, nil, calldata.MustEncode("set(uint256)", 8)); err != nil {
			return err
		}
		_, err := f.Call(otherAddr, nil, calldata.MustEncode("fail()"))
		return err
	})
	require.Error(t, err)
	// The nested failure keeps its original reason
	require.ErrorIs(t, err, ledger.ErrExternalCall)
	require.ErrorIs(t, err, ledger.ErrAuthorization)
	var authErr *ledger.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, alice, authErr.Caller)
	var callErr *ledger.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, otherAddr, callErr.Target)

	// Neither write survived
	assert.Equal(t, uint64(7), getValue(t, tl, vaultAddr))
	assert.Equal(t, uint64(0), getValue(t, tl, otherAddr))
	events, err := tl.Events(types.EventFilter{Name: "Set"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	testutil.RequireReceive(t, evtCh, time.Second, "event from first operation")
	testutil.RequireNoReceive(t, evtCh, 100*time.Millisecond, "event from failed operation")
}

func TestTimeIsMonotonic(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	var seen []uint64
	record := func(f *ledger.Frame) error {
		seen = append(seen, f.Now())
		return nil
	}
	require.NoError(t, tl.Execute(ctx, alice, record))
	tl.Clock.Advance(3600)
	require.NoError(t, tl.Execute(ctx, alice, record))
	// Moving the clock backwards is not observable
	tl.Clock.Set(testutil.DefaultStartTime - 100)
	require.NoError(t, tl.Execute(ctx, alice, record))
	require.NoError(t, tl.View(ctx, record))
	assert.Equal(
		t,
		[]uint64{
			testutil.DefaultStartTime,
			testutil.DefaultStartTime + 3600,
			testutil.DefaultStartTime + 3600,
			testutil.DefaultStartTime + 3600,
		},
		seen,
	)
	last, err := tl.LastTime()
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultStartTime+3600, last)
}

func TestTimeIsReadOncePerOperation(t *testing.T) {
	tl := newTestLedger(t)
	err := tl.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		before := f.Now()
		tl.Clock.Advance(10)
		assert.Equal(t, before, f.Enter(vaultAddr).Now())
		return nil
	})
	require.NoError(t, err)
}

func TestViewIsReadOnly(t *testing.T) {
	tl := newTestLedger(t)
	err := tl.View(context.Background(), func(f *ledger.Frame) error {
		_, err := f.Call(vaultAddr, nil, calldata.MustEncode("set(uint256)", 1))
		return err
	})
	require.ErrorIs(t, err, ledger.ErrReadOnly)
	err = tl.View(context.Background(), func(f *ledger.Frame) error {
		return f.Emit("Nope", nil)
	})
	require.ErrorIs(t, err, ledger.ErrReadOnly)
}

func TestCallDepthLimit(t *testing.T) {
	tl := newTestLedger(t)
	_, err := tl.Call(context.Background(), alice, vaultAddr, nil, calldata.MustEncode("recurse()"))
	require.ErrorIs(t, err, ledger.ErrCallDepth)
	assert.Equal(t, "call_depth", ledger.ErrorKind(err))
}

func TestNonReentrant(t *testing.T) {
	tl := newTestLedger(t)
	// vault.guarded -> other.forward -> vault.guarded
	inner := calldata.MustEncode("guarded(address,bytes)", otherAddr, []byte{})
	middle := calldata.MustEncode("forward(address,bytes)", vaultAddr, inner)
	outer := calldata.MustEncode("guarded(address,bytes)", otherAddr, middle)
	_, err := tl.Call(context.Background(), alice, vaultAddr, nil, outer)
	require.ErrorIs(t, err, ledger.ErrStateConflict)

	// A guard is released when the guarded step returns
	err = tl.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		for range 2 {
			if _, err := f.Call(vaultAddr, nil, calldata.MustEncode("guarded(address,bytes)", otherAddr, []byte{})); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestValueTransfer(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, tl.Fund(ctx, alice, uint256.NewInt(100)))

	// Value to an address without code simply moves
	_, err := tl.Call(ctx, alice, bob, uint256.NewInt(30), nil)
	require.NoError(t, err)
	// Value to a contract reaches its receive handler
	_, err = tl.Call(ctx, alice, vaultAddr, uint256.NewInt(20), nil)
	require.NoError(t, err)

	bal, err := tl.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), bal.Uint64())
	bal, err = tl.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), bal.Uint64())
	bal, err = tl.Balance(ctx, vaultAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), bal.Uint64())
	events, err := tl.Events(types.EventFilter{Name: "Received"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `"20"`, string(events[0].Data))

	_, err = tl.Call(ctx, alice, bob, uint256.NewInt(51), nil)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalanceOrAllowance)
	var insufficient *ledger.InsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(50), insufficient.Have.Uint64())
}

func TestProxyRunsAsProxyAddress(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	proxy := common.HexToAddress("0x000000000000000000000000000000000000beef")
	err := tl.Execute(ctx, alice, func(f *ledger.Frame) error {
		if err := f.DeployProxy(proxy, vaultAddr, []byte{0x01, 0x02}); err != nil {
			return err
		}
		_, err := f.Call(proxy, nil, calldata.MustEncode("set(uint256)", 5))
		return err
	})
	require.NoError(t, err)
	// Proxy storage is separate from the implementation's
	assert.Equal(t, uint64(5), getValue(t, tl, proxy))
	assert.Equal(t, uint64(0), getValue(t, tl, vaultAddr))

	ret, err := tl.Call(ctx, alice, proxy, nil, calldata.MustEncode("self()"))
	require.NoError(t, err)
	vals, err := calldata.Decode([]string{"address", "address"}, ret)
	require.NoError(t, err)
	assert.Equal(t, proxy, vals[0])
	assert.Equal(t, alice, vals[1])

	err = tl.View(ctx, func(f *ledger.Frame) error {
		code, err := f.Enter(proxy).Code()
		if err != nil {
			return err
		}
		require.NotNil(t, code)
		assert.Equal(t, vaultAddr, code.Implementation)
		assert.Equal(t, []byte{0x01, 0x02}, code.Immutable)
		return nil
	})
	require.NoError(t, err)

	// Deploying twice conflicts, and unknown implementations are rejected
	err = tl.Execute(ctx, alice, func(f *ledger.Frame) error {
		return f.DeployProxy(proxy, vaultAddr, nil)
	})
	require.ErrorIs(t, err, ledger.ErrStateConflict)
	err = tl.Execute(ctx, alice, func(f *ledger.Frame) error {
		return f.DeployProxy(common.HexToAddress("0x01"), bob, nil)
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDispatcherErrors(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	_, err := tl.Call(ctx, alice, vaultAddr, nil, []byte{0x01, 0x02})
	require.ErrorIs(t, err, ledger.ErrMalformedCall)
	_, err = tl.Call(ctx, alice, vaultAddr, nil, calldata.MustEncode("missing()"))
	require.ErrorIs(t, err, ledger.ErrNotFound)
	// Truncated arguments
	payload := calldata.MustEncode("set(uint256)", 1)
	_, err = tl.Call(ctx, alice, vaultAddr, nil, payload[:10])
	require.ErrorIs(t, err, ledger.ErrMalformedCall)

	noReceive := ledger.MustNewDispatcher(nil, nil)
	err = tl.Execute(ctx, alice, func(f *ledger.Frame) error {
		_, err := noReceive.Invoke(f, nil)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = ledger.NewDispatcher(
		[]ledger.Method{{Signature: "broken("}},
		nil,
	)
	require.ErrorIs(t, err, calldata.ErrMalformedSignature)
	assert.Equal(
		t,
		[]string{"fail()", "forward(address,bytes)", "get()", "guarded(address,bytes)", "recurse()", "self()", "set(uint256)"},
		newVault().Signatures(),
	)
}

func TestStorageIterate(t *testing.T) {
	tl := newTestLedger(t)
	err := tl.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		cf := f.Enter(vaultAddr)
		for _, id := range []uint64{3, 1, 2} {
			if err := ledger.SetUint64(cf, ledger.Key("list", id), id*10); err != nil {
				return err
			}
		}
		if err := ledger.SetUint64(cf, ledger.Key("other"), 1); err != nil {
			return err
		}
		var got []uint64
		err := cf.Iterate(ledger.KeyPrefix("list"), func(key, val []byte) (bool, error) {
			got = append(got, ledger.Uint64FromKey(key))
			return true, nil
		})
		assert.Equal(t, []uint64{1, 2, 3}, got)
		// Another address sees none of it
		count := 0
		err2 := f.Enter(otherAddr).Iterate(nil, func(_, _ []byte) (bool, error) {
			count++
			return true, nil
		})
		assert.Equal(t, 0, count)
		return errors.Join(err, err2)
	})
	require.NoError(t, err)
}

func TestEventOrderWithinOperation(t *testing.T) {
	tl := newTestLedger(t)
	_, evtCh := tl.EventBus.Subscribe(ledger.ContractEventType)
	err := tl.Execute(context.Background(), alice, func(f *ledger.Frame) error {
		for _, name := range []string{"A", "B", "C"} {
			if err := f.Enter(vaultAddr).Emit(name, nil); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	for i, name := range []string{"A", "B", "C"} {
		evt := testutil.RequireReceive(t, evtCh, time.Second, name)
		contractEvt := evt.Data.(ledger.ContractEvent)
		assert.Equal(t, name, contractEvt.Name)
		assert.Equal(t, uint32(i), contractEvt.Sequence) //nolint:gosec
	}
}

func TestErrorKind(t *testing.T) {
	testDefs := []struct {
		err  error
		kind string
	}{
		{err: nil, kind: "ok"},
		{err: ledger.NewAuthorizationError(alice, "x"), kind: "authorization"},
		{err: ledger.NewStateConflictError("x"), kind: "state_conflict"},
		{err: ledger.NewNotFoundError("token", 1), kind: "not_found"},
		{err: ledger.NewInsufficientError("x", uint256.NewInt(1), uint256.NewInt(2)), kind: "insufficient"},
		{err: &ledger.CallError{Target: bob, Err: errors.New("boom")}, kind: "external_call"},
		{err: &ledger.CallError{Target: bob, Err: ledger.NewNotFoundError("token", 1)}, kind: "not_found"},
		{err: errors.New("other"), kind: "internal"},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.kind, ledger.ErrorKind(testDef.err))
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(
		t,
		"token 1000: not found",
		ledger.NewNotFoundError("token", 1000).Error(),
	)
	assert.Equal(
		t,
		"state conflict: car 1000 already parked",
		ledger.NewStateConflictError("car %d already parked", 1000).Error(),
	)
	assert.Equal(
		t,
		"insufficient balance or allowance: allowance: have 1, want 2",
		ledger.NewInsufficientError("allowance", uint256.NewInt(1), uint256.NewInt(2)).Error(),
	)
}
