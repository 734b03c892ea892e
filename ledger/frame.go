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

package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/lotloot/database"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// execution holds the state shared by every frame of one operation
type execution struct {
	ctx      context.Context
	ls       *LedgerState
	txn      *database.Txn
	guards   map[common.Address]struct{}
	id       string
	events   []ContractEvent
	now      uint64
	readOnly bool
}

func newExecution(
	ctx context.Context,
	ls *LedgerState,
	id string,
	readOnly bool,
) *execution {
	return &execution{
		ctx:      ctx,
		ls:       ls,
		id:       id,
		readOnly: readOnly,
		guards:   make(map[common.Address]struct{}),
	}
}

func (e *execution) rootFrame(caller common.Address) *Frame {
	return &Frame{
		exec:   e,
		caller: caller,
		self:   caller,
		value:  new(uint256.Int),
	}
}

func (e *execution) writable() error {
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (e *execution) balance(addr common.Address) (*uint256.Int, error) {
	val, err := e.txn.BlobGet(balanceKey(addr))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return new(uint256.Int).SetBytes(val), nil
}

func (e *execution) setBalance(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return e.txn.BlobDelete(balanceKey(addr))
	}
	return e.txn.BlobSet(balanceKey(addr), amount.Bytes())
}

func (e *execution) credit(addr common.Address, amount *uint256.Int) error {
	if err := e.writable(); err != nil {
		return err
	}
	bal, err := e.balance(addr)
	if err != nil {
		return err
	}
	newBal, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow", ErrInvalidArgument)
	}
	return e.setBalance(addr, newBal)
}

func (e *execution) transfer(from, to common.Address, amount *uint256.Int) error {
	if err := e.writable(); err != nil {
		return err
	}
	fromBal, err := e.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return NewInsufficientError("native balance", fromBal, amount)
	}
	if err := e.setBalance(from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.credit(to, amount)
}

func (e *execution) code(addr common.Address) (*Code, error) {
	val, err := e.txn.BlobGet(codeKey(addr))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ret Code
	if _, err := cbor.Decode(val, &ret); err != nil {
		return nil, fmt.Errorf("decode code record for %s: %w", addr.Hex(), err)
	}
	return &ret, nil
}

// resolve returns the contract that handles calls to addr, or nil if there is
// no code at addr
func (e *execution) resolve(addr common.Address) (Contract, error) {
	if c, ok := e.ls.contract(addr); ok {
		return c, nil
	}
	code, err := e.code(addr)
	if err != nil || code == nil {
		return nil, err
	}
	impl, ok := e.ls.contract(code.Implementation)
	if !ok {
		return nil, NewNotFoundError("implementation", code.Implementation.Hex())
	}
	return impl, nil
}

// Frame is the context of one contract invocation. Storage accessed through
// a frame is scoped to the frame's own address
type Frame struct {
	exec   *execution
	value  *uint256.Int
	caller common.Address
	self   common.Address
	depth  int
}

// Caller returns the address that invoked this frame
func (f *Frame) Caller() common.Address {
	return f.caller
}

// Self returns the address whose code is executing
func (f *Frame) Self() common.Address {
	return f.self
}

// Value returns the native value sent with the call
func (f *Frame) Value() *uint256.Int {
	return new(uint256.Int).Set(f.value)
}

// Now returns the time of the operation. It is the same for every frame of
// one operation
func (f *Frame) Now() uint64 {
	return f.exec.now
}

func (f *Frame) ChainID() uint64 {
	return f.exec.ls.config.ChainID
}

func (f *Frame) Context() context.Context {
	return f.exec.ctx
}

func (f *Frame) Logger() *slog.Logger {
	return f.exec.ls.logger
}

func (f *Frame) ReadOnly() bool {
	return f.exec.readOnly
}

// OperationID returns the unique ID of the operation, or an empty string in a view
func (f *Frame) OperationID() string {
	return f.exec.id
}

// Depth returns the call depth of the frame, starting at 0 for the operation caller
func (f *Frame) Depth() int {
	return f.depth
}

// Enter returns the frame for a direct call from this frame's address into
// the in-process contract at target
func (f *Frame) Enter(target common.Address) *Frame {
	return &Frame{
		exec:   f.exec,
		caller: f.self,
		self:   target,
		value:  new(uint256.Int),
		depth:  f.depth + 1,
	}
}

// Call forwards an opaque payload and native value to target. Value moves
// before the target's code runs. A target without code accepts the value and
// returns nothing. Failures inside the target are wrapped in a CallError
func (f *Frame) Call(
	target common.Address,
	value *uint256.Int,
	payload []byte,
) ([]byte, error) {
	if f.depth+1 > f.exec.ls.config.MaxCallDepth {
		return nil, ErrCallDepth
	}
	if value == nil {
		value = new(uint256.Int)
	}
	f.exec.ls.metrics.calls.Inc()
	if !value.IsZero() {
		if err := f.exec.transfer(f.self, target, value); err != nil {
			return nil, err
		}
	}
	contract, err := f.exec.resolve(target)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, nil
	}
	callee := &Frame{
		exec:   f.exec,
		caller: f.self,
		self:   target,
		value:  new(uint256.Int).Set(value),
		depth:  f.depth + 1,
	}
	ret, err := contract.Invoke(callee, payload)
	if err != nil {
		return nil, &CallError{Target: target, Err: err}
	}
	return ret, nil
}

// Get returns the value stored under key for this frame's address
func (f *Frame) Get(key []byte) ([]byte, bool, error) {
	val, err := f.exec.txn.BlobGet(storageKey(f.self, key))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set stores a value under key for this frame's address
func (f *Frame) Set(key, val []byte) error {
	if err := f.exec.writable(); err != nil {
		return err
	}
	return f.exec.txn.BlobSet(storageKey(f.self, key), val)
}

// Delete removes the value stored under key for this frame's address
func (f *Frame) Delete(key []byte) error {
	if err := f.exec.writable(); err != nil {
		return err
	}
	return f.exec.txn.BlobDelete(storageKey(f.self, key))
}

// Iterate calls fn, in key order, for each stored key that starts with
// prefix. Keys passed to fn have the prefix removed
func (f *Frame) Iterate(
	prefix []byte,
	fn func(key, val []byte) (bool, error),
) error {
	fullPrefix := storageKey(f.self, prefix)
	return f.exec.txn.BlobIterate(
		fullPrefix,
		func(entry database.BlobEntry) (bool, error) {
			key, ok := bytes.CutPrefix(entry.Key, fullPrefix)
			if !ok {
				return false, nil
			}
			return fn(key, entry.Value)
		},
	)
}

// Emit records an event from this frame's address. Events become visible
// only if the operation commits
func (f *Frame) Emit(name string, data any) error {
	if err := f.exec.writable(); err != nil {
		return err
	}
	f.exec.events = append(f.exec.events, ContractEvent{
		OperationID: f.exec.id,
		Sequence:    uint32(len(f.exec.events)), //nolint:gosec
		Contract:    f.self,
		Name:        name,
		Data:        data,
		Timestamp:   f.exec.now,
	})
	return nil
}

// NonReentrant takes the re-entrancy guard of this frame's address for the
// rest of the operation step. The returned function releases it. A second
// attempt while the guard is held fails with a StateConflictError
func (f *Frame) NonReentrant() (func(), error) {
	self := f.self
	if _, ok := f.exec.guards[self]; ok {
		return nil, NewStateConflictError("reentrant call into %s", self.Hex())
	}
	f.exec.guards[self] = struct{}{}
	return func() {
		delete(f.exec.guards, self)
	}, nil
}

// BalanceOf returns the native value held by addr
func (f *Frame) BalanceOf(addr common.Address) (*uint256.Int, error) {
	return f.exec.balance(addr)
}

// Code returns the proxy code record at this frame's address, or nil
func (f *Frame) Code() (*Code, error) {
	return f.exec.code(f.self)
}

// HasCode reports whether any code is deployed at addr
func (f *Frame) HasCode(addr common.Address) (bool, error) {
	contract, err := f.exec.resolve(addr)
	if err != nil {
		return false, err
	}
	return contract != nil, nil
}

// DeployProxy stores a proxy code record at addr running the in-process
// implementation at impl
func (f *Frame) DeployProxy(
	addr common.Address,
	impl common.Address,
	immutable []byte,
) error {
	if err := f.exec.writable(); err != nil {
		return err
	}
	if _, ok := f.exec.ls.contract(impl); !ok {
		return NewNotFoundError("implementation", impl.Hex())
	}
	exists, err := f.HasCode(addr)
	if err != nil {
		return err
	}
	if exists {
		return NewStateConflictError("code already deployed at %s", addr.Hex())
	}
	codeCbor, err := cbor.Encode(&Code{
		Implementation: impl,
		Immutable:      immutable,
	})
	if err != nil {
		return err
	}
	return f.exec.txn.BlobSet(codeKey(addr), codeCbor)
}
