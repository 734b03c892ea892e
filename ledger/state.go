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
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/lotloot/database"
	"github.com/blinklabs-io/lotloot/database/models"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/event"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxCallDepth = 32

	ContractEventType event.EventType = "ledger.contract_event"

	tracerName = "github.com/blinklabs-io/lotloot/ledger"
)

type LedgerStateConfig struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Clock        Clock
	ChainID      uint64
	MaxCallDepth int
}

// LedgerState executes operations against contract state. Operations run one
// at a time, and each one commits or rolls back as a whole
type LedgerState struct {
	config      LedgerStateConfig
	db          *database.Database
	logger      *slog.Logger
	clock       Clock
	tracer      trace.Tracer
	metrics     *stateMetrics
	contracts   map[common.Address]Contract
	contractsMu sync.RWMutex
	mu          sync.Mutex
}

// ContractEvent is an event emitted by a contract during a committed operation
type ContractEvent struct {
	Data        any
	OperationID string
	Name        string
	Contract    common.Address
	Timestamp   uint64
	Sequence    uint32
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Database == nil {
		return nil, errors.New("a database must be provided")
	}
	if cfg.ChainID == 0 {
		return nil, errors.New("a chain ID must be provided")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	ls := &LedgerState{
		config:    cfg,
		db:        cfg.Database,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		tracer:    otel.Tracer(tracerName),
		contracts: make(map[common.Address]Contract),
	}
	ls.initMetrics()
	return ls, nil
}

// ChainID returns the chain identifier of the execution environment
func (ls *LedgerState) ChainID() uint64 {
	return ls.config.ChainID
}

// Deploy registers in-process contract code at the given address
func (ls *LedgerState) Deploy(addr common.Address, contract Contract) error {
	ls.contractsMu.Lock()
	defer ls.contractsMu.Unlock()
	if _, ok := ls.contracts[addr]; ok {
		return NewStateConflictError("code already deployed at %s", addr.Hex())
	}
	ls.contracts[addr] = contract
	ls.logger.Debug(
		fmt.Sprintf("deployed %T", contract),
		"component", "ledger",
		"address", addr.Hex(),
	)
	return nil
}

func (ls *LedgerState) contract(addr common.Address) (Contract, bool) {
	ls.contractsMu.RLock()
	defer ls.contractsMu.RUnlock()
	c, ok := ls.contracts[addr]
	return c, ok
}

// Execute runs fn as a single atomic operation on behalf of caller. Every
// state change made by fn and any nested call is committed together, or
// rolled back together if fn returns an error. Events emitted during the
// operation are journaled with the commit and published afterwards
func (ls *LedgerState) Execute(
	ctx context.Context,
	caller common.Address,
	fn func(*Frame) error,
) error {
	ctx, span := ls.tracer.Start(
		ctx,
		"ledger.Execute",
		trace.WithAttributes(attribute.String("caller", caller.Hex())),
	)
	defer span.End()
	start := time.Now()
	ls.mu.Lock()
	exec, err := ls.execute(ctx, caller, fn)
	ls.mu.Unlock()
	kind := ErrorKind(err)
	ls.metrics.operations.WithLabelValues(kind).Inc()
	ls.metrics.duration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("operation_id", exec.id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		ls.logger.Debug(
			"operation failed",
			"component", "ledger",
			"operation_id", exec.id,
			"caller", caller.Hex(),
			"kind", kind,
			"error", err,
		)
		return err
	}
	span.SetAttributes(attribute.Int("events", len(exec.events)))
	ls.metrics.time.Set(float64(exec.now))
	ls.publish(exec)
	return nil
}

func (ls *LedgerState) execute(
	ctx context.Context,
	caller common.Address,
	fn func(*Frame) error,
) (*execution, error) {
	exec := newExecution(ctx, ls, uuid.NewString(), false)
	txn := ls.db.Transaction(true)
	exec.txn = txn
	err := txn.Do(func(txn *database.Txn) error {
		now, err := ls.operationTime(txn)
		if err != nil {
			return err
		}
		exec.now = now
		if err := txn.BlobSet(metaKeyTime, binary.BigEndian.AppendUint64(nil, now)); err != nil {
			return err
		}
		if err := fn(exec.rootFrame(caller)); err != nil {
			return err
		}
		return ls.journal(txn, exec, caller)
	})
	return exec, err
}

// View runs fn against a read-only snapshot of the state. Writes, value
// transfers and events fail with ErrReadOnly
func (ls *LedgerState) View(ctx context.Context, fn func(*Frame) error) error {
	txn := ls.db.BlobTransaction(false)
	defer txn.Release()
	now, err := ls.operationTime(txn)
	if err != nil {
		return err
	}
	exec := newExecution(ctx, ls, "", true)
	exec.txn = txn
	exec.now = now
	return fn(exec.rootFrame(common.Address{}))
}

// Call forwards an opaque payload from caller to target as an operation
func (ls *LedgerState) Call(
	ctx context.Context,
	caller common.Address,
	target common.Address,
	value *uint256.Int,
	payload []byte,
) ([]byte, error) {
	var ret []byte
	err := ls.Execute(ctx, caller, func(f *Frame) error {
		var err error
		ret, err = f.Call(target, value, payload)
		return err
	})
	return ret, err
}

// StaticCall forwards an opaque payload to target without modifying state
func (ls *LedgerState) StaticCall(
	ctx context.Context,
	target common.Address,
	payload []byte,
) ([]byte, error) {
	var ret []byte
	err := ls.View(ctx, func(f *Frame) error {
		var err error
		ret, err = f.Call(target, nil, payload)
		return err
	})
	return ret, err
}

// Fund credits native value to an address
func (ls *LedgerState) Fund(
	ctx context.Context,
	addr common.Address,
	amount *uint256.Int,
) error {
	return ls.Execute(ctx, addr, func(f *Frame) error {
		return f.exec.credit(addr, amount)
	})
}

// Balance returns the native value held by an address
func (ls *LedgerState) Balance(
	ctx context.Context,
	addr common.Address,
) (*uint256.Int, error) {
	var ret *uint256.Int
	err := ls.View(ctx, func(f *Frame) error {
		var err error
		ret, err = f.BalanceOf(addr)
		return err
	})
	return ret, err
}

// LastTime returns the ledger time of the last committed operation
func (ls *LedgerState) LastTime() (uint64, error) {
	txn := ls.db.BlobTransaction(false)
	defer txn.Release()
	return ls.lastTime(txn)
}

// Events returns journaled events of committed operations. It must not be
// called from within an operation
func (ls *LedgerState) Events(filter types.EventFilter) ([]models.Event, error) {
	return ls.db.Events(filter)
}

func (ls *LedgerState) lastTime(txn *database.Txn) (uint64, error) {
	val, err := txn.BlobGet(metaKeyTime)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt ledger time record of length %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// operationTime reads the clock once, never returning less than the time of
// the last committed operation
func (ls *LedgerState) operationTime(txn *database.Txn) (uint64, error) {
	last, err := ls.lastTime(txn)
	if err != nil {
		return 0, err
	}
	return max(ls.clock.Now(), last), nil
}

func (ls *LedgerState) journal(
	txn *database.Txn,
	exec *execution,
	caller common.Address,
) error {
	events := make([]models.Event, 0, len(exec.events))
	for _, evt := range exec.events {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", evt.Name, err)
		}
		events = append(events, models.Event{
			OperationID: exec.id,
			Contract:    evt.Contract.Bytes(),
			Name:        evt.Name,
			Data:        data,
			Timestamp:   evt.Timestamp,
			Sequence:    evt.Sequence,
		})
	}
	op := models.Operation{
		OperationID: exec.id,
		Caller:      caller.Bytes(),
		Timestamp:   exec.now,
		EventCount:  uint32(len(events)), //nolint:gosec
	}
	return txn.AddOperation(op, events)
}

func (ls *LedgerState) publish(exec *execution) {
	for _, evt := range exec.events {
		ls.metrics.events.WithLabelValues(evt.Name).Inc()
		if ls.config.EventBus == nil {
			continue
		}
		ls.config.EventBus.PublishAsync(
			ContractEventType,
			event.NewEvent(ContractEventType, evt),
		)
	}
}
