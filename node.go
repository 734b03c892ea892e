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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blinklabs-io/lotloot/database"
	"github.com/blinklabs-io/lotloot/database/models"
	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/event"
	"github.com/blinklabs-io/lotloot/ledger"
)

type Node struct {
	db            *database.Database
	eventBus      *event.EventBus
	ledgerState   *ledger.LedgerState
	contracts     *Contracts
	shutdownFuncs []func(context.Context) error
	config        Config
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
	}
	if err := n.configValidate(); err != nil {
		eventBus.Stop()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Start opens the database, deploys the contracts and runs genesis if the
// database is new
func (n *Node) Start() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		var dbErr database.CommitSequenceError
		if errors.As(err, &dbErr) {
			n.config.logger.Error(
				"state and event journal are out of sync",
				"component", "node",
				"error", err,
			)
		}
		if db != nil {
			_ = db.Close()
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Load state
	state, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database:     n.db,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
		ChainID:      n.config.chainID,
		MaxCallDepth: n.config.maxCallDepth,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger state: %w", err)
	}
	n.ledgerState = state
	// Deploy contracts
	contracts, err := newContracts(n.config)
	if err != nil {
		return fmt.Errorf("failed to create contracts: %w", err)
	}
	for _, d := range contracts.deployments() {
		if err := n.ledgerState.Deploy(d.address, d.contract); err != nil {
			return fmt.Errorf("failed to deploy %s: %w", d.name, err)
		}
		n.config.logger.Debug(
			"deployed contract",
			"component", "node",
			"name", d.name,
			"address", d.address.Hex(),
		)
	}
	n.contracts = contracts
	// Run genesis
	var created bool
	err = n.ledgerState.Execute(
		context.Background(),
		n.config.admin,
		func(f *ledger.Frame) error {
			var err error
			created, err = contracts.genesis(f, n.config.chainID)
			return err
		},
	)
	if err != nil {
		return fmt.Errorf("genesis failed: %w", err)
	}
	if created {
		n.config.logger.Info(
			"initialized contracts",
			"component", "node",
			"chain_id", n.config.chainID,
			"admin", n.config.admin.Hex(),
		)
	}
	return nil
}

// Contracts returns the deployed contracts
func (n *Node) Contracts() *Contracts {
	return n.contracts
}

func (n *Node) LedgerState() *ledger.LedgerState {
	return n.ledgerState
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Admin returns the administrator of the contracts
func (n *Node) Admin() common.Address {
	return n.config.admin
}

// Execute runs fn as one atomic operation on behalf of caller
func (n *Node) Execute(
	ctx context.Context,
	caller common.Address,
	fn func(*ledger.Frame) error,
) error {
	if n.ledgerState == nil {
		return errors.New("node is not started")
	}
	return n.ledgerState.Execute(ctx, caller, fn)
}

// View runs fn against the current state without modifying it
func (n *Node) View(ctx context.Context, fn func(*ledger.Frame) error) error {
	if n.ledgerState == nil {
		return errors.New("node is not started")
	}
	return n.ledgerState.View(ctx, fn)
}

// Events returns journaled contract events matching filter
func (n *Node) Events(filter types.EventFilter) ([]models.Event, error) {
	if n.ledgerState == nil {
		return nil, errors.New("node is not started")
	}
	return n.ledgerState.Events(filter)
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Deliver pending events before the stores go away
	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}
