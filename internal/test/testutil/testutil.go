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

// Package testutil provides common test helpers: in-memory ledgers and
// deterministic channel synchronization
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lotloot/database"
	"github.com/blinklabs-io/lotloot/event"
	"github.com/blinklabs-io/lotloot/ledger"
)

// DefaultChainID is the chain ID used by test ledgers
const DefaultChainID uint64 = 31337

// DefaultStartTime is the initial time of test ledger clocks
const DefaultStartTime uint64 = 1_700_000_000

// TestLedger bundles an in-memory ledger with its collaborators
type TestLedger struct {
	*ledger.LedgerState
	Clock    *ledger.ManualClock
	Database *database.Database
	EventBus *event.EventBus
}

// NewLedgerState returns an in-memory ledger driven by a manual clock. All
// resources are released when the test finishes
func NewLedgerState(t *testing.T) *TestLedger {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	clock := ledger.NewManualClock(DefaultStartTime)
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database: db,
		EventBus: eventBus,
		Clock:    clock,
		ChainID:  DefaultChainID,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		eventBus.Stop()
		_ = db.Close()
	})
	return &TestLedger{
		LedgerState: ls,
		Clock:       clock,
		Database:    db,
		EventBus:    eventBus,
	}
}

// WaitForCondition polls the given condition function until it returns true
// or the timeout expires
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(
		t,
		condition,
		timeout,
		10*time.Millisecond,
		msg,
	)
}

// RequireReceive waits for a value on the given channel or fails the test
// if the timeout expires
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
		var zero T
		return zero // unreachable
	}
}

// RequireNoReceive verifies that no value is received on the given channel
// within the specified duration
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	duration time.Duration,
	msg string,
) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf(
			"unexpected value received on channel: %v: %s",
			v,
			msg,
		)
	case <-time.After(duration):
		// Expected: nothing received
	}
}
