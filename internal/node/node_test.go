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

package node_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lotloot/internal/config"
	"github.com/blinklabs-io/lotloot/internal/node"
	"github.com/blinklabs-io/lotloot/internal/test/testutil"
	"github.com/blinklabs-io/lotloot/ledger"
)

var (
	owner = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	user  = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	return &config.Config{
		Admin:           config.DefaultAdmin,
		RewardRate:      "2",
		ComponentPrice:  "100",
		Clock:           config.ClockModeManual,
		ClockStart:      testutil.DefaultStartTime,
		ShutdownTimeout: "5s",
		ChainID:         testutil.DefaultChainID,
		FinePeriod:      3600,
	}
}

func TestBuildRejectsBadAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = "admin"
	_, _, err := node.Build(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestBuildSystemClock(t *testing.T) {
	cfg := testConfig()
	cfg.Clock = config.ClockModeSystem
	n, clock, err := node.Build(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, clock)
	require.NoError(t, n.Stop())
}

func TestRunScenario(t *testing.T) {
	logBuf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	n, clock, err := node.Build(testConfig(), logger)
	require.NoError(t, err)
	require.NotNil(t, clock)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })
	node.LogContractEvents(n.EventBus(), logger)

	result, err := node.RunScenario(context.Background(), n, clock, owner, user, logger)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), result.OwnerCar)
	assert.Equal(t, uint64(1001), result.UserCar)
	assert.Equal(t, uint64(1000), result.OwnerPark)
	assert.Equal(t, uint64(1001), result.UserPark)
	assert.Equal(t, uint64(1000), result.Component)
	assert.Equal(t, "7200", result.Reward.Dec())
	assert.Equal(t, user, result.FinalCarOwner)
	assert.Equal(t, n.Contracts().Registry.ComputeAddress(
		n.Contracts().Economy.AccountKey(testutil.DefaultChainID, result.OwnerCar),
	), result.CarAccount)

	c := n.Contracts()
	ctx := context.Background()
	require.NoError(t, n.View(ctx, func(f *ledger.Frame) error {
		// Funding, minus the component price, plus the reward
		bal, err := c.Loot.BalanceOf(f, owner)
		require.NoError(t, err)
		assert.Equal(t, "8100", bal.Dec())
		holder, err := c.Components.OwnerOf(f, result.Component)
		require.NoError(t, err)
		assert.Equal(t, owner, holder)
		park, err := c.Economy.CarOnPark(f, result.UserPark)
		require.NoError(t, err)
		assert.Zero(t, park)
		return nil
	}))

	testutil.WaitForCondition(
		t,
		func() bool { return strings.Contains(logBuf.String(), `"name":"Fined"`) },
		2*time.Second,
		"fine event was not logged",
	)
}

func TestRunScenarioRequiresManualClock(t *testing.T) {
	cfg := testConfig()
	cfg.Clock = config.ClockModeSystem
	n, clock, err := node.Build(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })
	_, err = node.RunScenario(
		context.Background(),
		n,
		clock,
		owner,
		user,
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
	require.ErrorContains(t, err, "manual clock")
}
