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
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/lotloot/economy"
	"github.com/blinklabs-io/lotloot/ledger"
)

const (
	DefaultChainID        uint64 = 31337
	DefaultRewardRate     uint64 = 1
	DefaultComponentPrice uint64 = 100
)

// DefaultAdmin is the administrator used when none is configured
var DefaultAdmin = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	clock           ledger.Clock
	rewardRate      *uint256.Int
	componentPrice  *uint256.Int
	dataDir         string
	chainID         uint64
	finePeriod      uint64
	maxCallDepth    int
	shutdownTimeout time.Duration
	admin           common.Address
	tracing         bool
	tracingStdout   bool
}

func (n *Node) configValidate() error {
	if n.config.chainID == 0 {
		return errors.New("chain ID must not be zero")
	}
	if n.config.admin == (common.Address{}) {
		return errors.New("admin address must not be zero")
	}
	if n.config.finePeriod == 0 {
		return errors.New("fine period must not be zero")
	}
	if n.config.rewardRate == nil || n.config.componentPrice == nil {
		return errors.New("reward rate and component price must be set")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new lotloot config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		chainID:        DefaultChainID,
		admin:          DefaultAdmin,
		finePeriod:     economy.DefaultFinePeriod,
		rewardRate:     uint256.NewInt(DefaultRewardRate),
		componentPrice: uint256.NewInt(DefaultComponentPrice),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithChainID specifies the chain identifier of the execution environment
func WithChainID(chainID uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.chainID = chainID
	}
}

// WithClock specifies the source of operation time. The default is the system clock
func WithClock(clock ledger.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithAdmin specifies the address that administers every contract created at genesis
func WithAdmin(admin common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.admin = admin
	}
}

// WithRewardRate specifies the reward, in token units per second, earned by a parked car
func WithRewardRate(rate *uint256.Int) ConfigOptionFunc {
	return func(c *Config) {
		c.rewardRate = rate
	}
}

// WithFinePeriod specifies how long, in seconds, a car must be parked before it can be fined
func WithFinePeriod(seconds uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.finePeriod = seconds
	}
}

// WithComponentPrice specifies the price of minting a component from the component store
func WithComponentPrice(price *uint256.Int) ConfigOptionFunc {
	return func(c *Config) {
		c.componentPrice = price
	}
}

// WithMaxCallDepth specifies the limit of nested contract calls
func WithMaxCallDepth(depth int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxCallDepth = depth
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
