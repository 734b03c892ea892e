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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blinklabs-io/lotloot"
	"github.com/blinklabs-io/lotloot/event"
	"github.com/blinklabs-io/lotloot/internal/config"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/rpc"
)

// Build creates a node from the loaded configuration. The returned manual
// clock is nil unless the config selects one. Extra options are applied
// after the ones derived from cfg
func Build(
	cfg *config.Config,
	logger *slog.Logger,
	opts ...lotloot.ConfigOptionFunc,
) (*lotloot.Node, *ledger.ManualClock, error) {
	admin, err := cfg.AdminAddress()
	if err != nil {
		return nil, nil, err
	}
	rewardRate, err := cfg.RewardRateAmount()
	if err != nil {
		return nil, nil, err
	}
	componentPrice, err := cfg.ComponentPriceAmount()
	if err != nil {
		return nil, nil, err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	var clock ledger.Clock = ledger.SystemClock{}
	var manualClock *ledger.ManualClock
	if cfg.Clock == config.ClockModeManual {
		start := cfg.ClockStart
		if start == 0 {
			start = ledger.SystemClock{}.Now()
		}
		manualClock = ledger.NewManualClock(start)
		clock = manualClock
	}
	nodeOpts := []lotloot.ConfigOptionFunc{
		lotloot.WithLogger(logger),
		lotloot.WithDatabasePath(cfg.DatabasePath),
		lotloot.WithChainID(cfg.ChainID),
		lotloot.WithAdmin(admin),
		lotloot.WithClock(clock),
		lotloot.WithRewardRate(rewardRate),
		lotloot.WithFinePeriod(cfg.FinePeriod),
		lotloot.WithComponentPrice(componentPrice),
		lotloot.WithMaxCallDepth(cfg.MaxCallDepth),
		lotloot.WithTracing(cfg.Tracing),
		lotloot.WithTracingStdout(cfg.TracingStdout),
		lotloot.WithShutdownTimeout(shutdownTimeout),
	}
	n, err := lotloot.New(
		lotloot.NewConfig(append(nodeOpts, opts...)...),
	)
	if err != nil {
		return nil, nil, err
	}
	return n, manualClock, nil
}

// LogContractEvents logs every committed contract event at info level
func LogContractEvents(eventBus *event.EventBus, logger *slog.Logger) event.EventSubscriberId {
	return eventBus.SubscribeFunc(
		ledger.ContractEventType,
		func(evt event.Event) {
			ce, ok := evt.Data.(ledger.ContractEvent)
			if !ok {
				return
			}
			logger.Info(
				"contract event",
				"component", "node",
				"name", ce.Name,
				"contract", ce.Contract.Hex(),
				"operation_id", ce.OperationID,
				"sequence", ce.Sequence,
				"timestamp", ce.Timestamp,
				"data", ce.Data,
			)
		},
	)
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	n, _, err := Build(
		cfg,
		logger,
		// Enable metrics with default prometheus registry
		lotloot.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return errors.Join(err, n.Stop())
	}
	if cfg.LogEvents {
		LogContractEvents(n.EventBus(), logger)
	}
	for name, addr := range n.Contracts().Addresses() {
		logger.Info(
			"contract address",
			"component", "node",
			"name", name,
			"address", addr.Hex(),
		)
	}
	// Ledger RPC listener
	var rpcServer *rpc.Server
	if cfg.RpcPort > 0 {
		rpcServer, err = rpc.New(rpc.Config{
			Logger:          logger,
			LedgerState:     n.LedgerState(),
			Contracts:       n.Contracts().Addresses(),
			Host:            cfg.RpcBindAddr,
			Port:            cfg.RpcPort,
			TlsCertFilePath: cfg.TlsCertFilePath,
			TlsKeyFilePath:  cfg.TlsKeyFilePath,
			ReuseAddress:    true,
		})
		if err != nil {
			return errors.Join(err, n.Stop())
		}
		if err := rpcServer.Start(context.Background()); err != nil {
			return errors.Join(err, n.Stop())
		}
	}
	// Metrics listener
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "node",
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics listener: %w", err)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case runErr = <-errChan:
		logger.Error("node error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Stop(shutdownCtx); err != nil {
			logger.Error("rpc server shutdown error", "error", err)
		}
	}
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr == nil {
		logger.Info("shutdown complete")
	}
	return runErr
}
