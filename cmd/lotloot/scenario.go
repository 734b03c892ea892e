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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lotloot/internal/config"
	"github.com/blinklabs-io/lotloot/internal/node"
)

var scenarioFlags = struct {
	owner string
	user  string
}{}

func scenarioRun(ctx context.Context, cfg *config.Config) {
	logger := commonRun()
	if !common.IsHexAddress(scenarioFlags.owner) || !common.IsHexAddress(scenarioFlags.user) {
		slog.Error("owner and user must be hex addresses")
		os.Exit(1)
	}
	// The scenario moves time itself
	cfg.Clock = config.ClockModeManual
	n, clock, err := node.Build(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	if err := n.Start(); err != nil {
		slog.Error(errors.Join(err, n.Stop()).Error())
		os.Exit(1)
	}
	if cfg.LogEvents {
		node.LogContractEvents(n.EventBus(), logger)
	}
	result, err := node.RunScenario(
		ctx,
		n,
		clock,
		common.HexToAddress(scenarioFlags.owner),
		common.HexToAddress(scenarioFlags.user),
		logger,
	)
	if stopErr := n.Stop(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func scenarioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Play one park, reward and fine round against the configured database",
		Run: func(cmd *cobra.Command, args []string) {
			scenarioRun(cmd.Context(), contextConfig(cmd))
		},
	}
	cmd.Flags().StringVar(
		&scenarioFlags.owner,
		"owner",
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"address of the car owner",
	)
	cmd.Flags().StringVar(
		&scenarioFlags.user,
		"user",
		"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		"address of the park owner who fines the car",
	)
	return cmd
}
