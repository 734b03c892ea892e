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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/export"
	"github.com/blinklabs-io/lotloot/internal/config"
	"github.com/blinklabs-io/lotloot/internal/node"
)

var exportFlags = struct {
	output          string
	contract        string
	name            string
	credentialsFile string
	from            uint64
	to              uint64
	encrypt         bool
}{}

func exportRun(ctx context.Context, cfg *config.Config) error {
	logger := commonRun()
	filter := types.EventFilter{
		Name:          exportFlags.name,
		FromTimestamp: exportFlags.from,
		ToTimestamp:   exportFlags.to,
	}
	if exportFlags.contract != "" {
		if !common.IsHexAddress(exportFlags.contract) {
			return fmt.Errorf("invalid contract address: %s", exportFlags.contract)
		}
		filter.Contract = common.HexToAddress(exportFlags.contract).Bytes()
	}
	n, _, err := node.Build(cfg, logger)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return errors.Join(err, n.Stop())
	}
	defer func() {
		if err := n.Stop(); err != nil {
			logger.Error("failed to stop node", "error", err)
		}
	}()

	var buf bytes.Buffer
	count, err := export.WriteJournal(&buf, n.LedgerState(), filter)
	if err != nil {
		return err
	}
	data := buf.Bytes()
	if exportFlags.encrypt {
		data, err = export.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt journal: %w", err)
		}
	}

	var out io.WriteCloser = nopWriteCloser{os.Stdout}
	if exportFlags.output != "" && exportFlags.output != "-" {
		out, err = export.OpenSink(
			ctx,
			exportFlags.output,
			export.WithCredentialsFile(exportFlags.credentialsFile),
		)
		if err != nil {
			return err
		}
	}
	_, writeErr := out.Write(data)
	if err := errors.Join(writeErr, out.Close()); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	logger.Info(
		"exported journal",
		"records", count,
		"output", exportFlags.output,
		"encrypted", exportFlags.encrypt,
	)
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the event journal as JSON lines to a file or gs://bucket/object",
		Run: func(cmd *cobra.Command, args []string) {
			if err := exportRun(cmd.Context(), contextConfig(cmd)); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVarP(&exportFlags.output, "output", "o", "-", "destination path, gs://bucket/object, or - for stdout")
	cmd.Flags().StringVar(&exportFlags.contract, "contract", "", "only export events from this contract address")
	cmd.Flags().StringVar(&exportFlags.name, "name", "", "only export events with this name")
	cmd.Flags().Uint64Var(&exportFlags.from, "from", 0, "only export events at or after this timestamp")
	cmd.Flags().Uint64Var(&exportFlags.to, "to", 0, "only export events at or before this timestamp")
	cmd.Flags().StringVar(&exportFlags.credentialsFile, "gcp-credentials-file", "", "GCP credentials file for gs:// destinations")
	cmd.Flags().BoolVar(&exportFlags.encrypt, "encrypt", false, "encrypt the export with SOPS using the LOTLOOT_*_KMS_* keys")
	return cmd
}
