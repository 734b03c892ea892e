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
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lotloot/account"
)

var accountFlags = struct {
	registry       string
	implementation string
	tokenContract  string
	chainID        uint64
	tokenID        uint64
	salt           uint64
}{}

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Print the token-bound account address for a token",
		Run: func(cmd *cobra.Command, args []string) {
			for _, addr := range []string{
				accountFlags.registry,
				accountFlags.implementation,
				accountFlags.tokenContract,
			} {
				if !common.IsHexAddress(addr) {
					slog.Error(fmt.Sprintf("invalid address: %q", addr))
					os.Exit(1)
				}
			}
			chainID := accountFlags.chainID
			if chainID == 0 {
				chainID = contextConfig(cmd).ChainID
			}
			key := account.Key{
				Implementation: common.HexToAddress(accountFlags.implementation),
				TokenContract:  common.HexToAddress(accountFlags.tokenContract),
				Salt:           account.SaltFromUint64(accountFlags.salt),
				ChainID:        chainID,
				TokenID:        accountFlags.tokenID,
			}
			fmt.Println(
				account.ComputeAddress(common.HexToAddress(accountFlags.registry), key).Hex(),
			)
		},
	}
	cmd.Flags().StringVar(&accountFlags.registry, "registry", "", "account registry address")
	cmd.Flags().StringVar(&accountFlags.implementation, "implementation", "", "account implementation address")
	cmd.Flags().StringVar(&accountFlags.tokenContract, "token-contract", "", "token contract address")
	cmd.Flags().Uint64Var(&accountFlags.chainID, "chain-id", 0, "chain ID (defaults to the configured chain)")
	cmd.Flags().Uint64Var(&accountFlags.tokenID, "token-id", 0, "token ID")
	cmd.Flags().Uint64Var(&accountFlags.salt, "salt", 0, "account salt")
	return cmd
}
