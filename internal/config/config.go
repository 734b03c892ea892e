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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "lotloot.config"

// WithContext stores the config in a context
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultShutdownTimeout = "30s"
	DefaultAdmin           = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// ClockMode selects the time source of the ledger
type ClockMode string

const (
	ClockModeSystem ClockMode = "system"
	ClockModeManual ClockMode = "manual"
)

// Valid returns true if the clock mode is a known value
func (m ClockMode) Valid() bool {
	switch m {
	case ClockModeSystem, ClockModeManual, "":
		return true
	default:
		return false
	}
}

type Config struct {
	DatabasePath    string    `yaml:"databasePath"    split_words:"true"`
	BindAddr        string    `yaml:"bindAddr"        split_words:"true"`
	RpcBindAddr     string    `yaml:"rpcBindAddr"     split_words:"true"`
	TlsCertFilePath string    `yaml:"tlsCertFilePath" envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath  string    `yaml:"tlsKeyFilePath"  envconfig:"TLS_KEY_FILE_PATH"`
	Admin           string    `yaml:"admin"`
	RewardRate      string    `yaml:"rewardRate"      split_words:"true"`
	ComponentPrice  string    `yaml:"componentPrice"  split_words:"true"`
	Clock           ClockMode `yaml:"clock"`
	ShutdownTimeout string    `yaml:"shutdownTimeout" split_words:"true"`
	ChainID         uint64    `yaml:"chainId"         envconfig:"CHAIN_ID"`
	FinePeriod      uint64    `yaml:"finePeriod"      split_words:"true"`
	ClockStart      uint64    `yaml:"clockStart"      split_words:"true"`
	MetricsPort     uint      `yaml:"metricsPort"     split_words:"true"`
	RpcPort         uint      `yaml:"rpcPort"         split_words:"true"`
	MaxCallDepth    int       `yaml:"maxCallDepth"    split_words:"true"`
	Tracing         bool      `yaml:"tracing"`
	TracingStdout   bool      `yaml:"tracingStdout"   split_words:"true"`
	LogEvents       bool      `yaml:"logEvents"       split_words:"true"`
}

// AdminAddress returns the parsed administrator address
func (c *Config) AdminAddress() (common.Address, error) {
	if !common.IsHexAddress(c.Admin) {
		return common.Address{}, fmt.Errorf("invalid admin address: %q", c.Admin)
	}
	return common.HexToAddress(c.Admin), nil
}

// RewardRateAmount returns the parsed reward rate
func (c *Config) RewardRateAmount() (*uint256.Int, error) {
	return parseAmount("reward rate", c.RewardRate)
}

// ComponentPriceAmount returns the parsed component mint price
func (c *Config) ComponentPriceAmount() (*uint256.Int, error) {
	return parseAmount("component price", c.ComponentPrice)
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return ret, nil
}

// Validate checks the values that can be checked without building a node
func (c *Config) Validate() error {
	var err error
	if c.ChainID == 0 {
		err = errors.Join(err, errors.New("chainId must not be 0"))
	}
	if !c.Clock.Valid() {
		err = errors.Join(
			err,
			fmt.Errorf("invalid clock: %q (must be 'system' or 'manual')", c.Clock),
		)
	}
	if _, adminErr := c.AdminAddress(); adminErr != nil {
		err = errors.Join(err, adminErr)
	}
	if _, rateErr := c.RewardRateAmount(); rateErr != nil {
		err = errors.Join(err, rateErr)
	}
	if _, priceErr := c.ComponentPriceAmount(); priceErr != nil {
		err = errors.Join(err, priceErr)
	}
	if _, timeoutErr := c.ShutdownTimeoutDuration(); timeoutErr != nil {
		err = errors.Join(err, timeoutErr)
	}
	return err
}

func parseAmount(name string, val string) (*uint256.Int, error) {
	ret, err := uint256.FromDecimal(val)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, val, err)
	}
	return ret, nil
}

var globalConfig = &Config{
	DatabasePath:    ".lotloot",
	BindAddr:        "0.0.0.0",
	RpcBindAddr:     "127.0.0.1",
	Admin:           DefaultAdmin,
	RewardRate:      "1",
	ComponentPrice:  "100",
	Clock:           ClockModeSystem,
	ShutdownTimeout: DefaultShutdownTimeout,
	ChainID:         31337,
	FinePeriod:      3600,
	MetricsPort:     12799,
	RpcPort:         9090,
	LogEvents:       true,
}

// LoadConfig reads the config file, if any, over the defaults and then
// applies LOTLOOT_* environment overrides. Without an explicit path it looks
// for ~/.lotloot/lotloot.yaml and then /etc/lotloot/lotloot.yaml
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".lotloot", "lotloot.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/lotloot/lotloot.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("lotloot", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if globalConfig.Clock == "" {
		globalConfig.Clock = ClockModeSystem
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
