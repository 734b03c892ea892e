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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func resetGlobalConfig(t *testing.T) {
	t.Helper()
	// Keep a config in the real home directory out of the way
	t.Setenv("HOME", t.TempDir())
	globalConfig = &Config{
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
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig(t)
	yamlContent := `
databasePath: "/var/lib/lotloot"
bindAddr: "127.0.0.1"
rpcBindAddr: "0.0.0.0"
rpcPort: 0
tlsCertFilePath: "cert1.pem"
tlsKeyFilePath: "key1.pem"
admin: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
rewardRate: "5"
componentPrice: "250"
clock: "manual"
clockStart: 1700000000
shutdownTimeout: "10s"
chainId: 1337
finePeriod: 60
metricsPort: 8088
maxCallDepth: 16
tracing: true
tracingStdout: true
logEvents: false
`
	tmpFile := filepath.Join(t.TempDir(), "test-lotloot.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	expected := &Config{
		DatabasePath:    "/var/lib/lotloot",
		BindAddr:        "127.0.0.1",
		RpcBindAddr:     "0.0.0.0",
		RpcPort:         0,
		TlsCertFilePath: "cert1.pem",
		TlsKeyFilePath:  "key1.pem",
		Admin:           "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		RewardRate:      "5",
		ComponentPrice:  "250",
		Clock:           ClockModeManual,
		ClockStart:      1700000000,
		ShutdownTimeout: "10s",
		ChainID:         1337,
		FinePeriod:      60,
		MetricsPort:     8088,
		MaxCallDepth:    16,
		Tracing:         true,
		TracingStdout:   true,
		LogEvents:       false,
	}

	actual, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("config mismatch:\nexpected: %+v\nactual:   %+v", expected, actual)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.ChainID != 31337 {
		t.Errorf("expected chain ID 31337, got %d", cfg.ChainID)
	}
	if cfg.Clock != ClockModeSystem {
		t.Errorf("expected system clock, got %q", cfg.Clock)
	}
	admin, err := cfg.AdminAddress()
	if err != nil {
		t.Fatalf("unexpected error parsing admin: %v", err)
	}
	if admin.Hex() != DefaultAdmin {
		t.Errorf("expected admin %s, got %s", DefaultAdmin, admin.Hex())
	}
	rate, err := cfg.RewardRateAmount()
	if err != nil {
		t.Fatalf("unexpected error parsing reward rate: %v", err)
	}
	if rate.Uint64() != 1 {
		t.Errorf("expected reward rate 1, got %s", rate.Dec())
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	resetGlobalConfig(t)
	tmpFile := filepath.Join(t.TempDir(), "lotloot.yaml")
	if err := os.WriteFile(tmpFile, []byte("chainId: 1337\nrewardRate: \"5\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("LOTLOOT_CHAIN_ID", "42")
	t.Setenv("LOTLOOT_DATABASE_PATH", "/tmp/env-lotloot")
	t.Setenv("LOTLOOT_FINE_PERIOD", "120")

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.ChainID != 42 {
		t.Errorf("expected chain ID 42, got %d", cfg.ChainID)
	}
	if cfg.DatabasePath != "/tmp/env-lotloot" {
		t.Errorf("expected database path from environment, got %q", cfg.DatabasePath)
	}
	if cfg.FinePeriod != 120 {
		t.Errorf("expected fine period 120, got %d", cfg.FinePeriod)
	}
	if cfg.RewardRate != "5" {
		t.Errorf("expected reward rate from file, got %q", cfg.RewardRate)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	testDefs := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "clock",
			yaml:    "clock: \"sundial\"\n",
			message: "invalid clock",
		},
		{
			name:    "admin",
			yaml:    "admin: \"nobody\"\n",
			message: "invalid admin address",
		},
		{
			name:    "reward rate",
			yaml:    "rewardRate: \"lots\"\n",
			message: "invalid reward rate",
		},
		{
			name:    "chain ID",
			yaml:    "chainId: 0\n",
			message: "chainId must not be 0",
		},
		{
			name:    "shutdown timeout",
			yaml:    "shutdownTimeout: \"soon\"\n",
			message: "invalid shutdown timeout",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			resetGlobalConfig(t)
			tmpFile := filepath.Join(t.TempDir(), "lotloot.yaml")
			if err := os.WriteFile(tmpFile, []byte(testDef.yaml), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			_, err := LoadConfig(tmpFile)
			if err == nil {
				t.Fatalf("expected error for invalid %s", testDef.name)
			}
			if !strings.Contains(err.Error(), testDef.message) {
				t.Errorf("expected error containing %q, got: %v", testDef.message, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	resetGlobalConfig(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected no config in empty context")
	}
	cfg := &Config{ChainID: 7}
	ctx := WithContext(context.Background(), cfg)
	if FromContext(ctx) != cfg {
		t.Fatal("expected config from context")
	}
}
