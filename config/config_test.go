package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if cfg.KeystorePath != filepath.Join(dir, "operator.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.KeystorePath)
	}
	addr, err := crypto.KeystoreAddress(cfg.KeystorePath)
	if err != nil {
		t.Fatalf("keystore address: %v", err)
	}
	if cfg.Authority != addr.String() {
		t.Fatalf("authority %q does not match keystore %q", cfg.Authority, addr.String())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Authority != cfg.Authority {
		t.Fatalf("authority changed across reload")
	}
	params, err := reloaded.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params != stablecoin.DefaultParams() {
		t.Fatalf("default params not preserved: %+v", params)
	}
}

func TestLoadParsesProtocolAndOracle(t *testing.T) {
	signer, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := writeConfig(t, `DataDir = "/var/lib/stablechain"
Backend = "Bolt"
KeystorePath = "/etc/stablechain/operator.keystore"

[oracle]
Source = "http"
Endpoint = "https://oracle.example"
RateLimitPerSecond = 2.5
TrustedSigners = ["`+signer.PubKey().Address().String()+`"]

[protocol]
MinHealthFactor = "1.25"
LiquidationBonusBps = 750
LiquidationThresholdBps = 8000
BonusPolicy = "CAP"
CollateralAsset = "wbtc"

[quota]
MaxMintRequestsPerEpoch = 3
EpochSeconds = 60

[events]
Driver = "sqlite"
DSN = "file::memory:"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendBolt {
		t.Fatalf("backend not normalised: %q", cfg.Backend)
	}
	if cfg.Oracle.MaxFutureSkewSeconds != 5 || cfg.Oracle.TimeoutSeconds != 10 {
		t.Fatalf("oracle defaults not applied: %+v", cfg.Oracle)
	}
	signers, err := cfg.TrustedSignerAddresses()
	if err != nil || len(signers) != 1 || !signers[0].Equal(signer.PubKey().Address()) {
		t.Fatalf("unexpected signers %v err %v", signers, err)
	}
	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MinHealthFactor != 1_250_000_000 {
		t.Fatalf("min health factor %d", params.MinHealthFactor)
	}
	if params.LiquidationBonusBps != 750 || params.LiquidationThresholdBps != 8000 || params.BonusPolicy != stablecoin.BonusPolicyCap {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.CollateralAsset != "wbtc" {
		t.Fatalf("collateral asset %q", params.CollateralAsset)
	}
	quota := cfg.MintQuota()
	if !quota.Enabled() || quota.MaxRequestsPerEpoch != 3 || quota.EpochSeconds != 60 {
		t.Fatalf("unexpected quota %+v", quota)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `Backend = "memory"
Typo = 1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":        func(c *Config) { c.Backend = "sqlite" },
		"oracle source":  func(c *Config) { c.Oracle.Source = "ws" },
		"http endpoint":  func(c *Config) { c.Oracle.Source = SourceHTTP; c.Oracle.Endpoint = "" },
		"signer":         func(c *Config) { c.Oracle.TrustedSigners = []string{"nope"} },
		"min hf":         func(c *Config) { c.Protocol.MinHealthFactor = "0.5" },
		"min hf decimal": func(c *Config) { c.Protocol.MinHealthFactor = "1.0000000001" },
		"bonus":          func(c *Config) { c.Protocol.LiquidationBonusBps = 9000 },
		"threshold":      func(c *Config) { c.Protocol.LiquidationThresholdBps = 10_001 },
		"policy":         func(c *Config) { c.Protocol.BonusPolicy = "soft" },
		"quota epoch":    func(c *Config) { c.Quota.MaxMintAmountPerEpoch = 10; c.Quota.EpochSeconds = 0 },
		"events driver":  func(c *Config) { c.Events.Driver = "mysql"; c.Events.DSN = "x" },
		"events dsn":     func(c *Config) { c.Events.Driver = "postgres" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.KeystorePath = "operator.keystore"
	cfg.Status.ListenAddress = "0.0.0.0:9000"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status.ListenAddress != "0.0.0.0:9000" {
		t.Fatalf("listen address %q", loaded.Status.ListenAddress)
	}
}
