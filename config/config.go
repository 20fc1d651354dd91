package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stablechain/crypto"
	nativecommon "stablechain/native/common"
	"stablechain/native/stablecoin"
)

type Config struct {
	DataDir      string          `toml:"DataDir"`
	Backend      string          `toml:"Backend"`
	Environment  string          `toml:"Environment"`
	KeystorePath string          `toml:"KeystorePath"`
	Authority    string          `toml:"Authority"`
	Log          LogConfig       `toml:"log"`
	Oracle       OracleConfig    `toml:"oracle"`
	Protocol     ProtocolConfig  `toml:"protocol"`
	Quota        QuotaConfig     `toml:"quota"`
	Telemetry    TelemetryConfig `toml:"telemetry"`
	Status       StatusConfig    `toml:"status"`
	Events       EventSinkConfig `toml:"events"`
}

// Load loads the configuration from the given path, writing a default file
// and a fresh operator keystore when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	cfg.applyDefaults(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a new node.
func Default() *Config {
	params := stablecoin.DefaultParams()
	return &Config{
		DataDir:     "./stablechain-data",
		Backend:     BackendLevelDB,
		Environment: "local",
		Oracle: OracleConfig{
			Source:               SourceFile,
			QuoteFile:            "quote.json",
			RateLimitPerSecond:   5,
			MaxFutureSkewSeconds: 5,
			TimeoutSeconds:       10,
			TrustedSigners:       []string{},
		},
		Protocol: ProtocolConfig{
			MinHealthFactor:          stablecoin.FormatFixed(params.MinHealthFactor),
			MinHealthFactorFloor:     stablecoin.FormatFixed(params.MinHealthFactorFloor),
			MinHealthFactorCeiling:   stablecoin.FormatFixed(params.MinHealthFactorCeiling),
			LiquidationBonusBps:      params.LiquidationBonusBps,
			LiquidationThresholdBps:  params.LiquidationThresholdBps,
			MaxPriceStalenessSeconds: params.MaxPriceStalenessSeconds,
			MaxConfidenceBps:         params.MaxConfidenceBps,
			PriceFeedID:              params.PriceFeedID,
			CollateralAsset:          params.CollateralAsset,
			StableAsset:              params.StableAsset,
			BonusPolicy:              string(params.BonusPolicy),
		},
		Quota:     QuotaConfig{EpochSeconds: 3600},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4318"},
		Status:    StatusConfig{ListenAddress: "127.0.0.1:8645"},
	}
}

func (c *Config) applyDefaults(path string) {
	def := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if strings.TrimSpace(c.KeystorePath) == "" {
		c.KeystorePath = defaultKeystorePath(path)
	}
	c.Oracle.Source = strings.ToLower(strings.TrimSpace(c.Oracle.Source))
	if c.Oracle.Source == "" {
		c.Oracle.Source = def.Oracle.Source
	}
	if c.Oracle.MaxFutureSkewSeconds == 0 {
		c.Oracle.MaxFutureSkewSeconds = def.Oracle.MaxFutureSkewSeconds
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = def.Oracle.TimeoutSeconds
	}
	if c.Oracle.TrustedSigners == nil {
		c.Oracle.TrustedSigners = []string{}
	}
	p := &c.Protocol
	dp := def.Protocol
	if strings.TrimSpace(p.MinHealthFactor) == "" {
		p.MinHealthFactor = dp.MinHealthFactor
	}
	if strings.TrimSpace(p.MinHealthFactorFloor) == "" {
		p.MinHealthFactorFloor = dp.MinHealthFactorFloor
	}
	if strings.TrimSpace(p.MinHealthFactorCeiling) == "" {
		p.MinHealthFactorCeiling = dp.MinHealthFactorCeiling
	}
	if p.LiquidationThresholdBps == 0 {
		p.LiquidationThresholdBps = dp.LiquidationThresholdBps
	}
	if p.MaxPriceStalenessSeconds == 0 {
		p.MaxPriceStalenessSeconds = dp.MaxPriceStalenessSeconds
	}
	if p.MaxConfidenceBps == 0 {
		p.MaxConfidenceBps = dp.MaxConfidenceBps
	}
	if strings.TrimSpace(p.PriceFeedID) == "" {
		p.PriceFeedID = dp.PriceFeedID
	}
	if strings.TrimSpace(p.CollateralAsset) == "" {
		p.CollateralAsset = dp.CollateralAsset
	}
	if strings.TrimSpace(p.StableAsset) == "" {
		p.StableAsset = dp.StableAsset
	}
	if strings.TrimSpace(p.BonusPolicy) == "" {
		p.BonusPolicy = dp.BonusPolicy
	}
}

// Params converts the protocol section into stablecoin parameters.
func (c *Config) Params() (stablecoin.Params, error) {
	p := c.Protocol
	minHF, err := stablecoin.ParseFixed(p.MinHealthFactor)
	if err != nil {
		return stablecoin.Params{}, fmt.Errorf("protocol.MinHealthFactor: %w", err)
	}
	floor, err := stablecoin.ParseFixed(p.MinHealthFactorFloor)
	if err != nil {
		return stablecoin.Params{}, fmt.Errorf("protocol.MinHealthFactorFloor: %w", err)
	}
	ceiling, err := stablecoin.ParseFixed(p.MinHealthFactorCeiling)
	if err != nil {
		return stablecoin.Params{}, fmt.Errorf("protocol.MinHealthFactorCeiling: %w", err)
	}
	policy, ok := stablecoin.ParseBonusPolicy(p.BonusPolicy)
	if !ok {
		return stablecoin.Params{}, fmt.Errorf("protocol.BonusPolicy: unknown policy %q", p.BonusPolicy)
	}
	return stablecoin.Params{
		MinHealthFactor:          minHF,
		MinHealthFactorFloor:     floor,
		MinHealthFactorCeiling:   ceiling,
		LiquidationBonusBps:      p.LiquidationBonusBps,
		LiquidationThresholdBps:  p.LiquidationThresholdBps,
		MaxPriceStalenessSeconds: p.MaxPriceStalenessSeconds,
		MaxConfidenceBps:         p.MaxConfidenceBps,
		PriceFeedID:              strings.TrimSpace(p.PriceFeedID),
		CollateralAsset:          strings.TrimSpace(p.CollateralAsset),
		StableAsset:              strings.TrimSpace(p.StableAsset),
		BonusPolicy:              policy,
	}, nil
}

// TrustedSignerAddresses decodes the oracle signer allowlist.
func (c *Config) TrustedSignerAddresses() ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(c.Oracle.TrustedSigners))
	for i, raw := range c.Oracle.TrustedSigners {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("oracle.TrustedSigners[%d]: %w", i, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// MintQuota converts the quota section.
func (c *Config) MintQuota() nativecommon.Quota {
	return nativecommon.Quota{
		MaxRequestsPerEpoch: c.Quota.MaxMintRequestsPerEpoch,
		MaxAmountPerEpoch:   c.Quota.MaxMintAmountPerEpoch,
		EpochSeconds:        c.Quota.EpochSeconds,
	}
}

// createDefault writes a default configuration together with a fresh operator
// keystore whose address becomes the config authority.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.KeystorePath = defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(cfg.KeystorePath, key, ""); err != nil {
		return nil, err
	}
	cfg.Authority = key.PubKey().Address().String()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
