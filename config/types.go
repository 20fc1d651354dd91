package config

// Storage backends accepted by Config.Backend.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Oracle source kinds accepted by OracleConfig.Source.
const (
	SourceHTTP = "http"
	SourceFile = "file"
)

// LogConfig controls structured log output.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// OracleConfig selects and bounds the price source.
type OracleConfig struct {
	Source               string   `toml:"Source"`
	Endpoint             string   `toml:"Endpoint"`
	QuoteFile            string   `toml:"QuoteFile"`
	APIKey               string   `toml:"APIKey"`
	RateLimitPerSecond   float64  `toml:"RateLimitPerSecond"`
	TrustedSigners       []string `toml:"TrustedSigners"`
	MaxFutureSkewSeconds uint64   `toml:"MaxFutureSkewSeconds"`
	TimeoutSeconds       uint64   `toml:"TimeoutSeconds"`
}

// ProtocolConfig carries the launch parameters used by `stablectl init`.
// Fixed-point fields are decimal strings such as "1.5".
type ProtocolConfig struct {
	MinHealthFactor          string `toml:"MinHealthFactor"`
	MinHealthFactorFloor     string `toml:"MinHealthFactorFloor"`
	MinHealthFactorCeiling   string `toml:"MinHealthFactorCeiling"`
	LiquidationBonusBps      uint64 `toml:"LiquidationBonusBps"`
	LiquidationThresholdBps  uint64 `toml:"LiquidationThresholdBps"`
	MaxPriceStalenessSeconds uint64 `toml:"MaxPriceStalenessSeconds"`
	MaxConfidenceBps         uint64 `toml:"MaxConfidenceBps"`
	PriceFeedID              string `toml:"PriceFeedID"`
	CollateralAsset          string `toml:"CollateralAsset"`
	StableAsset              string `toml:"StableAsset"`
	BonusPolicy              string `toml:"BonusPolicy"`
}

// QuotaConfig defines per-owner mint limits. Zero values disable a limit.
type QuotaConfig struct {
	MaxMintRequestsPerEpoch uint32 `toml:"MaxMintRequestsPerEpoch"`
	MaxMintAmountPerEpoch   uint64 `toml:"MaxMintAmountPerEpoch"`
	EpochSeconds            uint32 `toml:"EpochSeconds"`
}

// TelemetryConfig wires OpenTelemetry exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// StatusConfig configures the read-only HTTP status server.
type StatusConfig struct {
	ListenAddress string `toml:"ListenAddress"`
}

// EventSinkConfig persists emitted events to a SQL database when Driver is set.
type EventSinkConfig struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}
