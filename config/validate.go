package config

import (
	"fmt"
	"strings"

	"stablechain/crypto"
)

// Validate checks the file-level settings. Protocol parameters are parsed and
// range checked here too so `stablectl init` fails before touching state.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("Backend: unknown storage backend %q", c.Backend)
	}
	if c.Authority != "" {
		if _, err := crypto.DecodeAddress(c.Authority); err != nil {
			return fmt.Errorf("Authority: %w", err)
		}
	}
	switch c.Oracle.Source {
	case SourceHTTP:
		if strings.TrimSpace(c.Oracle.Endpoint) == "" {
			return fmt.Errorf("oracle.Endpoint required for http source")
		}
	case SourceFile:
		if strings.TrimSpace(c.Oracle.QuoteFile) == "" {
			return fmt.Errorf("oracle.QuoteFile required for file source")
		}
	default:
		return fmt.Errorf("oracle.Source: unknown source %q", c.Oracle.Source)
	}
	if c.Oracle.RateLimitPerSecond < 0 {
		return fmt.Errorf("oracle.RateLimitPerSecond must not be negative")
	}
	if _, err := c.TrustedSignerAddresses(); err != nil {
		return err
	}
	params, err := c.Params()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	q := c.Quota
	if (q.MaxMintRequestsPerEpoch > 0 || q.MaxMintAmountPerEpoch > 0) && q.EpochSeconds == 0 {
		return fmt.Errorf("quota.EpochSeconds required when a mint limit is set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Events.Driver)) {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Events.DSN) == "" {
			return fmt.Errorf("events.DSN required for driver %q", c.Events.Driver)
		}
	default:
		return fmt.Errorf("events.Driver: unknown driver %q", c.Events.Driver)
	}
	return nil
}
