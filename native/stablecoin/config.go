package stablecoin

import (
	"fmt"
	"strings"
	"time"

	"stablechain/crypto"
)

// DefaultPriceFeedID is the SOL/USD feed accepted when no feed is configured.
const DefaultPriceFeedID = "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

const (
	DefaultMinHealthFactor          = 1 * Scale
	DefaultMinHealthFactorFloor     = 1 * Scale
	DefaultMinHealthFactorCeiling   = 10 * Scale
	DefaultLiquidationBonusBps      = 1_000
	DefaultLiquidationThresholdBps  = BasisPoints
	DefaultMaxPriceStalenessSeconds = 100
	DefaultMaxConfidenceBps         = 200
	DefaultCollateralAsset          = "SOL"
	DefaultStableAsset              = "USDS"

	// MaxHealthFactorCeiling caps the operator supplied ceiling.
	MaxHealthFactorCeiling   = 100 * Scale
	MaxLiquidationBonusBps   = 5_000
	MaxPriceStalenessSeconds = 3_600
)

// DefaultParams returns the launch parameters.
func DefaultParams() Params {
	return Params{
		MinHealthFactor:          DefaultMinHealthFactor,
		MinHealthFactorFloor:     DefaultMinHealthFactorFloor,
		MinHealthFactorCeiling:   DefaultMinHealthFactorCeiling,
		LiquidationBonusBps:      DefaultLiquidationBonusBps,
		LiquidationThresholdBps:  DefaultLiquidationThresholdBps,
		MaxPriceStalenessSeconds: DefaultMaxPriceStalenessSeconds,
		MaxConfidenceBps:         DefaultMaxConfidenceBps,
		PriceFeedID:              DefaultPriceFeedID,
		CollateralAsset:          DefaultCollateralAsset,
		StableAsset:              DefaultStableAsset,
		BonusPolicy:              BonusPolicyStrict,
	}
}

// Validate checks every parameter against its permitted range.
func (p Params) Validate() error {
	if p.MinHealthFactorFloor < Scale {
		return fmt.Errorf("%w: health factor floor %s below 1.0", ErrOutOfRange, FormatFixed(p.MinHealthFactorFloor))
	}
	if p.MinHealthFactorCeiling < p.MinHealthFactorFloor || p.MinHealthFactorCeiling > MaxHealthFactorCeiling {
		return fmt.Errorf("%w: health factor ceiling %s", ErrOutOfRange, FormatFixed(p.MinHealthFactorCeiling))
	}
	if err := checkMinHealthFactor(p.MinHealthFactor, p.MinHealthFactorFloor, p.MinHealthFactorCeiling); err != nil {
		return err
	}
	if err := checkBonus(p.LiquidationBonusBps); err != nil {
		return err
	}
	if err := checkThreshold(p.LiquidationThresholdBps); err != nil {
		return err
	}
	if err := checkStaleness(p.MaxPriceStalenessSeconds); err != nil {
		return err
	}
	if err := checkConfidence(p.MaxConfidenceBps); err != nil {
		return err
	}
	if strings.TrimSpace(p.PriceFeedID) == "" {
		return fmt.Errorf("%w: price feed id required", ErrOutOfRange)
	}
	if strings.TrimSpace(p.CollateralAsset) == "" || strings.TrimSpace(p.StableAsset) == "" {
		return fmt.Errorf("%w: asset symbols required", ErrOutOfRange)
	}
	if strings.EqualFold(p.CollateralAsset, p.StableAsset) {
		return fmt.Errorf("%w: collateral and stable asset must differ", ErrOutOfRange)
	}
	if !p.BonusPolicy.Valid() {
		return fmt.Errorf("%w: bonus policy %q", ErrOutOfRange, p.BonusPolicy)
	}
	return nil
}

func checkMinHealthFactor(v, floor, ceiling uint64) error {
	if v < floor || v > ceiling {
		return fmt.Errorf("%w: min health factor %s outside [%s, %s]", ErrOutOfRange,
			FormatFixed(v), FormatFixed(floor), FormatFixed(ceiling))
	}
	return nil
}

func checkBonus(bps uint64) error {
	if bps > MaxLiquidationBonusBps {
		return fmt.Errorf("%w: liquidation bonus %d bps exceeds %d", ErrOutOfRange, bps, MaxLiquidationBonusBps)
	}
	return nil
}

func checkThreshold(bps uint64) error {
	if bps == 0 || bps > BasisPoints {
		return fmt.Errorf("%w: liquidation threshold %d bps outside [1, %d]", ErrOutOfRange, bps, BasisPoints)
	}
	return nil
}

func checkStaleness(seconds uint64) error {
	if seconds == 0 || seconds > MaxPriceStalenessSeconds {
		return fmt.Errorf("%w: max price staleness %ds outside [1, %d]", ErrOutOfRange, seconds, MaxPriceStalenessSeconds)
	}
	return nil
}

func checkConfidence(bps uint64) error {
	if bps == 0 || bps > BasisPoints {
		return fmt.Errorf("%w: max confidence %d bps outside [1, %d]", ErrOutOfRange, bps, BasisPoints)
	}
	return nil
}

// InitializeConfig creates the singleton config. existing is the currently
// stored record, if any; a second initialisation fails.
func InitializeConfig(existing *ProtocolConfig, authority crypto.Address, params Params, now time.Time) (ProtocolConfig, error) {
	if existing != nil {
		return ProtocolConfig{}, ErrAlreadyInitialized
	}
	if authority.IsZero() {
		return ProtocolConfig{}, fmt.Errorf("%w: authority required", ErrUnauthorized)
	}
	params.PriceFeedID = strings.TrimSpace(params.PriceFeedID)
	params.CollateralAsset = strings.ToUpper(strings.TrimSpace(params.CollateralAsset))
	params.StableAsset = strings.ToUpper(strings.TrimSpace(params.StableAsset))
	if err := params.Validate(); err != nil {
		return ProtocolConfig{}, err
	}
	return ProtocolConfig{
		Authority:                authority,
		MinHealthFactor:          params.MinHealthFactor,
		MinHealthFactorFloor:     params.MinHealthFactorFloor,
		MinHealthFactorCeiling:   params.MinHealthFactorCeiling,
		LiquidationBonusBps:      params.LiquidationBonusBps,
		LiquidationThresholdBps:  params.LiquidationThresholdBps,
		MaxPriceStalenessSeconds: params.MaxPriceStalenessSeconds,
		MaxConfidenceBps:         params.MaxConfidenceBps,
		PriceFeedID:              params.PriceFeedID,
		CollateralAsset:          params.CollateralAsset,
		StableAsset:              params.StableAsset,
		BonusPolicy:              params.BonusPolicy,
		InitializedAt:            now.UTC().Truncate(time.Second),
		Version:                  1,
	}, nil
}

// UpdateMinHealthFactor replaces the minimum health factor. The new threshold
// applies to every later evaluation; open vaults are not swept.
func UpdateMinHealthFactor(cfg ProtocolConfig, caller crypto.Address, value uint64) (ProtocolConfig, error) {
	return ApplyConfigUpdate(cfg, caller, ConfigUpdate{MinHealthFactor: &value})
}

// ApplyConfigUpdate applies every set field of upd or none of them. cfg is
// returned unchanged on failure.
func ApplyConfigUpdate(cfg ProtocolConfig, caller crypto.Address, upd ConfigUpdate) (ProtocolConfig, error) {
	if !caller.Equal(cfg.Authority) {
		return cfg, ErrUnauthorized
	}
	if upd.IsEmpty() {
		return cfg, fmt.Errorf("%w: config update sets no field", ErrEmptyOperation)
	}
	next := cfg
	if upd.MinHealthFactor != nil {
		if err := checkMinHealthFactor(*upd.MinHealthFactor, cfg.MinHealthFactorFloor, cfg.MinHealthFactorCeiling); err != nil {
			return cfg, err
		}
		next.MinHealthFactor = *upd.MinHealthFactor
	}
	if upd.LiquidationBonusBps != nil {
		if err := checkBonus(*upd.LiquidationBonusBps); err != nil {
			return cfg, err
		}
		next.LiquidationBonusBps = *upd.LiquidationBonusBps
	}
	if upd.LiquidationThresholdBps != nil {
		if err := checkThreshold(*upd.LiquidationThresholdBps); err != nil {
			return cfg, err
		}
		next.LiquidationThresholdBps = *upd.LiquidationThresholdBps
	}
	if upd.MaxPriceStalenessSeconds != nil {
		if err := checkStaleness(*upd.MaxPriceStalenessSeconds); err != nil {
			return cfg, err
		}
		next.MaxPriceStalenessSeconds = *upd.MaxPriceStalenessSeconds
	}
	if upd.MaxConfidenceBps != nil {
		if err := checkConfidence(*upd.MaxConfidenceBps); err != nil {
			return cfg, err
		}
		next.MaxConfidenceBps = *upd.MaxConfidenceBps
	}
	if upd.BonusPolicy != nil {
		if !upd.BonusPolicy.Valid() {
			return cfg, fmt.Errorf("%w: bonus policy %q", ErrOutOfRange, *upd.BonusPolicy)
		}
		next.BonusPolicy = *upd.BonusPolicy
	}
	if upd.Pauses != nil {
		next.Pauses = *upd.Pauses
	}
	next.Version = cfg.Version + 1
	return next, nil
}
