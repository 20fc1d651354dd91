package stablecoin

import (
	"fmt"

	"github.com/holiman/uint256"
)

// HealthFactor is collateral value over debt in Scale units. A vault without
// debt has an infinite health factor and is always healthy.
type HealthFactor struct {
	infinite bool
	value    uint256.Int
}

// InfiniteHealth is the health factor of a debt-free vault.
func InfiniteHealth() HealthFactor { return HealthFactor{infinite: true} }

// HealthFactorOf wraps a finite scaled value.
func HealthFactorOf(v uint64) HealthFactor {
	return HealthFactor{value: *uint256.NewInt(v)}
}

func (h HealthFactor) IsInfinite() bool { return h.infinite }

// Value returns a copy of the scaled ratio; nil when infinite.
func (h HealthFactor) Value() *uint256.Int {
	if h.infinite {
		return nil
	}
	v := h.value
	return &v
}

// Cmp compares h against a scaled threshold.
func (h HealthFactor) Cmp(threshold uint64) int {
	if h.infinite {
		return 1
	}
	return h.value.Cmp(uint256.NewInt(threshold))
}

// Below reports h < threshold.
func (h HealthFactor) Below(threshold uint64) bool { return h.Cmp(threshold) < 0 }

func (h HealthFactor) String() string {
	if h.infinite {
		return "inf"
	}
	whole := new(uint256.Int).Div(&h.value, scaleU256)
	frac := new(uint256.Int).Mod(&h.value, scaleU256)
	return fmt.Sprintf("%s.%09d", whole.Dec(), frac.Uint64())
}

// CollateralValue is collateral * price / Scale, the vault's collateral
// expressed in stable token base units.
func CollateralValue(vault Vault, price uint64) (uint64, error) {
	if price == 0 {
		return 0, fmt.Errorf("%w: zero price", ErrInvalidPrice)
	}
	value, err := mulDiv(uint256.NewInt(vault.Collateral), uint256.NewInt(price), scaleU256, "collateral value")
	if err != nil {
		return 0, err
	}
	return toUint64(value, "collateral value")
}

// ComputeHealthFactor returns collateral * price * thresholdBps / (debt * 10000).
// thresholdBps is the share of collateral value counted toward solvency; zero
// is read as the full value. The division is done once on the
// 256-bit product so there is no intermediate rescaling loss, and flooring
// never overstates health.
func ComputeHealthFactor(vault Vault, price, thresholdBps uint64) (HealthFactor, error) {
	if vault.Debt == 0 {
		return InfiniteHealth(), nil
	}
	if price == 0 {
		return HealthFactor{}, fmt.Errorf("%w: zero price", ErrInvalidPrice)
	}
	if thresholdBps == 0 {
		thresholdBps = BasisPoints
	}
	if thresholdBps > BasisPoints {
		return HealthFactor{}, fmt.Errorf("%w: liquidation threshold %d bps exceeds %d", ErrOutOfRange, thresholdBps, BasisPoints)
	}
	weighted := new(uint256.Int).Mul(uint256.NewInt(vault.Collateral), uint256.NewInt(price))
	denom := new(uint256.Int).Mul(uint256.NewInt(vault.Debt), uint256.NewInt(BasisPoints))
	ratio, err := mulDiv(weighted, uint256.NewInt(thresholdBps), denom, "health factor")
	if err != nil {
		return HealthFactor{}, err
	}
	return HealthFactor{value: *ratio}, nil
}

// HealthOf is ComputeHealthFactor under cfg's liquidation threshold.
func HealthOf(vault Vault, price uint64, cfg ProtocolConfig) (HealthFactor, error) {
	return ComputeHealthFactor(vault, price, cfg.LiquidationThresholdBps)
}

// IsLiquidatable reports whether the vault's health factor is strictly below
// the configured minimum.
func IsLiquidatable(vault Vault, price uint64, cfg ProtocolConfig) (bool, error) {
	hf, err := HealthOf(vault, price, cfg)
	if err != nil {
		return false, err
	}
	return hf.Below(cfg.MinHealthFactor), nil
}

// requireHealthy fails with ErrBelowMinHealthFactor when a vault carrying debt
// sits under the minimum. The boundary is inclusive.
func requireHealthy(vault Vault, price uint64, cfg ProtocolConfig) (HealthFactor, error) {
	hf, err := HealthOf(vault, price, cfg)
	if err != nil {
		return HealthFactor{}, err
	}
	if hf.Below(cfg.MinHealthFactor) {
		return hf, fmt.Errorf("%w: %s < %s", ErrBelowMinHealthFactor, hf, FormatFixed(cfg.MinHealthFactor))
	}
	return hf, nil
}
