package stablecoin

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	scaleU256 = uint256.NewInt(Scale)
	bpsU256   = uint256.NewInt(BasisPoints)
)

func toUint64(x *uint256.Int, what string) (uint64, error) {
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %s exceeds 64 bits", ErrArithmeticOverflow, what)
	}
	return x.Uint64(), nil
}

func checkedAdd(a, b uint64, what string) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	return toUint64(sum, what)
}

// checkedSub callers validate b <= a first so the domain error wins; the
// overflow is the backstop.
func checkedSub(a, b uint64, what string) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %s underflow", ErrArithmeticOverflow, what)
	}
	return a - b, nil
}

// mulDiv computes floor(x*y/d) with a 512-bit intermediate.
func mulDiv(x, y, d *uint256.Int, what string) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: %s division by zero", ErrArithmeticOverflow, what)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrArithmeticOverflow, what)
	}
	return z, nil
}

// ParseFixed converts a decimal string such as "1.25" into Scale units. More
// than nine fractional digits are rejected rather than rounded.
func ParseFixed(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("fixed-point value required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return 0, fmt.Errorf("invalid fixed-point value %q", value)
	}
	if rat.Sign() < 0 {
		return 0, fmt.Errorf("fixed-point value %q must not be negative", value)
	}
	rat.Mul(rat, new(big.Rat).SetUint64(Scale))
	if !rat.IsInt() {
		return 0, fmt.Errorf("fixed-point value %q has more than 9 decimals", value)
	}
	num := rat.Num()
	if !num.IsUint64() {
		return 0, fmt.Errorf("%w: fixed-point value %q", ErrArithmeticOverflow, value)
	}
	return num.Uint64(), nil
}

// FormatFixed renders Scale units with nine decimals.
func FormatFixed(v uint64) string {
	return fmt.Sprintf("%d.%09d", v/Scale, v%Scale)
}
