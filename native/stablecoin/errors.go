package stablecoin

import "errors"

// Category groups error codes so callers can decide between retrying with a
// fresher quote and abandoning the request.
type Category string

const (
	CategoryConfig      Category = "config"
	CategoryOracle      Category = "oracle"
	CategoryArithmetic  Category = "arithmetic"
	CategoryVault       Category = "vault"
	CategoryLiquidation Category = "liquidation"
)

// Error is the typed failure returned by every stablecoin transition. Values
// are package-level sentinels and compare with errors.Is.
type Error struct {
	Category Category
	Code     string
	msg      string
}

func (e *Error) Error() string { return "stablecoin: " + e.msg }

func newError(category Category, code, msg string) *Error {
	return &Error{Category: category, Code: code, msg: msg}
}

var (
	ErrAlreadyInitialized = newError(CategoryConfig, "AlreadyInitialized", "config already initialised")
	ErrUnauthorized       = newError(CategoryConfig, "Unauthorized", "caller is not the config authority")
	ErrOutOfRange         = newError(CategoryConfig, "OutOfRange", "parameter outside permitted range")
	ErrNotInitialized     = newError(CategoryConfig, "NotInitialized", "config not initialised")

	ErrStalePrice        = newError(CategoryOracle, "StalePrice", "price quote is stale")
	ErrOracleUnavailable = newError(CategoryOracle, "OracleUnavailable", "no price quote available")
	ErrLowConfidence     = newError(CategoryOracle, "LowConfidence", "price confidence interval too wide")
	ErrInvalidPrice      = newError(CategoryOracle, "InvalidPrice", "invalid price")
	ErrUntrustedSigner   = newError(CategoryOracle, "UntrustedSigner", "price quote signer not trusted")
	ErrFeedMismatch      = newError(CategoryOracle, "FeedMismatch", "price feed does not match protocol feed")

	ErrArithmeticOverflow = newError(CategoryArithmetic, "ArithmeticOverflow", "arithmetic overflow")

	ErrInsufficientCollateral = newError(CategoryVault, "InsufficientCollateral", "insufficient collateral")
	ErrInsufficientDebt       = newError(CategoryVault, "InsufficientDebt", "amount exceeds outstanding debt")
	ErrBelowMinHealthFactor   = newError(CategoryVault, "BelowMinHealthFactor", "health factor below minimum")
	ErrEmptyOperation         = newError(CategoryVault, "EmptyOperation", "operation moves no value")
	ErrPaused                 = newError(CategoryVault, "Paused", "action paused by authority")

	ErrNotLiquidatable                = newError(CategoryLiquidation, "NotLiquidatable", "vault not eligible for liquidation")
	ErrExceedsDebt                    = newError(CategoryLiquidation, "ExceedsDebt", "burn amount exceeds vault debt")
	ErrInsufficientCollateralForBonus = newError(CategoryLiquidation, "InsufficientCollateralForBonus", "collateral cannot cover seizure plus bonus")
	ErrSelfLiquidation                = newError(CategoryLiquidation, "SelfLiquidation", "owner cannot liquidate own vault")
)

// CategoryOf returns the category of a stablecoin error anywhere in the chain,
// or the empty category for foreign errors.
func CategoryOf(err error) Category {
	var target *Error
	if errors.As(err, &target) {
		return target.Category
	}
	return ""
}

// CodeOf returns the stable error code, "" for foreign errors.
func CodeOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}

// Retryable reports whether resubmitting with a fresh oracle quote may succeed.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrStalePrice),
		errors.Is(err, ErrOracleUnavailable),
		errors.Is(err, ErrLowConfidence),
		errors.Is(err, ErrInvalidPrice):
		return true
	}
	return false
}
