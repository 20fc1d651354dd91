package stablecoin

import (
	"strings"
	"time"

	"stablechain/crypto"
)

const (
	// Scale is the fixed-point denominator shared by prices, health factors and
	// the minimum health factor. One unit of collateral priced at 1.0 is Scale.
	Scale uint64 = 1_000_000_000
	// BasisPoints is the denominator for bps denominated parameters.
	BasisPoints uint64 = 10_000

	custodySeed = "stablecoin/custody/"
)

// Actions recognised by the pause guard.
const (
	ActionMint      = "mint"
	ActionRedeem    = "redeem"
	ActionLiquidate = "liquidate"
)

// Vault is the per-owner record of locked collateral and minted debt. Both
// amounts are base units; arithmetic on them is always overflow checked.
type Vault struct {
	Owner      crypto.Address
	Collateral uint64
	Debt       uint64
}

// NewVault returns the empty vault for owner. Vaults are created lazily on the
// first deposit.
func NewVault(owner crypto.Address) Vault {
	return Vault{Owner: owner}
}

// Closable reports whether the vault carries no debt.
func (v Vault) Closable() bool { return v.Debt == 0 }

// Empty reports whether both balances are zero; empty vaults are deleted.
func (v Vault) Empty() bool { return v.Collateral == 0 && v.Debt == 0 }

// CustodyAddress is the deterministic account holding this vault's collateral.
func (v Vault) CustodyAddress() crypto.Address {
	return CustodyAddress(v.Owner)
}

// CustodyAddress derives the collateral custody account for owner.
func CustodyAddress(owner crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.CustodyPrefix, custodySeed, owner)
}

// BonusPolicy selects how a liquidation behaves when the bonus-inflated
// seizure exceeds the vault's collateral.
type BonusPolicy string

const (
	// BonusPolicyStrict rejects the liquidation with
	// ErrInsufficientCollateralForBonus.
	BonusPolicyStrict BonusPolicy = "strict"
	// BonusPolicyCap seizes the remaining collateral and reports the unpaid
	// portion as LiquidationDetail.BonusShortfall.
	BonusPolicyCap BonusPolicy = "cap"
)

// Valid reports whether p is a recognised policy.
func (p BonusPolicy) Valid() bool {
	return p == BonusPolicyStrict || p == BonusPolicyCap
}

// ParseBonusPolicy normalises user input into a policy.
func ParseBonusPolicy(value string) (BonusPolicy, bool) {
	p := BonusPolicy(strings.ToLower(strings.TrimSpace(value)))
	return p, p.Valid()
}

// Pauses exposes per-action circuit breakers controlled by the authority.
type Pauses struct {
	Mint      bool
	Redeem    bool
	Liquidate bool
}

// IsPaused implements the common pause view.
func (p Pauses) IsPaused(action string) bool {
	switch action {
	case ActionMint:
		return p.Mint
	case ActionRedeem:
		return p.Redeem
	case ActionLiquidate:
		return p.Liquidate
	}
	return false
}

// ProtocolConfig is the singleton record governing every vault.
type ProtocolConfig struct {
	Authority                crypto.Address
	MinHealthFactor          uint64
	MinHealthFactorFloor     uint64
	MinHealthFactorCeiling   uint64
	LiquidationBonusBps      uint64
	LiquidationThresholdBps  uint64
	MaxPriceStalenessSeconds uint64
	MaxConfidenceBps         uint64
	PriceFeedID              string
	CollateralAsset          string
	StableAsset              string
	BonusPolicy              BonusPolicy
	Pauses                   Pauses
	InitializedAt            time.Time
	Version                  uint64
}

// OracleLimits derives the quote acceptance bounds from the config.
func (c ProtocolConfig) OracleLimits() OracleLimits {
	return OracleLimits{
		MaxStaleness:     time.Duration(c.MaxPriceStalenessSeconds) * time.Second,
		MaxConfidenceBps: c.MaxConfidenceBps,
	}
}

// Params carries the initial values for a ProtocolConfig.
type Params struct {
	MinHealthFactor          uint64
	MinHealthFactorFloor     uint64
	MinHealthFactorCeiling   uint64
	LiquidationBonusBps      uint64
	LiquidationThresholdBps  uint64
	MaxPriceStalenessSeconds uint64
	MaxConfidenceBps         uint64
	PriceFeedID              string
	CollateralAsset          string
	StableAsset              string
	BonusPolicy              BonusPolicy
}

// ConfigUpdate lists the mutable parameters; nil fields are left unchanged.
type ConfigUpdate struct {
	MinHealthFactor          *uint64
	LiquidationBonusBps      *uint64
	LiquidationThresholdBps  *uint64
	MaxPriceStalenessSeconds *uint64
	MaxConfidenceBps         *uint64
	BonusPolicy              *BonusPolicy
	Pauses                   *Pauses
}

// IsEmpty reports whether the update changes nothing.
func (u ConfigUpdate) IsEmpty() bool {
	return u.MinHealthFactor == nil && u.LiquidationBonusBps == nil &&
		u.LiquidationThresholdBps == nil &&
		u.MaxPriceStalenessSeconds == nil && u.MaxConfidenceBps == nil &&
		u.BonusPolicy == nil && u.Pauses == nil
}

// PriceQuote is a validated, normalised oracle price. It is supplied per
// transition and never persisted.
type PriceQuote struct {
	FeedID      string
	Price       uint64
	Confidence  uint64
	PublishedAt time.Time
	Signer      crypto.Address
}

// OracleLimits bounds the quotes a transition accepts.
type OracleLimits struct {
	MaxStaleness     time.Duration
	MaxConfidenceBps uint64
}

// EffectKind names a balance movement requested from the token subsystem.
type EffectKind string

const (
	EffectTransfer EffectKind = "transfer"
	EffectMint     EffectKind = "mint"
	EffectBurn     EffectKind = "burn"
)

// Effect is a balance delta that must be applied in the same atomic
// transition as the vault bookkeeping that produced it.
type Effect struct {
	Kind   EffectKind
	Asset  string
	From   crypto.Address
	To     crypto.Address
	Amount uint64
}

// Transition is the full result of a successful vault operation: the new
// vault state and the balance effects to apply with it.
type Transition struct {
	Prior       Vault
	Vault       Vault
	Effects     []Effect
	Health      HealthFactor
	Quote       PriceQuote
	Liquidation *LiquidationDetail
}

// LiquidationDetail reports the economics of a liquidation.
type LiquidationDetail struct {
	Liquidator     crypto.Address
	Burned         uint64
	Seized         uint64
	Bonus          uint64
	BonusShortfall uint64
	HealthBefore   HealthFactor
}
