package core

import (
	"strconv"
	"time"

	"stablechain/core/types"
	"stablechain/native/stablecoin"
)

// ConfigView is the presentation form of the protocol config. Fixed-point
// values are rendered as decimals and large integers as strings.
type ConfigView struct {
	Authority                string     `json:"authority" yaml:"authority"`
	MinHealthFactor          string     `json:"minHealthFactor" yaml:"minHealthFactor"`
	MinHealthFactorFloor     string     `json:"minHealthFactorFloor" yaml:"minHealthFactorFloor"`
	MinHealthFactorCeiling   string     `json:"minHealthFactorCeiling" yaml:"minHealthFactorCeiling"`
	LiquidationBonusBps      uint64     `json:"liquidationBonusBps" yaml:"liquidationBonusBps"`
	LiquidationThresholdBps  uint64     `json:"liquidationThresholdBps" yaml:"liquidationThresholdBps"`
	MaxPriceStalenessSeconds uint64     `json:"maxPriceStalenessSeconds" yaml:"maxPriceStalenessSeconds"`
	MaxConfidenceBps         uint64     `json:"maxConfidenceBps" yaml:"maxConfidenceBps"`
	PriceFeedID              string     `json:"priceFeedId" yaml:"priceFeedId"`
	CollateralAsset          string     `json:"collateralAsset" yaml:"collateralAsset"`
	StableAsset              string     `json:"stableAsset" yaml:"stableAsset"`
	BonusPolicy              string     `json:"bonusPolicy" yaml:"bonusPolicy"`
	Pauses                   PausesView `json:"pauses" yaml:"pauses"`
	InitializedAt            time.Time  `json:"initializedAt" yaml:"initializedAt"`
	Version                  uint64     `json:"version" yaml:"version"`
}

type PausesView struct {
	Mint      bool `json:"mint" yaml:"mint"`
	Redeem    bool `json:"redeem" yaml:"redeem"`
	Liquidate bool `json:"liquidate" yaml:"liquidate"`
}

func NewConfigView(cfg stablecoin.ProtocolConfig) ConfigView {
	return ConfigView{
		Authority:                cfg.Authority.String(),
		MinHealthFactor:          stablecoin.FormatFixed(cfg.MinHealthFactor),
		MinHealthFactorFloor:     stablecoin.FormatFixed(cfg.MinHealthFactorFloor),
		MinHealthFactorCeiling:   stablecoin.FormatFixed(cfg.MinHealthFactorCeiling),
		LiquidationBonusBps:      cfg.LiquidationBonusBps,
		LiquidationThresholdBps:  cfg.LiquidationThresholdBps,
		MaxPriceStalenessSeconds: cfg.MaxPriceStalenessSeconds,
		MaxConfidenceBps:         cfg.MaxConfidenceBps,
		PriceFeedID:              cfg.PriceFeedID,
		CollateralAsset:          cfg.CollateralAsset,
		StableAsset:              cfg.StableAsset,
		BonusPolicy:              string(cfg.BonusPolicy),
		Pauses:                   PausesView{Mint: cfg.Pauses.Mint, Redeem: cfg.Pauses.Redeem, Liquidate: cfg.Pauses.Liquidate},
		InitializedAt:            cfg.InitializedAt.UTC(),
		Version:                  cfg.Version,
	}
}

// VaultView renders a vault together with its valuation.
type VaultView struct {
	Owner           string    `json:"owner" yaml:"owner"`
	Custody         string    `json:"custody" yaml:"custody"`
	Collateral      string    `json:"collateral" yaml:"collateral"`
	Debt            string    `json:"debt" yaml:"debt"`
	CollateralValue string    `json:"collateralValue" yaml:"collateralValue"`
	HealthFactor    string    `json:"healthFactor" yaml:"healthFactor"`
	Liquidatable    bool      `json:"liquidatable" yaml:"liquidatable"`
	Price           string    `json:"price" yaml:"price"`
	PublishedAt     time.Time `json:"publishedAt" yaml:"publishedAt"`
}

func NewVaultView(status stablecoin.VaultStatus) VaultView {
	return VaultView{
		Owner:           status.Vault.Owner.String(),
		Custody:         status.Custody.String(),
		Collateral:      strconv.FormatUint(status.Vault.Collateral, 10),
		Debt:            strconv.FormatUint(status.Vault.Debt, 10),
		CollateralValue: strconv.FormatUint(status.CollateralValue, 10),
		HealthFactor:    status.Health.String(),
		Liquidatable:    status.Liquidatable,
		Price:           stablecoin.FormatFixed(status.Quote.Price),
		PublishedAt:     status.Quote.PublishedAt.UTC(),
	}
}

// ReceiptView is what the CLI prints after a committed transition.
type ReceiptView struct {
	ID        string         `json:"id" yaml:"id"`
	Operation string         `json:"operation" yaml:"operation"`
	Events    []*types.Event `json:"events" yaml:"events"`
	Config    *ConfigView    `json:"config,omitempty" yaml:"config,omitempty"`
}

func NewReceiptView(r Receipt) ReceiptView {
	view := ReceiptView{ID: r.ID.String(), Operation: r.Operation, Events: r.Events}
	if view.Events == nil {
		view.Events = []*types.Event{}
	}
	if r.Config != nil {
		cfg := NewConfigView(*r.Config)
		view.Config = &cfg
	}
	return view
}
