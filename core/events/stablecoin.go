package events

import (
	"strconv"

	"stablechain/core/types"
	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

const (
	TypeConfigInitialized = "stablecoin.config_initialized"
	TypeConfigUpdated     = "stablecoin.config_updated"
	TypeVaultDeposited    = "stablecoin.vault_deposited"
	TypeVaultRedeemed     = "stablecoin.vault_redeemed"
	// TypeVaultLiquidated carries bonusShortfall, non-zero only when the cap
	// policy seized less than the bonus-inflated amount.
	TypeVaultLiquidated = "stablecoin.vault_liquidated"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func configAttributes(cfg stablecoin.ProtocolConfig) map[string]string {
	return map[string]string{
		"authority":               cfg.Authority.String(),
		"minHealthFactor":         stablecoin.FormatFixed(cfg.MinHealthFactor),
		"liquidationBonusBps":     u64(cfg.LiquidationBonusBps),
		"liquidationThresholdBps": u64(cfg.LiquidationThresholdBps),
		"maxStalenessSeconds":     u64(cfg.MaxPriceStalenessSeconds),
		"maxConfidenceBps":        u64(cfg.MaxConfidenceBps),
		"priceFeedId":             cfg.PriceFeedID,
		"bonusPolicy":             string(cfg.BonusPolicy),
		"pauseMint":               strconv.FormatBool(cfg.Pauses.Mint),
		"pauseRedeem":             strconv.FormatBool(cfg.Pauses.Redeem),
		"pauseLiquidate":          strconv.FormatBool(cfg.Pauses.Liquidate),
		"version":                 u64(cfg.Version),
	}
}

type ConfigInitialized struct {
	Config stablecoin.ProtocolConfig
}

func (ConfigInitialized) EventType() string { return TypeConfigInitialized }

func (e ConfigInitialized) Event() *types.Event {
	attrs := configAttributes(e.Config)
	attrs["collateralAsset"] = e.Config.CollateralAsset
	attrs["stableAsset"] = e.Config.StableAsset
	return &types.Event{Type: TypeConfigInitialized, Attributes: attrs}
}

type ConfigUpdated struct {
	Caller crypto.Address
	Config stablecoin.ProtocolConfig
}

func (ConfigUpdated) EventType() string { return TypeConfigUpdated }

func (e ConfigUpdated) Event() *types.Event {
	attrs := configAttributes(e.Config)
	attrs["caller"] = e.Caller.String()
	return &types.Event{Type: TypeConfigUpdated, Attributes: attrs}
}

func vaultAttributes(tr stablecoin.Transition) map[string]string {
	return map[string]string{
		"owner":        tr.Vault.Owner.String(),
		"custody":      tr.Vault.CustodyAddress().String(),
		"collateral":   u64(tr.Vault.Collateral),
		"debt":         u64(tr.Vault.Debt),
		"healthFactor": tr.Health.String(),
		"price":        stablecoin.FormatFixed(tr.Quote.Price),
		"publishedAt":  strconv.FormatInt(tr.Quote.PublishedAt.Unix(), 10),
	}
}

// VaultDeposited records collateral locked and stable tokens minted.
type VaultDeposited struct {
	Transition stablecoin.Transition
}

func (VaultDeposited) EventType() string { return TypeVaultDeposited }

func (e VaultDeposited) Event() *types.Event {
	attrs := vaultAttributes(e.Transition)
	attrs["collateralDeposited"] = u64(e.Transition.Vault.Collateral - e.Transition.Prior.Collateral)
	attrs["minted"] = u64(e.Transition.Vault.Debt - e.Transition.Prior.Debt)
	return &types.Event{Type: TypeVaultDeposited, Attributes: attrs}
}

// VaultRedeemed records stable tokens burned and collateral released.
type VaultRedeemed struct {
	Transition stablecoin.Transition
}

func (VaultRedeemed) EventType() string { return TypeVaultRedeemed }

func (e VaultRedeemed) Event() *types.Event {
	attrs := vaultAttributes(e.Transition)
	attrs["collateralRedeemed"] = u64(e.Transition.Prior.Collateral - e.Transition.Vault.Collateral)
	attrs["burned"] = u64(e.Transition.Prior.Debt - e.Transition.Vault.Debt)
	return &types.Event{Type: TypeVaultRedeemed, Attributes: attrs}
}

type VaultLiquidated struct {
	Transition stablecoin.Transition
}

func (VaultLiquidated) EventType() string { return TypeVaultLiquidated }

func (e VaultLiquidated) Event() *types.Event {
	attrs := vaultAttributes(e.Transition)
	if d := e.Transition.Liquidation; d != nil {
		attrs["liquidator"] = d.Liquidator.String()
		attrs["burned"] = u64(d.Burned)
		attrs["seized"] = u64(d.Seized)
		attrs["bonus"] = u64(d.Bonus)
		attrs["bonusShortfall"] = u64(d.BonusShortfall)
		attrs["healthBefore"] = d.HealthBefore.String()
	}
	return &types.Event{Type: TypeVaultLiquidated, Attributes: attrs}
}
