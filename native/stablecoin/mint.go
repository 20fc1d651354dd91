package stablecoin

import (
	"fmt"

	nativecommon "stablechain/native/common"
)

func guard(cfg ProtocolConfig, action string) error {
	if err := nativecommon.Guard(cfg.Pauses, action); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPaused, action, err)
	}
	return nil
}

// checkQuote binds a quote to the protocol feed. Freshness and confidence were
// enforced by the oracle adapter against the same config.
func checkQuote(cfg ProtocolConfig, quote PriceQuote) error {
	if quote.FeedID != cfg.PriceFeedID {
		return fmt.Errorf("%w: got %q, want %q", ErrFeedMismatch, quote.FeedID, cfg.PriceFeedID)
	}
	if quote.Price == 0 {
		return fmt.Errorf("%w: zero price", ErrInvalidPrice)
	}
	return nil
}

// DepositAndMint locks collateral and mints stable tokens against the vault in
// one step. Either amount may be zero but not both. The resulting vault must
// meet the minimum health factor; on failure the returned error is the only
// output and vault is left as it was.
func DepositAndMint(cfg ProtocolConfig, vault Vault, amountCollateral, amountToMint uint64, quote PriceQuote) (Transition, error) {
	if err := guard(cfg, ActionMint); err != nil {
		return Transition{}, err
	}
	if amountCollateral == 0 && amountToMint == 0 {
		return Transition{}, fmt.Errorf("%w: deposit and mint amounts are zero", ErrEmptyOperation)
	}
	if err := checkQuote(cfg, quote); err != nil {
		return Transition{}, err
	}
	next, err := vault.withDeposit(amountCollateral, amountToMint)
	if err != nil {
		return Transition{}, err
	}
	hf, err := requireHealthy(next, quote.Price, cfg)
	if err != nil {
		return Transition{}, err
	}

	var effects []Effect
	if amountCollateral > 0 {
		effects = append(effects, Effect{
			Kind:   EffectTransfer,
			Asset:  cfg.CollateralAsset,
			From:   vault.Owner,
			To:     vault.CustodyAddress(),
			Amount: amountCollateral,
		})
	}
	if amountToMint > 0 {
		effects = append(effects, Effect{
			Kind:   EffectMint,
			Asset:  cfg.StableAsset,
			To:     vault.Owner,
			Amount: amountToMint,
		})
	}
	return Transition{Prior: vault, Vault: next, Effects: effects, Health: hf, Quote: quote}, nil
}

// RedeemAndBurn burns stable tokens and releases collateral. Redeeming every
// unit of collateral and debt is always allowed; any other outcome must keep
// the vault at or above the minimum health factor.
func RedeemAndBurn(cfg ProtocolConfig, vault Vault, amountCollateral, amountToBurn uint64, quote PriceQuote) (Transition, error) {
	if err := guard(cfg, ActionRedeem); err != nil {
		return Transition{}, err
	}
	if amountCollateral == 0 && amountToBurn == 0 {
		return Transition{}, fmt.Errorf("%w: redeem and burn amounts are zero", ErrEmptyOperation)
	}
	if err := checkQuote(cfg, quote); err != nil {
		return Transition{}, err
	}
	next, err := vault.withWithdrawal(amountCollateral, amountToBurn)
	if err != nil {
		return Transition{}, err
	}
	// A debt-free vault reports infinite health, which covers the full exit.
	hf, err := requireHealthy(next, quote.Price, cfg)
	if err != nil {
		return Transition{}, err
	}

	var effects []Effect
	if amountToBurn > 0 {
		effects = append(effects, Effect{
			Kind:   EffectBurn,
			Asset:  cfg.StableAsset,
			From:   vault.Owner,
			Amount: amountToBurn,
		})
	}
	if amountCollateral > 0 {
		effects = append(effects, Effect{
			Kind:   EffectTransfer,
			Asset:  cfg.CollateralAsset,
			From:   vault.CustodyAddress(),
			To:     vault.Owner,
			Amount: amountCollateral,
		})
	}
	return Transition{Prior: vault, Vault: next, Effects: effects, Health: hf, Quote: quote}, nil
}
