package stablecoin

import (
	"fmt"

	"github.com/holiman/uint256"

	"stablechain/crypto"
)

// SeizeAmount returns the collateral owed to a liquidator burning amount
// stable tokens at price, including the bonus:
//
//	amount * Scale * (10000 + bonusBps) / (price * 10000)
//
// rounded down. The base portion without bonus is returned alongside.
func SeizeAmount(amount, price, bonusBps uint64) (seize, base *uint256.Int, err error) {
	if price == 0 {
		return nil, nil, fmt.Errorf("%w: zero price", ErrInvalidPrice)
	}
	scaled := new(uint256.Int).Mul(uint256.NewInt(amount), scaleU256)
	denom := new(uint256.Int).Mul(uint256.NewInt(price), bpsU256)
	factor := new(uint256.Int).Add(bpsU256, uint256.NewInt(bonusBps))
	if seize, err = mulDiv(scaled, factor, denom, "liquidation seizure"); err != nil {
		return nil, nil, err
	}
	if base, err = mulDiv(scaled, bpsU256, denom, "liquidation seizure"); err != nil {
		return nil, nil, err
	}
	return seize, base, nil
}

// Liquidate burns amountToBurn of the liquidator's stable tokens against an
// unhealthy vault and transfers the equivalent collateral plus the liquidation
// bonus from custody to the liquidator. The vault may remain unhealthy.
func Liquidate(cfg ProtocolConfig, vault Vault, liquidator crypto.Address, amountToBurn uint64, quote PriceQuote) (Transition, error) {
	if err := guard(cfg, ActionLiquidate); err != nil {
		return Transition{}, err
	}
	if amountToBurn == 0 {
		return Transition{}, fmt.Errorf("%w: liquidation burns nothing", ErrEmptyOperation)
	}
	if liquidator.Equal(vault.Owner) {
		return Transition{}, ErrSelfLiquidation
	}
	if err := checkQuote(cfg, quote); err != nil {
		return Transition{}, err
	}
	before, err := HealthOf(vault, quote.Price, cfg)
	if err != nil {
		return Transition{}, err
	}
	if !before.Below(cfg.MinHealthFactor) {
		return Transition{}, fmt.Errorf("%w: health factor %s", ErrNotLiquidatable, before)
	}
	if amountToBurn > vault.Debt {
		return Transition{}, fmt.Errorf("%w: burn %d, debt %d", ErrExceedsDebt, amountToBurn, vault.Debt)
	}

	seize, base, err := SeizeAmount(amountToBurn, quote.Price, cfg.LiquidationBonusBps)
	if err != nil {
		return Transition{}, err
	}
	collateral := uint256.NewInt(vault.Collateral)
	var shortfall uint64
	if seize.Gt(collateral) {
		if cfg.BonusPolicy != BonusPolicyCap {
			return Transition{}, fmt.Errorf("%w: seize %s, collateral %d", ErrInsufficientCollateralForBonus, seize.Dec(), vault.Collateral)
		}
		gap := new(uint256.Int).Sub(seize, collateral)
		if shortfall, err = toUint64(gap, "bonus shortfall"); err != nil {
			return Transition{}, err
		}
		seize = collateral
		if base.Gt(collateral) {
			base = collateral
		}
	}
	seized := seize.Uint64()
	bonus := seized - base.Uint64()

	next, err := vault.withWithdrawal(seized, amountToBurn)
	if err != nil {
		return Transition{}, err
	}
	after, err := HealthOf(next, quote.Price, cfg)
	if err != nil {
		return Transition{}, err
	}

	effects := []Effect{{
		Kind:   EffectBurn,
		Asset:  cfg.StableAsset,
		From:   liquidator,
		Amount: amountToBurn,
	}}
	if seized > 0 {
		effects = append(effects, Effect{
			Kind:   EffectTransfer,
			Asset:  cfg.CollateralAsset,
			From:   vault.CustodyAddress(),
			To:     liquidator,
			Amount: seized,
		})
	}
	return Transition{
		Prior:   vault,
		Vault:   next,
		Effects: effects,
		Health:  after,
		Quote:   quote,
		Liquidation: &LiquidationDetail{
			Liquidator:     liquidator,
			Burned:         amountToBurn,
			Seized:         seized,
			Bonus:          bonus,
			BonusShortfall: shortfall,
			HealthBefore:   before,
		},
	}, nil
}
