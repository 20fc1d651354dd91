package events

import (
	"testing"

	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

func TestVaultLiquidatedRendersShortfall(t *testing.T) {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 7
	owner := crypto.NewAddress(crypto.AccountPrefix, raw)
	raw[0] = 8
	liquidator := crypto.NewAddress(crypto.AccountPrefix, raw)

	tr := stablecoin.Transition{
		Prior:  stablecoin.Vault{Owner: owner, Collateral: 1_000_000_000, Debt: 500_000_000},
		Vault:  stablecoin.Vault{Owner: owner},
		Health: stablecoin.InfiniteHealth(),
		Quote:  stablecoin.PriceQuote{Price: 400_000_000},
		Liquidation: &stablecoin.LiquidationDetail{
			Liquidator:     liquidator,
			Burned:         500_000_000,
			Seized:         1_000_000_000,
			BonusShortfall: 375_000_000,
			HealthBefore:   stablecoin.HealthFactorOf(800_000_000),
		},
	}
	var rec Recorder
	rec.Emit(VaultLiquidated{Transition: tr})
	got := rec.Events()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ev := Render(got[0])
	if ev.Type != TypeVaultLiquidated {
		t.Fatalf("unexpected type %q", ev.Type)
	}
	want := map[string]string{
		"owner":          owner.String(),
		"liquidator":     liquidator.String(),
		"seized":         "1000000000",
		"bonusShortfall": "375000000",
		"healthBefore":   "0.800000000",
		"healthFactor":   "inf",
		"price":          "0.400000000",
	}
	for k, v := range want {
		if ev.Attributes[k] != v {
			t.Fatalf("attribute %s = %q, want %q", k, ev.Attributes[k], v)
		}
	}
}

func TestVaultDepositedAmounts(t *testing.T) {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 1
	owner := crypto.NewAddress(crypto.AccountPrefix, raw)
	ev := VaultDeposited{Transition: stablecoin.Transition{
		Prior:  stablecoin.Vault{Owner: owner, Collateral: 10, Debt: 1},
		Vault:  stablecoin.Vault{Owner: owner, Collateral: 30, Debt: 6},
		Health: stablecoin.HealthFactorOf(5 * stablecoin.Scale),
		Quote:  stablecoin.PriceQuote{Price: stablecoin.Scale},
	}}.Event()
	if ev.Attributes["collateralDeposited"] != "20" || ev.Attributes["minted"] != "5" {
		t.Fatalf("unexpected attributes %v", ev.Attributes)
	}
}
