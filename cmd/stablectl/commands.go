package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stablechain/core"
	"stablechain/crypto"
	"stablechain/native/stablecoin"
	"stablechain/native/stablecoin/oracle"
	"stablechain/server"
)

func initCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	return func(ctx context.Context, env *cliEnv) error {
		params, err := env.cfg.Params()
		if err != nil {
			return err
		}
		authority, err := env.caller()
		if err != nil {
			return err
		}
		if env.cfg.Authority != "" {
			want, err := crypto.DecodeAddress(env.cfg.Authority)
			if err != nil {
				return err
			}
			if !want.Equal(authority) {
				return fmt.Errorf("keystore account %s is not the configured authority %s", authority, env.cfg.Authority)
			}
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		receipt, err := n.proc.InitializeConfig(ctx, authority, params)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

// optionalBool parses "", "true" or "false"; empty leaves the value unset.
func optionalBool(name, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &v, nil
}

func optionalUint(name, raw string) (*uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &v, nil
}

func updateCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	minHF := fs.String("min-health-factor", "", "new minimum health factor, e.g. 1.25")
	bonus := fs.String("bonus-bps", "", "new liquidation bonus in basis points")
	threshold := fs.String("liquidation-threshold-bps", "", "share of collateral value counted toward health, in basis points")
	staleness := fs.String("max-staleness", "", "new maximum price age in seconds")
	confidence := fs.String("max-confidence-bps", "", "new maximum confidence interval in basis points")
	policy := fs.String("bonus-policy", "", "strict or cap")
	pauseMint := fs.String("pause-mint", "", "true or false")
	pauseRedeem := fs.String("pause-redeem", "", "true or false")
	pauseLiquidate := fs.String("pause-liquidate", "", "true or false")
	return func(ctx context.Context, env *cliEnv) error {
		var upd stablecoin.ConfigUpdate
		if strings.TrimSpace(*minHF) != "" {
			v, err := stablecoin.ParseFixed(*minHF)
			if err != nil {
				return fmt.Errorf("-min-health-factor: %w", err)
			}
			upd.MinHealthFactor = &v
		}
		var err error
		if upd.LiquidationBonusBps, err = optionalUint("bonus-bps", *bonus); err != nil {
			return err
		}
		if upd.LiquidationThresholdBps, err = optionalUint("liquidation-threshold-bps", *threshold); err != nil {
			return err
		}
		if upd.MaxPriceStalenessSeconds, err = optionalUint("max-staleness", *staleness); err != nil {
			return err
		}
		if upd.MaxConfidenceBps, err = optionalUint("max-confidence-bps", *confidence); err != nil {
			return err
		}
		if strings.TrimSpace(*policy) != "" {
			p, ok := stablecoin.ParseBonusPolicy(*policy)
			if !ok {
				return fmt.Errorf("-bonus-policy: unknown policy %q", *policy)
			}
			upd.BonusPolicy = &p
		}
		mint, err := optionalBool("pause-mint", *pauseMint)
		if err != nil {
			return err
		}
		redeem, err := optionalBool("pause-redeem", *pauseRedeem)
		if err != nil {
			return err
		}
		liquidate, err := optionalBool("pause-liquidate", *pauseLiquidate)
		if err != nil {
			return err
		}

		caller, err := env.caller()
		if err != nil {
			return err
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		if mint != nil || redeem != nil || liquidate != nil {
			current, err := n.proc.Config()
			if err != nil {
				return err
			}
			pauses := current.Pauses
			if mint != nil {
				pauses.Mint = *mint
			}
			if redeem != nil {
				pauses.Redeem = *redeem
			}
			if liquidate != nil {
				pauses.Liquidate = *liquidate
			}
			upd.Pauses = &pauses
		}
		receipt, err := n.proc.UpdateConfig(ctx, caller, upd)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

func configCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	return func(ctx context.Context, env *cliEnv) error {
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		cfg, err := n.proc.Config()
		if err != nil {
			return err
		}
		return env.print(core.NewConfigView(cfg))
	}
}

func depositCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	collateral := fs.Uint64("collateral", 0, "collateral base units to lock")
	mint := fs.Uint64("mint", 0, "stable base units to mint")
	feed := fs.String("feed", "", "price feed id (defaults to the protocol feed)")
	return func(ctx context.Context, env *cliEnv) error {
		owner, err := env.caller()
		if err != nil {
			return err
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		receipt, err := n.proc.DepositCollateralAndMint(ctx, owner, *collateral, *mint, *feed)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

func redeemCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	collateral := fs.Uint64("collateral", 0, "collateral base units to release")
	burn := fs.Uint64("burn", 0, "stable base units to burn")
	feed := fs.String("feed", "", "price feed id (defaults to the protocol feed)")
	return func(ctx context.Context, env *cliEnv) error {
		owner, err := env.caller()
		if err != nil {
			return err
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		receipt, err := n.proc.RedeemCollateralAndBurn(ctx, owner, *collateral, *burn, *feed)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

func liquidateCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	target := fs.String("owner", "", "owner of the vault to liquidate")
	amount := fs.Uint64("amount", 0, "stable base units to burn")
	feed := fs.String("feed", "", "price feed id (defaults to the protocol feed)")
	return func(ctx context.Context, env *cliEnv) error {
		owner, err := crypto.DecodeAddress(*target)
		if err != nil {
			return fmt.Errorf("-owner: %w", err)
		}
		liquidator, err := env.caller()
		if err != nil {
			return err
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		receipt, err := n.proc.Liquidate(ctx, liquidator, owner, *amount, *feed)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

func vaultCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	target := fs.String("owner", "", "vault owner (defaults to the keystore account)")
	feed := fs.String("feed", "", "price feed id (defaults to the protocol feed)")
	return func(ctx context.Context, env *cliEnv) error {
		var owner crypto.Address
		var err error
		if strings.TrimSpace(*target) != "" {
			owner, err = crypto.DecodeAddress(*target)
		} else {
			owner, err = crypto.KeystoreAddress(env.keystore)
		}
		if err != nil {
			return fmt.Errorf("-owner: %w", err)
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		status, err := n.proc.VaultStatus(ctx, owner, *feed)
		if err != nil {
			return err
		}
		return env.print(core.NewVaultView(status))
	}
}

func balanceCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	asset := fs.String("asset", "", "asset symbol (defaults to the stable asset)")
	address := fs.String("address", "", "account (defaults to the keystore account)")
	return func(ctx context.Context, env *cliEnv) error {
		var addr crypto.Address
		var err error
		if strings.TrimSpace(*address) != "" {
			addr, err = crypto.DecodeAddress(*address)
		} else {
			addr, err = crypto.KeystoreAddress(env.keystore)
		}
		if err != nil {
			return fmt.Errorf("-address: %w", err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(*asset))
		if symbol == "" {
			symbol = strings.ToUpper(env.cfg.Protocol.StableAsset)
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		balance, err := n.proc.Balance(symbol, addr)
		if err != nil {
			return err
		}
		return env.print(map[string]string{"asset": symbol, "address": addr.String(), "balance": balance.String()})
	}
}

func faucetCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	asset := fs.String("asset", "", "asset symbol (defaults to the collateral asset)")
	to := fs.String("to", "", "recipient (defaults to the keystore account)")
	amount := fs.Uint64("amount", 0, "base units to credit")
	return func(ctx context.Context, env *cliEnv) error {
		if strings.EqualFold(strings.TrimSpace(env.cfg.Environment), "production") {
			return errors.New("faucet disabled in production")
		}
		var recipient crypto.Address
		var err error
		if strings.TrimSpace(*to) != "" {
			recipient, err = crypto.DecodeAddress(*to)
		} else {
			recipient, err = crypto.KeystoreAddress(env.keystore)
		}
		if err != nil {
			return fmt.Errorf("-to: %w", err)
		}
		symbol := strings.TrimSpace(*asset)
		if symbol == "" {
			symbol = env.cfg.Protocol.CollateralAsset
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		receipt, err := n.proc.Faucet(ctx, symbol, recipient, *amount)
		if err != nil {
			return err
		}
		return env.print(core.NewReceiptView(receipt))
	}
}

func signQuoteCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	price := fs.Int64("price", 0, "price mantissa")
	expo := fs.Int("expo", -8, "decimal exponent applied to price and confidence")
	conf := fs.Uint64("conf", 0, "confidence mantissa")
	feed := fs.String("feed", "", "price feed id (defaults to the protocol feed)")
	publish := fs.Int64("publish-time", 0, "unix publish time (defaults to now)")
	out := fs.String("out", "", "quote file (defaults to oracle.QuoteFile)")
	return func(_ context.Context, env *cliEnv) error {
		key, err := env.signer()
		if err != nil {
			return err
		}
		q := oracle.SignedQuote{
			FeedID:      strings.TrimSpace(*feed),
			Price:       *price,
			Confidence:  *conf,
			Exponent:    int32(*expo),
			PublishTime: *publish,
		}
		if q.FeedID == "" {
			q.FeedID = env.cfg.Protocol.PriceFeedID
		}
		if q.PublishTime == 0 {
			q.PublishTime = time.Now().Unix()
		}
		signed, err := oracle.SignQuote(key, q)
		if err != nil {
			return err
		}
		path := strings.TrimSpace(*out)
		if path == "" {
			path = env.cfg.Oracle.QuoteFile
		}
		if err := oracle.WriteQuote(path, signed); err != nil {
			return err
		}
		return env.print(signed)
	}
}

func serveCmd(fs *flag.FlagSet) func(context.Context, *cliEnv) error {
	listen := fs.String("listen", "", "listen address (defaults to status.ListenAddress)")
	return func(ctx context.Context, env *cliEnv) error {
		addr := strings.TrimSpace(*listen)
		if addr == "" {
			addr = env.cfg.Status.ListenAddress
		}
		n, err := env.open(ctx)
		if err != nil {
			return err
		}
		cfg := server.Config{Backend: n.proc, Logger: n.logger}
		if n.events != nil {
			cfg.Events = n.events
		}
		return server.New(cfg).ListenAndServe(ctx, addr)
	}
}
