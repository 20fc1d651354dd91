package stablecoin

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"stablechain/crypto"
	"stablechain/native/bank"
)

var (
	errNilState  = errors.New("stablecoin engine: state not configured")
	errNilOracle = errors.New("stablecoin engine: price oracle not configured")
)

// EngineState is the persistence surface the engine runs against. A host
// wraps one atomic transition in it; writes become visible only when the host
// commits.
type EngineState interface {
	bank.Store
	StablecoinConfig() (*ProtocolConfig, error)
	PutStablecoinConfig(cfg ProtocolConfig) error
	Vault(owner crypto.Address) (Vault, bool, error)
	PutVault(vault Vault) error
	DeleteVault(owner crypto.Address) error
}

// PriceFetcher yields a validated quote for feedID within limits.
type PriceFetcher interface {
	Fetch(ctx context.Context, feedID string, limits OracleLimits) (PriceQuote, error)
}

// VaultStatus is a read-only snapshot of a vault at the current price.
type VaultStatus struct {
	Vault           Vault
	Custody         crypto.Address
	CollateralValue uint64
	Health          HealthFactor
	Liquidatable    bool
	Quote           PriceQuote
}

// Engine binds the pure transition functions to host state and the oracle.
type Engine struct {
	state  EngineState
	oracle PriceFetcher
	now    func() time.Time
}

// NewEngine constructs an engine. A nil clock defaults to time.Now.
func NewEngine(state EngineState, oracle PriceFetcher, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{state: state, oracle: oracle, now: now}
}

// InitializeConfig creates the protocol config owned by authority.
func (e *Engine) InitializeConfig(authority crypto.Address, params Params) (ProtocolConfig, error) {
	if e == nil || e.state == nil {
		return ProtocolConfig{}, errNilState
	}
	existing, err := e.state.StablecoinConfig()
	if err != nil {
		return ProtocolConfig{}, err
	}
	cfg, err := InitializeConfig(existing, authority, params, e.now())
	if err != nil {
		return ProtocolConfig{}, err
	}
	if err := e.state.PutStablecoinConfig(cfg); err != nil {
		return ProtocolConfig{}, err
	}
	return cfg, nil
}

// UpdateConfig applies upd on behalf of caller.
func (e *Engine) UpdateConfig(caller crypto.Address, upd ConfigUpdate) (ProtocolConfig, error) {
	cfg, err := e.config()
	if err != nil {
		return ProtocolConfig{}, err
	}
	next, err := ApplyConfigUpdate(cfg, caller, upd)
	if err != nil {
		return ProtocolConfig{}, err
	}
	if err := e.state.PutStablecoinConfig(next); err != nil {
		return ProtocolConfig{}, err
	}
	return next, nil
}

// Config returns the stored protocol config.
func (e *Engine) Config() (ProtocolConfig, error) { return e.config() }

// DepositCollateralAndMint locks amountCollateral of the owner's collateral and
// mints amountToMint stable tokens to them.
func (e *Engine) DepositCollateralAndMint(ctx context.Context, owner crypto.Address, amountCollateral, amountToMint uint64, feedID string) (Transition, error) {
	cfg, vault, quote, err := e.prepare(ctx, owner, feedID)
	if err != nil {
		return Transition{}, err
	}
	tr, err := DepositAndMint(cfg, vault, amountCollateral, amountToMint, quote)
	if err != nil {
		return Transition{}, err
	}
	return tr, e.apply(tr)
}

// RedeemCollateralAndBurn burns amountToBurn of the owner's stable tokens and
// releases amountCollateral from custody.
func (e *Engine) RedeemCollateralAndBurn(ctx context.Context, owner crypto.Address, amountCollateral, amountToBurn uint64, feedID string) (Transition, error) {
	cfg, vault, quote, err := e.prepare(ctx, owner, feedID)
	if err != nil {
		return Transition{}, err
	}
	tr, err := RedeemAndBurn(cfg, vault, amountCollateral, amountToBurn, quote)
	if err != nil {
		return Transition{}, err
	}
	return tr, e.apply(tr)
}

// Liquidate repays amountToBurn of target's debt with the liquidator's stable
// tokens in exchange for bonus-weighted collateral.
func (e *Engine) Liquidate(ctx context.Context, liquidator, target crypto.Address, amountToBurn uint64, feedID string) (Transition, error) {
	cfg, vault, quote, err := e.prepare(ctx, target, feedID)
	if err != nil {
		return Transition{}, err
	}
	tr, err := Liquidate(cfg, vault, liquidator, amountToBurn, quote)
	if err != nil {
		return Transition{}, err
	}
	return tr, e.apply(tr)
}

// VaultStatus reports the owner's vault valued at a fresh quote. Owners
// without a vault get the empty vault.
func (e *Engine) VaultStatus(ctx context.Context, owner crypto.Address, feedID string) (VaultStatus, error) {
	cfg, vault, quote, err := e.prepare(ctx, owner, feedID)
	if err != nil {
		return VaultStatus{}, err
	}
	value, err := CollateralValue(vault, quote.Price)
	if err != nil {
		return VaultStatus{}, err
	}
	hf, err := HealthOf(vault, quote.Price, cfg)
	if err != nil {
		return VaultStatus{}, err
	}
	return VaultStatus{
		Vault:           vault,
		Custody:         vault.CustodyAddress(),
		CollateralValue: value,
		Health:          hf,
		Liquidatable:    hf.Below(cfg.MinHealthFactor),
		Quote:           quote,
	}, nil
}

func (e *Engine) config() (ProtocolConfig, error) {
	if e == nil || e.state == nil {
		return ProtocolConfig{}, errNilState
	}
	cfg, err := e.state.StablecoinConfig()
	if err != nil {
		return ProtocolConfig{}, err
	}
	if cfg == nil {
		return ProtocolConfig{}, ErrNotInitialized
	}
	return *cfg, nil
}

func (e *Engine) prepare(ctx context.Context, owner crypto.Address, feedID string) (ProtocolConfig, Vault, PriceQuote, error) {
	cfg, err := e.config()
	if err != nil {
		return ProtocolConfig{}, Vault{}, PriceQuote{}, err
	}
	feedID = strings.TrimSpace(feedID)
	if feedID == "" {
		feedID = cfg.PriceFeedID
	}
	if feedID != cfg.PriceFeedID {
		return ProtocolConfig{}, Vault{}, PriceQuote{}, fmt.Errorf("%w: got %q, want %q", ErrFeedMismatch, feedID, cfg.PriceFeedID)
	}
	if e.oracle == nil {
		return ProtocolConfig{}, Vault{}, PriceQuote{}, errNilOracle
	}
	vault, ok, err := e.state.Vault(owner)
	if err != nil {
		return ProtocolConfig{}, Vault{}, PriceQuote{}, err
	}
	if !ok {
		vault = NewVault(owner)
	}
	quote, err := e.oracle.Fetch(ctx, feedID, cfg.OracleLimits())
	if err != nil {
		return ProtocolConfig{}, Vault{}, PriceQuote{}, err
	}
	return cfg, vault, quote, nil
}

// apply writes the vault and routes the effects through the ledger. The host
// discards the whole transition if any step fails.
func (e *Engine) apply(tr Transition) error {
	if tr.Vault.Empty() {
		if err := e.state.DeleteVault(tr.Vault.Owner); err != nil {
			return err
		}
	} else if err := e.state.PutVault(tr.Vault); err != nil {
		return err
	}
	ledger := bank.NewLedger(e.state)
	for _, eff := range tr.Effects {
		amount := new(big.Int).SetUint64(eff.Amount)
		var err error
		switch eff.Kind {
		case EffectTransfer:
			err = ledger.Transfer(eff.Asset, eff.From, eff.To, amount)
		case EffectMint:
			err = ledger.Mint(eff.Asset, eff.To, amount)
		case EffectBurn:
			err = ledger.Burn(eff.Asset, eff.From, amount)
		default:
			err = fmt.Errorf("stablecoin engine: unknown effect %q", eff.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", eff.Kind, eff.Asset, err)
		}
	}
	return nil
}
