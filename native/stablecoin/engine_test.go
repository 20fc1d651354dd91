package stablecoin

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"stablechain/crypto"
	"stablechain/native/bank"
)

type memState struct {
	*bank.MemStore
	cfg    *ProtocolConfig
	vaults map[crypto.Address]Vault
}

func newMemState() *memState {
	return &memState{MemStore: bank.NewMemStore(), vaults: make(map[crypto.Address]Vault)}
}

func (m *memState) StablecoinConfig() (*ProtocolConfig, error) {
	if m.cfg == nil {
		return nil, nil
	}
	cfg := *m.cfg
	return &cfg, nil
}

func (m *memState) PutStablecoinConfig(cfg ProtocolConfig) error {
	m.cfg = &cfg
	return nil
}

func (m *memState) Vault(addr crypto.Address) (Vault, bool, error) {
	v, ok := m.vaults[addr]
	return v, ok, nil
}

func (m *memState) PutVault(v Vault) error {
	m.vaults[v.Owner] = v
	return nil
}

func (m *memState) DeleteVault(addr crypto.Address) error {
	delete(m.vaults, addr)
	return nil
}

type fixedPrice struct {
	price uint64
	err   error
	calls int
}

func (f *fixedPrice) Fetch(_ context.Context, feedID string, _ OracleLimits) (PriceQuote, error) {
	f.calls++
	if f.err != nil {
		return PriceQuote{}, f.err
	}
	return PriceQuote{FeedID: feedID, Price: f.price, PublishedAt: time.Unix(1_700_000_000, 0)}, nil
}

func setupEngine(t *testing.T) (*Engine, *memState, *fixedPrice) {
	t.Helper()
	state := newMemState()
	oracle := &fixedPrice{price: Scale}
	engine := NewEngine(state, oracle, func() time.Time { return time.Unix(1_700_000_000, 0) })
	if _, err := engine.InitializeConfig(authority, DefaultParams()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := bank.NewLedger(state).Mint("SOL", owner, big.NewInt(2_000_000_000)); err != nil {
		t.Fatalf("fund owner: %v", err)
	}
	return engine, state, oracle
}

func balance(t *testing.T, s bank.Store, asset string, addr crypto.Address) uint64 {
	t.Helper()
	v, err := s.Balance(asset, addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v.Uint64()
}

func TestEngineRequiresConfig(t *testing.T) {
	engine := NewEngine(newMemState(), &fixedPrice{price: Scale}, nil)
	_, err := engine.DepositCollateralAndMint(context.Background(), owner, 1, 0, "")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestEngineDepositMovesBalances(t *testing.T) {
	engine, state, _ := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.DepositCollateralAndMint(ctx, owner, 1_000_000_000, 500_000_000, ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := balance(t, state, "SOL", owner); got != 1_000_000_000 {
		t.Fatalf("owner collateral = %d", got)
	}
	if got := balance(t, state, "SOL", CustodyAddress(owner)); got != 1_000_000_000 {
		t.Fatalf("custody collateral = %d", got)
	}
	if got := balance(t, state, "USDS", owner); got != 500_000_000 {
		t.Fatalf("owner stable = %d", got)
	}
	vault, ok, _ := state.Vault(owner)
	if !ok || vault.Debt != 500_000_000 {
		t.Fatalf("unexpected vault %+v", vault)
	}
}

func TestEngineFullExitDeletesVault(t *testing.T) {
	engine, state, _ := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.DepositCollateralAndMint(ctx, owner, 1_000_000_000, 500_000_000, ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.RedeemCollateralAndBurn(ctx, owner, 1_000_000_000, 500_000_000, ""); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, ok, _ := state.Vault(owner); ok {
		t.Fatalf("expected vault deleted")
	}
	if got := balance(t, state, "SOL", owner); got != 2_000_000_000 {
		t.Fatalf("owner collateral = %d", got)
	}
	supply, _ := state.Supply("USDS")
	if supply.Sign() != 0 {
		t.Fatalf("expected zero stable supply, got %s", supply)
	}
}

func TestEngineLiquidation(t *testing.T) {
	engine, state, oracle := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.DepositCollateralAndMint(ctx, owner, 1_000_000_000, 500_000_000, ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := bank.NewLedger(state).Transfer("USDS", owner, liquidator, big.NewInt(200_000_000)); err != nil {
		t.Fatalf("fund liquidator: %v", err)
	}
	oracle.price = 400_000_000
	status, err := engine.VaultStatus(ctx, owner, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Liquidatable || status.CollateralValue != 400_000_000 {
		t.Fatalf("unexpected status %+v", status)
	}
	tr, err := engine.Liquidate(ctx, liquidator, owner, 200_000_000, "")
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if tr.Liquidation.Seized != 550_000_000 {
		t.Fatalf("unexpected seizure %d", tr.Liquidation.Seized)
	}
	if got := balance(t, state, "SOL", liquidator); got != 550_000_000 {
		t.Fatalf("liquidator collateral = %d", got)
	}
	if got := balance(t, state, "USDS", liquidator); got != 0 {
		t.Fatalf("liquidator stable = %d", got)
	}
}

func TestEngineLiquidatorWithoutTokensFails(t *testing.T) {
	engine, _, oracle := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.DepositCollateralAndMint(ctx, owner, 1_000_000_000, 500_000_000, ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	oracle.price = 400_000_000
	if _, err := engine.Liquidate(ctx, liquidator, owner, 200_000_000, ""); !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestEngineFeedMismatchSkipsOracle(t *testing.T) {
	engine, _, oracle := setupEngine(t)
	oracle.calls = 0
	_, err := engine.DepositCollateralAndMint(context.Background(), owner, 1, 0, "0x01")
	if !errors.Is(err, ErrFeedMismatch) {
		t.Fatalf("expected ErrFeedMismatch, got %v", err)
	}
	if oracle.calls != 0 {
		t.Fatalf("oracle must not be queried for a foreign feed")
	}
}

func TestEngineOracleFailurePropagates(t *testing.T) {
	engine, _, oracle := setupEngine(t)
	oracle.err = ErrStalePrice
	_, err := engine.DepositCollateralAndMint(context.Background(), owner, 1, 0, "")
	if !errors.Is(err, ErrStalePrice) || !Retryable(err) {
		t.Fatalf("expected retryable ErrStalePrice, got %v", err)
	}
}

func TestEngineUpdateConfig(t *testing.T) {
	engine, _, _ := setupEngine(t)
	v := 2 * Scale
	cfg, err := engine.UpdateConfig(authority, ConfigUpdate{MinHealthFactor: &v})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.Version != 2 {
		t.Fatalf("unexpected version %d", cfg.Version)
	}
	if _, err := engine.UpdateConfig(owner, ConfigUpdate{MinHealthFactor: &v}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.InitializeConfig(authority, DefaultParams()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}
