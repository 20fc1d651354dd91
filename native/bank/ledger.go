package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stablechain/crypto"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrUnknownAsset        = errors.New("bank: asset symbol required")
)

// Store is the balance surface the ledger mutates. Missing balances read as
// zero; returned values are owned by the caller.
type Store interface {
	Balance(asset string, addr crypto.Address) (*big.Int, error)
	SetBalance(asset string, addr crypto.Address, amount *big.Int) error
	Supply(asset string) (*big.Int, error)
	SetSupply(asset string, amount *big.Int) error
}

// Ledger moves, creates and destroys token balances while keeping per-asset
// supply in step.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func normalizeAsset(asset string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(asset))
	if trimmed == "" {
		return "", ErrUnknownAsset
	}
	return trimmed, nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Transfer moves amount of asset from one account to another.
func (l *Ledger) Transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if from.Equal(to) {
		return nil
	}
	fromBal, err := l.store.Balance(asset, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, fromBal, asset, amount)
	}
	toBal, err := l.store.Balance(asset, to)
	if err != nil {
		return err
	}
	if err := l.store.SetBalance(asset, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.store.SetBalance(asset, to, new(big.Int).Add(toBal, amount))
}

// Mint credits amount of asset to addr and grows supply.
func (l *Ledger) Mint(asset string, to crypto.Address, amount *big.Int) error {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := l.store.Balance(asset, to)
	if err != nil {
		return err
	}
	supply, err := l.store.Supply(asset)
	if err != nil {
		return err
	}
	if err := l.store.SetBalance(asset, to, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	return l.store.SetSupply(asset, new(big.Int).Add(supply, amount))
}

// Burn debits amount of asset from addr and shrinks supply.
func (l *Ledger) Burn(asset string, from crypto.Address, amount *big.Int) error {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := l.store.Balance(asset, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, burning %s", ErrInsufficientBalance, from, bal, asset, amount)
	}
	supply, err := l.store.Supply(asset)
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s supply %s below burn %s", asset, supply, amount)
	}
	if err := l.store.SetBalance(asset, from, new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	return l.store.SetSupply(asset, new(big.Int).Sub(supply, amount))
}

// MemStore is an in-memory Store used by tests and tooling.
type MemStore struct {
	balances map[string]*big.Int
	supply   map[string]*big.Int
}

func NewMemStore() *MemStore {
	return &MemStore{balances: make(map[string]*big.Int), supply: make(map[string]*big.Int)}
}

func balanceKey(asset string, addr crypto.Address) string {
	return asset + "/" + string(addr.Bytes())
}

func (m *MemStore) Balance(asset string, addr crypto.Address) (*big.Int, error) {
	if v, ok := m.balances[balanceKey(asset, addr)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *MemStore) SetBalance(asset string, addr crypto.Address, amount *big.Int) error {
	m.balances[balanceKey(asset, addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *MemStore) Supply(asset string) (*big.Int, error) {
	if v, ok := m.supply[asset]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *MemStore) SetSupply(asset string, amount *big.Int) error {
	m.supply[asset] = new(big.Int).Set(amount)
	return nil
}
