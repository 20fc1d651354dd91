package state

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"stablechain/crypto"
	nativecommon "stablechain/native/common"
	"stablechain/native/stablecoin"
)

type storedConfig struct {
	Authority                []byte
	MinHealthFactor          uint64
	MinHealthFactorFloor     uint64
	MinHealthFactorCeiling   uint64
	LiquidationBonusBps      uint64
	MaxPriceStalenessSeconds uint64
	MaxConfidenceBps         uint64
	PriceFeedID              string
	CollateralAsset          string
	StableAsset              string
	BonusPolicy              string
	PauseMint                bool
	PauseRedeem              bool
	PauseLiquidate           bool
	InitializedAt            uint64
	Version                  uint64
	LiquidationThresholdBps  uint64 `rlp:"optional"`
}

type storedVault struct {
	Owner      []byte
	Collateral uint64
	Debt       uint64
}

func vaultKey(owner crypto.Address) []byte {
	return hashedKey(vaultPrefix, owner.Bytes())
}

func balanceKey(asset string, addr crypto.Address) []byte {
	return hashedKey(balancePrefix, []byte(strings.ToUpper(asset)), []byte{'/'}, addr.Bytes())
}

func supplyKey(asset string) []byte {
	return hashedKey(supplyPrefix, []byte(strings.ToUpper(asset)))
}

func quotaKey(scope string, addr crypto.Address) []byte {
	return hashedKey(quotaPrefix, []byte(scope), []byte{'/'}, addr.Bytes())
}

// StablecoinConfig returns the protocol config or nil before initialisation.
func (m *Manager) StablecoinConfig() (*stablecoin.ProtocolConfig, error) {
	var stored storedConfig
	ok, err := m.KVGet(stablecoinConfigKeyByte, &stored)
	if err != nil || !ok {
		return nil, err
	}
	if len(stored.Authority) != crypto.AddressLength {
		return nil, fmt.Errorf("state: stablecoin config authority malformed")
	}
	threshold := stored.LiquidationThresholdBps
	if threshold == 0 {
		threshold = stablecoin.DefaultLiquidationThresholdBps
	}
	cfg := &stablecoin.ProtocolConfig{
		Authority:                crypto.NewAddress(crypto.AccountPrefix, stored.Authority),
		MinHealthFactor:          stored.MinHealthFactor,
		MinHealthFactorFloor:     stored.MinHealthFactorFloor,
		MinHealthFactorCeiling:   stored.MinHealthFactorCeiling,
		LiquidationBonusBps:      stored.LiquidationBonusBps,
		LiquidationThresholdBps:  threshold,
		MaxPriceStalenessSeconds: stored.MaxPriceStalenessSeconds,
		MaxConfidenceBps:         stored.MaxConfidenceBps,
		PriceFeedID:              stored.PriceFeedID,
		CollateralAsset:          stored.CollateralAsset,
		StableAsset:              stored.StableAsset,
		BonusPolicy:              stablecoin.BonusPolicy(stored.BonusPolicy),
		Pauses: stablecoin.Pauses{
			Mint:      stored.PauseMint,
			Redeem:    stored.PauseRedeem,
			Liquidate: stored.PauseLiquidate,
		},
		InitializedAt: time.Unix(int64(stored.InitializedAt), 0).UTC(),
		Version:       stored.Version,
	}
	return cfg, nil
}

// PutStablecoinConfig journals the protocol config.
func (m *Manager) PutStablecoinConfig(cfg stablecoin.ProtocolConfig) error {
	var initialised uint64
	if unix := cfg.InitializedAt.Unix(); unix > 0 {
		initialised = uint64(unix)
	}
	return m.KVPut(stablecoinConfigKeyByte, storedConfig{
		Authority:                cfg.Authority.Bytes(),
		MinHealthFactor:          cfg.MinHealthFactor,
		MinHealthFactorFloor:     cfg.MinHealthFactorFloor,
		MinHealthFactorCeiling:   cfg.MinHealthFactorCeiling,
		LiquidationBonusBps:      cfg.LiquidationBonusBps,
		MaxPriceStalenessSeconds: cfg.MaxPriceStalenessSeconds,
		MaxConfidenceBps:         cfg.MaxConfidenceBps,
		PriceFeedID:              cfg.PriceFeedID,
		CollateralAsset:          cfg.CollateralAsset,
		StableAsset:              cfg.StableAsset,
		BonusPolicy:              string(cfg.BonusPolicy),
		PauseMint:                cfg.Pauses.Mint,
		PauseRedeem:              cfg.Pauses.Redeem,
		PauseLiquidate:           cfg.Pauses.Liquidate,
		InitializedAt:            initialised,
		Version:                  cfg.Version,
		LiquidationThresholdBps:  cfg.LiquidationThresholdBps,
	})
}

// Vault loads the owner's vault.
func (m *Manager) Vault(owner crypto.Address) (stablecoin.Vault, bool, error) {
	var stored storedVault
	ok, err := m.getRLP(vaultKey(owner), &stored)
	if err != nil || !ok {
		return stablecoin.Vault{}, false, err
	}
	return stablecoin.Vault{Owner: owner, Collateral: stored.Collateral, Debt: stored.Debt}, true, nil
}

// PutVault journals vault under its owner.
func (m *Manager) PutVault(vault stablecoin.Vault) error {
	if vault.Owner.IsZero() {
		return fmt.Errorf("state: vault owner required")
	}
	return m.putRLP(vaultKey(vault.Owner), storedVault{
		Owner:      vault.Owner.Bytes(),
		Collateral: vault.Collateral,
		Debt:       vault.Debt,
	})
}

// DeleteVault removes the owner's vault record.
func (m *Manager) DeleteVault(owner crypto.Address) error {
	m.remove(vaultKey(owner))
	return nil
}

// Balance returns the asset balance held by addr, zero when unset.
func (m *Manager) Balance(asset string, addr crypto.Address) (*big.Int, error) {
	return m.loadAmount(balanceKey(asset, addr))
}

// SetBalance journals a balance. Zero balances are deleted.
func (m *Manager) SetBalance(asset string, addr crypto.Address, amount *big.Int) error {
	return m.storeAmount(balanceKey(asset, addr), amount)
}

// Supply returns the circulating supply of asset.
func (m *Manager) Supply(asset string) (*big.Int, error) {
	return m.loadAmount(supplyKey(asset))
}

func (m *Manager) SetSupply(asset string, amount *big.Int) error {
	return m.storeAmount(supplyKey(asset), amount)
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.getRLP(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		m.remove(key)
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount")
	}
	return m.putRLP(key, amount)
}

type storedQuota struct {
	Requests uint32
	Amount   uint64
	EpochID  uint64
}

// QuotaUsage returns the counters addr has consumed under scope.
func (m *Manager) QuotaUsage(scope string, addr crypto.Address) (nativecommon.QuotaUsage, error) {
	var stored storedQuota
	if _, err := m.getRLP(quotaKey(scope, addr), &stored); err != nil {
		return nativecommon.QuotaUsage{}, err
	}
	return nativecommon.QuotaUsage{Requests: stored.Requests, Amount: stored.Amount, EpochID: stored.EpochID}, nil
}

// PutQuotaUsage journals the counters for addr under scope.
func (m *Manager) PutQuotaUsage(scope string, addr crypto.Address, usage nativecommon.QuotaUsage) error {
	return m.putRLP(quotaKey(scope, addr), storedQuota{Requests: usage.Requests, Amount: usage.Amount, EpochID: usage.EpochID})
}

var _ stablecoin.EngineState = (*Manager)(nil)
