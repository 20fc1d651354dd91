package state

var (
	stateVersionKeyBytes    = []byte("state/version")
	stablecoinConfigKeyByte = []byte("stablecoin/config")
	vaultPrefix             = []byte("stablecoin/vault/")
	balancePrefix           = []byte("bank/balance/")
	supplyPrefix            = []byte("bank/supply/")
	quotaPrefix             = []byte("quota/")
)
