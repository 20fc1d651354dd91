package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stablechain/config"
	"stablechain/crypto"
	"stablechain/native/stablecoin"
	"stablechain/native/stablecoin/oracle"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.DataDir = t.TempDir()
	cfg.Oracle.QuoteFile = filepath.Join(cfg.DataDir, "quote.json")
	return cfg
}

func TestOpenNodeFailureReleasesPartialNode(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Oracle.TrustedSigners = []string{"not-an-address"}

	require.NotPanics(t, func() {
		n, err := openNode(context.Background(), cfg, io.Discard, nil)
		require.Error(t, err)
		require.Nil(t, n)
	})

	var n *node
	require.NotPanics(t, n.Close)
}

func TestOpenNodeSharesClockWithOracle(t *testing.T) {
	cfg := memoryConfig(t)
	published := time.Unix(1_600_000_000, 0).UTC()
	clock := func() time.Time { return published.Add(time.Second) }
	require.NoError(t, oracle.WriteQuote(cfg.Oracle.QuoteFile, oracle.SignedQuote{
		FeedID:      stablecoin.DefaultPriceFeedID,
		Price:       200_000_000,
		Exponent:    -8,
		PublishTime: published.Unix(),
	}))

	n, err := openNode(context.Background(), cfg, io.Discard, clock)
	require.NoError(t, err)
	t.Cleanup(n.Close)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	operator := key.PubKey().Address()
	ctx := context.Background()

	receipt, err := n.proc.InitializeConfig(ctx, operator, stablecoin.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, clock().Unix(), receipt.Config.InitializedAt.Unix())

	_, err = n.proc.Faucet(ctx, "SOL", operator, 1_000_000_000)
	require.NoError(t, err)
	// The quote is years old by the wall clock; it is only fresh under the
	// injected one.
	_, err = n.proc.DepositCollateralAndMint(ctx, operator, 1_000_000_000, 500_000_000, "")
	require.NoError(t, err)
}
