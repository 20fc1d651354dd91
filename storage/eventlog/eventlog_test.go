package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stablechain/core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	require.NoError(t, store.Append(ctx, "r-1", "deposit", []*types.Event{
		{Type: "stablecoin.vault_deposited", Attributes: map[string]string{"owner": "stbl1alice", "minted": "100"}},
	}, at))
	require.NoError(t, store.Append(ctx, "r-2", "liquidate", []*types.Event{
		{Type: "stablecoin.vault_liquidated", Attributes: map[string]string{"owner": "stbl1alice", "seized": "55"}},
		nil,
	}, at.Add(time.Minute)))
	require.NoError(t, store.Append(ctx, "r-3", "deposit", []*types.Event{
		{Type: "stablecoin.vault_deposited", Attributes: map[string]string{"owner": "stbl1bob"}},
	}, at))

	alice, err := store.ByOwner(ctx, "stbl1alice", 0)
	require.NoError(t, err)
	require.Len(t, alice, 2)
	require.Equal(t, "r-2", alice[0].ReceiptID)
	require.Equal(t, "liquidate", alice[0].Operation)

	attrs, err := alice[0].Decode()
	require.NoError(t, err)
	require.Equal(t, "55", attrs["seized"])

	byReceipt, err := store.ByReceipt(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, byReceipt, 1)
	require.Equal(t, "stablecoin.vault_deposited", byReceipt[0].Type)
	require.True(t, byReceipt[0].RecordedAt.Equal(at))
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Append(context.Background(), "r-1", "faucet", nil, time.Now()))
	records, err := store.ByReceipt(context.Background(), "r-1")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
