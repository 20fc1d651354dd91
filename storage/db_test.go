package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	_, err = db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	require.Equal(t, 2, batch.Len())

	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound, "batch must not apply before Write")

	require.NoError(t, db.Write(batch))
	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), buf))
	buf[0] = 'x'
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "abc", string(value))
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestWriteRejectsForeignBatch(t *testing.T) {
	mem := NewMemDB()
	level, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer level.Close()
	require.Error(t, mem.Write(level.NewBatch()))
	require.Error(t, level.Write(mem.NewBatch()))
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	batch := db.NewBatch()
	batch.Put([]byte("vault"), []byte("v1"))
	require.NoError(t, db.Write(batch))
	db.Close()

	reopened, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	value, err := reopened.Get([]byte("vault"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)
}
