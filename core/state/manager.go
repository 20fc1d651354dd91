package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stablechain/storage"
)

// Manager is a write journal over a storage.Database. Reads see the
// journal's own writes first; nothing reaches the database until Commit, and
// Discard drops every pending change.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	deleted map[string]struct{}
}

// NewManager opens an empty journal on db.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func hashedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, ok := m.deleted[k]; ok {
		return nil, false, nil
	}
	if v, ok := m.dirty[k]; ok {
		return v, true, nil
	}
	v, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (m *Manager) put(key, value []byte) {
	k := string(key)
	delete(m.deleted, k)
	m.dirty[k] = append([]byte(nil), value...)
}

func (m *Manager) remove(key []byte) {
	k := string(key)
	delete(m.dirty, k)
	m.deleted[k] = struct{}{}
}

// KVGet decodes the RLP value stored under the hashed key into out.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.get(ethcrypto.Keccak256(key))
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut RLP encodes value under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	return m.putRLP(ethcrypto.Keccak256(key), value)
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	m.put(key, encoded)
	return nil
}

// Pending reports the number of journaled writes and deletes.
func (m *Manager) Pending() int {
	return len(m.dirty) + len(m.deleted)
}

// Commit writes the journal as a single batch and resets it. Keys are
// applied in sorted order so identical transitions produce identical batches.
func (m *Manager) Commit() error {
	if m.Pending() == 0 {
		return nil
	}
	keys := make([]string, 0, m.Pending())
	for k := range m.dirty {
		keys = append(keys, k)
	}
	for k := range m.deleted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, k := range keys {
		if v, ok := m.dirty[k]; ok {
			batch.Put([]byte(k), v)
			continue
		}
		batch.Delete([]byte(k))
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.Discard()
	return nil
}

// Discard drops every pending change.
func (m *Manager) Discard() {
	m.dirty = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}
