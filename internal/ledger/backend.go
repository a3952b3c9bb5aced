package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrCorruptValue = errors.New("corrupt storage value")

// ContractID is the 32-byte identifier assigned at deployment.
type ContractID [32]byte

func (id ContractID) Bytes() []byte { return id[:] }

func (id ContractID) Hex() string { return hex.EncodeToString(id[:]) }

// Backend stores small integers per contract. Update must be atomic with
// respect to other Updates.
type Backend interface {
	Get(id ContractID, key string) (uint32, bool, error)
	Update(id ContractID, key string, fn func(cur uint32, found bool) uint32) error
	// Reset drops every key of the contract.
	Reset(id ContractID) error
	Close() error
}

// MemoryBackend keeps everything in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	vals map[ContractID]map[string]uint32
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{vals: make(map[ContractID]map[string]uint32)}
}

func (b *MemoryBackend) Get(id ContractID, key string) (uint32, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vals[id][key]
	return v, ok, nil
}

func (b *MemoryBackend) Update(id ContractID, key string, fn func(uint32, bool) uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.vals[id]
	if !ok {
		m = make(map[string]uint32)
		b.vals[id] = m
	}
	cur, found := m[key]
	m[key] = fn(cur, found)
	return nil
}

func (b *MemoryBackend) Reset(id ContractID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vals, id)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// LevelBackend persists values in goleveldb under contractID||key, each
// value a 4-byte big-endian integer.
type LevelBackend struct {
	db *leveldb.DB
}

// OpenLevelBackend opens (or creates) a database directory.
func OpenLevelBackend(path string) (*LevelBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelBackend{db: db}, nil
}

// NewLevelBackendInMemory returns a LevelBackend over leveldb's memory storage.
func NewLevelBackendInMemory() (*LevelBackend, error) {
	return openLevelStorage(storage.NewMemStorage())
}

func openLevelStorage(stor storage.Storage) (*LevelBackend, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb storage: %w", err)
	}
	return &LevelBackend{db: db}, nil
}

func storageKey(id ContractID, key string) []byte {
	k := make([]byte, 0, len(id)+len(key))
	k = append(k, id[:]...)
	return append(k, key...)
}

func decodeValue(v []byte, err error) (uint32, bool, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(v) != 4 {
		return 0, false, fmt.Errorf("%w: %d bytes", ErrCorruptValue, len(v))
	}
	return binary.BigEndian.Uint32(v), true, nil
}

func (b *LevelBackend) Get(id ContractID, key string) (uint32, bool, error) {
	return decodeValue(b.db.Get(storageKey(id, key), nil))
}

// Update runs the read-modify-write inside a leveldb transaction, which
// blocks every other write until it commits or is discarded.
func (b *LevelBackend) Update(id ContractID, key string, fn func(uint32, bool) uint32) error {
	tr, err := b.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("open transaction: %w", err)
	}
	k := storageKey(id, key)
	cur, found, err := decodeValue(tr.Get(k, nil))
	if err != nil {
		tr.Discard()
		return fmt.Errorf("read %s: %w", key, err)
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], fn(cur, found))
	if err := tr.Put(k, buf[:], nil); err != nil {
		tr.Discard()
		return fmt.Errorf("write %s: %w", key, err)
	}
	// a failed commit keeps the write lock until the transaction is discarded
	if err := tr.Commit(); err != nil {
		tr.Discard()
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (b *LevelBackend) Reset(id ContractID) error {
	iter := b.db.NewIterator(util.BytesPrefix(id[:]), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("scan contract %s: %w", id.Hex(), err)
	}
	return b.db.Write(batch, nil)
}

func (b *LevelBackend) Close() error { return b.db.Close() }
