package events

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// CursorStore checkpoints listener cursors between runs
type CursorStore interface {
	Load(key string) (uint64, bool, error)
	Save(key string, seq uint64) error
	Close() error
}

// CursorKey returns the store key of an event stream
func CursorKey(address, handle string) string {
	return "cursor/" + address + "/" + handle
}

// MemoryStore keeps cursors in memory
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]uint64
}

// NewMemoryStore creates an empty in-memory cursor store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]uint64)}
}

// Load returns the stored cursor for key
func (m *MemoryStore) Load(key string) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq, ok := m.cursors[key]
	return seq, ok, nil
}

// Save stores the cursor for key
func (m *MemoryStore) Save(key string, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[key] = seq
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// BadgerStore persists cursors in a Badger database
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens or creates a cursor database under path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithSyncWrites(true)
	opts = opts.WithCompression(options.None)
	opts = opts.WithNumMemtables(1)
	opts = opts.WithNumLevelZeroTables(1)
	opts = opts.WithNumLevelZeroTablesStall(2)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewInMemoryBadgerStore opens a Badger database that never touches disk
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns the stored cursor for key
func (s *BadgerStore) Load(key string) (uint64, bool, error) {
	var seq uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt cursor value of %d bytes", len(val))
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load cursor %s: %w", key, err)
	}
	return seq, true, nil
}

// Save stores the cursor for key
func (s *BadgerStore) Save(key string, seq uint64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, seq)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored cursor key
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("cursor/")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	return keys, nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// OpenStore returns a Badger store under dir, or a memory store when dir is empty
func OpenStore(dir string) (CursorStore, error) {
	if dir == "" {
		return NewMemoryStore(), nil
	}
	return NewBadgerStore(dir)
}
