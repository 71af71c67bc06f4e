// Package badger provides a Badger-backed persistent store. State snapshots
// land in one key per bucket, mirroring the SQL drivers' layout.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"sketchcore/internal/infra/persistence/memory"
	"sketchcore/pkg/sketch"
)

// Compile-time contract assertion.
var _ sketch.PersistentStore = (*Store)(nil)

// Options configures the Badger engine.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string
	// InMemory runs Badger without touching disk. Useful for tests.
	InMemory bool
	// SyncWrites forces fsync after each write.
	SyncWrites bool
}

// Store persists the in-memory state to a Badger database.
type Store struct {
	*memory.Store
	db *badgerdb.DB
	mu sync.Mutex
}

const (
	bucketSketches = "sketches"
	bucketRuns     = "runs"
)

func stateKey(bucket string) []byte { return []byte("state:" + bucket) }

// NewStore opens a Badger-backed store and hydrates it from any existing
// snapshot.
func NewStore(opts Options, checker *sketch.Checker) (*Store, error) {
	path := opts.Path
	if path == "" && !opts.InMemory {
		path = "sketchcore-badger"
	}
	badgerOpts := badgerdb.DefaultOptions(path).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := &Store{Store: memory.NewStore(checker), db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var snapshot memory.Snapshot
	loaded := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		for _, bucket := range []string{bucketSketches, bucketRuns} {
			item, err := txn.Get(stateKey(bucket))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", bucket, err)
			}
			var target any
			switch bucket {
			case bucketSketches:
				target = &snapshot.Sketches
			case bucketRuns:
				target = &snapshot.Runs
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, target)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", bucket, err)
			}
			loaded = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	payloads := map[string]any{
		bucketSketches: snapshot.Sketches,
		bucketRuns:     snapshot.Runs,
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, bucket := range []string{bucketSketches, bucketRuns} {
			data, err := json.Marshal(payloads[bucket])
			if err != nil {
				return fmt.Errorf("encode %s: %w", bucket, err)
			}
			if err := txn.Set(stateKey(bucket), data); err != nil {
				return fmt.Errorf("set %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// Badger if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx sketch.Transaction) error) (sketch.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
