// Package bolt implements store.Store on a single bbolt file. Records are
// JSON values; every write runs in one bbolt update transaction.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cleared-dev/tillbook/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Bucket names.
const (
	BucketAccountTypes    = "account_types"
	BucketAccountSubTypes = "account_subtypes"
	BucketAccounts        = "accounts"
	BucketAccountCodes    = "account_codes" // code -> account id
	BucketJournals        = "journals"
	BucketJournalNumbers  = "journal_numbers" // number -> entry id
	BucketLines           = "lines"           // itob(seq) -> line
	BucketPostingKeys     = "posting_keys"
	BucketSequences       = "sequences"
	BucketPending         = "pending"
)

var allBuckets = []string{
	BucketAccountTypes, BucketAccountSubTypes, BucketAccounts, BucketAccountCodes,
	BucketJournals, BucketJournalNumbers, BucketLines, BucketPostingKeys,
	BucketSequences, BucketPending,
}

// Store is a bbolt-backed ledger store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the bbolt file at path. Call Migrate
// before use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, store.Transient(fmt.Errorf("opening database: %w", err))
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates any missing buckets.
func (s *Store) Migrate(_ context.Context) error {
	return s.update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) Ping(_ context.Context) error {
	return s.view(func(*bolt.Tx) error { return nil })
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	return mapErr(s.db.Update(fn))
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	return mapErr(s.db.View(fn))
}

func mapErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return store.ErrClosed
	}
	return err
}

// bucket returns the named bucket or an error if Migrate has not run.
func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", name)
	}
	return b, nil
}

func putJSON(b *bolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value: %w", err)
	}
	return b.Put(key, data)
}

// getJSON decodes the value at key. It reports false when the key is absent.
func getJSON(b *bolt.Bucket, key []byte, value any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, value); err != nil {
		return true, fmt.Errorf("unmarshaling %s: %w", key, err)
	}
	return true, nil
}

// forEachJSON decodes every value in b into a fresh T and calls fn.
func forEachJSON[T any](b *bolt.Bucket, fn func(key []byte, v T) error) error {
	return b.ForEach(func(k, data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshaling %x: %w", k, err)
		}
		return fn(k, v)
	})
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
