package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	bolt "go.etcd.io/bbolt"
)

const (
	defaultOpenTimeout = 5 * time.Second
)

var bucketName = []byte("locks")

// Store is a store.IStore backed by a single bbolt database file.
// It must be closed to release the file lock held by bbolt.
type Store struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
// bbolt holds an exclusive lock on the file, so a second process opening the same
// path waits up to openTimeout (0 selects the default) and then fails.
func NewBoltStore(path string, openTimeout time.Duration) (*Store, error) {
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	// make sure the bucket exists, so reads never have to create it
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return store.NotFound(key)
		}
		// bolt values are only valid inside the transaction
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, wrap(err)
}

func (s *Store) Write(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	return wrap(err)
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) == nil {
			return store.NotFound(key)
		}
		return b.Delete([]byte(key))
	})
	return wrap(err)
}

func (s *Store) Create(_ context.Context, key string, value []byte) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, wrap(err)
	}
	return created, nil
}

// wrap converts bolt errors into store errors, passing store errors through
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*store.Error); ok {
		return err
	}
	return store.NewError(store.RetCInternalError, err.Error())
}
