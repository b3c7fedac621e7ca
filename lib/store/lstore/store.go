package lstore

import (
	"context"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

type storeImpl struct {
	data *xsync.MapOf[string, []byte]
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works inside a single process.
func NewLocalStore() store.IStore {
	return &storeImpl{
		data: xsync.NewMapOf[string, []byte](),
	}
}

// clone copies a value so callers never share memory with the map.
func clone(value []byte) []byte {
	c := make([]byte, len(value))
	copy(c, value)
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Read(_ context.Context, key string) ([]byte, error) {
	val, ok := s.data.Load(key)
	if !ok {
		return nil, store.NotFound(key)
	}
	return clone(val), nil
}

func (s *storeImpl) Write(_ context.Context, key string, value []byte) error {
	s.data.Store(key, clone(value))
	return nil
}

func (s *storeImpl) Delete(_ context.Context, key string) error {
	if _, ok := s.data.LoadAndDelete(key); !ok {
		return store.NotFound(key)
	}
	return nil
}

func (s *storeImpl) Create(_ context.Context, key string, value []byte) (bool, error) {
	_, loaded := s.data.LoadOrStore(key, clone(value))
	return !loaded, nil
}

func (s *storeImpl) Size() (int, error) {
	return s.data.Size(), nil
}
