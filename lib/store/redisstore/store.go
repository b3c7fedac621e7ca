package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	redis "github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 5 * time.Second

// Option configures a redis store.
type Option func(*storeImpl)

// WithTimeout bounds every redis call. Zero or negative disables the bound
// (the caller's context still applies).
func WithTimeout(d time.Duration) Option {
	return func(s *storeImpl) {
		s.timeout = d
	}
}

// WithKeyPrefix prepends prefix to every key, e.g. "dlock:".
func WithKeyPrefix(prefix string) Option {
	return func(s *storeImpl) {
		s.prefix = prefix
	}
}

type storeImpl struct {
	client  redis.UniversalClient
	timeout time.Duration
	prefix  string
}

// NewRedisStore creates a store keeping every record as a plain redis string.
// The client is owned by the caller.
func NewRedisStore(client redis.UniversalClient, opts ...Option) store.IStore {
	s := &storeImpl{
		client:  client,
		timeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *storeImpl) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.timeout)
}

func (s *storeImpl) key(key string) string {
	return s.prefix + key
}

func internalError(op, key string, err error) error {
	return store.NewError(store.RetCInternalError, fmt.Sprintf("redis %s %s: %v", op, key, err))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Read(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.NotFound(key)
	}
	if err != nil {
		return nil, internalError("GET", key, err)
	}
	return data, nil
}

func (s *storeImpl) Write(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return internalError("SET", key, err)
	}
	return nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return internalError("DEL", key, err)
	}
	if n == 0 {
		return store.NotFound(key)
	}
	return nil
}

func (s *storeImpl) Create(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	ok, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return false, internalError("SETNX", key, err)
	}
	return ok, nil
}
