package lockmgr

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/lstore"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

var start = time.Unix(1700000000, 0)

// faultyStore wraps a store and injects errors. Embedding only store.IStore
// hides the Create method of the wrapped store.
type faultyStore struct {
	store.IStore

	mu        sync.Mutex
	readErr   error
	writeErr  error
	deleteErr error
	onWrite   func() // called once before the next write
}

func (s *faultyStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.readErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.IStore.Read(ctx, key)
}

func (s *faultyStore) Write(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	err, hook := s.writeErr, s.onWrite
	s.onWrite = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	return s.IStore.Write(ctx, key, value)
}

func (s *faultyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.IStore.Delete(ctx, key)
}

type creatorStore interface {
	store.IStore
	store.ICreator
}

// racingStore runs beforeCreate once before the next Create, and can pretend
// that Create is unsupported.
type racingStore struct {
	creatorStore
	beforeCreate func()
	unsupported  bool
	creates      int
}

func (s *racingStore) Create(ctx context.Context, key string, value []byte) (bool, error) {
	s.creates++
	if s.unsupported {
		return false, store.NewError(store.RetCUnsupportedOperation, "create not supported")
	}
	if f := s.beforeCreate; f != nil {
		s.beforeCreate = nil
		f()
	}
	return s.creatorStore.Create(ctx, key, value)
}

type env struct {
	ctx   context.Context
	clock *FakeClock
	store *faultyStore
	mgr   ILockManager
}

func newEnv(opts ...Option) *env {
	s := &faultyStore{IStore: lstore.NewLocalStore()}
	return &env{
		ctx:   context.Background(),
		clock: NewFakeClock(start),
		store: s,
		mgr:   NewLockManager(s, opts...),
	}
}

func (e *env) handle(name string, opts ...HandleOption) *Handle {
	return NewHandle(name, append([]HandleOption{WithClock(e.clock)}, opts...)...)
}

func (e *env) record(t *testing.T, name string) (Record, bool) {
	t.Helper()
	data, err := e.store.IStore.Read(e.ctx, StorageKey(name))
	if store.IsNotFound(err) {
		return Record{}, false
	}
	if err != nil {
		t.Fatalf("failed to read record: %v", err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	return rec, true
}

func (e *env) writeRaw(t *testing.T, name string, data string) {
	t.Helper()
	if err := e.store.IStore.Write(e.ctx, StorageKey(name), []byte(data)); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}
}

func mustExist(t *testing.T, e *env, h *Handle, want bool) {
	t.Helper()
	got, err := e.mgr.Exists(e.ctx, h)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if got != want {
		t.Fatalf("Exists(%s) = %v, want %v", h.Name(), got, want)
	}
}

func mustAcquire(t *testing.T, e *env, h *Handle) {
	t.Helper()
	if err := e.mgr.Acquire(e.ctx, h); err != nil {
		t.Fatalf("Acquire(%s) failed: %v", h.Name(), err)
	}
}

// --------------------------------------------------------------------------
// Acquire
// --------------------------------------------------------------------------

func TestAcquireFresh(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(30*time.Second))

	mustAcquire(t, e, h)
	mustExist(t, e, h, true)

	rec, ok := e.record(t, "job")
	if !ok {
		t.Fatalf("expected a record after acquire")
	}
	token, _ := h.Token()
	if rec.Token == nil || *rec.Token != token {
		t.Errorf("expected record token %q, got %v", token, rec.Token)
	}
	if at, ok := rec.ExpiresAt(); !ok || !at.Equal(start.Add(30*time.Second)) {
		t.Errorf("expected expiry at now+30s, got %v (%v)", at, ok)
	}
}

func TestAcquireConflict(t *testing.T) {
	e := newEnv()
	h1 := e.handle("job", WithTTL(30*time.Second))
	h2 := e.handle("job", WithTTL(30*time.Second))

	mustAcquire(t, e, h1)

	if err := e.mgr.Acquire(e.ctx, h2); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	mustExist(t, e, h1, true)
	mustExist(t, e, h2, false)
}

func TestAcquireReentrant(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(30*time.Second))
	mustAcquire(t, e, h)
	before, _ := e.record(t, "job")

	e.clock.Advance(10 * time.Second)
	mustAcquire(t, e, h)

	after, _ := e.record(t, "job")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("re-acquire changed the record: %+v -> %+v", before, after)
	}
}

func TestAcquireAfterExpiration(t *testing.T) {
	e := newEnv()
	h1 := e.handle("job", WithTTL(time.Second))
	h2 := e.handle("job")

	mustAcquire(t, e, h1)

	// expiry is at-or-before now
	e.clock.Advance(time.Second)
	mustExist(t, e, h1, false)

	mustAcquire(t, e, h2)
	mustExist(t, e, h2, true)

	rec, _ := e.record(t, "job")
	if rec.Expire != nil {
		t.Errorf("expected no expire for a handle without ttl, got %v", *rec.Expire)
	}
}

func TestAcquireRecordWithoutToken(t *testing.T) {
	e := newEnv()
	e.writeRaw(t, "job", `{"token":null}`)

	if err := e.mgr.Acquire(e.ctx, e.handle("job")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected a record without expire to be held, got %v", err)
	}
}

func TestAcquireExpiredDuringWrite(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(time.Second))
	e.store.onWrite = func() { e.clock.Advance(2 * time.Second) }

	if err := e.mgr.Acquire(e.ctx, h); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok := e.record(t, "job"); !ok {
		t.Errorf("expected the record to be written anyway")
	}
}

func TestAcquireUsesRemainingLifetime(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(10*time.Second))
	h.ReduceLifetime(time.Second)

	mustAcquire(t, e, h)

	rec, _ := e.record(t, "job")
	if at, ok := rec.ExpiresAt(); !ok || !at.Equal(start.Add(time.Second)) {
		t.Errorf("expected expiry at now+1s, got %v (%v)", at, ok)
	}
	if remaining, _ := h.RemainingLifetime(); remaining != time.Second {
		t.Errorf("expected the remaining lifetime to stay 1s, got %v", remaining)
	}
}

func TestAcquireLifetimeStartsOnWrite(t *testing.T) {
	e := newEnv()
	holder := e.handle("job", WithTTL(2*time.Second))
	waiter := e.handle("job", WithTTL(2*time.Second))
	mustAcquire(t, e, holder)

	if err := e.mgr.Acquire(e.ctx, waiter); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, ok := waiter.RemainingLifetime(); ok {
		t.Fatalf("a conflicting attempt must not start the lifetime")
	}

	e.clock.Advance(3 * time.Second)
	mustAcquire(t, e, waiter)

	rec, _ := e.record(t, "job")
	if at, _ := rec.ExpiresAt(); !at.Equal(start.Add(5 * time.Second)) {
		t.Errorf("expected expiry at now+2s, got %v", at)
	}
}

func TestExpiredHandleCannotAcquire(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(time.Minute))
	mustAcquire(t, e, h)

	e.store.onWrite = func() { e.clock.Advance(2 * time.Second) }
	if err := e.mgr.Renew(e.ctx, h, time.Second); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired from Renew, got %v", err)
	}
	e.store.onWrite = nil

	before, _ := e.record(t, "job")
	if err := e.mgr.Acquire(e.ctx, h); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired from Acquire, got %v", err)
	}
	if !h.IsExpired() {
		t.Errorf("Acquire must not revive an expired handle")
	}
	if after, _ := e.record(t, "job"); !reflect.DeepEqual(before, after) {
		t.Errorf("Acquire of an expired handle changed the record: %+v -> %+v", before, after)
	}

	// another handle takes over once the record expires
	e.clock.Advance(time.Second)
	mustAcquire(t, e, e.handle("job"))
}

func TestAcquireStorageErrors(t *testing.T) {
	backendErr := store.NewError(store.RetCInternalError, "disk on fire")

	tests := []struct {
		name   string
		inject func(s *faultyStore)
	}{
		{name: "read", inject: func(s *faultyStore) { s.readErr = backendErr }},
		{name: "write", inject: func(s *faultyStore) { s.writeErr = backendErr }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			tt.inject(e.store)

			err := e.mgr.Acquire(e.ctx, e.handle("job"))
			if !errors.Is(err, ErrStorage) {
				t.Fatalf("expected ErrStorage, got %v", err)
			}
			var se *store.Error
			if !errors.As(err, &se) || se.Code != store.RetCInternalError {
				t.Errorf("expected the store error to be wrapped, got %v", err)
			}
		})
	}
}

func TestMalformedRecord(t *testing.T) {
	e := newEnv()
	e.writeRaw(t, "job", "garbage")
	h := e.handle("job")

	if err := e.mgr.Acquire(e.ctx, h); !errors.Is(err, ErrStorage) {
		t.Errorf("Acquire: expected ErrStorage, got %v", err)
	}
	if _, err := e.mgr.Exists(e.ctx, h); !errors.Is(err, ErrStorage) {
		t.Errorf("Exists: expected ErrStorage, got %v", err)
	}
	if err := e.mgr.Renew(e.ctx, h, time.Second); !errors.Is(err, ErrStorage) {
		t.Errorf("Renew: expected ErrStorage, got %v", err)
	}
	if err := e.mgr.Release(e.ctx, h); err != nil {
		t.Errorf("Release: expected a malformed record to be deleted, got %v", err)
	}
}

func TestAcquireRace(t *testing.T) {
	e := newEnv()
	h1 := e.handle("job")
	h2 := e.handle("job")

	// h2 writes between the read and the write of h1, the last write wins
	e.store.onWrite = func() { mustAcquire(t, e, h2) }
	mustAcquire(t, e, h1)

	mustExist(t, e, h1, true)
	mustExist(t, e, h2, false)
}

// --------------------------------------------------------------------------
// Atomic create
// --------------------------------------------------------------------------

func newRacingEnv(opts ...Option) (*env, *racingStore) {
	rs := &racingStore{creatorStore: lstore.NewLocalStore().(creatorStore)}
	e := &env{
		ctx:   context.Background(),
		clock: NewFakeClock(start),
		store: &faultyStore{IStore: rs},
		mgr:   NewLockManager(rs, opts...),
	}
	return e, rs
}

func TestAtomicCreateLostRace(t *testing.T) {
	e, rs := newRacingEnv(WithAtomicCreate())
	h1 := e.handle("job")
	h2 := e.handle("job")

	rs.beforeCreate = func() { mustAcquire(t, e, h2) }

	if err := e.mgr.Acquire(e.ctx, h1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for the lost race, got %v", err)
	}
	mustExist(t, e, h2, true)
	mustExist(t, e, h1, false)
}

func TestAtomicCreateOnlyForAbsentRecords(t *testing.T) {
	e, rs := newRacingEnv(WithAtomicCreate())
	h1 := e.handle("job", WithTTL(time.Second))
	h2 := e.handle("job")

	mustAcquire(t, e, h1)
	if rs.creates != 1 {
		t.Fatalf("expected create for the absent record, got %d creates", rs.creates)
	}

	// the expired record is overwritten with a plain write
	e.clock.Advance(2 * time.Second)
	mustAcquire(t, e, h2)
	if rs.creates != 1 {
		t.Errorf("expected no create for an expired record, got %d creates", rs.creates)
	}
	mustExist(t, e, h2, true)
}

func TestAtomicCreateUnsupported(t *testing.T) {
	e, rs := newRacingEnv(WithAtomicCreate())
	rs.unsupported = true
	h := e.handle("job")

	mustAcquire(t, e, h)
	mustExist(t, e, h, true)
}

func TestAtomicCreateDisabledByDefault(t *testing.T) {
	e, rs := newRacingEnv()
	mustAcquire(t, e, e.handle("job"))
	if rs.creates != 0 {
		t.Errorf("expected plain writes without WithAtomicCreate, got %d creates", rs.creates)
	}
}

// --------------------------------------------------------------------------
// WaitAndAcquire
// --------------------------------------------------------------------------

func TestWaitAndAcquire(t *testing.T) {
	e := newEnv(WithRetryInterval(5 * time.Millisecond))
	h1 := e.handle("job")
	h2 := e.handle("job")
	mustAcquire(t, e, h1)

	done := make(chan error, 1)
	go func() { done <- e.mgr.WaitAndAcquire(e.ctx, h2) }()

	time.Sleep(20 * time.Millisecond)
	if err := e.mgr.Release(e.ctx, h1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitAndAcquire failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("WaitAndAcquire did not return after release")
	}
	mustExist(t, e, h2, true)
}

func TestWaitAndAcquireCanceled(t *testing.T) {
	e := newEnv(WithRetryInterval(5 * time.Millisecond))
	mustAcquire(t, e, e.handle("job"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := e.mgr.WaitAndAcquire(ctx, e.handle("job")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestWaitAndAcquirePropagatesErrors(t *testing.T) {
	e := newEnv(WithRetryInterval(time.Hour))
	e.store.readErr = store.NewError(store.RetCInternalError, "unreachable")

	if err := e.mgr.WaitAndAcquire(e.ctx, e.handle("job")); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Renew
// --------------------------------------------------------------------------

func TestRenew(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(10*time.Second))
	mustAcquire(t, e, h)

	e.clock.Advance(5 * time.Second)
	h.ResetLifetime()
	if err := e.mgr.Renew(e.ctx, h, 30*time.Second); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}

	rec, _ := e.record(t, "job")
	if at, _ := rec.ExpiresAt(); !at.Equal(start.Add(35 * time.Second)) {
		t.Errorf("expected expiry at now+30s, got %v", at)
	}

	e.clock.Advance(29 * time.Second)
	mustExist(t, e, h, true)
	e.clock.Advance(time.Second)
	mustExist(t, e, h, false)
}

func TestRenewReducesLifetime(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(time.Minute))
	mustAcquire(t, e, h)

	if err := e.mgr.Renew(e.ctx, h, 5*time.Second); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	if remaining, _ := h.RemainingLifetime(); remaining != 5*time.Second {
		t.Errorf("expected remaining lifetime 5s, got %v", remaining)
	}
}

func TestRenewExpiredDuringWrite(t *testing.T) {
	e := newEnv()
	h := e.handle("job", WithTTL(time.Minute))
	mustAcquire(t, e, h)

	e.store.onWrite = func() { e.clock.Advance(2 * time.Second) }
	if err := e.mgr.Renew(e.ctx, h, time.Second); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRenewWithoutRecord(t *testing.T) {
	e := newEnv()
	if err := e.mgr.Renew(e.ctx, e.handle("job"), time.Second); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if _, ok := e.record(t, "job"); ok {
		t.Errorf("Renew must not create a record")
	}
}

func TestRenewInvalidTTL(t *testing.T) {
	e := newEnv()
	h := e.handle("job")
	mustAcquire(t, e, h)

	for _, ttl := range []time.Duration{0, -time.Second} {
		if err := e.mgr.Renew(e.ctx, h, ttl); !errors.Is(err, ErrInvalidTTL) {
			t.Errorf("Renew(%v): expected ErrInvalidTTL, got %v", ttl, err)
		}
	}
}

func TestRenewKeepsForeignToken(t *testing.T) {
	e := newEnv()
	owner := e.handle("job", WithTTL(time.Second))
	other := e.handle("job")
	mustAcquire(t, e, owner)

	// renew does not check the token, it extends whatever record exists
	if err := e.mgr.Renew(e.ctx, other, time.Minute); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}

	e.clock.Advance(30 * time.Second)
	mustExist(t, e, owner, true)
	mustExist(t, e, other, false)
}

// --------------------------------------------------------------------------
// Release
// --------------------------------------------------------------------------

func TestReleaseIdempotent(t *testing.T) {
	e := newEnv()
	h := e.handle("job")
	mustAcquire(t, e, h)

	for i := 0; i < 2; i++ {
		if err := e.mgr.Release(e.ctx, h); err != nil {
			t.Fatalf("Release #%d failed: %v", i+1, err)
		}
	}
	mustExist(t, e, h, false)
}

func TestReleaseForeignLock(t *testing.T) {
	e := newEnv()
	owner := e.handle("job")
	mustAcquire(t, e, owner)

	if err := e.mgr.Release(e.ctx, e.handle("job")); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	mustExist(t, e, owner, false)
}

func TestReleaseStorageError(t *testing.T) {
	e := newEnv()
	e.store.deleteErr = store.NewError(store.RetCInternalError, "permission denied")

	err := e.mgr.Release(e.ctx, e.handle("job"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

func TestScenarioExpiringLock(t *testing.T) {
	e := newEnv()
	a := e.handle("job-42", WithTTL(2*time.Second))
	b := e.handle("job-42", WithTTL(2*time.Second))

	mustAcquire(t, e, a)
	mustExist(t, e, a, true)

	if err := e.mgr.Acquire(e.ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for b, got %v", err)
	}

	e.clock.Advance(2100 * time.Millisecond)
	mustExist(t, e, a, false)

	mustAcquire(t, e, b)
	mustExist(t, e, b, true)
}

func TestScenarioLockWithoutTTL(t *testing.T) {
	e := newEnv()
	a := e.handle("res")
	mustAcquire(t, e, a)

	rec, _ := e.record(t, "res")
	if rec.Expire != nil {
		t.Fatalf("expected no expire field, got %v", *rec.Expire)
	}

	e.clock.Advance(365 * 24 * time.Hour)
	mustExist(t, e, a, true)

	if err := e.mgr.Release(e.ctx, a); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	mustExist(t, e, a, false)
}

func TestMetrics(t *testing.T) {
	e := newEnv()
	mustAcquire(t, e, e.handle("metrics"))

	c := metrics.GetOrCreateCounter(`dlock_ops_total{op="acquire",result="conflict"}`)
	before := c.Get()
	_ = e.mgr.Acquire(e.ctx, e.handle("metrics"))
	if c.Get() != before+1 {
		t.Errorf("expected conflict counter to increase, got %d -> %d", before, c.Get())
	}
}
