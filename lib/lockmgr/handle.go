package lockmgr

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// tokenBytes is the amount of random bytes in an ownership token (256 bit)
const tokenBytes = 32

// Handle represents one acquisition attempt of a named lock.
// It carries the resource name, the requested ttl, the lazily created ownership
// token and the lifetime bookkeeping. A Handle is safe for concurrent use.
type Handle struct {
	name  string
	ttl   time.Duration
	clock Clock

	mu       sync.Mutex
	token    string
	expiring *time.Time // nil means the lifetime is unbounded
}

// HandleOption configures a Handle
type HandleOption func(*Handle)

// WithTTL sets the requested lifetime of the lock. It starts counting when the
// lock record is first written. A zero or negative ttl means the lock never
// expires on its own.
func WithTTL(ttl time.Duration) HandleOption {
	return func(h *Handle) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// WithToken restores the ownership token of a handle created earlier,
// e.g. in another process.
func WithToken(token string) HandleOption {
	return func(h *Handle) {
		h.token = token
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) HandleOption {
	return func(h *Handle) {
		h.clock = c
	}
}

// NewHandle creates a handle for the resource name.
func NewHandle(name string, opts ...HandleOption) *Handle {
	h := &Handle{
		name:  name,
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handle) Name() string { return h.name }

// TTL returns the requested lifetime, zero if the lock does not expire.
func (h *Handle) TTL() time.Duration { return h.ttl }

// StorageKey returns the key the lock record is stored under.
func (h *Handle) StorageKey() string { return StorageKey(h.name) }

// Now returns the current time of the handle's clock.
func (h *Handle) Now() time.Time { return h.clock.Now() }

// Token returns the ownership token, creating it on first use.
// Once created the token never changes.
func (h *Handle) Token() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.token == "" {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate lock token: %w", err)
		}
		h.token = base64.StdEncoding.EncodeToString(buf)
	}
	return h.token, nil
}

// ReduceLifetime shortens the remaining lifetime to at most ttl from now.
// A lifetime is never extended by this call.
func (h *Handle) ReduceLifetime(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.clock.Now().Add(ttl)
	if h.expiring == nil || t.Before(*h.expiring) {
		h.expiring = &t
	}
}

// startLifetime bounds an unbounded lifetime by the requested ttl.
// A lifetime that was already reduced is kept, so a spent handle stays expired.
func (h *Handle) startLifetime() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.expiring == nil && h.ttl > 0 {
		t := h.clock.Now().Add(h.ttl)
		h.expiring = &t
	}
}

// ResetLifetime makes the remaining lifetime unbounded again.
func (h *Handle) ResetLifetime() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expiring = nil
}

// RemainingLifetime returns the time left until the handle expires.
// ok is false if the lifetime is unbounded. The duration may be zero or negative.
func (h *Handle) RemainingLifetime() (remaining time.Duration, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.expiring == nil {
		return 0, false
	}
	return h.expiring.Sub(h.clock.Now()), true
}

// IsExpired reports whether the remaining lifetime is used up.
func (h *Handle) IsExpired() bool {
	remaining, ok := h.RemainingLifetime()
	return ok && remaining <= 0
}

func (h *Handle) String() string {
	return h.name
}
