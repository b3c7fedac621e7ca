package lockmgr

import "time"

// DefaultRetryInterval is the sleep between two attempts of WaitAndAcquire
const DefaultRetryInterval = time.Second

type options struct {
	retryInterval time.Duration
	atomicCreate  bool
}

// Option configures the lock manager
type Option func(*options)

// WithRetryInterval sets the sleep between two attempts of WaitAndAcquire.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithAtomicCreate makes Acquire use store.ICreator for absent records if the
// store supports it, closing the race between two first writers. Expired
// records are still overwritten with a plain write.
func WithAtomicCreate() Option {
	return func(o *options) {
		o.atomicCreate = true
	}
}
