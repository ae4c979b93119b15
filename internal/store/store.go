package store

import (
	"context"
	"errors"
	"time"
)

// Store is the contract the aggregation core has with the shared record store:
// per-record hash fields, a set of known record ids, and a per-id mutual
// exclusion lock. Everything round-trips through strings; typed access lives
// in internal/record. No multi-key transaction is assumed: callers must
// tolerate observing a partially-updated record between two field writes,
// which is why completion detection happens under WithLock rather than
// relying on write atomicity.
type Store interface {
	// Exists reports membership in the known-id set. Cheap existence probe
	// that avoids materializing the whole hash for unknown ids.
	Exists(ctx context.Context, id string) (bool, error)

	// ReadAll returns every stored field for the record, or an empty map if
	// the record has none.
	ReadAll(ctx context.Context, id string) (map[string]string, error)

	// WriteField overwrites a single field. Full overwrite, never an
	// increment, so redelivery of the same batch converges.
	WriteField(ctx context.Context, id, field, value string) error

	// AddID registers the record in the known-id set. Idempotent.
	AddID(ctx context.Context, id string) error

	// WithLock acquires the per-id lock, runs fn, and releases the lock on
	// every exit path. Acquisition waits a bounded time and fails with
	// ErrLockTimeout; fn's error is returned as-is.
	WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

var (
	// ErrLockTimeout means the per-record lock could not be acquired within
	// the bounded wait. Transient: the caller should surface it so the
	// upstream delivery system retries the whole notification.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrUnavailable means the store could not be reached. Transient and safe
	// to retry because every write is an idempotent full overwrite.
	ErrUnavailable = errors.New("record store unavailable")
)

// LockOptions bound the wait for and the lifetime of a per-record lock.
type LockOptions struct {
	// Wait is how long an acquirer polls before giving up with ErrLockTimeout.
	Wait time.Duration
	// TTL is the lock's expiry, so a crashed holder cannot starve a record
	// forever.
	TTL time.Duration
	// RetryInterval is the poll interval while waiting.
	RetryInterval time.Duration
}

// DefaultLockOptions returns the bounds used when the config does not
// override them. Lock scope is read+decide only, so both bounds stay short.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Wait:          2 * time.Second,
		TTL:           5 * time.Second,
		RetryInterval: 25 * time.Millisecond,
	}
}
