// Package memory implements the record store contract in process memory.
// It backs tests and the dev-mode server; semantics mirror the redis backend,
// including the bounded lock wait.
package memory

import (
	"context"
	"sync"
	"time"

	"melaknowma/internal/store"
)

// Store is an in-process store.Store. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	ids     map[string]bool
	holders map[string]chan struct{} // per-id lock; a held channel is occupied
	opts    store.LockOptions
}

// New creates an empty in-memory store with the given lock bounds.
func New(opts store.LockOptions) *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		ids:     make(map[string]bool),
		holders: make(map[string]chan struct{}),
		opts:    opts,
	}
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id], nil
}

func (s *Store) ReadAll(ctx context.Context, id string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[id]))
	for k, v := range s.hashes[id] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) WriteField(ctx context.Context, id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[id]
	if !ok {
		h = make(map[string]string)
		s.hashes[id] = h
	}
	h[field] = value
	return nil
}

func (s *Store) AddID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
	return nil
}

// WithLock serializes callers per id with the same bounded wait the redis
// backend enforces.
func (s *Store) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	ch, ok := s.holders[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.holders[id] = ch
	}
	s.mu.Unlock()

	wait := time.NewTimer(s.opts.Wait)
	defer wait.Stop()

	select {
	case ch <- struct{}{}:
	case <-wait.C:
		return store.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	return fn(ctx)
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
