// Package redis implements the record store contract over a shared Redis
// instance: one hash per record, a set of known record ids, and a SET NX
// lock per record id.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"melaknowma/internal/store"
)

const (
	keyIdentifiers = "melaknowma:image"
	keyRecord      = "melaknowma:image:"
	keyLock        = "melaknowma:lock:"
)

// releaseScript deletes the lock key only if it still holds our token, so an
// expired lock reacquired by someone else is never released out from under
// them.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Store is a store.Store backed by Redis.
type Store struct {
	client *redis.Client
	opts   store.LockOptions
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Lock     store.LockOptions
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping %s: %v", store.ErrUnavailable, opts.Addr, err)
	}
	lock := opts.Lock
	if lock.Wait == 0 {
		lock = store.DefaultLockOptions()
	}
	return &Store{client: client, opts: lock}, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, keyIdentifiers, id).Result()
	if err != nil {
		return false, wrap("sismember", err)
	}
	return ok, nil
}

func (s *Store) ReadAll(ctx context.Context, id string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, keyRecord+id).Result()
	if err != nil {
		return nil, wrap("hgetall", err)
	}
	return fields, nil
}

func (s *Store) WriteField(ctx context.Context, id, field, value string) error {
	if err := s.client.HSet(ctx, keyRecord+id, field, value).Err(); err != nil {
		return wrap("hset", err)
	}
	return nil
}

func (s *Store) AddID(ctx context.Context, id string) error {
	if err := s.client.SAdd(ctx, keyIdentifiers, id).Err(); err != nil {
		return wrap("sadd", err)
	}
	return nil
}

// WithLock takes the per-id lock with SET NX and a TTL, polling until the
// configured wait bound. The lock is released on every exit path; expiry
// covers the case where this process dies while holding it.
func (s *Store) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	key := keyLock + id
	token := uuid.NewString()
	deadline := time.Now().Add(s.opts.Wait)

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.opts.TTL).Result()
		if err != nil {
			return wrap("setnx", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return store.ErrLockTimeout
		}
		select {
		case <-time.After(s.opts.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, s.client, []string{key}, token).Err()
	}()

	return fn(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}
