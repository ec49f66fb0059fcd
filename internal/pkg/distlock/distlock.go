// Package distlock serializes work that must not overlap across server
// replicas, such as pulling a fresh batch from the warehouse.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/churn-radar/internal/pkg/logger"
)

var (
	// ErrHeld is returned by Do when another holder owns the lock.
	ErrHeld = errors.New("lock held by another process")
	// ErrLost means an expiring lock ran out or was taken over while held.
	ErrLost = errors.New("lock lost")
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock picks a backend: Redis when a client is given, then PostgreSQL
// advisory locks, then a process-local lock.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NewLocalLock(key)
	}
}

// Extender is a lock that expires unless renewed.
type Extender interface {
	DistLock
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// Do runs fn while holding lock. It does not wait: if the lock is taken,
// ErrHeld is returned and fn is not called.
//
// An Extender is renewed every third of its TTL until fn returns. If the
// lock is lost, fn's context is cancelled and Do returns an error wrapping
// ErrLost. A failed renewal that is not a loss is retried on the next tick.
func Do(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) error {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer lock.Release(context.WithoutCancel(ctx))

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if ext, ok := lock.(Extender); ok && ext.TTL() > 0 {
		stop := keepAlive(runCtx, ext, cancel)
		defer stop()
	}

	err = fn(runCtx)
	if cause := context.Cause(runCtx); errors.Is(cause, ErrLost) {
		if err == nil {
			return cause
		}
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}

func keepAlive(ctx context.Context, lock Extender, lost context.CancelCauseFunc) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(lock.TTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lock.Extend(ctx, lock.TTL())
				switch {
				case err == nil:
				case errors.Is(err, ErrLost):
					logger.Error("lock lost while held", "error", err)
					lost(err)
					return
				default:
					logger.Warn("lock renewal failed", "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// pg_try_advisory_lock is session-scoped, so the lock drops with the
// connection.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

var (
	localMu   sync.Mutex
	localHeld = map[string]bool{}
)

// LocalLock is a process-wide lock keyed by name, for single-binary runs.
type LocalLock struct {
	key  string
	held bool
}

func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	localMu.Lock()
	defer localMu.Unlock()
	if localHeld[l.key] {
		return false, nil
	}
	localHeld[l.key] = true
	l.held = true
	return true, nil
}

func (l *LocalLock) Release(_ context.Context) error {
	localMu.Lock()
	defer localMu.Unlock()
	if l.held {
		delete(localHeld, l.key)
		l.held = false
	}
	return nil
}
