// Package snapshot caches unified snapshots so the scorer can be re-run
// against an earlier unification, from this process or another one.
// Entries expire; this is a cache, not a system of record.
package snapshot

import (
	"context"
	"errors"

	"github.com/ignite/churn-radar/internal/domain"
)

// ErrNotFound is returned when a batch is unknown or has expired.
var ErrNotFound = errors.New("snapshot not found")

// Store holds unified snapshots by batch ID.
type Store interface {
	Put(ctx context.Context, snap domain.Snapshot) error
	Get(ctx context.Context, batchID string) (domain.Snapshot, error)
	// Latest returns the most recently stored snapshot.
	Latest(ctx context.Context) (domain.Snapshot, error)
}
