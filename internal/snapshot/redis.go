package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/churn-radar/internal/domain"
)

const (
	keyPrefix = "churn:snapshot:"
	latestKey = "churn:snapshot:latest"
)

// RedisStore keeps snapshots as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func snapshotKey(batchID string) string {
	return keyPrefix + batchID
}

// Put stores the snapshot and points the latest marker at it in one
// transaction.
func (s *RedisStore) Put(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.BatchID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(snap.BatchID), data, s.ttl)
		pipe.Set(ctx, latestKey, snap.BatchID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.BatchID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, batchID string) (domain.Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("get snapshot %s: %w", batchID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", batchID, err)
	}
	return snap, nil
}

func (s *RedisStore) Latest(ctx context.Context) (domain.Snapshot, error) {
	id, err := s.client.Get(ctx, latestKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return s.Get(ctx, id)
}
