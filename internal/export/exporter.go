package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/storage"
)

const csvContentType = "text/csv"

// Exporter saves rendered CSVs under batches/<batch id>/ in a store.
type Exporter struct {
	store storage.Store
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

type object struct {
	key  string
	body []byte
}

func unifiedKey(batchID string) string { return path.Join("batches", batchID, "unified.csv") }

func scoredKey(batchID string, activeOnly bool) string {
	name := "scored.csv"
	if activeOnly {
		name = "scored_active.csv"
	}
	return path.Join("batches", batchID, name)
}

// putAll writes every object or none: when a put fails, the objects
// already written are deleted again.
func (e *Exporter) putAll(ctx context.Context, objs []object) error {
	for i, o := range objs {
		if err := e.store.Put(ctx, o.key, o.body, csvContentType); err != nil {
			e.remove(ctx, objs[:i])
			return err
		}
	}
	return nil
}

func (e *Exporter) remove(ctx context.Context, objs []object) {
	for _, o := range objs {
		if err := e.store.Delete(ctx, o.key); err != nil {
			logger.Error("export rollback failed", "key", o.key, "error", err)
		}
	}
}

// SaveUnified writes unified.csv and returns its location.
func (e *Exporter) SaveUnified(ctx context.Context, snap domain.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := WriteUnifiedCSV(&buf, snap.Profiles); err != nil {
		return "", fmt.Errorf("render unified csv: %w", err)
	}
	key := unifiedKey(snap.BatchID)
	if err := e.putAll(ctx, []object{{key, buf.Bytes()}}); err != nil {
		return "", err
	}
	return e.store.URI(key), nil
}

// DiscardUnified removes unified.csv for a batch that was not committed.
func (e *Exporter) DiscardUnified(ctx context.Context, batchID string) {
	e.remove(ctx, []object{{key: unifiedKey(batchID)}})
}

// SaveScored writes scored.csv and scored_active.csv together and returns
// the location of the active export. Both are rendered before anything is
// written; a failed write leaves neither behind.
func (e *Exporter) SaveScored(ctx context.Context, batchID string, scored []domain.ScoredProfile) (string, error) {
	objs := make([]object, 0, 2)
	for _, activeOnly := range []bool{false, true} {
		var buf bytes.Buffer
		if err := WriteScoredCSV(&buf, scored, ScoredOptions{ActiveOnly: activeOnly}); err != nil {
			return "", fmt.Errorf("render scored csv: %w", err)
		}
		objs = append(objs, object{scoredKey(batchID, activeOnly), buf.Bytes()})
	}
	if err := e.putAll(ctx, objs); err != nil {
		return "", err
	}
	return e.store.URI(scoredKey(batchID, true)), nil
}
