package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ignite/churn-radar/internal/pkg/logger"
)

// RunRecord is one entry in the run history. Body holds the Report for
// unify runs and the ScoreResult for score runs.
type RunRecord struct {
	Stage     string          `json:"stage"`
	BatchID   string          `json:"batch_id"`
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"body"`
}

// History keeps a log of completed runs.
type History interface {
	Record(ctx context.Context, rec RunRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
}

// MemoryHistory is a bounded in-process History.
type MemoryHistory struct {
	mu      sync.Mutex
	records []RunRecord
	limit   int
}

// NewMemoryHistory keeps at most limit records; limit <= 0 means 100.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryHistory{limit: limit}
}

func (h *MemoryHistory) Record(_ context.Context, rec RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]RunRecord, error) {
	h.mu.Lock()
	out := make([]RunRecord, 0, len(h.records))
	for i := len(h.records) - 1; i >= 0; i-- {
		out = append(out, h.records[i])
	}
	h.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recent returns the run history, newest first. Without a configured
// history the result is empty.
func (s *Service) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// record appends to the history. Failures are logged and do not fail
// the run that produced them.
func (s *Service) record(ctx context.Context, stage, batchID string, body any) {
	if s.history == nil {
		return
	}
	data, err := json.Marshal(body)
	if err == nil {
		err = s.history.Record(ctx, RunRecord{
			Stage:     stage,
			BatchID:   batchID,
			CreatedAt: s.now().UTC(),
			Body:      data,
		})
	}
	if err != nil {
		logger.Warn("run history not recorded", "stage", stage, "batch_id", batchID, "error", err)
	}
}
