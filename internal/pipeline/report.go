package pipeline

import (
	"time"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/unify"
)

// SourceReport describes what one source contributed to a batch.
type SourceReport struct {
	Rows       int `json:"rows"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Report summarizes one unification run.
type Report struct {
	BatchID     string                           `json:"batch_id"`
	CreatedAt   time.Time                        `json:"created_at"`
	Sources     map[datanorm.Source]SourceReport `json:"sources"`
	SkippedRows int                              `json:"skipped_rows"`
	Profiles    int                              `json:"profiles"`
	Active      int                              `json:"active"`
	Churned     int                              `json:"churned"`
	Join        unify.Stats                      `json:"join"`
	ExportURI   string                           `json:"export_uri,omitempty"`
}

// ScoreResult is the output of scoring a stored snapshot.
type ScoreResult struct {
	BatchID   string                 `json:"batch_id"`
	Rules     scoring.RuleSet        `json:"rules"`
	Scored    []domain.ScoredProfile `json:"-"`
	Summary   scoring.Summary        `json:"summary"`
	ExportURI string                 `json:"export_uri,omitempty"`
}

// ActiveSegments returns the downstream email and segment pairs.
func (r *ScoreResult) ActiveSegments() []domain.SegmentAssignment {
	return scoring.ActiveSegments(r.Scored)
}

func newReport(snap domain.Snapshot, norm *datanorm.Result, stats unify.Stats) *Report {
	dups := map[datanorm.Source]int{
		datanorm.SourceSubscription: stats.DuplicateSubscriptions,
		datanorm.SourceEngagement:   stats.DuplicateEngagements,
		datanorm.SourceSupport:      stats.DuplicateSupports,
	}
	r := &Report{
		BatchID:     snap.BatchID,
		CreatedAt:   snap.CreatedAt,
		Sources:     make(map[datanorm.Source]SourceReport, len(datanorm.Sources)),
		SkippedRows: norm.SkippedRows(),
		Profiles:    len(snap.Profiles),
		Join:        stats,
	}
	for _, src := range datanorm.Sources {
		c := norm.Counts[src]
		r.Sources[src] = SourceReport{Rows: c.Rows, Skipped: c.Skipped, Duplicates: dups[src]}
	}
	for _, p := range snap.Profiles {
		if p.ChurnStatus == domain.ChurnChurned {
			r.Churned++
		} else {
			r.Active++
		}
	}
	return r
}
