// Package pipeline composes normalization, unification and scoring into
// batch operations. A unification produces a snapshot that is kept in a
// snapshot store so it can be scored any number of times, with different
// rule sets, without re-reading the sources.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/export"
	"github.com/ignite/churn-radar/internal/metrics"
	"github.com/ignite/churn-radar/internal/pkg/distlock"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/snapshot"
	"github.com/ignite/churn-radar/internal/source"
	"github.com/ignite/churn-radar/internal/unify"
)

// LatestBatch may be passed wherever a batch ID is expected to mean the
// most recently stored snapshot.
const LatestBatch = "latest"

// Pipeline stage names used in metrics.
const (
	stageLoad  = "load"
	stageUnify = "unify"
	stageScore = "score"
)

// Options wires a Service. Only Snapshots is required.
type Options struct {
	Normalizer *datanorm.Normalizer
	Unifier    *unify.Unifier
	Snapshots  snapshot.Store
	// Exporter, when set, receives unified.csv after each unification and
	// scored.csv plus scored_active.csv after each scoring.
	Exporter *export.Exporter
	Metrics  *metrics.Registry
	History  History // records every unify and score run
	// LoadLock guards LoadAndUnify so only one source pull runs at a time.
	LoadLock distlock.DistLock
	Now      func() time.Time
	NewID    func() string
}

// Service runs the churn pipeline. It is safe for concurrent use.
type Service struct {
	norm      *datanorm.Normalizer
	unifier   *unify.Unifier
	snapshots snapshot.Store
	exporter  *export.Exporter
	metrics   *metrics.Registry
	loadLock  distlock.DistLock
	history   History
	now       func() time.Time
	newID     func() string
}

// NewService fills unset options with defaults: exact email matching,
// the default fill policy and an in-memory snapshot store.
func NewService(opts Options) *Service {
	s := &Service{
		norm:      opts.Normalizer,
		unifier:   opts.Unifier,
		snapshots: opts.Snapshots,
		exporter:  opts.Exporter,
		metrics:   opts.Metrics,
		loadLock:  opts.LoadLock,
		history:   opts.History,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.norm == nil {
		s.norm = datanorm.NewNormalizer(datanorm.Options{})
	}
	if s.unifier == nil {
		s.unifier = unify.NewUnifier(unify.DefaultFillPolicy())
	}
	if s.snapshots == nil {
		s.snapshots = snapshot.NewMemoryStore(0)
	}
	if s.loadLock == nil {
		s.loadLock = distlock.NewLocalLock("churn:pipeline:load")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

func (s *Service) observe(stage string, started time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, started, err)
	}
}

// Unify normalizes and joins tables into a new snapshot, stores it and
// returns it with a report. A schema error in any table aborts the batch
// and nothing is stored.
func (s *Service) Unify(ctx context.Context, tables datanorm.Tables) (snap domain.Snapshot, report *Report, err error) {
	started := time.Now()
	defer func() { s.observe(stageUnify, started, err) }()

	norm, err := s.norm.Normalize(tables)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	profiles, stats := s.unifier.Unify(norm.Subscriptions, norm.Engagements, norm.Supports)

	snap = domain.Snapshot{
		BatchID:   s.newID(),
		CreatedAt: s.now().UTC(),
		Profiles:  profiles,
	}
	report = newReport(snap, norm, stats)

	// A stored batch, and so "latest", always has its unified.csv: export
	// first, then store, and discard the export if the store fails.
	if s.exporter != nil {
		uri, err := s.exporter.SaveUnified(ctx, snap)
		if err != nil {
			return domain.Snapshot{}, nil, fmt.Errorf("export unified: %w", err)
		}
		report.ExportURI = uri
	}
	if err := s.snapshots.Put(ctx, snap); err != nil {
		if s.exporter != nil {
			s.exporter.DiscardUnified(ctx, snap.BatchID)
		}
		return domain.Snapshot{}, nil, fmt.Errorf("store snapshot: %w", err)
	}
	s.recordUnify(report)
	s.record(ctx, stageUnify, snap.BatchID, report)

	logger.Info("batch unified",
		"batch_id", snap.BatchID,
		"profiles", report.Profiles,
		"active", report.Active,
		"churned", report.Churned,
		"skipped_rows", report.SkippedRows)
	if stats.EmptyIdentity > 0 {
		logger.Warn("rows without email dropped from join",
			"batch_id", snap.BatchID, "count", stats.EmptyIdentity)
	}
	for status, n := range stats.UnrecognizedStatuses {
		logger.Warn("unrecognized subscription status labelled Active",
			"batch_id", snap.BatchID, "status", status, "count", n)
	}
	return snap, report, nil
}

func (s *Service) recordUnify(r *Report) {
	if s.metrics == nil {
		return
	}
	for src, sr := range r.Sources {
		s.metrics.SourceRows(string(src), sr.Rows, sr.Skipped, sr.Duplicates)
	}
	s.metrics.Profiles(string(domain.ChurnActive), r.Active)
	s.metrics.Profiles(string(domain.ChurnChurned), r.Churned)
}

// LoadAndUnify pulls all three extracts from set and unifies them. Only
// one load runs at a time across processes sharing the lock backend;
// a concurrent call fails with distlock.ErrHeld.
func (s *Service) LoadAndUnify(ctx context.Context, set source.Set) (domain.Snapshot, *Report, error) {
	var (
		snap   domain.Snapshot
		report *Report
	)
	err := distlock.Do(ctx, s.loadLock, func(ctx context.Context) error {
		started := time.Now()
		tables, err := set.Load(ctx)
		s.observe(stageLoad, started, err)
		if err != nil {
			return err
		}
		snap, report, err = s.Unify(ctx, tables)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	return snap, report, nil
}

// Snapshot returns a stored snapshot. LatestBatch selects the most recent.
func (s *Service) Snapshot(ctx context.Context, batchID string) (domain.Snapshot, error) {
	if batchID == LatestBatch {
		return s.snapshots.Latest(ctx)
	}
	return s.snapshots.Get(ctx, batchID)
}

// Score applies rules to a stored snapshot and persists the outcome:
// exports, segment gauges and a history record. A nil rule set means the
// default rules. Rules are validated before any profile is scored.
func (s *Service) Score(ctx context.Context, batchID string, rules scoring.RuleSet) (res *ScoreResult, err error) {
	started := time.Now()
	defer func() { s.observe(stageScore, started, err) }()

	res, err = s.score(ctx, batchID, rules)
	if err != nil {
		return nil, err
	}
	if s.exporter != nil {
		uri, err := s.exporter.SaveScored(ctx, res.BatchID, res.Scored)
		if err != nil {
			return nil, fmt.Errorf("export scored: %w", err)
		}
		res.ExportURI = uri
	}
	if s.metrics != nil {
		for seg, n := range res.Summary.Segments {
			s.metrics.Segment(string(seg), n)
		}
	}
	s.record(ctx, stageScore, res.BatchID, res)

	logger.Info("batch scored",
		"batch_id", res.BatchID,
		"rules", len(res.Rules),
		"active", res.Summary.Count,
		"mean", res.Summary.Mean,
		"high", res.Summary.Segments[domain.RiskHigh])
	for _, p := range riskiest(res.Scored, riskiestLogged) {
		logger.Debug("high risk profile",
			"batch_id", res.BatchID,
			"email", p.Email,
			"customer_id", p.CustomerID,
			"score", p.ChurnRiskScore)
	}
	return res, nil
}

// riskiestLogged caps the per-profile debug lines of one scoring run.
const riskiestLogged = 10

// riskiest returns up to n High-segment profiles, highest score first.
func riskiest(scored []domain.ScoredProfile, n int) []domain.ScoredProfile {
	var high []domain.ScoredProfile
	for _, p := range scored {
		if p.ChurnRiskSegment == domain.RiskHigh {
			high = append(high, p)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		return high[i].ChurnRiskScore > high[j].ChurnRiskScore
	})
	if len(high) > n {
		high = high[:n]
	}
	return high
}

// Preview scores a stored snapshot like Score but writes nothing: no
// exports, no gauges and no history record. ExportURI is left empty.
func (s *Service) Preview(ctx context.Context, batchID string, rules scoring.RuleSet) (*ScoreResult, error) {
	return s.score(ctx, batchID, rules)
}

func (s *Service) score(ctx context.Context, batchID string, rules scoring.RuleSet) (*ScoreResult, error) {
	if rules == nil {
		rules = scoring.DefaultRuleSet()
	}
	snap, err := s.Snapshot(ctx, batchID)
	if err != nil {
		return nil, err
	}
	scored, err := scoring.ScoreSnapshot(snap, rules)
	if err != nil {
		return nil, err
	}
	return &ScoreResult{
		BatchID: snap.BatchID,
		Rules:   rules.Canonical(),
		Scored:  scored,
		Summary: scoring.Summarize(scored),
	}, nil
}

// Run unifies tables and scores the result in one call.
func (s *Service) Run(ctx context.Context, tables datanorm.Tables, rules scoring.RuleSet) (*Report, *ScoreResult, error) {
	snap, report, err := s.Unify(ctx, tables)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Score(ctx, snap.BatchID, rules)
	if err != nil {
		return report, nil, err
	}
	return report, res, nil
}
