// Package worker runs background jobs for the server process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/pkg/distlock"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/source"
)

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = 24 * time.Hour

// Runner is the part of the pipeline the scheduler drives.
type Runner interface {
	LoadAndUnify(ctx context.Context, set source.Set) (domain.Snapshot, *pipeline.Report, error)
	Score(ctx context.Context, batchID string, rules scoring.RuleSet) (*pipeline.ScoreResult, error)
}

// RuleResolver looks up a rule set by name. An empty name means the
// default rules.
type RuleResolver interface {
	Resolve(ctx context.Context, name string) (scoring.RuleSet, error)
}

// RefreshScheduler periodically pulls the configured sources, unifies
// them and scores the new snapshot. Replicas share the pipeline's load
// lock, so a tick that finds the lock held is skipped.
type RefreshScheduler struct {
	runner   Runner
	rules    RuleResolver
	sources  source.Set
	ruleSet  string
	interval time.Duration

	runs    int64
	skipped int64
	errors  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewRefreshScheduler creates a scheduler. interval <= 0 means daily.
func NewRefreshScheduler(runner Runner, rules RuleResolver, sources source.Set, ruleSet string, interval time.Duration) *RefreshScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshScheduler{
		runner:   runner,
		rules:    rules,
		sources:  sources,
		ruleSet:  ruleSet,
		interval: interval,
	}
}

// Start begins the refresh loop. The first run happens after one interval.
func (rs *RefreshScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return fmt.Errorf("refresh scheduler already running")
	}
	rs.running = true
	rs.ctx, rs.cancel = context.WithCancel(context.Background())

	logger.Info("refresh scheduler starting", "interval", rs.interval, "rule_set", rs.ruleSet)
	rs.wg.Add(1)
	go rs.loop()
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	rs.mu.Unlock()

	rs.cancel()
	rs.wg.Wait()
	logger.Info("refresh scheduler stopped",
		"runs", atomic.LoadInt64(&rs.runs),
		"skipped", atomic.LoadInt64(&rs.skipped),
		"errors", atomic.LoadInt64(&rs.errors))
}

func (rs *RefreshScheduler) loop() {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.ctx.Done():
			return
		case <-ticker.C:
			if err := rs.RunOnce(rs.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduled refresh failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single load, unify and score. A held load lock is
// not an error; the run is counted as skipped.
func (rs *RefreshScheduler) RunOnce(ctx context.Context) error {
	rules, err := rs.rules.Resolve(ctx, rs.ruleSet)
	if err != nil {
		atomic.AddInt64(&rs.errors, 1)
		return fmt.Errorf("resolve rule set %q: %w", rs.ruleSet, err)
	}

	snap, _, err := rs.runner.LoadAndUnify(ctx, rs.sources)
	if errors.Is(err, distlock.ErrHeld) {
		atomic.AddInt64(&rs.skipped, 1)
		logger.Info("scheduled refresh skipped, load in progress elsewhere")
		return nil
	}
	if err != nil {
		atomic.AddInt64(&rs.errors, 1)
		return fmt.Errorf("load: %w", err)
	}

	res, err := rs.runner.Score(ctx, snap.BatchID, rules)
	if err != nil {
		atomic.AddInt64(&rs.errors, 1)
		return fmt.Errorf("score %s: %w", snap.BatchID, err)
	}
	atomic.AddInt64(&rs.runs, 1)
	logger.Info("scheduled refresh complete",
		"batch_id", res.BatchID,
		"active", res.Summary.Count,
		"high", res.Summary.Segments[domain.RiskHigh])
	return nil
}

// Stats returns completed, skipped and failed run counts.
func (rs *RefreshScheduler) Stats() (runs, skipped, failed int64) {
	return atomic.LoadInt64(&rs.runs), atomic.LoadInt64(&rs.skipped), atomic.LoadInt64(&rs.errors)
}
