// Package pipeline ties the rules snapshot, the scoring engine, the
// decision cache and the item store into the labeling workflow.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ppiankov/industria/internal/cache"
	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/retry"
	"github.com/ppiankov/industria/internal/rules"
	"github.com/ppiankov/industria/internal/score"
	"github.com/ppiankov/industria/internal/store"
	"github.com/ppiankov/industria/internal/telemetry"
	"github.com/ppiankov/industria/internal/worker"
)

// maxReportedErrors bounds the per-item errors kept in a run report
const maxReportedErrors = 1000

// Options wires the collaborators of a Pipeline. Only Matching is
// required for scoring; RunBatch also needs Store.
type Options struct {
	Matching    model.MatchingConfig
	Performance model.PerformanceConfig

	Store   store.Store
	Cache   *cache.DecisionCache // nil disables caching
	Limiter *worker.Limiter      // nil means unlimited writes
	Metrics *telemetry.Metrics
	Logger  logging.Logger

	// NewBooster builds the context booster for a matching config. Nil
	// uses the rule-table booster.
	NewBooster func(model.Parameters) score.ContextBooster

	// RetryDelay is the first backoff step of batch fetch retries
	RetryDelay time.Duration

	// ContentFormat says how stored item content is encoded: text, html
	// or auto. Empty means text.
	ContentFormat string
}

// state is everything a batch pins for its lifetime
type state struct {
	snap     *rules.Snapshot
	engine   *score.Engine
	matching model.MatchingConfig
	cacheVer string
}

// Pipeline orchestrates scoring and batch labeling
type Pipeline struct {
	current atomic.Pointer[state]

	performance model.PerformanceConfig
	store       store.Store
	cache       *cache.DecisionCache
	limiter     *worker.Limiter
	metrics     *telemetry.Metrics
	logger      logging.Logger
	newBooster  func(model.Parameters) score.ContextBooster
	retryDelay  time.Duration
	format      string
}

// NewPipeline creates a pipeline serving snap
func NewPipeline(snap *rules.Snapshot, opts Options) (*Pipeline, error) {
	perf := opts.Performance
	defaults := model.DefaultMainConfig().Performance
	if perf.BatchSize <= 0 {
		perf.BatchSize = defaults.BatchSize
	}
	if perf.MaxWorkers <= 0 {
		perf.MaxWorkers = defaults.MaxWorkers
	}

	if err := validContentFormat(opts.ContentFormat); err != nil {
		return nil, err
	}

	newBooster := opts.NewBooster
	if newBooster == nil {
		newBooster = func(p model.Parameters) score.ContextBooster { return score.NewRuleBooster(p) }
	}

	p := &Pipeline{
		performance: perf,
		store:       opts.Store,
		cache:       opts.Cache,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		logger:      logging.OrNop(opts.Logger),
		newBooster:  newBooster,
		retryDelay:  opts.RetryDelay,
		format:      opts.ContentFormat,
	}
	if !perf.CacheEnabled {
		p.cache = nil
	}

	st, err := p.buildState(snap, opts.Matching)
	if err != nil {
		return nil, err
	}
	p.current.Store(st)
	return p, nil
}

func (p *Pipeline) buildState(snap *rules.Snapshot, matching model.MatchingConfig) (*state, error) {
	if snap == nil {
		return nil, &model.ConfigError{Source: "rules", Reason: "no rules snapshot"}
	}
	if err := matching.Validate(); err != nil {
		return nil, err
	}

	settings, err := json.Marshal(matching)
	if err != nil {
		return nil, fmt.Errorf("encode matching config: %w", err)
	}
	sum := sha256.Sum256(settings)

	return &state{
		snap:     snap,
		engine:   score.NewEngine(matching, p.newBooster(matching.Parameters)),
		matching: matching,
		cacheVer: snap.Version() + "-" + hex.EncodeToString(sum[:4]),
	}, nil
}

// Snapshot returns the rules snapshot currently in use
func (p *Pipeline) Snapshot() *rules.Snapshot {
	return p.current.Load().snap
}

// Matching returns the matching configuration currently in use
func (p *Pipeline) Matching() model.MatchingConfig {
	return p.current.Load().matching
}

// Reload swaps in a new snapshot and matching configuration and flushes
// the decision cache. Batches already running keep the state they pinned.
func (p *Pipeline) Reload(ctx context.Context, snap *rules.Snapshot, matching model.MatchingConfig) error {
	st, err := p.buildState(snap, matching)
	if err != nil {
		return err
	}

	prev := p.current.Swap(st)
	p.logger.Info("rules reloaded",
		logging.String("previous_version", prev.snap.Version()),
		logging.String("version", snap.Version()),
		logging.Int("industries", snap.Len()))

	if p.cache != nil {
		if err := p.cache.Flush(ctx); err != nil {
			return fmt.Errorf("flush cache after reload: %w", err)
		}
	}
	return nil
}

// Evaluate scores text without consulting the cache
func (p *Pipeline) Evaluate(text string) *model.Decision {
	st := p.current.Load()
	return st.engine.Evaluate(st.snap, text)
}

// ScoreContent returns the labels for text, best first
func (p *Pipeline) ScoreContent(text string) []model.Label {
	return p.Evaluate(text).Labels
}

// Classify returns the full decision for text, using the cache when one
// is configured
func (p *Pipeline) Classify(ctx context.Context, text string) (*model.Decision, error) {
	d, _, err := p.classify(ctx, p.current.Load(), text)
	return d, err
}

func (p *Pipeline) classify(ctx context.Context, st *state, text string) (*model.Decision, bool, error) {
	compute := func() (*model.Decision, error) {
		start := time.Now()
		d := st.engine.Evaluate(st.snap, text)
		if p.metrics != nil {
			p.metrics.ScoringDuration.Observe(time.Since(start).Seconds())
		}
		return d, nil
	}

	if p.cache == nil {
		d, err := compute()
		return d, false, err
	}

	key := cache.Fingerprint(st.cacheVer, rules.Normalize(text))
	d, hit, err := p.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, false, err
	}
	p.metrics.RecordCacheLookup(hit)
	return d, hit, nil
}

// RunBatch labels every unlabeled item in the store
func (p *Pipeline) RunBatch(ctx context.Context) (model.RunStats, error) {
	report, err := p.Run(ctx)
	return report.Stats, err
}

// Run labels every unlabeled item in the store, up to
// performance.max_batches pages, and returns the run report. The report
// is filled in even when the run fails part way.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	started := time.Now()
	initial := p.current.Load()
	report := &model.RunReport{
		StartedAt:       started.UTC(),
		SnapshotVersion: initial.snap.Version(),
		Industries:      initial.snap.IDs(),
		LabelCounts:     make(map[string]int),
	}
	if p.store == nil {
		return report, &model.ConfigError{Source: "store", Reason: "no item store configured"}
	}

	retryCfg := retry.WithAttempts(p.performance.RetryAttempts + 1)
	if p.retryDelay > 0 {
		retryCfg.InitialDelay = p.retryDelay
	}
	fetcher := NewFetcher(p.store, p.performance.BatchSize, retryCfg, p.logger)

	var runErr error
	for p.performance.MaxBatches == 0 || report.Stats.Batches < p.performance.MaxBatches {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		items, err := fetcher.Next(ctx)
		if err != nil {
			runErr = err
			break
		}
		if len(items) == 0 {
			break
		}

		// Every item of a batch sees the same rules
		st := p.current.Load()
		report.SnapshotVersion = st.snap.Version()
		report.Industries = st.snap.IDs()

		p.processBatch(ctx, st, items, report)

		if len(items) < fetcher.BatchSize() {
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.Stats.Duration = time.Since(started)

	p.logger.Info("batch run finished",
		logging.Int("processed", report.Stats.Processed),
		logging.Int("labeled", report.Stats.Labeled),
		logging.Int("errors", report.Stats.Errors),
		logging.Int("cache_hits", report.Stats.CacheHits),
		logging.Int("batches", report.Stats.Batches),
		logging.Duration("duration", report.Stats.Duration))

	if runErr != nil {
		return report, fmt.Errorf("batch run stopped after %d batches: %w", report.Stats.Batches, runErr)
	}
	return report, nil
}

func (p *Pipeline) processBatch(ctx context.Context, st *state, items []model.Item, report *model.RunReport) {
	p.metrics.RecordBatch(len(items))
	p.logger.Debug("processing batch",
		logging.Int("batch", report.Stats.Batches+1),
		logging.Int("items", len(items)),
		logging.String("first_id", items[0].ID))

	handler := &itemHandler{pipeline: p, state: st}
	results := worker.NewBatchProcessor(handler, p.performance.MaxWorkers).Process(ctx, items)

	var batch model.RunStats
	batch.Batches = 1
	for _, r := range results {
		batch.Processed++
		if r.CacheHit {
			batch.CacheHits++
		}

		if r.Error != nil {
			p.metrics.RecordItem(nil, 0)
			batch.Errors++
			kind := model.ErrorKind(r.Error)
			p.metrics.RecordError(kind)
			p.logger.Warn("item failed",
				logging.String("item_id", r.Item.ID),
				logging.String("kind", kind),
				logging.Error(r.Error))
			if len(report.Errors) < maxReportedErrors {
				report.Errors = append(report.Errors, model.ItemError{ItemID: r.Item.ID, Kind: kind, Error: r.Error.Error()})
			}
			continue
		}

		p.metrics.RecordItem(r.Labels, 0)
		if r.Written {
			batch.Written++
		}
		if len(r.Labels) > 0 {
			batch.Labeled++
		}
		for _, id := range r.Labels {
			report.LabelCounts[id]++
		}
	}

	report.Stats.Add(batch)
}

// itemHandler labels one item against a pinned state
type itemHandler struct {
	pipeline *Pipeline
	state    *state
}

func (h *itemHandler) HandleItem(ctx context.Context, item model.Item) *worker.ItemResult {
	p := h.pipeline
	res := &worker.ItemResult{Item: item}

	if err := item.Validate(); err != nil {
		res.Error = err
		return res
	}
	text, err := itemText(p.format, item)
	if err != nil {
		res.Error = err
		return res
	}

	decision, hit, err := p.classify(ctx, h.state, text)
	if err != nil {
		res.Error = err
		return res
	}
	res.CacheHit = hit
	res.Labels = decision.LabelIDs()

	if err := p.limiter.Wait(ctx, worker.OpWrite); err != nil {
		res.Error = &model.StoreError{Op: "write", ItemID: item.ID, Err: err}
		return res
	}
	if err := p.store.WriteLabels(ctx, item.ID, res.Labels); err != nil {
		var storeErr *model.StoreError
		if !errors.As(err, &storeErr) {
			err = &model.StoreError{Op: "write", ItemID: item.ID, Err: err}
		}
		res.Error = err
		return res
	}
	res.Written = true
	return res
}
