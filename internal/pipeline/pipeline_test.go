package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/industria/internal/cache"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/rules"
	"github.com/ppiankov/industria/internal/score"
	"github.com/ppiankov/industria/internal/store"
	"github.com/ppiankov/industria/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const tsmcNews = "台积电宣布其3nm制程技术取得重大突破"

func testDefinitions() []model.RuleSetDefinition {
	return []model.RuleSetDefinition{
		{
			ID:       "semiconductor",
			Name:     "半导体",
			Priority: 60,
			Layers: map[model.Layer]map[string][]string{
				model.LayerCore:      {"basics": {"芯片", "半导体"}},
				model.LayerTechnical: {"process": {"制程", "光刻"}},
				model.LayerEntities:  {"foundries": {"台积电"}},
			},
			HighValueKeywords: []string{"台积电"},
		},
		{
			ID:   "finance",
			Name: "金融",
			Layers: map[model.Layer]map[string][]string{
				model.LayerCore: {"banking": {"银行", "证券", "基金"}},
			},
			ExclusionKeywords: []string{"GDP"},
		},
	}
}

func testSnapshot(t *testing.T, defs []model.RuleSetDefinition) *rules.Snapshot {
	t.Helper()
	snap, err := rules.NewSnapshot(defs, model.DefaultLayerWeights())
	if err != nil {
		t.Fatalf("NewSnapshot error: %v", err)
	}
	return snap
}

func testPerformance() model.PerformanceConfig {
	perf := model.DefaultMainConfig().Performance
	perf.BatchSize = 2
	perf.MaxWorkers = 2
	return perf
}

func newTestPipeline(t *testing.T, st store.Store, opts Options) *Pipeline {
	t.Helper()
	opts.Store = st
	if opts.Matching.LayerWeights == nil {
		opts.Matching = model.DefaultMainConfig().Matching
	}
	if opts.Performance.BatchSize == 0 {
		opts.Performance = testPerformance()
	}
	opts.RetryDelay = time.Millisecond

	p, err := NewPipeline(testSnapshot(t, testDefinitions()), opts)
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p
}

func TestScoreContent(t *testing.T) {
	p := newTestPipeline(t, nil, Options{})

	labels := p.ScoreContent(tsmcNews)
	if len(labels) != 1 || labels[0].IndustryID != "semiconductor" {
		t.Fatalf("expected semiconductor label, got %+v", labels)
	}
	if labels[0].Score <= 0.3 || labels[0].LowConfidence {
		t.Errorf("expected high-confidence label, got %+v", labels[0])
	}

	if got := p.ScoreContent(""); len(got) != 0 {
		t.Errorf("empty content should produce no labels, got %+v", got)
	}

	if got := p.ScoreContent("银行 证券 基金 GDP"); len(got) != 0 {
		t.Errorf("exclusion term should veto finance, got %+v", got)
	}
}

func TestClassify_CacheIdempotent(t *testing.T) {
	dc := cache.NewDecisionCache(cache.NewMemoryCache(cache.NoTTL, 0), cache.NoTTL, nil)
	metrics := telemetry.New(nil)
	p := newTestPipeline(t, nil, Options{Cache: dc, Metrics: metrics})
	ctx := context.Background()

	cold, err := p.Classify(ctx, tsmcNews)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	// Same text after normalization
	warm, err := p.Classify(ctx, "  台积电宣布其3NM制程技术取得重大突破 ")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}

	if !reflect.DeepEqual(cold.LabelIDs(), warm.LabelIDs()) {
		t.Errorf("cold %v and warm %v label sets differ", cold.LabelIDs(), warm.LabelIDs())
	}
	if got := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(telemetry.CacheHit)); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}

// countingBooster counts engine evaluations through the booster
type countingBooster struct {
	calls *int32
}

func (b countingBooster) Boost(score.BoostInput) float64 {
	atomic.AddInt32(b.calls, 1)
	return 1.0
}

func TestReload_FlushesCacheAndSwapsRules(t *testing.T) {
	var calls int32
	dc := cache.NewDecisionCache(cache.NewMemoryCache(cache.NoTTL, 0), cache.NoTTL, nil)
	p := newTestPipeline(t, nil, Options{
		Cache:      dc,
		NewBooster: func(model.Parameters) score.ContextBooster { return countingBooster{calls: &calls} },
	})
	ctx := context.Background()

	if _, err := p.Classify(ctx, tsmcNews); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Classify(ctx, tsmcNews); err != nil {
		t.Fatal(err)
	}
	perEval := atomic.LoadInt32(&calls)
	if perEval == 0 {
		t.Fatal("expected the booster to run on the first evaluation")
	}

	defs := testDefinitions()
	defs[0].ExclusionKeywords = []string{"3nm"}
	oldVersion := p.Snapshot().Version()

	if err := p.Reload(ctx, testSnapshot(t, defs), p.Matching()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if p.Snapshot().Version() == oldVersion {
		t.Error("expected a new snapshot version after reload")
	}

	d, err := p.Classify(ctx, tsmcNews)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Labels) != 0 {
		t.Errorf("reloaded rules should veto semiconductor, got %v", d.LabelIDs())
	}
	if atomic.LoadInt32(&calls) != 2*perEval {
		t.Errorf("expected one fresh evaluation after reload, booster calls = %d", calls)
	}
}

func TestReload_RejectsInvalidMatching(t *testing.T) {
	p := newTestPipeline(t, nil, Options{})

	bad := p.Matching()
	bad.Thresholds.Low = 0.9
	err := p.Reload(context.Background(), p.Snapshot(), bad)

	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if p.Matching().Thresholds.Low != 0.15 {
		t.Error("failed reload must keep the previous state")
	}
}

func seededStore() *store.MemoryStore {
	st := store.NewMemoryStore(1, nil)
	st.Add(
		model.Item{ID: "001", Content: tsmcNews},
		model.Item{ID: "002", Content: "   "},
		model.Item{ID: "003", Content: "央行公布GDP数据"},
		model.Item{ID: "004", Content: "银行与证券公司推出新基金"},
		model.Item{ID: "005", Content: tsmcNews},
	)
	return st
}

func TestRunBatch(t *testing.T) {
	st := seededStore()
	dc := cache.NewDecisionCache(cache.NewMemoryCache(cache.NoTTL, 0), cache.NoTTL, nil)
	metrics := telemetry.New(nil)
	p := newTestPipeline(t, st, Options{Cache: dc, Metrics: metrics})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	stats := report.Stats
	if stats.Processed != 5 {
		t.Errorf("processed = %d, want 5", stats.Processed)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1 (blank item)", stats.Errors)
	}
	if stats.Labeled != 3 {
		t.Errorf("labeled = %d, want 3", stats.Labeled)
	}
	if stats.Written != 4 {
		t.Errorf("written = %d, want 4", stats.Written)
	}
	if stats.Batches != 3 {
		t.Errorf("batches = %d, want 3", stats.Batches)
	}
	if stats.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.CacheHits)
	}

	if labels, _ := st.Labels("001"); !reflect.DeepEqual(labels, []string{"semiconductor"}) {
		t.Errorf("item 001 labels = %v", labels)
	}
	if labels, ok := st.Labels("003"); !ok || len(labels) != 0 {
		t.Errorf("item 003 should be written with no labels, got %v (written=%v)", labels, ok)
	}
	if _, ok := st.Labels("002"); ok {
		t.Error("blank item must not be written")
	}

	if report.LabelCounts["semiconductor"] != 2 || report.LabelCounts["finance"] != 1 {
		t.Errorf("unexpected label counts %v", report.LabelCounts)
	}
	if len(report.Errors) != 1 || report.Errors[0].Kind != "content" || report.Errors[0].ItemID != "002" {
		t.Errorf("unexpected report errors %+v", report.Errors)
	}
	if got := testutil.ToFloat64(metrics.ItemErrors.WithLabelValues("content")); got != 1 {
		t.Errorf("content error metric = %v, want 1", got)
	}
}

func TestRunBatch_WriteFailureContinues(t *testing.T) {
	st := seededStore()
	st.FailWrites("001", -1)
	p := newTestPipeline(t, st, Options{})

	stats, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}
	if stats.Errors != 2 {
		t.Errorf("errors = %d, want 2 (blank item + failed write)", stats.Errors)
	}
	if _, ok := st.Labels("005"); !ok {
		t.Error("a failed write must not block other items")
	}
}

func TestRunBatch_FetchRetries(t *testing.T) {
	st := seededStore()
	st.FailFetches(2)
	p := newTestPipeline(t, st, Options{})

	stats, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}
	if stats.Processed != 5 {
		t.Errorf("processed = %d, want 5", stats.Processed)
	}
}

func TestRunBatch_FetchFailsRun(t *testing.T) {
	st := seededStore()
	st.FailFetches(10)
	p := newTestPipeline(t, st, Options{})

	_, err := p.RunBatch(context.Background())

	var storeErr *model.StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "fetch" {
		t.Fatalf("expected fetch StoreError, got %v", err)
	}
	// 1 attempt + 3 retries
	if st.Fetches() != 4 {
		t.Errorf("fetches = %d, want 4", st.Fetches())
	}
}

func TestRunBatch_MaxBatches(t *testing.T) {
	st := seededStore()
	perf := testPerformance()
	perf.MaxBatches = 1
	p := newTestPipeline(t, st, Options{Performance: perf})

	stats, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Batches != 1 || stats.Processed != 2 {
		t.Errorf("expected one batch of 2, got %+v", stats)
	}
}

func TestRunBatch_ManyItems(t *testing.T) {
	st := store.NewMemoryStore(1, nil)
	for i := 0; i < 250; i++ {
		st.Add(model.Item{ID: strconv.Itoa(1000 + i), Content: "芯片 半导体 " + strconv.Itoa(i)})
	}

	perf := testPerformance()
	perf.BatchSize = 100
	perf.MaxWorkers = 3
	p := newTestPipeline(t, st, Options{Performance: perf})

	stats, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 250 || stats.Errors != 0 || stats.Batches != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRunBatch_NoStore(t *testing.T) {
	p := newTestPipeline(t, nil, Options{})

	_, err := p.RunBatch(context.Background())
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestRunBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, seededStore(), Options{})
	_, err := p.RunBatch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	p := newTestPipeline(t, seededStore(), Options{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := WriteReport(report, path); err != nil {
		t.Fatalf("WriteReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	stats := decoded["stats"].(map[string]any)
	if stats["processed_count"].(float64) != 5 {
		t.Errorf("unexpected stats in report: %v", stats)
	}
	if decoded["snapshot_version"] != p.Snapshot().Version() {
		t.Errorf("report version %v != %s", decoded["snapshot_version"], p.Snapshot().Version())
	}
}
