package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/pipeline"
	"github.com/ppiankov/industria/internal/store"
	"github.com/ppiankov/industria/internal/telemetry"
	"github.com/ppiankov/industria/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	runStore       string
	runDSN         string
	runFormat      string
	runInput       string
	runBatchSize   int
	runWorkers     int
	runMaxBatches  int
	runReport      string
	runMetricsAddr string
	runTimeout     time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Label every unlabeled item in the item store",
	Long: `Run pulls unlabeled items from the configured store in pages, scores
them with a bounded worker pool and writes the labels back.

Items with empty content are skipped and counted as errors. A failed
label write is counted and the run continues. A store that keeps failing
on fetch stops the run.

Example:
  industria run --store postgres --dsn "$DATABASE_URL"
  industria run --store sqlite --dsn ./data/news.db --workers 8 --report run.json
  industria run --store memory --input items.jsonl --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Store flags
	runCmd.Flags().StringVar(&runStore, "store", "", "item store driver (postgres, sqlite, memory)")
	runCmd.Flags().StringVar(&runDSN, "dsn", "", "store DSN or SQLite path")
	runCmd.Flags().StringVar(&runFormat, "content-format", "", "how item content is encoded (text, html, auto)")
	runCmd.Flags().StringVar(&runInput, "input", "", "JSON Lines file of items to load into a memory or sqlite store first")

	// Batch flags
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "items per fetched page (default from main_config.yaml)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "number of concurrent workers (default from main_config.yaml)")
	runCmd.Flags().IntVar(&runMaxBatches, "max-batches", -1, "stop after this many pages (0 = until drained)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "total timeout for the run (0 = none)")

	// Output flags
	runCmd.Flags().StringVar(&runReport, "report", "", "write the run report as JSON to this path")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	snap, main, err := a.loadRules(ctx)
	if err != nil {
		return err
	}

	applyRunFlags(&a.cfg, &main.Performance)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Industria Batch Run\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Rules:        %s (%d industries, version %s)\n", a.cfg.Rules.Dir, snap.Len(), snap.Version())
	fmt.Fprintf(os.Stderr, "  Store:        %s\n", a.cfg.Store.Driver)
	fmt.Fprintf(os.Stderr, "  Batch size:   %d\n", main.Performance.BatchSize)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", main.Performance.MaxWorkers)
	if main.Performance.MaxBatches > 0 {
		fmt.Fprintf(os.Stderr, "  Max batches:  %d\n", main.Performance.MaxBatches)
	}
	if main.Performance.CacheEnabled {
		fmt.Fprintf(os.Stderr, "  Cache:        %s\n", a.cfg.Cache.Backend)
	}
	fmt.Fprintf(os.Stderr, "\n")

	st, err := store.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if runInput != "" {
		n, err := seedStore(ctx, st, runInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Loaded %d items from %s\n", n, runInput)
	}

	dc, closeCache, err := a.decisionCache(main)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = closeCache() }()

	var metrics *telemetry.Metrics
	if a.cfg.Metrics.Addr != "" {
		metrics = telemetry.New(prometheus.NewRegistry())
		shutdown := serveMetrics(a.cfg.Metrics.Addr, metrics, a.logger)
		defer shutdown()
		fmt.Fprintf(os.Stderr, "✓ Serving metrics on %s/metrics\n", a.cfg.Metrics.Addr)
	}

	p, err := pipeline.NewPipeline(snap, pipeline.Options{
		Matching:    main.Matching,
		Performance: main.Performance,
		Store:       st,
		Cache:       dc,
		Limiter:     worker.NewLimiter(a.cfg.Store.WritesPerSecond, 1),
		Metrics:     metrics,
		Logger:      a.logger,

		ContentFormat: a.cfg.Store.ContentFormat,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Labeling items with %d workers...\n\n", main.Performance.MaxWorkers)
	report, runErr := p.Run(ctx)

	printRunSummary(report)

	if runReport != "" {
		if err := pipeline.WriteReport(report, runReport); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote report: %s\n\n", runReport)
	}

	return runErr
}

// applyRunFlags lets explicit flags override the loaded settings
func applyRunFlags(cfg *model.Config, perf *model.PerformanceConfig) {
	if runStore != "" {
		cfg.Store.Driver = runStore
	}
	if runDSN != "" {
		cfg.Store.DSN = runDSN
	}
	if runFormat != "" {
		cfg.Store.ContentFormat = runFormat
	}
	if runMetricsAddr != "" {
		cfg.Metrics.Addr = runMetricsAddr
	}
	if runBatchSize > 0 {
		perf.BatchSize = runBatchSize
	}
	if runWorkers > 0 {
		perf.MaxWorkers = runWorkers
	}
	if runMaxBatches >= 0 {
		perf.MaxBatches = runMaxBatches
	}
}

// seedStore loads a JSON Lines file into stores that accept inserts
func seedStore(ctx context.Context, st store.Store, path string) (int, error) {
	items, err := worker.ReadItemsFromFile(path)
	if err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}

	switch s := st.(type) {
	case *store.MemoryStore:
		s.Add(items...)
	case *store.SQLiteStore:
		if err := s.Insert(ctx, items...); err != nil {
			return 0, err
		}
	default:
		return 0, errors.New("--input works only with the memory and sqlite stores")
	}
	return len(items), nil
}

func serveMetrics(addr string, metrics *telemetry.Metrics, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.String("addr", addr), logging.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printRunSummary(report *model.RunReport) {
	s := report.Stats

	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Run Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Processed:  %d items in %d batches\n", s.Processed, s.Batches)
	fmt.Fprintf(os.Stderr, "  Labeled:    %d\n", s.Labeled)
	fmt.Fprintf(os.Stderr, "  Written:    %d\n", s.Written)
	fmt.Fprintf(os.Stderr, "  Errors:     %d\n", s.Errors)
	fmt.Fprintf(os.Stderr, "  Cache hits: %d\n", s.CacheHits)
	fmt.Fprintf(os.Stderr, "  Duration:   %v\n", s.Duration.Round(time.Millisecond))

	if len(report.LabelCounts) > 0 {
		ids := make([]string, 0, len(report.LabelCounts))
		for id := range report.LabelCounts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			ci, cj := report.LabelCounts[ids[i]], report.LabelCounts[ids[j]]
			if ci != cj {
				return ci > cj
			}
			return ids[i] < ids[j]
		})

		fmt.Fprintf(os.Stderr, "\n  Labels:\n")
		for _, id := range ids {
			fmt.Fprintf(os.Stderr, "    %-28s %d\n", id, report.LabelCounts[id])
		}
	}
	fmt.Fprintf(os.Stderr, "\n")
}
