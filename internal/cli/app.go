package cli

import (
	"context"

	"github.com/ppiankov/industria/internal/cache"
	"github.com/ppiankov/industria/internal/config"
	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/pipeline"
	"github.com/ppiankov/industria/internal/rules"
)

// app carries what every command builds from the configuration
type app struct {
	cfg    model.Config
	logger logging.Logger
	loader *config.Loader
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		loader: config.NewLoader(cfg.Rules.Dir, logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// loadRules compiles the rules directory
func (a *app) loadRules(ctx context.Context) (*rules.Snapshot, model.MainConfig, error) {
	return a.loader.LoadSnapshot(ctx)
}

// decisionCache builds the configured cache backend. The closer is never nil.
func (a *app) decisionCache(main model.MainConfig) (*cache.DecisionCache, func() error, error) {
	if !main.Performance.CacheEnabled {
		return nil, func() error { return nil }, nil
	}

	backend, closer, err := cache.New(a.cfg.Cache, a.logger)
	if err != nil {
		return nil, closer, err
	}
	return cache.NewDecisionCache(backend, a.cfg.Cache.TTL, a.logger), closer, nil
}

// newScoringPipeline wires a pipeline without a store. The closer is never nil.
func (a *app) newScoringPipeline(ctx context.Context) (*pipeline.Pipeline, func() error, error) {
	noop := func() error { return nil }

	snap, main, err := a.loadRules(ctx)
	if err != nil {
		return nil, noop, err
	}

	dc, closer, err := a.decisionCache(main)
	if err != nil {
		return nil, closer, err
	}

	p, err := pipeline.NewPipeline(snap, pipeline.Options{
		Matching:    main.Matching,
		Performance: main.Performance,
		Cache:       dc,
		Logger:      a.logger,
	})
	if err != nil {
		_ = closer()
		return nil, noop, err
	}
	return p, closer, nil
}
