package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/retry"
	"github.com/ppiankov/industria/internal/store"
)

// Fetcher pages through unlabeled items with a keyset cursor
type Fetcher struct {
	store     store.Store
	batchSize int
	retry     retry.Config
	logger    logging.Logger
	cursor    string
}

// NewFetcher creates a Fetcher that retries a failed page per cfg
func NewFetcher(st store.Store, batchSize int, cfg retry.Config, logger logging.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = model.DefaultMainConfig().Performance.BatchSize
	}

	logger = logging.OrNop(logger)
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("batch fetch failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
	}

	return &Fetcher{
		store:     st,
		batchSize: batchSize,
		retry:     cfg,
		logger:    logger,
	}
}

// Next returns the next page and advances the cursor. An empty page means
// the store is drained.
func (f *Fetcher) Next(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := retry.Do(ctx, f.retry, func() error {
		var err error
		items, err = f.store.FetchUnlabeled(ctx, f.cursor, f.batchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch after %q: %w", f.cursor, err)
	}

	if len(items) > 0 {
		f.cursor = items[len(items)-1].ID
	}
	return items, nil
}

// Cursor returns the id of the last fetched item
func (f *Fetcher) Cursor() string {
	return f.cursor
}

// BatchSize returns the page size
func (f *Fetcher) BatchSize() int {
	return f.batchSize
}
