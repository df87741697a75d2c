// Package store persists news items and the industry labels written back
// to them.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/retry"
)

// Drivers understood by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrNotFound is returned when a label write targets an unknown item
var ErrNotFound = errors.New("item not found")

// Store is the item store the batch orchestrator reads from and writes to
type Store interface {
	// FetchUnlabeled returns up to limit items without labels whose id
	// sorts after the cursor, ordered by id
	FetchUnlabeled(ctx context.Context, after string, limit int) ([]model.Item, error)

	// WriteLabels stores the label set of one item. An empty set marks the
	// item as scored.
	WriteLabels(ctx context.Context, id string, labels []string) error

	Close() error
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validateTable(table string) error {
	if !tableName.MatchString(table) {
		return &model.ConfigError{Source: "store.table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	return nil
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig, logger logging.Logger) (Store, error) {
	if cfg.Table == "" {
		cfg.Table = model.DefaultConfig().Store.Table
	}
	if err := validateTable(cfg.Table); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverPostgres:
		return OpenPostgres(ctx, cfg, logger)
	case DriverSQLite:
		return OpenSQLite(ctx, cfg, logger)
	case DriverMemory, "":
		return NewMemoryStore(cfg.WriteRetries, logger), nil
	default:
		return nil, &model.ConfigError{Source: "store.driver", Reason: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}
}

// writer runs label writes with bounded retries
type writer struct {
	attempts int
	delay    time.Duration
	logger   logging.Logger
}

func newWriter(attempts int, logger logging.Logger) writer {
	if attempts <= 0 {
		attempts = 1
	}
	return writer{attempts: attempts, delay: 100 * time.Millisecond, logger: logging.OrNop(logger)}
}

func (w writer) write(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	cfg := retry.WithAttempts(w.attempts)
	cfg.InitialDelay = w.delay
	cfg.IsRetryable = func(err error) bool {
		return !errors.Is(err, ErrNotFound) && retry.DefaultIsRetryable(err)
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		w.logger.Warn("label write failed, retrying",
			logging.String("item_id", id),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
	}

	err := retry.Do(ctx, cfg, func() error { return fn(ctx) })
	if err != nil {
		return &model.StoreError{Op: "write", ItemID: id, Err: err}
	}
	return nil
}
