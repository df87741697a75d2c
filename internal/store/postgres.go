package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

// PostgresStore reads and labels rows of a news table with a text[]
// industries column, e.g. the hosted Supabase news_items table
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
	writer  writer

	fetchQuery string
	writeQuery string
}

// OpenPostgres connects to cfg.DSN and verifies the connection
func OpenPostgres(ctx context.Context, cfg model.StoreConfig, logger logging.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, &model.ConfigError{Source: "store.dsn", Reason: "postgres driver needs a DSN"}
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &model.StoreError{Op: "connect", Err: err}
	}

	return NewPostgresStore(db, cfg, logger)
}

// NewPostgresStore wraps an open connection
func NewPostgresStore(db *sqlx.DB, cfg model.StoreConfig, logger logging.Logger) (*PostgresStore, error) {
	if cfg.Table == "" {
		cfg.Table = model.DefaultConfig().Store.Table
	}
	if err := validateTable(cfg.Table); err != nil {
		return nil, err
	}

	return &PostgresStore{
		db:      db,
		timeout: cfg.Timeout,
		writer:  newWriter(cfg.WriteRetries, logger),
		fetchQuery: fmt.Sprintf(
			"SELECT id::text AS id, content FROM %s WHERE industries IS NULL AND id::text > $1 ORDER BY id::text LIMIT $2",
			cfg.Table),
		writeQuery: fmt.Sprintf("UPDATE %s SET industries = $1 WHERE id::text = $2", cfg.Table),
	}, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) FetchUnlabeled(ctx context.Context, after string, limit int) ([]model.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var items []model.Item
	if err := s.db.SelectContext(ctx, &items, s.fetchQuery, after, limit); err != nil {
		return nil, &model.StoreError{Op: "fetch", Err: err}
	}
	return items, nil
}

func (s *PostgresStore) WriteLabels(ctx context.Context, id string, labels []string) error {
	if labels == nil {
		labels = []string{}
	}

	return s.writer.write(ctx, id, func(ctx context.Context) error {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		res, err := s.db.ExecContext(ctx, s.writeQuery, pq.Array(labels), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
