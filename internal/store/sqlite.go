package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
)

//go:embed migrations/001_news_items.sql
var initialMigration string

// SQLiteStore keeps items in a local SQLite file. Labels are stored as a
// JSON array in the industries column.
type SQLiteStore struct {
	db     *sqlx.DB
	table  string
	writer writer
}

// OpenSQLite opens or creates the database at cfg.DSN (a file path)
func OpenSQLite(ctx context.Context, cfg model.StoreConfig, logger logging.Logger) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, &model.ConfigError{Source: "store.dsn", Reason: "sqlite driver needs a database path"}
	}
	if cfg.Table == "" {
		cfg.Table = model.DefaultConfig().Store.Table
	}
	if err := validateTable(cfg.Table); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", cfg.DSN)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, table: cfg.Table, writer: newWriter(cfg.WriteRetries, logger)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, renderMigration(initialMigration, s.table))
	return err
}

// renderMigration fills in the table placeholders. For a schema-qualified
// table the index lives in the same schema and names the bare table, as
// SQLite requires.
func renderMigration(migration, table string) string {
	schema, name := "", table
	if i := strings.LastIndex(table, "."); i >= 0 {
		schema, name = table[:i+1], table[i+1:]
	}
	return strings.NewReplacer(
		"{{table}}", table,
		"{{index}}", schema+"idx_"+name+"_unlabeled",
		"{{name}}", name,
	).Replace(migration)
}

// Insert adds items, replacing existing rows and clearing their labels
func (s *SQLiteStore) Insert(ctx context.Context, items ...model.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &model.StoreError{Op: "insert", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (id, content, industries) VALUES (:id, :content, NULL)", s.table)
	for _, it := range items {
		if _, err := tx.NamedExecContext(ctx, query, it); err != nil {
			return &model.StoreError{Op: "insert", ItemID: it.ID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &model.StoreError{Op: "insert", Err: err}
	}
	return nil
}

// Labels returns the labels written for id, or false while it is unlabeled
func (s *SQLiteStore) Labels(ctx context.Context, id string) ([]string, bool, error) {
	var raw sql.NullString
	query := fmt.Sprintf("SELECT industries FROM %s WHERE id = ?", s.table)
	if err := s.db.GetContext(ctx, &raw, query, id); err != nil {
		return nil, false, &model.StoreError{Op: "read", ItemID: id, Err: err}
	}
	if !raw.Valid {
		return nil, false, nil
	}

	var labels []string
	if err := json.Unmarshal([]byte(raw.String), &labels); err != nil {
		return nil, false, &model.StoreError{Op: "read", ItemID: id, Err: err}
	}
	return labels, true, nil
}

func (s *SQLiteStore) FetchUnlabeled(ctx context.Context, after string, limit int) ([]model.Item, error) {
	query := fmt.Sprintf(
		"SELECT id, content FROM %s WHERE industries IS NULL AND id > ? ORDER BY id LIMIT ?", s.table)

	var items []model.Item
	if err := s.db.SelectContext(ctx, &items, query, after, limit); err != nil {
		return nil, &model.StoreError{Op: "fetch", Err: err}
	}
	return items, nil
}

func (s *SQLiteStore) WriteLabels(ctx context.Context, id string, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	payload, err := json.Marshal(labels)
	if err != nil {
		return &model.StoreError{Op: "write", ItemID: id, Err: err}
	}

	query := fmt.Sprintf("UPDATE %s SET industries = ?, labeled_at = CURRENT_TIMESTAMP WHERE id = ?", s.table)
	return s.writer.write(ctx, id, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, string(payload), id)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
