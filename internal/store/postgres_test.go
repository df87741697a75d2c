package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/ppiankov/industria/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fetchSQL = "SELECT id::text AS id, content FROM news_items WHERE industries IS NULL AND id::text > $1 ORDER BY id::text LIMIT $2"
	writeSQL = "UPDATE news_items SET industries = $1 WHERE id::text = $2"
)

func newMockStore(t *testing.T, retries int) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewPostgresStore(sqlx.NewDb(db, "postgres"), model.StoreConfig{
		Table:        "news_items",
		WriteRetries: retries,
		Timeout:      time.Second,
	}, nil)
	require.NoError(t, err)
	s.writer.delay = time.Millisecond
	return s, mock
}

func TestPostgresStore_FetchUnlabeled(t *testing.T) {
	s, mock := newMockStore(t, 1)

	rows := sqlmock.NewRows([]string{"id", "content"}).
		AddRow("101", "台积电宣布其3nm制程技术取得重大突破").
		AddRow("102", "央行发布GDP数据")
	mock.ExpectQuery(regexp.QuoteMeta(fetchSQL)).
		WithArgs("100", 2).
		WillReturnRows(rows)

	items, err := s.FetchUnlabeled(context.Background(), "100", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.Item{ID: "101", Content: "台积电宣布其3nm制程技术取得重大突破"}, items[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchError(t *testing.T) {
	s, mock := newMockStore(t, 1)

	mock.ExpectQuery(regexp.QuoteMeta(fetchSQL)).
		WithArgs("", 1000).
		WillReturnError(sql.ErrConnDone)

	_, err := s.FetchUnlabeled(context.Background(), "", 1000)

	var storeErr *model.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "fetch", storeErr.Op)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteLabels(t *testing.T) {
	testCases := []struct {
		name      string
		retries   int
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name:    "writes labels",
			retries: 3,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(writeSQL)).
					WithArgs(sqlmock.AnyArg(), "101").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "retries transient failure",
			retries: 3,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(writeSQL)).
					WithArgs(sqlmock.AnyArg(), "101").
					WillReturnError(sql.ErrConnDone)
				mock.ExpectExec(regexp.QuoteMeta(writeSQL)).
					WithArgs(sqlmock.AnyArg(), "101").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "gives up after retries",
			retries: 2,
			setupMock: func(mock sqlmock.Sqlmock) {
				for i := 0; i < 2; i++ {
					mock.ExpectExec(regexp.QuoteMeta(writeSQL)).
						WithArgs(sqlmock.AnyArg(), "101").
						WillReturnError(sql.ErrConnDone)
				}
			},
			wantErr: sql.ErrConnDone,
		},
		{
			name:    "unknown row is not retried",
			retries: 3,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(writeSQL)).
					WithArgs(sqlmock.AnyArg(), "101").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t, tc.retries)
			tc.setupMock(mock)

			err := s.WriteLabels(context.Background(), "101", []string{"semiconductor", "artificial_intelligence"})
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, "store", model.ErrorKind(err))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewPostgresStore_RejectsTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresStore(sqlx.NewDb(db, "postgres"), model.StoreConfig{Table: "items where 1=1"}, nil)
	var cfgErr *model.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
