//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/industria/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "items.db")

	s, err := OpenSQLite(ctx, model.StoreConfig{DSN: path, Table: "news_items", WriteRetries: 2}, nil)
	require.NoError(t, err)
	defer s.Close()
	s.writer.delay = time.Millisecond

	require.NoError(t, s.Insert(ctx,
		model.Item{ID: "a", Content: "芯片"},
		model.Item{ID: "b", Content: "游戏"},
		model.Item{ID: "c", Content: "银行"},
	))

	page, err := s.FetchUnlabeled(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	require.NoError(t, s.WriteLabels(ctx, "a", []string{"semiconductor"}))
	require.NoError(t, s.WriteLabels(ctx, "b", nil))

	labels, ok, err := s.Labels(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"semiconductor"}, labels)

	labels, ok, err = s.Labels(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, labels)

	_, ok, err = s.Labels(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	page, err = s.FetchUnlabeled(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	assert.ErrorIs(t, s.WriteLabels(ctx, "zzz", nil), ErrNotFound)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "items.db")
	cfg := model.StoreConfig{Driver: DriverSQLite, DSN: path}

	st, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, st.(*SQLiteStore).Insert(ctx, model.Item{ID: "1", Content: "x"}))
	require.NoError(t, st.Close())

	st, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer st.Close()

	page, err := st.FetchUnlabeled(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
