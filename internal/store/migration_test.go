package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMigration(t *testing.T) {
	plain := renderMigration(initialMigration, "news_items")
	assert.Contains(t, plain, "CREATE TABLE IF NOT EXISTS news_items (")
	assert.Contains(t, plain, "CREATE INDEX IF NOT EXISTS idx_news_items_unlabeled ON news_items (id)")
	assert.NotContains(t, plain, "{{")

	qualified := renderMigration(initialMigration, "main.news_items")
	assert.Contains(t, qualified, "CREATE TABLE IF NOT EXISTS main.news_items (")
	assert.Contains(t, qualified, "CREATE INDEX IF NOT EXISTS main.idx_news_items_unlabeled ON news_items (id)")
	assert.NotContains(t, qualified, "idx_main.")
}
