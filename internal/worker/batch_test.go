package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/industria/internal/model"
)

// mockHandler implements ItemHandler
type mockHandler struct {
	calls int32
}

func (m *mockHandler) HandleItem(ctx context.Context, item model.Item) *ItemResult {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(time.Millisecond) // Simulate work

	switch item.Content {
	case "panic":
		panic("handler exploded")
	case "":
		return &ItemResult{Item: item, Error: &model.ContentError{ItemID: item.ID, Reason: "empty content"}}
	}
	return &ItemResult{Item: item, Labels: []string{strings.ToLower(item.Content)}, Written: true}
}

func TestBatchProcessor_Process(t *testing.T) {
	handler := &mockHandler{}
	processor := NewBatchProcessor(handler, 2)

	items := []model.Item{
		{ID: "1", Content: "AI"},
		{ID: "2", Content: ""},
		{ID: "3", Content: "panic"},
		{ID: "4", Content: "Gaming"},
	}

	results := processor.Process(context.Background(), items)

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Item.ID != items[i].ID {
			t.Errorf("result %d is for item %q, want %q", i, r.Item.ID, items[i].ID)
		}
	}

	if results[0].Error != nil || results[0].Labels[0] != "ai" {
		t.Errorf("unexpected first result: %+v", results[0])
	}

	var contentErr *model.ContentError
	if !errors.As(results[1].Error, &contentErr) {
		t.Errorf("expected content error, got %v", results[1].Error)
	}

	if results[2].Error == nil || !strings.Contains(results[2].Error.Error(), "handler exploded") {
		t.Errorf("expected recovered panic, got %v", results[2].Error)
	}

	if !results[3].Written {
		t.Error("expected last item to be written")
	}
	if handler.calls != 4 {
		t.Errorf("expected 4 handler calls, got %d", handler.calls)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	results := NewBatchProcessor(&mockHandler{}, 3).Process(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestBatchProcessor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []model.Item{{ID: "1", Content: "a"}, {ID: "2", Content: "b"}}
	results := NewBatchProcessor(&mockHandler{}, 1).Process(ctx, items)

	for _, r := range results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("item %s: expected context.Canceled, got %v", r.Item.ID, r.Error)
		}
	}
}

func TestReadItemsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.jsonl")
	content := `# sample feed
{"id": "1", "content": "台积电宣布其3nm制程技术取得重大突破"}

{"id": "2", "content": "央行发布GDP数据"}
{"id": "1", "content": "duplicate"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := ReadItemsFromFile(path)
	if err != nil {
		t.Fatalf("ReadItemsFromFile error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Content != "台积电宣布其3nm制程技术取得重大突破" {
		t.Errorf("first occurrence should win, got %q", items[0].Content)
	}
}

func TestReadItemsFromFile_Errors(t *testing.T) {
	if _, err := ReadItemsFromFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\": \"1\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadItemsFromFile(path)
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("expected error with line number 2, got %v", err)
	}
}
