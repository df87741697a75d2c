package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/industria/internal/model"
)

// ItemHandler labels one content item
type ItemHandler interface {
	HandleItem(ctx context.Context, item model.Item) *ItemResult
}

// ItemResult represents the outcome of one item
type ItemResult struct {
	Item     model.Item
	Labels   []string
	CacheHit bool
	Written  bool
	Error    error
}

// GetError returns the item error
func (r *ItemResult) GetError() error {
	return r.Error
}

// ItemJob represents one item waiting to be labeled
type ItemJob struct {
	Index   int
	Item    model.Item
	Handler ItemHandler
}

// Execute runs the handler for the item
func (j *ItemJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &indexedResult{index: j.Index, ItemResult: &ItemResult{Item: j.Item, Error: err}}
	}
	res := j.Handler.HandleItem(ctx, j.Item)
	if res == nil {
		res = &ItemResult{Item: j.Item}
	}
	return &indexedResult{index: j.Index, ItemResult: res}
}

type indexedResult struct {
	index int
	*ItemResult
}

// BatchProcessor labels a batch of items concurrently
type BatchProcessor struct {
	handler     ItemHandler
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(handler ItemHandler, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		handler:     handler,
		concurrency: concurrency,
	}
}

// Process labels items concurrently. The result slice matches the input
// order; an item that panicked or never ran because ctx ended carries an
// error.
func (b *BatchProcessor) Process(ctx context.Context, items []model.Item) []*ItemResult {
	if len(items) == 0 {
		return []*ItemResult{}
	}

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &ItemJob{Index: i, Item: item, Handler: b.handler}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*ItemResult, len(items))
	for _, r := range results {
		switch res := r.(type) {
		case *indexedResult:
			out[res.index] = res.ItemResult
		case *PanicResult:
			job := res.Job.(*ItemJob)
			out[job.Index] = &ItemResult{Item: job.Item, Error: res.Err}
		}
	}

	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("item %q produced no result", items[i].ID)
			}
			out[i] = &ItemResult{Item: items[i], Error: err}
		}
	}

	return out
}

// ReadItemsFromFile reads items from a JSON Lines file, one
// {"id":...,"content":...} object per line. Blank lines and lines starting
// with # are skipped; a repeated id keeps its first occurrence.
func ReadItemsFromFile(filePath string) ([]model.Item, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var items []model.Item
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var item model.Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("%s:%d: decode item: %w", filePath, lineNo, err)
		}

		if !seen[item.ID] {
			seen[item.ID] = true
			items = append(items, item)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}
