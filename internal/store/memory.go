package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
)

// MemoryStore keeps items in process. It backs local runs and tests and
// can inject failures.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]model.Item
	labels  map[string][]string
	writer  writer
	closed  bool
	fetches int

	failFetches int
	failWrites  map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore(writeRetries int, logger logging.Logger) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]model.Item),
		labels:     make(map[string][]string),
		writer:     newWriter(writeRetries, logger),
		failWrites: make(map[string]int),
	}
}

// Add inserts or replaces items and clears their labels
func (s *MemoryStore) Add(items ...model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = it
		delete(s.labels, it.ID)
	}
}

// FailFetches makes the next n fetches fail
func (s *MemoryStore) FailFetches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetches = n
}

// FailWrites makes the next n write attempts for id fail. A negative n
// fails every attempt.
func (s *MemoryStore) FailWrites(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites[id] = n
}

// Labels returns the labels written for id
func (s *MemoryStore) Labels(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.labels[id]
	return append([]string(nil), l...), ok
}

// Fetches returns how many fetch calls were made
func (s *MemoryStore) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

var errInjected = errors.New("injected failure")

func (s *MemoryStore) FetchUnlabeled(ctx context.Context, after string, limit int) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	if s.closed {
		return nil, &model.StoreError{Op: "fetch", Err: errors.New("store closed")}
	}
	if s.failFetches > 0 {
		s.failFetches--
		return nil, &model.StoreError{Op: "fetch", Err: errInjected}
	}

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		if _, done := s.labels[id]; done || id <= after {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = s.items[id]
	}
	return out, nil
}

func (s *MemoryStore) WriteLabels(ctx context.Context, id string, labels []string) error {
	return s.writer.write(ctx, id, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.items[id]; !ok {
			return ErrNotFound
		}
		if n := s.failWrites[id]; n != 0 {
			if n > 0 {
				s.failWrites[id] = n - 1
			}
			return errInjected
		}
		if labels == nil {
			labels = []string{}
		}
		s.labels[id] = append([]string(nil), labels...)
		return nil
	})
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
