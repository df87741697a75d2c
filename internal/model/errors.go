package model

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed or structurally invalid configuration.
// It is fatal at load time.
type ConfigError struct {
	Source string // File or section that failed
	Line   int    // 1-based line, 0 when unknown
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	loc := e.Source
	if loc == "" {
		loc = "config"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in %s: %s: %v", loc, e.Reason, e.Err)
	}
	return fmt.Sprintf("config error in %s: %s", loc, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ContentError reports an item that cannot be scored
type ContentError struct {
	ItemID string
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content error for item %q: %s", e.ItemID, e.Reason)
}

// StoreError reports a failed item store operation
type StoreError struct {
	Op     string // "fetch" or "write"
	ItemID string
	Err    error
}

func (e *StoreError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("store %s failed for item %q: %v", e.Op, e.ItemID, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrorKind classifies err for counting and metrics
func ErrorKind(err error) string {
	var cfgErr *ConfigError
	var contentErr *ContentError
	var storeErr *StoreError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &contentErr):
		return "content"
	case errors.As(err, &storeErr):
		return "store"
	case errors.As(err, &cfgErr):
		return "config"
	default:
		return "internal"
	}
}
