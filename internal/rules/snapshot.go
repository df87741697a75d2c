package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ppiankov/industria/internal/model"
)

// Snapshot is an immutable set of compiled rule sets. A reload builds a new
// snapshot; an existing one is never modified.
type Snapshot struct {
	version string
	weights model.LayerWeights
	sets    []*RuleSet // Ordered by id
	byID    map[string]*RuleSet
}

// NewSnapshot compiles every definition and derives a stable version
// from their content. Duplicate ids are a ConfigError.
func NewSnapshot(defs []model.RuleSetDefinition, weights model.LayerWeights) (*Snapshot, error) {
	if err := model.ValidateWeights(weights); err != nil {
		return nil, err
	}

	s := &Snapshot{
		weights: weights,
		sets:    make([]*RuleSet, 0, len(defs)),
		byID:    make(map[string]*RuleSet, len(defs)),
	}

	for _, def := range defs {
		rs, err := Compile(def, weights)
		if err != nil {
			return nil, err
		}
		if prev, dup := s.byID[rs.ID()]; dup {
			return nil, &model.ConfigError{
				Source: sourceOf(def),
				Reason: fmt.Sprintf("industry id %q already defined by %s", rs.ID(), sourceOf(prev.def)),
			}
		}
		s.byID[rs.ID()] = rs
		s.sets = append(s.sets, rs)
	}

	sort.Slice(s.sets, func(i, j int) bool { return s.sets[i].ID() < s.sets[j].ID() })

	version, err := computeVersion(s.sets, weights)
	if err != nil {
		return nil, err
	}
	s.version = version

	return s, nil
}

// computeVersion hashes the canonical JSON of the compiled definitions.
// encoding/json sorts map keys, so equal content yields equal versions.
func computeVersion(sets []*RuleSet, weights model.LayerWeights) (string, error) {
	payload := struct {
		Weights model.LayerWeights        `json:"weights"`
		Defs    []model.RuleSetDefinition `json:"defs"`
	}{Weights: weights, Defs: make([]model.RuleSetDefinition, len(sets))}

	for i, rs := range sets {
		payload.Defs[i] = rs.def
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// Version identifies the snapshot content
func (s *Snapshot) Version() string { return s.version }

// Weights returns the layer weights shared by every rule set
func (s *Snapshot) Weights() model.LayerWeights { return s.weights }

// Len returns the number of rule sets
func (s *Snapshot) Len() int { return len(s.sets) }

// RuleSets returns the compiled rule sets ordered by id
func (s *Snapshot) RuleSets() []*RuleSet {
	out := make([]*RuleSet, len(s.sets))
	copy(out, s.sets)
	return out
}

// IDs returns the industry ids in order
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.sets))
	for i, rs := range s.sets {
		ids[i] = rs.ID()
	}
	return ids
}

// Get looks up a rule set by industry id
func (s *Snapshot) Get(id string) (*RuleSet, bool) {
	rs, ok := s.byID[id]
	return rs, ok
}

// Scan normalizes text once and matches it against every rule set,
// returning the normalized text and one statistics entry per rule set in
// id order.
func (s *Snapshot) Scan(text string) (string, []model.MatchStatistics) {
	return s.ScanMin(text, 1)
}

// ScanMin is Scan with a minimum occurrence count for layer keywords
func (s *Snapshot) ScanMin(text string, minFrequency int) (string, []model.MatchStatistics) {
	normalized := Normalize(text)
	stats := make([]model.MatchStatistics, len(s.sets))
	for i, rs := range s.sets {
		stats[i] = rs.ScanNormalizedMin(normalized, minFrequency)
	}
	return normalized, stats
}
