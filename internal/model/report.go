package model

import "time"

// MatchStatistics is the raw outcome of scanning one text against one rule set
type MatchStatistics struct {
	IndustryID string                    `json:"industry_id"`
	Layers     map[Layer]LayerStatistics `json:"layers"`

	DistinctMatches  int      `json:"distinct_matches"`  // Sum of per-layer distinct matches
	TotalFrequency   int      `json:"total_frequency"`   // Occurrences, not distinct keywords
	HighValueMatches int      `json:"high_value_matches"`
	HighValueTerms   []string `json:"high_value_terms,omitempty"`

	Excluded       bool     `json:"excluded"`
	ExclusionTerms []string `json:"exclusion_terms,omitempty"`
}

// LayerStatistics holds the matches of a single layer
type LayerStatistics struct {
	Distinct  int      `json:"distinct"`
	Frequency int      `json:"frequency"`
	Keywords  []string `json:"keywords,omitempty"` // Matched keywords, sorted
}

// Outcome is the decision reached for one industry on one content item
type Outcome string

const (
	OutcomeIncluded       Outcome = "included"        // At or above high confidence
	OutcomeIncludedLow    Outcome = "included_low"    // Secondary label between the thresholds
	OutcomeBelowThreshold Outcome = "below_threshold" // Dropped
	OutcomeExcluded       Outcome = "excluded"        // Vetoed by an exclusion keyword
	OutcomeCapped         Outcome = "capped"          // Qualified but cut by single_best or max_industries
)

// ScoreResult is the scored form of one industry against one content item
type ScoreResult struct {
	IndustryID   string  `json:"industry_id"`
	IndustryName string  `json:"industry_name"`
	Priority     int     `json:"priority"`
	Score        float64 `json:"score"` // Final confidence in [0,1]

	BaseScore      float64          `json:"base_score"`
	ContextBoost   float64          `json:"context_boost"`
	MatchQuality   float64          `json:"match_quality"`
	FrequencyScore float64          `json:"frequency_score"`
	HighValueBoost float64          `json:"high_value_boost"`
	Layers         []LayerBreakdown `json:"layers"`
	Signals        []Signal         `json:"signals,omitempty"`
	ExclusionTerms []string         `json:"exclusion_terms,omitempty"`
	Outcome        Outcome          `json:"outcome"`
}

// Signal explains one term of the score formula
type Signal struct {
	Name    string             `json:"name"`
	Value   float64            `json:"value"`
	Formula string             `json:"formula"`
	Inputs  map[string]float64 `json:"inputs,omitempty"`
}

// LayerBreakdown reports how much a single layer contributed, for diagnostics only
type LayerBreakdown struct {
	Layer        Layer   `json:"layer"`
	Weight       float64 `json:"weight"`
	Distinct     int     `json:"distinct"`
	Frequency    int     `json:"frequency"`
	Contribution float64 `json:"contribution"`
}

// Label is one emitted industry label
type Label struct {
	IndustryID    string  `json:"industry_id"`
	IndustryName  string  `json:"industry_name"`
	Score         float64 `json:"score"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Decision is the full engine output for one content item
type Decision struct {
	SnapshotVersion string        `json:"snapshot_version"`
	Labels          []Label       `json:"labels"`
	Results         []ScoreResult `json:"results"`
}

// LabelIDs returns the ordered industry ids of the emitted labels
func (d *Decision) LabelIDs() []string {
	ids := make([]string, len(d.Labels))
	for i, l := range d.Labels {
		ids[i] = l.IndustryID
	}
	return ids
}

// RunStats summarises one batch run
type RunStats struct {
	Processed int `json:"processed_count"`
	Labeled   int `json:"labeled_count"`
	Errors    int `json:"error_count"`

	Written   int           `json:"written_count"`
	CacheHits int           `json:"cache_hits"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
}

// Add folds another run summary into s
func (s *RunStats) Add(other RunStats) {
	s.Processed += other.Processed
	s.Labeled += other.Labeled
	s.Errors += other.Errors
	s.Written += other.Written
	s.CacheHits += other.CacheHits
	s.Batches += other.Batches
}

// ItemError records a per-item failure in a run
type ItemError struct {
	ItemID string `json:"item_id"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// RunReport is the persisted summary of a batch run
type RunReport struct {
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	SnapshotVersion string         `json:"snapshot_version"`
	Industries      []string       `json:"industries"`
	Stats           RunStats       `json:"stats"`
	LabelCounts     map[string]int `json:"label_counts"`
	Errors          []ItemError    `json:"errors,omitempty"`
}
