package score

import (
	"sort"

	"github.com/ppiankov/industria/internal/model"
)

// Policy turns scored industries into the emitted label set. It keeps no
// state between calls.
type Policy struct {
	thresholds model.Thresholds
	cfg        model.PolicyConfig
}

// NewPolicy creates a decision policy
func NewPolicy(thresholds model.Thresholds, cfg model.PolicyConfig) *Policy {
	return &Policy{thresholds: thresholds, cfg: cfg}
}

// Decide assigns an outcome to every result and returns the labels and the
// results, both ordered by score desc, priority desc, id asc. A result that
// qualified but was cut by single_best or max_industries is marked capped.
func (p *Policy) Decide(results []model.ScoreResult) ([]model.Label, []model.ScoreResult) {
	ordered := make([]model.ScoreResult, len(results))
	copy(ordered, results)
	SortResults(ordered)

	labels := make([]model.Label, 0)
	for i := range ordered {
		r := &ordered[i]
		if r.Outcome == model.OutcomeExcluded {
			continue
		}
		r.Outcome = p.outcome(r.Score)

		switch {
		case r.Outcome != model.OutcomeIncluded && r.Outcome != model.OutcomeIncludedLow:
			continue
		case p.cfg.SingleBest && len(labels) > 0:
			r.Outcome = model.OutcomeCapped
			continue
		case r.Outcome == model.OutcomeIncludedLow && p.cfg.MaxIndustries > 0 && len(labels) >= p.cfg.MaxIndustries:
			// max_industries bounds secondary labels only; high confidence always passes
			r.Outcome = model.OutcomeCapped
			continue
		}
		labels = append(labels, model.Label{
			IndustryID:    r.IndustryID,
			IndustryName:  r.IndustryName,
			Score:         r.Score,
			LowConfidence: r.Outcome == model.OutcomeIncludedLow,
		})
	}

	return labels, ordered
}

func (p *Policy) outcome(score float64) model.Outcome {
	switch {
	case score <= 0:
		return model.OutcomeBelowThreshold
	case score >= p.thresholds.High:
		return model.OutcomeIncluded
	case score >= p.thresholds.Low && p.cfg.IncludeLowConfidence:
		return model.OutcomeIncludedLow
	default:
		return model.OutcomeBelowThreshold
	}
}

// SortResults orders results by score desc, then priority desc, then id asc
func SortResults(results []model.ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.IndustryID < b.IndustryID
	})
}
