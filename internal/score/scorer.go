package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/rules"
)

// Scorer turns match statistics into a confidence score per industry
type Scorer struct {
	constants       model.ScoringConstants
	maxContextBoost float64
}

// NewScorer creates a new scorer
func NewScorer(constants model.ScoringConstants, maxContextBoost float64) *Scorer {
	if maxContextBoost < 1 {
		maxContextBoost = 1
	}
	return &Scorer{constants: constants, maxContextBoost: maxContextBoost}
}

// NewDefaultScorer creates a scorer with the standard constants
func NewDefaultScorer() *Scorer {
	return NewScorer(model.DefaultScoringConstants(), 2.0)
}

// Calculate scores one industry. The outcome is left for the decision
// policy unless the industry is vetoed by an exclusion keyword.
func (s *Scorer) Calculate(rs *rules.RuleSet, stats model.MatchStatistics, contextBoost float64) model.ScoreResult {
	c := s.constants

	// 1. Match quality (breadth of distinct keywords)
	quality := math.Min(float64(stats.DistinctMatches)/c.QualityCap, 1.0)

	// 2. Frequency (total occurrences)
	frequency := math.Min(float64(stats.TotalFrequency)/c.FrequencyCap, 1.0)

	// 3. High-value boost
	highValue := math.Min(float64(stats.HighValueMatches)*c.HighValueStep, c.HighValueCap)

	base := quality*c.QualityWeight + frequency*c.FrequencyWeight + highValue
	boost := s.clampBoost(contextBoost)
	final := clamp01(base * boost)

	result := model.ScoreResult{
		IndustryID:     rs.ID(),
		IndustryName:   rs.Name(),
		Priority:       rs.Priority(),
		Score:          final,
		BaseScore:      base,
		ContextBoost:   boost,
		MatchQuality:   quality,
		FrequencyScore: frequency,
		HighValueBoost: highValue,
		Layers:         s.layerBreakdown(rs.Weights(), stats),
	}

	result.Signals = []model.Signal{
		{
			Name:    "match_quality",
			Value:   quality,
			Formula: fmt.Sprintf("min(distinct_matches / %g, 1.0)", c.QualityCap),
			Inputs:  map[string]float64{"distinct_matches": float64(stats.DistinctMatches)},
		},
		{
			Name:    "frequency_score",
			Value:   frequency,
			Formula: fmt.Sprintf("min(total_frequency / %g, 1.0)", c.FrequencyCap),
			Inputs:  map[string]float64{"total_frequency": float64(stats.TotalFrequency)},
		},
		{
			Name:    "high_value_boost",
			Value:   highValue,
			Formula: fmt.Sprintf("min(high_value_matches * %g, %g)", c.HighValueStep, c.HighValueCap),
			Inputs:  map[string]float64{"high_value_matches": float64(stats.HighValueMatches)},
		},
		{
			Name:    "base_score",
			Value:   base,
			Formula: fmt.Sprintf("match_quality * %g + frequency_score * %g + high_value_boost", c.QualityWeight, c.FrequencyWeight),
		},
		{
			Name:    "final_score",
			Value:   final,
			Formula: "min(base_score * context_boost, 1.0)",
			Inputs:  map[string]float64{"context_boost": boost},
		},
	}

	// Exclusion is a veto, whatever the matches
	if stats.Excluded {
		result.Score = 0
		result.ExclusionTerms = stats.ExclusionTerms
		result.Outcome = model.OutcomeExcluded
		result.Signals = append(result.Signals, model.Signal{
			Name:    "exclusion",
			Value:   0,
			Formula: "final_score = 0 when any exclusion keyword occurs",
			Inputs:  map[string]float64{"exclusion_terms": float64(len(stats.ExclusionTerms))},
		})
	}

	return result
}

// BaseScore is the unboosted score, or 0 when the industry is excluded.
// It feeds context boosters that look at other industries.
func (s *Scorer) BaseScore(stats model.MatchStatistics) float64 {
	if stats.Excluded {
		return 0
	}
	c := s.constants
	quality := math.Min(float64(stats.DistinctMatches)/c.QualityCap, 1.0)
	frequency := math.Min(float64(stats.TotalFrequency)/c.FrequencyCap, 1.0)
	highValue := math.Min(float64(stats.HighValueMatches)*c.HighValueStep, c.HighValueCap)
	return clamp01(quality*c.QualityWeight + frequency*c.FrequencyWeight + highValue)
}

// layerBreakdown reports each layer scored on its own, weighted. It is
// diagnostic output and does not feed the final score.
func (s *Scorer) layerBreakdown(weights model.LayerWeights, stats model.MatchStatistics) []model.LayerBreakdown {
	c := s.constants
	out := make([]model.LayerBreakdown, 0, len(model.Layers))

	for _, layer := range model.Layers {
		ls := stats.Layers[layer]
		quality := math.Min(float64(ls.Distinct)/c.QualityCap, 1.0)
		frequency := math.Min(float64(ls.Frequency)/c.FrequencyCap, 1.0)
		w := weights[layer]

		out = append(out, model.LayerBreakdown{
			Layer:        layer,
			Weight:       w,
			Distinct:     ls.Distinct,
			Frequency:    ls.Frequency,
			Contribution: w * (quality*c.QualityWeight + frequency*c.FrequencyWeight),
		})
	}
	return out
}

// clampBoost keeps the context boost positive and within the configured cap
func (s *Scorer) clampBoost(b float64) float64 {
	if math.IsNaN(b) || b <= 0 {
		return 1.0
	}
	return math.Min(b, s.maxContextBoost)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1.0)
}
