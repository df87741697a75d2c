package score

import (
	"sort"

	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/rules"
)

// BoostInput is what a booster sees about one industry on one text
type BoostInput struct {
	RuleSet    *rules.RuleSet
	Normalized string             // Normalized content
	BaseScores map[string]float64 // Unboosted score of every industry, 0 when excluded
	Thresholds model.Thresholds
}

// ContextBooster returns a multiplicative factor for an industry's base
// score. 1.0 means no signal applies.
type ContextBooster interface {
	Boost(in BoostInput) float64
}

// NeutralBooster never changes a score
type NeutralBooster struct{}

// Boost implements ContextBooster
func (NeutralBooster) Boost(BoostInput) float64 { return 1.0 }

// RuleBooster applies keyword proximity and the per-industry context table:
//   - proximity: nearby keyword pairs and clusters, see proximityFactor
//   - co_occurrence: factor when the named industry reaches low confidence
//   - required_pairs: RequiredPairBoost per pair whose terms both occur
//   - boost_terms: BoostTermFactor per term present
//
// The scorer caps the product at max_context_boost.
type RuleBooster struct {
	params model.Parameters
}

// NewRuleBooster creates a booster using the given factors
func NewRuleBooster(params model.Parameters) *RuleBooster {
	return &RuleBooster{params: params}
}

// Boost implements ContextBooster
func (b *RuleBooster) Boost(in BoostInput) float64 {
	// Context only refines an industry that matched on its own
	if in.BaseScores[in.RuleSet.ID()] <= 0 {
		return 1.0
	}

	factor := b.proximityFactor(in)

	ctx := in.RuleSet.Context()
	if ctx.IsEmpty() {
		return factor
	}

	// Sorted so the product is reproducible bit for bit
	others := make([]string, 0, len(ctx.CoOccurrence))
	for other := range ctx.CoOccurrence {
		others = append(others, other)
	}
	sort.Strings(others)

	for _, other := range others {
		f := ctx.CoOccurrence[other]
		if other == in.RuleSet.ID() || f <= 0 {
			continue
		}
		if in.BaseScores[other] >= in.Thresholds.Low && in.BaseScores[other] > 0 {
			factor *= f
		}
	}

	for _, pair := range ctx.RequiredPairs {
		if rules.Contains(in.Normalized, pair[0]) && rules.Contains(in.Normalized, pair[1]) {
			factor *= b.params.RequiredPairBoost
		}
	}

	for _, term := range ctx.BoostTerms {
		if rules.Contains(in.Normalized, term) {
			factor *= b.params.BoostTermFactor
		}
	}

	return factor
}

// proximityFactor rewards keywords that occur close together. Each pair of
// consecutive occurrences at most context_window_size runes apart adds
// (boost_factor_nearby-1)*0.1, and each run of three or more such
// occurrences multiplies in 1+(boost_factor_cluster-1)*0.2.
func (b *RuleBooster) proximityFactor(in BoostInput) float64 {
	window := b.params.ContextWindowSize
	if window <= 0 {
		return 1.0
	}

	spans := in.RuleSet.KeywordSpans(in.Normalized, max(b.params.MinKeywordFrequency, 1))
	if len(spans) < 2 {
		return 1.0
	}

	nearby, clusters, run := 0, 0, 1
	for i := 0; i+1 < len(spans); i++ {
		if spans[i+1].Start-spans[i].End <= window {
			nearby++
			run++
			continue
		}
		if run >= 3 {
			clusters++
		}
		run = 1
	}
	if run >= 3 {
		clusters++
	}

	factor := 1.0
	if nearby > 0 {
		factor *= 1 + float64(nearby)*(b.params.BoostFactorNearby-1)*0.1
	}
	if clusters > 0 {
		factor *= 1 + float64(clusters)*(b.params.BoostFactorCluster-1)*0.2
	}
	return factor
}
