package score

import (
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/rules"
)

// Engine runs the full matching stack for one snapshot: scan, base score,
// context boost, decision.
type Engine struct {
	scorer     *Scorer
	booster    ContextBooster
	policy     *Policy
	thresholds model.Thresholds
	minFreq    int
}

// NewEngine builds an engine from the matching configuration. A nil
// booster behaves as NeutralBooster.
func NewEngine(cfg model.MatchingConfig, booster ContextBooster) *Engine {
	if booster == nil {
		booster = NeutralBooster{}
	}
	return &Engine{
		scorer:     NewScorer(cfg.Scoring, cfg.Parameters.MaxContextBoost),
		booster:    booster,
		policy:     NewPolicy(cfg.Thresholds, cfg.Policy),
		thresholds: cfg.Thresholds,
		minFreq:    max(cfg.Parameters.MinKeywordFrequency, 1),
	}
}

// Evaluate scores text against every rule set of the snapshot
func (e *Engine) Evaluate(snap *rules.Snapshot, text string) *model.Decision {
	normalized, stats := snap.ScanMin(text, e.minFreq)
	sets := snap.RuleSets()

	// First pass: unboosted scores, visible to every booster
	base := make(map[string]float64, len(sets))
	for i, rs := range sets {
		base[rs.ID()] = e.scorer.BaseScore(stats[i])
	}

	results := make([]model.ScoreResult, len(sets))
	for i, rs := range sets {
		boost := 1.0
		if normalized != "" {
			boost = e.booster.Boost(BoostInput{
				RuleSet:    rs,
				Normalized: normalized,
				BaseScores: base,
				Thresholds: e.thresholds,
			})
		}
		results[i] = e.scorer.Calculate(rs, stats[i], boost)
	}

	labels, ordered := e.policy.Decide(results)

	return &model.Decision{
		SnapshotVersion: snap.Version(),
		Labels:          labels,
		Results:         ordered,
	}
}
