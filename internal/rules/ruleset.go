// Package rules compiles industry keyword taxonomies into matchers and
// groups them into immutable, versioned snapshots.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/ppiankov/industria/internal/model"
)

// RuleSet is one compiled industry taxonomy. It is immutable after Compile
// and safe for concurrent use.
type RuleSet struct {
	def     model.RuleSetDefinition
	weights model.LayerWeights

	matcher  *ahocorasick.Matcher
	patterns []pattern // Indexed by automaton hit
	keywords int
}

// pattern is one distinct normalized term with everything it stands for
type pattern struct {
	text      string
	layers    []model.Layer
	highValue bool
	exclusion bool
}

// Compile validates a definition and builds its automaton
func Compile(def model.RuleSetDefinition, weights model.LayerWeights) (*RuleSet, error) {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return nil, &model.ConfigError{Source: def.Source, Reason: "industry id is empty"}
	}
	if err := model.ValidateWeights(weights); err != nil {
		return nil, err
	}
	if def.Priority == 0 {
		def.Priority = model.DefaultPriority
	}
	if def.Name == "" {
		def.Name = id
	}
	def.ID = id

	rs := &RuleSet{def: def, weights: weights}
	index := make(map[string]int)
	lookup := func(term string) *pattern {
		i, ok := index[term]
		if !ok {
			i = len(rs.patterns)
			index[term] = i
			rs.patterns = append(rs.patterns, pattern{text: term})
		}
		return &rs.patterns[i]
	}

	for layer := range def.Layers {
		if _, ok := weights[layer]; !ok {
			return nil, compileError(def, fmt.Sprintf("unknown layer %q", layer))
		}
	}

	for _, layer := range model.Layers {
		categories := def.Layers[layer]
		seen := make(map[string]string, len(categories))

		for _, category := range sortedKeys(categories) {
			for _, raw := range categories[category] {
				term := Normalize(raw)
				if term == "" {
					return nil, compileError(def, fmt.Sprintf("empty keyword in %s/%s", layer, category))
				}
				if prev, dup := seen[term]; dup {
					return nil, compileError(def, fmt.Sprintf("duplicate keyword %q in %s (categories %s and %s)", term, layer, prev, category))
				}
				seen[term] = category

				p := lookup(term)
				p.layers = append(p.layers, layer)
				rs.keywords++
			}
		}
	}

	for _, raw := range def.HighValueKeywords {
		term := Normalize(raw)
		if term == "" {
			return nil, compileError(def, "empty high-value keyword")
		}
		lookup(term).highValue = true
	}
	for _, raw := range def.ExclusionKeywords {
		term := Normalize(raw)
		if term == "" {
			return nil, compileError(def, "empty exclusion keyword")
		}
		lookup(term).exclusion = true
	}

	if len(rs.patterns) > 0 {
		terms := make([]string, len(rs.patterns))
		for i, p := range rs.patterns {
			terms[i] = p.text
		}
		rs.matcher = ahocorasick.NewStringMatcher(terms)
	}

	return rs, nil
}

func compileError(def model.RuleSetDefinition, reason string) error {
	return &model.ConfigError{Source: sourceOf(def), Reason: reason}
}

func sourceOf(def model.RuleSetDefinition) string {
	if def.Source != "" {
		return def.Source
	}
	return "industry " + def.ID
}

// ID returns the industry id
func (r *RuleSet) ID() string { return r.def.ID }

// Name returns the display name
func (r *RuleSet) Name() string { return r.def.Name }

// Priority returns the tie-break priority
func (r *RuleSet) Priority() int { return r.def.Priority }

// Weights returns the layer weights the set was compiled with
func (r *RuleSet) Weights() model.LayerWeights { return r.weights }

// Context returns the optional context boost rules
func (r *RuleSet) Context() model.ContextRules { return r.def.Context }

// Definition returns the definition the set was compiled from
func (r *RuleSet) Definition() model.RuleSetDefinition { return r.def }

// KeywordCount returns the number of layer keywords
func (r *RuleSet) KeywordCount() int { return r.keywords }

// Scan normalizes text and matches it against the rule set
func (r *RuleSet) Scan(text string) model.MatchStatistics {
	return r.ScanNormalized(Normalize(text))
}

// ScanNormalized matches text that has already been passed through Normalize.
// Every distinct term adds one distinct match per layer it belongs to and
// its non-overlapping occurrence count to the layer frequency. Overlapping
// terms are counted independently.
func (r *RuleSet) ScanNormalized(text string) model.MatchStatistics {
	return r.ScanNormalizedMin(text, 1)
}

// ScanNormalizedMin is ScanNormalized where a layer keyword only counts once
// it occurs at least minFrequency times. High-value and exclusion terms
// count on any occurrence.
func (r *RuleSet) ScanNormalizedMin(text string, minFrequency int) model.MatchStatistics {
	stats := model.MatchStatistics{
		IndustryID: r.def.ID,
		Layers:     make(map[model.Layer]model.LayerStatistics, len(model.Layers)),
	}
	for _, layer := range model.Layers {
		stats.Layers[layer] = model.LayerStatistics{}
	}

	if text == "" || r.matcher == nil {
		return stats
	}

	// MatchThreadSafe keeps no state on the matcher, unlike Match.
	hits := r.matcher.MatchThreadSafe([]byte(text))
	seen := make(map[int]bool, len(hits))

	for _, hit := range hits {
		if hit < 0 || hit >= len(r.patterns) || seen[hit] {
			continue
		}
		seen[hit] = true
		p := r.patterns[hit]

		if count := strings.Count(text, p.text); len(p.layers) > 0 && count >= minFrequency {
			for _, layer := range p.layers {
				ls := stats.Layers[layer]
				ls.Distinct++
				ls.Frequency += count
				ls.Keywords = append(ls.Keywords, p.text)
				stats.Layers[layer] = ls

				stats.DistinctMatches++
				stats.TotalFrequency += count
			}
		}
		if p.highValue {
			stats.HighValueMatches++
			stats.HighValueTerms = append(stats.HighValueTerms, p.text)
		}
		if p.exclusion {
			stats.Excluded = true
			stats.ExclusionTerms = append(stats.ExclusionTerms, p.text)
		}
	}

	for layer, ls := range stats.Layers {
		sort.Strings(ls.Keywords)
		stats.Layers[layer] = ls
	}
	sort.Strings(stats.HighValueTerms)
	sort.Strings(stats.ExclusionTerms)

	return stats
}

// Span is one keyword occurrence in normalized text, in rune offsets
type Span struct {
	Term  string
	Start int
	End   int
}

// KeywordSpans returns every occurrence of the layer keywords that occur at
// least minFrequency times, ordered by start. Occurrences of different
// keywords may overlap.
func (r *RuleSet) KeywordSpans(text string, minFrequency int) []Span {
	if text == "" || r.matcher == nil {
		return nil
	}

	var spans []Span
	seen := make(map[int]bool)
	for _, hit := range r.matcher.MatchThreadSafe([]byte(text)) {
		if hit < 0 || hit >= len(r.patterns) || seen[hit] {
			continue
		}
		seen[hit] = true
		p := r.patterns[hit]
		if len(p.layers) == 0 || strings.Count(text, p.text) < minFrequency {
			continue
		}

		length := utf8.RuneCountInString(p.text)
		offset, runes := 0, 0
		for {
			i := strings.Index(text[offset:], p.text)
			if i < 0 {
				break
			}
			runes += utf8.RuneCountInString(text[offset : offset+i])
			spans = append(spans, Span{Term: p.text, Start: runes, End: runes + length})

			// Step one rune so overlapping occurrences are found too
			_, size := utf8.DecodeRuneInString(text[offset+i:])
			offset += i + size
			runes++
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Term < b.Term
	})
	return spans
}

// Contains reports whether the normalized text holds term, after
// normalizing term the same way
func Contains(normalizedText, term string) bool {
	t := Normalize(term)
	return t != "" && strings.Contains(normalizedText, t)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
