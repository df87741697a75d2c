package model

// Layer names one of the four keyword tiers of an industry taxonomy
type Layer string

const (
	LayerCore        Layer = "core_keywords"         // Defining terms of the industry
	LayerTechnical   Layer = "technical_terms"       // Technology and process vocabulary
	LayerApplication Layer = "application_scenarios" // Where the industry shows up
	LayerEntities    Layer = "related_entities"      // Companies, products, people
)

// Layers lists the layers in their fixed evaluation order
var Layers = []Layer{LayerCore, LayerTechnical, LayerApplication, LayerEntities}

// DefaultPriority is assigned to industries that do not declare one
const DefaultPriority = 40

// LayerWeights maps each layer to its contribution weight
type LayerWeights map[Layer]float64

// DefaultLayerWeights returns the system-wide 0.4/0.3/0.2/0.1 split
func DefaultLayerWeights() LayerWeights {
	return LayerWeights{
		LayerCore:        0.4,
		LayerTechnical:   0.3,
		LayerApplication: 0.2,
		LayerEntities:    0.1,
	}
}

// Sum returns the total of all layer weights
func (w LayerWeights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// RuleSetDefinition is the parsed, not yet compiled, form of one industry file
type RuleSetDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    int    `json:"priority" yaml:"priority"`

	// Layers maps layer -> category -> keywords
	Layers map[Layer]map[string][]string `json:"layers" yaml:"layers"`

	HighValueKeywords []string `json:"high_value_keywords,omitempty" yaml:"high_value_keywords,omitempty"`
	ExclusionKeywords []string `json:"exclusion_keywords,omitempty" yaml:"exclusion_keywords,omitempty"`

	Context ContextRules `json:"context,omitempty" yaml:"context,omitempty"`

	// Source is the file the definition was read from, if any
	Source string `json:"-" yaml:"-"`
}

// ContextRules holds the optional context boost table of an industry.
// All factors are multiplicative and must be positive.
type ContextRules struct {
	// CoOccurrence maps another industry id to the factor applied when that
	// industry also reaches low confidence on the same content
	CoOccurrence map[string]float64 `json:"co_occurrence,omitempty" yaml:"co_occurrence,omitempty"`

	// RequiredPairs boosts when both terms of a pair occur
	RequiredPairs [][2]string `json:"required_pairs,omitempty" yaml:"required_pairs,omitempty"`

	// BoostTerms boosts once per term present
	BoostTerms []string `json:"boost_terms,omitempty" yaml:"boost_terms,omitempty"`
}

// IsEmpty reports whether no context rule is configured
func (c ContextRules) IsEmpty() bool {
	return len(c.CoOccurrence) == 0 && len(c.RequiredPairs) == 0 && len(c.BoostTerms) == 0
}

// KeywordCount returns the number of layer keywords in the definition
func (d *RuleSetDefinition) KeywordCount() int {
	n := 0
	for _, categories := range d.Layers {
		for _, kws := range categories {
			n += len(kws)
		}
	}
	return n
}
