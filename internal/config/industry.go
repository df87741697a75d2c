package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/industria/internal/model"
	"gopkg.in/yaml.v3"
)

// Top-level sections of an industry file
const (
	sectionInfo         = "industry_info"
	sectionHighValue    = "high_value_keywords"
	sectionExclusion    = "exclusion_keywords"
	sectionSpecialRules = "special_rules"
	sectionVersion      = "version"
)

var requiredSections = []string{
	sectionInfo,
	string(model.LayerCore),
	string(model.LayerTechnical),
	string(model.LayerApplication),
	string(model.LayerEntities),
}

// industryParser decodes one industry file from its YAML node tree so
// that every keyword can be checked for a string tag before use.
type industryParser struct {
	file string
}

func (p *industryParser) fail(n *yaml.Node, format string, args ...interface{}) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &model.ConfigError{Source: p.file, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// parse decodes data into a definition. stem is the file name without
// extension and serves as the default id.
func (p *industryParser) parse(data []byte, stem string) (model.RuleSetDefinition, error) {
	def := model.RuleSetDefinition{
		ID:       stem,
		Priority: model.DefaultPriority,
		Layers:   make(map[model.Layer]map[string][]string, len(model.Layers)),
		Source:   p.file,
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return def, &model.ConfigError{Source: p.file, Reason: "malformed YAML", Err: err}
	}
	if len(doc.Content) == 0 {
		return def, p.fail(&doc, "file is empty")
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return def, p.fail(root, "top level must be a mapping")
	}

	sections := make(map[string]*yaml.Node, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], resolve(root.Content[i+1])
		if _, dup := sections[key.Value]; dup {
			return def, p.fail(key, "section %q appears twice", key.Value)
		}
		sections[key.Value] = val
	}

	for _, name := range requiredSections {
		if _, ok := sections[name]; !ok {
			return def, p.fail(root, "missing required section %q", name)
		}
	}

	for i := 0; i < len(root.Content); i += 2 {
		key := root.Content[i]
		val := sections[key.Value]

		var err error
		switch key.Value {
		case sectionInfo:
			err = p.parseInfo(val, &def)
		case string(model.LayerCore), string(model.LayerTechnical), string(model.LayerApplication), string(model.LayerEntities):
			var categories map[string][]string
			categories, err = p.parseLayer(val, key.Value)
			def.Layers[model.Layer(key.Value)] = categories
		case sectionHighValue:
			def.HighValueKeywords, err = p.stringList(val, sectionHighValue)
		case sectionExclusion:
			var terms []string
			terms, err = p.stringList(val, sectionExclusion)
			def.ExclusionKeywords = append(def.ExclusionKeywords, terms...)
		case sectionSpecialRules:
			err = p.parseSpecialRules(val, &def)
		case sectionVersion:
			// informational
		default:
			err = p.fail(key, "unknown section %q", key.Value)
		}
		if err != nil {
			return def, err
		}
	}

	return def, nil
}

func (p *industryParser) parseInfo(n *yaml.Node, def *model.RuleSetDefinition) error {
	if n.Kind != yaml.MappingNode {
		return p.fail(n, "%s must be a mapping", sectionInfo)
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case "name":
			name, err := p.scalarString(val, "industry_info.name")
			if err != nil {
				return err
			}
			def.Name = name
		case "id":
			id, err := p.scalarString(val, "industry_info.id")
			if err != nil {
				return err
			}
			def.ID = id
		case "description":
			desc, err := p.scalarString(val, "industry_info.description")
			if err != nil {
				return err
			}
			def.Description = desc
		case "priority":
			if val.Kind != yaml.ScalarNode || val.Tag != "!!int" {
				return p.fail(val, "industry_info.priority must be an integer")
			}
			prio, err := strconv.Atoi(val.Value)
			if err != nil {
				return p.fail(val, "industry_info.priority: %v", err)
			}
			def.Priority = prio
		default:
			// name_en, version and similar descriptive fields are tolerated
		}
	}

	if strings.TrimSpace(def.Name) == "" {
		return p.fail(n, "industry_info.name is required")
	}
	return nil
}

// parseLayer reads category -> keywords. Nested mappings are flattened
// into "parent.child" categories; a bare string is a one-keyword category.
func (p *industryParser) parseLayer(n *yaml.Node, layer string) (map[string][]string, error) {
	out := make(map[string][]string)
	if isNull(n) {
		return out, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.fail(n, "%s must be a mapping of category to keyword list", layer)
	}
	if err := p.flattenCategories(n, layer, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *industryParser) flattenCategories(n *yaml.Node, layer, prefix string, out map[string][]string) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		category := key.Value
		if prefix != "" {
			category = prefix + "." + category
		}
		where := layer + "." + category

		switch val.Kind {
		case yaml.MappingNode:
			if err := p.flattenCategories(val, layer, category, out); err != nil {
				return err
			}
		case yaml.SequenceNode:
			terms, err := p.stringList(val, where)
			if err != nil {
				return err
			}
			out[category] = append(out[category], terms...)
		case yaml.ScalarNode:
			if isNull(val) {
				continue
			}
			term, err := p.keyword(val, where)
			if err != nil {
				return err
			}
			out[category] = append(out[category], term)
		default:
			return p.fail(val, "%s has unsupported YAML kind", where)
		}
	}
	return nil
}

func (p *industryParser) parseSpecialRules(n *yaml.Node, def *model.RuleSetDefinition) error {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return p.fail(n, "%s must be a mapping", sectionSpecialRules)
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		where := sectionSpecialRules + "." + key.Value

		switch key.Value {
		case "exclude_keywords":
			terms, err := p.stringList(val, where)
			if err != nil {
				return err
			}
			def.ExclusionKeywords = append(def.ExclusionKeywords, terms...)
		case "context_boost", "boost_terms":
			terms, err := p.stringList(val, where)
			if err != nil {
				return err
			}
			def.Context.BoostTerms = append(def.Context.BoostTerms, terms...)
		case "required_pairs":
			pairs, err := p.pairs(val, where)
			if err != nil {
				return err
			}
			def.Context.RequiredPairs = append(def.Context.RequiredPairs, pairs...)
		case "co_occurrence":
			factors, err := p.factors(val, where)
			if err != nil {
				return err
			}
			def.Context.CoOccurrence = factors
		default:
			return p.fail(key, "unknown rule %q", where)
		}
	}
	return nil
}

func (p *industryParser) pairs(n *yaml.Node, where string) ([][2]string, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.fail(n, "%s must be a list of pairs", where)
	}

	out := make([][2]string, 0, len(n.Content))
	for _, item := range n.Content {
		terms, err := p.stringList(resolve(item), where)
		if err != nil {
			return nil, err
		}
		if len(terms) != 2 {
			return nil, p.fail(item, "%s entries need exactly 2 terms, got %d", where, len(terms))
		}
		out = append(out, [2]string{terms[0], terms[1]})
	}
	return out, nil
}

func (p *industryParser) factors(n *yaml.Node, where string) (map[string]float64, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, p.fail(n, "%s must map industry id to factor", where)
	}

	out := make(map[string]float64, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		if val.Kind != yaml.ScalarNode || (val.Tag != "!!float" && val.Tag != "!!int") {
			return nil, p.fail(val, "%s.%s must be a number", where, key.Value)
		}
		f, err := strconv.ParseFloat(val.Value, 64)
		if err != nil {
			return nil, p.fail(val, "%s.%s: %v", where, key.Value, err)
		}
		if f <= 0 {
			return nil, p.fail(val, "%s.%s must be positive, got %g", where, key.Value, f)
		}
		out[key.Value] = f
	}
	return out, nil
}

// stringList reads a sequence of keywords. A single scalar is accepted as
// a one-element list.
func (p *industryParser) stringList(n *yaml.Node, where string) ([]string, error) {
	switch {
	case isNull(n):
		return nil, nil
	case n.Kind == yaml.ScalarNode:
		term, err := p.keyword(n, where)
		if err != nil {
			return nil, err
		}
		return []string{term}, nil
	case n.Kind != yaml.SequenceNode:
		return nil, p.fail(n, "%s must be a list of strings", where)
	}

	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		term, err := p.keyword(resolve(item), where)
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

// keyword accepts only scalars tagged as strings. An unquoted 2024 or 3.5
// is rejected instead of being coerced.
func (p *industryParser) keyword(n *yaml.Node, where string) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", p.fail(n, "%s: keyword must be a scalar string", where)
	}
	if n.Tag != "!!str" {
		return "", p.fail(n, "%s: keyword %q is %s, not a string (quote it)", where, n.Value, strings.TrimPrefix(n.Tag, "!!"))
	}
	if strings.TrimSpace(n.Value) == "" {
		return "", p.fail(n, "%s: empty keyword", where)
	}
	return n.Value, nil
}

func (p *industryParser) scalarString(n *yaml.Node, where string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Tag != "!!str" {
		return "", p.fail(n, "%s must be a string", where)
	}
	return n.Value, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}
