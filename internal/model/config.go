package model

import (
	"fmt"
	"math"
	"time"
)

// Config holds the runtime settings of the industria CLI
type Config struct {
	Rules   RulesConfig   `yaml:"rules" mapstructure:"rules"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// RulesConfig points at the directory holding main_config.yaml and the industry files
type RulesConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig selects and tunes the item store
type StoreConfig struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres, sqlite, memory
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	Table           string        `yaml:"table" mapstructure:"table"`
	WritesPerSecond float64       `yaml:"writes_per_second" mapstructure:"writes_per_second"` // 0 = unlimited
	WriteRetries    int           `yaml:"write_retries" mapstructure:"write_retries"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ContentFormat   string        `yaml:"content_format" mapstructure:"content_format"` // text, html, auto
}

// Content formats of stored items
const (
	ContentText = "text"
	ContentHTML = "html"
	ContentAuto = "auto" // html when the content looks like markup
)

// CacheConfig selects the result cache backend
type CacheConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // memory, disk, redis
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"` // 0 = no expiry
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	Prefix        string        `yaml:"prefix" mapstructure:"prefix"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // empty = disabled
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Rules: RulesConfig{
			Dir: "configs/industries",
		},
		Store: StoreConfig{
			Driver:        "memory",
			Table:         "news_items",
			WriteRetries:  3,
			Timeout:       30 * time.Second,
			ContentFormat: ContentText,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Dir:     ".industria-cache",
			Prefix:  "industria:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// MainConfig is the contents of main_config.yaml in the rules directory
type MainConfig struct {
	EnabledIndustries []string          `yaml:"enabled_industries" mapstructure:"enabled_industries"`
	Matching          MatchingConfig    `yaml:"matching_config" mapstructure:"matching_config"`
	Performance       PerformanceConfig `yaml:"performance" mapstructure:"performance"`
}

// MatchingConfig holds every tunable of the scoring and decision stages
type MatchingConfig struct {
	LayerWeights LayerWeights     `yaml:"layer_weights" mapstructure:"layer_weights"`
	Thresholds   Thresholds       `yaml:"thresholds" mapstructure:"thresholds"`
	Scoring      ScoringConstants `yaml:"scoring" mapstructure:"scoring"`
	Parameters   Parameters       `yaml:"parameters" mapstructure:"parameters"`
	Policy       PolicyConfig     `yaml:"policy" mapstructure:"policy"`
}

// Thresholds are the confidence cut-offs of the decision policy
type Thresholds struct {
	High float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
	Low  float64 `yaml:"low_confidence" mapstructure:"low_confidence"`
}

// ScoringConstants are the constants of the score formula
type ScoringConstants struct {
	QualityCap      float64 `yaml:"quality_cap" mapstructure:"quality_cap"`           // Distinct matches for full quality
	FrequencyCap    float64 `yaml:"frequency_cap" mapstructure:"frequency_cap"`       // Occurrences for full frequency
	QualityWeight   float64 `yaml:"quality_weight" mapstructure:"quality_weight"`     // 0.4
	FrequencyWeight float64 `yaml:"frequency_weight" mapstructure:"frequency_weight"` // 0.6
	HighValueStep   float64 `yaml:"high_value_step" mapstructure:"high_value_step"`   // Boost per high-value hit
	HighValueCap    float64 `yaml:"high_value_cap" mapstructure:"high_value_cap"`
}

// Parameters are auxiliary scoring parameters
type Parameters struct {
	MaxContextBoost   float64 `yaml:"max_context_boost" mapstructure:"max_context_boost"`
	RequiredPairBoost float64 `yaml:"required_pair_boost" mapstructure:"required_pair_boost"`
	BoostTermFactor   float64 `yaml:"boost_term_factor" mapstructure:"boost_term_factor"`

	// A layer keyword matches only once it occurs this many times
	MinKeywordFrequency int `yaml:"min_keyword_frequency" mapstructure:"min_keyword_frequency"`

	// Proximity boost. Adjacent keyword occurrences at most ContextWindowSize
	// runes apart form a nearby pair; runs of three or more form a cluster.
	ContextWindowSize  int     `yaml:"context_window_size" mapstructure:"context_window_size"` // 0 disables
	BoostFactorNearby  float64 `yaml:"boost_factor_nearby" mapstructure:"boost_factor_nearby"`
	BoostFactorCluster float64 `yaml:"boost_factor_cluster" mapstructure:"boost_factor_cluster"`
}

// PolicyConfig shapes the emitted label set
type PolicyConfig struct {
	IncludeLowConfidence bool `yaml:"include_low_confidence" mapstructure:"include_low_confidence"`
	SingleBest           bool `yaml:"single_best" mapstructure:"single_best"`
	MaxIndustries        int  `yaml:"max_industries" mapstructure:"max_industries"` // 0 = no cap
}

// PerformanceConfig tunes the batch orchestrator
type PerformanceConfig struct {
	BatchSize     int  `yaml:"batch_size" mapstructure:"batch_size"`
	MaxWorkers    int  `yaml:"max_workers" mapstructure:"max_workers"`
	CacheEnabled  bool `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	RetryAttempts int  `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	MaxBatches    int  `yaml:"max_batches" mapstructure:"max_batches"` // 0 = until the store is drained
}

// DefaultMainConfig returns the defaults applied beneath main_config.yaml
func DefaultMainConfig() MainConfig {
	return MainConfig{
		Matching: MatchingConfig{
			LayerWeights: DefaultLayerWeights(),
			Thresholds:   Thresholds{High: 0.3, Low: 0.15},
			Scoring:      DefaultScoringConstants(),
			Parameters: Parameters{
				MaxContextBoost:     2.0,
				RequiredPairBoost:   1.2,
				BoostTermFactor:     1.1,
				MinKeywordFrequency: 1,
				ContextWindowSize:   50,
				BoostFactorNearby:   1.2,
				BoostFactorCluster:  1.5,
			},
			Policy: PolicyConfig{IncludeLowConfidence: true},
		},
		Performance: PerformanceConfig{
			BatchSize:     1000,
			MaxWorkers:    3,
			CacheEnabled:  true,
			RetryAttempts: 3,
		},
	}
}

// DefaultScoringConstants returns the constants of the standard formula
func DefaultScoringConstants() ScoringConstants {
	return ScoringConstants{
		QualityCap:      10,
		FrequencyCap:    15,
		QualityWeight:   0.4,
		FrequencyWeight: 0.6,
		HighValueStep:   0.3,
		HighValueCap:    0.6,
	}
}

// weightTolerance absorbs float rounding in configured weights
const weightTolerance = 1e-6

// ValidateWeights checks that the layer weights cover every layer and sum to 1.0
func ValidateWeights(w LayerWeights) error {
	for _, layer := range Layers {
		v, ok := w[layer]
		if !ok {
			return &ConfigError{Source: "layer_weights", Reason: fmt.Sprintf("missing weight for %s", layer)}
		}
		if v < 0 {
			return &ConfigError{Source: "layer_weights", Reason: fmt.Sprintf("negative weight %.3f for %s", v, layer)}
		}
	}
	if len(w) != len(Layers) {
		return &ConfigError{Source: "layer_weights", Reason: fmt.Sprintf("expected %d layers, got %d", len(Layers), len(w))}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return &ConfigError{Source: "layer_weights", Reason: fmt.Sprintf("weights sum to %.4f, want 1.0", sum)}
	}
	return nil
}

// Validate checks the cross-field constraints of the matching configuration
func (m MatchingConfig) Validate() error {
	if err := ValidateWeights(m.LayerWeights); err != nil {
		return err
	}

	t := m.Thresholds
	if t.Low < 0 || t.High > 1 || t.Low > t.High {
		return &ConfigError{
			Source: "thresholds",
			Reason: fmt.Sprintf("need 0 <= low_confidence (%.3f) <= high_confidence (%.3f) <= 1", t.Low, t.High),
		}
	}

	s := m.Scoring
	if s.QualityCap <= 0 || s.FrequencyCap <= 0 {
		return &ConfigError{Source: "scoring", Reason: "quality_cap and frequency_cap must be positive"}
	}
	if s.QualityWeight < 0 || s.FrequencyWeight < 0 || s.HighValueStep < 0 || s.HighValueCap < 0 {
		return &ConfigError{Source: "scoring", Reason: "scoring constants must not be negative"}
	}

	p := m.Parameters
	if p.MaxContextBoost < 1 {
		return &ConfigError{Source: "parameters", Reason: fmt.Sprintf("max_context_boost %.3f is below 1.0", p.MaxContextBoost)}
	}
	if p.RequiredPairBoost <= 0 || p.BoostTermFactor <= 0 || p.BoostFactorNearby <= 0 || p.BoostFactorCluster <= 0 {
		return &ConfigError{Source: "parameters", Reason: "boost factors must be positive"}
	}
	if p.MinKeywordFrequency < 1 {
		return &ConfigError{Source: "parameters", Reason: fmt.Sprintf("min_keyword_frequency %d is below 1", p.MinKeywordFrequency)}
	}
	if p.ContextWindowSize < 0 {
		return &ConfigError{Source: "parameters", Reason: "context_window_size must not be negative"}
	}

	if m.Policy.MaxIndustries < 0 {
		return &ConfigError{Source: "policy", Reason: "max_industries must not be negative"}
	}
	return nil
}
