// Package config loads and validates the rules directory: main_config.yaml
// plus one <industry>.yaml per industry.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/rules"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MainConfigFile is the name of the shared settings file in the rules directory
const MainConfigFile = "main_config.yaml"

// EnvPrefix is the environment prefix that overrides main_config.yaml keys,
// e.g. INDUSTRIA_PERFORMANCE_BATCH_SIZE
const EnvPrefix = "INDUSTRIA"

// Loader reads configuration from a rules directory. It caches nothing;
// every call reads the files again, so a reload is a new call.
type Loader struct {
	dir    string
	logger logging.Logger
}

// NewLoader creates a loader for dir
func NewLoader(dir string, logger logging.Logger) *Loader {
	return &Loader{dir: dir, logger: logging.OrNop(logger)}
}

// Dir returns the rules directory
func (l *Loader) Dir() string { return l.dir }

// LoadMainConfig reads main_config.yaml on top of the built-in defaults.
// A missing file yields the defaults.
func (l *Loader) LoadMainConfig() (model.MainConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := yaml.Marshal(model.DefaultMainConfig())
	if err != nil {
		return model.MainConfig{}, fmt.Errorf("encode default main config: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return model.MainConfig{}, fmt.Errorf("load default main config: %w", err)
	}

	path := filepath.Join(l.dir, MainConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Warn("main config not found, using defaults", logging.String("path", path))
	case err != nil:
		return model.MainConfig{}, &model.ConfigError{Source: path, Reason: "read failed", Err: err}
	default:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.MainConfig{}, &model.ConfigError{Source: path, Reason: "malformed YAML", Err: err}
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return model.MainConfig{}, &model.ConfigError{Source: path, Reason: "merge failed", Err: err}
		}
	}

	var cfg model.MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return model.MainConfig{}, &model.ConfigError{Source: path, Reason: "decode failed", Err: err}
	}

	if err := cfg.Matching.Validate(); err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path + " " + cfgErr.Source
		}
		return model.MainConfig{}, err
	}
	if err := validatePerformance(cfg.Performance); err != nil {
		return model.MainConfig{}, &model.ConfigError{Source: path, Reason: err.Error()}
	}

	return cfg, nil
}

func validatePerformance(p model.PerformanceConfig) error {
	switch {
	case p.BatchSize <= 0:
		return fmt.Errorf("performance.batch_size must be positive, got %d", p.BatchSize)
	case p.MaxWorkers <= 0:
		return fmt.Errorf("performance.max_workers must be positive, got %d", p.MaxWorkers)
	case p.RetryAttempts < 0:
		return fmt.Errorf("performance.retry_attempts must not be negative, got %d", p.RetryAttempts)
	case p.MaxBatches < 0:
		return fmt.Errorf("performance.max_batches must not be negative, got %d", p.MaxBatches)
	}
	return nil
}

// LoadIndustry reads and validates <id>.yaml
func (l *Loader) LoadIndustry(id string) (model.RuleSetDefinition, error) {
	path := filepath.Join(l.dir, id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.RuleSetDefinition{}, &model.ConfigError{Source: path, Reason: fmt.Sprintf("industry %q has no config file", id)}
		}
		return model.RuleSetDefinition{}, &model.ConfigError{Source: path, Reason: "read failed", Err: err}
	}

	p := &industryParser{file: path}
	return p.parse(data, id)
}

// LoadAll reads every enabled industry, or every industry file when
// enabled_industries is empty. The result is keyed by industry id.
func (l *Loader) LoadAll(ctx context.Context) (map[string]model.RuleSetDefinition, error) {
	main, err := l.LoadMainConfig()
	if err != nil {
		return nil, err
	}
	return l.loadIndustries(ctx, main)
}

func (l *Loader) loadIndustries(ctx context.Context, main model.MainConfig) (map[string]model.RuleSetDefinition, error) {
	ids := main.EnabledIndustries
	if len(ids) == 0 {
		available, err := l.ListAvailable()
		if err != nil {
			return nil, err
		}
		ids = available
	}

	defs := make(map[string]model.RuleSetDefinition, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def, err := l.LoadIndustry(id)
		if err != nil {
			return nil, err
		}
		if prev, dup := defs[def.ID]; dup {
			return nil, &model.ConfigError{
				Source: def.Source,
				Reason: fmt.Sprintf("industry id %q already defined in %s", def.ID, prev.Source),
			}
		}
		defs[def.ID] = def

		l.logger.Debug("industry loaded",
			logging.String("industry", def.ID),
			logging.Int("keywords", def.KeywordCount()))
	}

	if len(defs) == 0 {
		return nil, &model.ConfigError{Source: l.dir, Reason: "no industries configured"}
	}
	return defs, nil
}

// LoadSnapshot loads everything and compiles it into a snapshot
func (l *Loader) LoadSnapshot(ctx context.Context) (*rules.Snapshot, model.MainConfig, error) {
	main, err := l.LoadMainConfig()
	if err != nil {
		return nil, model.MainConfig{}, err
	}

	defs, err := l.loadIndustries(ctx, main)
	if err != nil {
		return nil, model.MainConfig{}, err
	}

	list := make([]model.RuleSetDefinition, 0, len(defs))
	for _, def := range defs {
		list = append(list, def)
	}

	snap, err := rules.NewSnapshot(list, main.Matching.LayerWeights)
	if err != nil {
		return nil, model.MainConfig{}, err
	}

	l.logger.Info("rules loaded",
		logging.String("dir", l.dir),
		logging.Int("industries", snap.Len()),
		logging.String("version", snap.Version()))

	return snap, main, nil
}

// ListAvailable returns the sorted ids of every industry file in the directory
func (l *Loader) ListAvailable() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, &model.ConfigError{Source: l.dir, Reason: "cannot read rules directory", Err: err}
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == MainConfigFile || filepath.Ext(name) != ".yaml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ValidateAll checks main_config.yaml and every industry file, including
// compilation. The map holds one entry per file id (nil means valid);
// the error is set only when the directory cannot be listed.
func (l *Loader) ValidateAll() (map[string]error, error) {
	ids, err := l.ListAvailable()
	if err != nil {
		return nil, err
	}

	results := make(map[string]error, len(ids)+1)

	main, mainErr := l.LoadMainConfig()
	results[strings.TrimSuffix(MainConfigFile, ".yaml")] = mainErr
	weights := main.Matching.LayerWeights
	if mainErr != nil {
		weights = model.DefaultLayerWeights()
	}

	for _, id := range ids {
		def, err := l.LoadIndustry(id)
		if err == nil {
			_, err = rules.Compile(def, weights)
		}
		results[id] = err
	}

	for _, id := range main.EnabledIndustries {
		if _, ok := results[id]; !ok && mainErr == nil {
			results[id] = &model.ConfigError{
				Source: filepath.Join(l.dir, id+".yaml"),
				Reason: fmt.Sprintf("industry %q is enabled but has no config file", id),
			}
		}
	}

	return results, nil
}
