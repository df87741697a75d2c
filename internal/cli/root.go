package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.3.0"

var (
	cfgFile  string
	verbose  bool
	rulesDir string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "industria",
	Short: "Industria - keyword-based industry labeling for news content",
	Long: `Industria assigns industry labels to news content.

Each industry is described by a layered keyword taxonomy (core keywords,
technical terms, application scenarios, related entities) plus
high-value and exclusion keywords. Content is matched against every
industry, scored, and labeled with every industry that clears the
confidence thresholds.

Industria is deterministic: the same rules and the same text always
produce the same labels.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Industria.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "industria %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.industria/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&rulesDir, "rules-dir", "", "directory with main_config.yaml and industry files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("rules.dir", rootCmd.PersistentFlags().Lookup("rules-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	viper.SetConfigType("yaml")

	// Defaults first so every key is known to env lookups
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err == nil {
		err = viper.ReadConfig(bytes.NewReader(defaults))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".industria"))
		viper.SetConfigName("config")
	}

	// Read in environment variables that match INDUSTRIA_*
	viper.SetEnvPrefix("INDUSTRIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("cache.redis_password")

	if err := viper.MergeInConfig(); err == nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// loadConfig decodes the merged viper settings
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, &model.ConfigError{Source: viper.ConfigFileUsed(), Reason: "decode failed", Err: err}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg model.Config) (logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
