package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all runtime configuration for memtrail.
type Config struct {
	StateDir     string
	DBPath       string
	ContextLimit int
	SummaryModel string
	UseLLM       bool
}

// Load reads configuration from viper, which merges flag values, env vars,
// and defaults (set up by the cobra command in cmd/memtrail).
func Load() Config {
	cfg := Config{
		StateDir:     viper.GetString("state_dir"),
		DBPath:       viper.GetString("db_path"),
		ContextLimit: viper.GetInt("context_limit"),
		SummaryModel: viper.GetString("summary_model"),
		UseLLM:       viper.GetBool("use_llm"),
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.StateDir, "memory.db")
	}
	return cfg
}

// DefaultStateDir is where state lives unless overridden: ~/.memtrail.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memtrail"
	}
	return filepath.Join(home, ".memtrail")
}
