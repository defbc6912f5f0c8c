package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memtrail/memtrail/internal/config"
	"github.com/memtrail/memtrail/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "memtrail",
		Short:         "Contextual memory for AI CLI tools",
		Long:          "memtrail records AI CLI sessions into a local SQLite database and serves accumulated context, knowledge, and summaries back to future sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("state-dir", "", "directory for persistent state (default ~/.memtrail)")
	pf.String("db-path", "", "path to the memory database (default <state-dir>/memory.db)")
	pf.Int("context-limit", 10, "maximum recent sessions in a context payload")
	pf.String("summary-model", "claude-haiku-4-5", "Anthropic model for summary polishing")
	pf.Bool("use-llm", false, "polish weekly summaries with the Anthropic API")

	// Bind flags to viper. Viper keys use underscores (state_dir) so they
	// match the env var suffix after stripping the MEMTRAIL_ prefix.
	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, pf.Lookup(flagName))
	}
	bindFlag("state_dir", "state-dir")
	bindFlag("db_path", "db-path")
	bindFlag("context_limit", "context-limit")
	bindFlag("summary_model", "summary-model")
	bindFlag("use_llm", "use-llm")

	viper.SetEnvPrefix("MEMTRAIL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(
		newStartCmd(),
		newEndCmd(),
		newLogFileCmd(),
		newLogCommandCmd(),
		newLogContextCmd(),
		newAddKnowledgeCmd(),
		newContextCmd(),
		newShowCmd(),
		newWeeklyCmd(),
		newStatsCmd(),
		newLearnCmd(),
		newServeCmd(),
		newSyncCmd(),
		newExportGraphCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "memtrail: %v\n", err)
		os.Exit(1)
	}
}

// openDB loads config and opens the database. Callers own the close.
func openDB() (*db.DB, config.Config, error) {
	cfg := config.Load()
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	return database, cfg, nil
}

// printJSON writes v to stdout as indented JSON. Hooks parse this.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
