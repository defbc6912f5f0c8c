package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memtrail/memtrail/internal/config"
	"github.com/memtrail/memtrail/internal/gitinfo"
	"github.com/memtrail/memtrail/internal/knowledge"
	"github.com/memtrail/memtrail/internal/mcpserver"
	"github.com/memtrail/memtrail/internal/recorder"
	"github.com/memtrail/memtrail/internal/retriever"
	"github.com/memtrail/memtrail/internal/summary"
	"github.com/memtrail/memtrail/internal/syncer"
	"github.com/memtrail/memtrail/internal/updater"
)

func newStartCmd() *cobra.Command {
	var tool, dir string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a session record and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				dir = cwd
			}

			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			git := gitinfo.Detect(dir)
			id, err := recorder.New(database).StartSession(tool, dir, git)
			if err != nil {
				return err
			}

			// The id goes out before the version probe runs: the probe
			// can spend seconds on a slow tool binary and the calling
			// hook is waiting on this line.
			if err := printJSON(map[string]string{"session_id": id}); err != nil {
				return err
			}

			// Best effort; a failed probe must never block a session.
			if _, err := updater.New(database).CheckTool(tool); err != nil {
				fmt.Fprintf(os.Stderr, "memtrail: version check: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "AI CLI tool name (required)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory (default: current)")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}

func newEndCmd() *cobra.Command {
	var sessionID string
	var exitCode int
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Close a session record",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			if err := recorder.New(database).EndSession(sessionID, exitCode); err != nil {
				return err
			}

			// Habits drift slowly; refreshing them on every close keeps
			// the profile current without a scheduler. Best effort.
			if _, err := knowledge.New(database).Learn(); err != nil {
				fmt.Fprintf(os.Stderr, "memtrail: learn: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (required)")
	cmd.Flags().IntVar(&exitCode, "exit-code", 0, "tool exit code")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newLogFileCmd() *cobra.Command {
	var sessionID, path, action, language string
	var added, removed int
	cmd := &cobra.Command{
		Use:   "log-file",
		Short: "Record a file touched during a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			return recorder.New(database).LogFileAction(sessionID, path, action, language, added, removed)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (required)")
	cmd.Flags().StringVar(&path, "path", "", "file path (required)")
	cmd.Flags().StringVar(&action, "action", "modified", "created, modified, deleted, or read")
	cmd.Flags().StringVar(&language, "language", "", "file language")
	cmd.Flags().IntVar(&added, "added", 0, "lines added")
	cmd.Flags().IntVar(&removed, "removed", 0, "lines removed")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newLogCommandCmd() *cobra.Command {
	var sessionID, command, output string
	var exitCode int
	cmd := &cobra.Command{
		Use:   "log-command",
		Short: "Record a shell command executed during a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			return recorder.New(database).LogCommand(sessionID, command, exitCode, output)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (required)")
	cmd.Flags().StringVar(&command, "command", "", "command line (required)")
	cmd.Flags().IntVar(&exitCode, "exit-code", 0, "command exit code")
	cmd.Flags().StringVar(&output, "output", "", "output summary")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func newLogContextCmd() *cobra.Command {
	var sessionID, noteType, data string
	cmd := &cobra.Command{
		Use:   "log-context",
		Short: "Attach a typed context note to a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			return recorder.New(database).LogContext(sessionID, noteType, data)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (required)")
	cmd.Flags().StringVar(&noteType, "type", "", "note type: decision, error, solution, ... (required)")
	cmd.Flags().StringVar(&data, "data", "", "note payload, usually JSON")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAddKnowledgeCmd() *cobra.Command {
	var category, title, description, context, sessionID string
	cmd := &cobra.Command{
		Use:   "add-knowledge",
		Short: "Capture a reusable fact in the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			id, err := knowledge.New(database).AddKnowledge(category, title, description, context, sessionID)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"id": id})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "knowledge category (required)")
	cmd.Flags().StringVar(&title, "title", "", "short unique title within the category (required)")
	cmd.Flags().StringVar(&description, "description", "", "full description")
	cmd.Flags().StringVar(&context, "context", "", "where this applies")
	cmd.Flags().StringVar(&sessionID, "session", "", "session that produced this fact")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newContextCmd() *cobra.Command {
	var dir, tool string
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print the context payload for a working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				dir = cwd
			}

			database, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			payload, err := retriever.New(database).GetContext(dir, tool, cfg.ContextLimit)
			if err != nil {
				return err
			}
			return printJSON(payload)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "working directory (default: current)")
	cmd.Flags().StringVar(&tool, "tool", "", "limit recent sessions to one tool")
	return cmd
}

func newWeeklyCmd() *cobra.Command {
	var tool string
	var year, week int
	var byProject bool
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Build the weekly rollup for a tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (year == 0) != (week == 0) {
				return fmt.Errorf("--year and --week must be given together")
			}

			database, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			s := summary.New(database)
			if cfg.UseLLM {
				s.Polish = summary.AnthropicPolish(cfg.SummaryModel)
			}

			// Any past week is recomputable from the raw sessions, so a
			// year/week pair summarizes that week rather than requiring
			// the rollup to exist already.
			ref := time.Now()
			if year != 0 {
				ref = summary.WeekRef(year, week)
			}
			report, err := s.Summarize(tool, ref)
			if err != nil {
				return err
			}

			if byProject {
				rollups, err := s.ProjectRollups(tool, report.Year, report.Week)
				if err != nil {
					return err
				}
				return printJSON(rollups)
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "AI CLI tool name (required)")
	cmd.Flags().IntVar(&year, "year", 0, "ISO year of the week to summarize (default: current week)")
	cmd.Flags().IntVar(&week, "week", 0, "ISO week number to summarize")
	cmd.Flags().BoolVar(&byProject, "by-project", false, "print the per-project rollups instead of the combined report")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}

func newShowCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one session with its logged events",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			detail, err := retriever.New(database).SessionDetail(sessionID)
			if err != nil {
				return err
			}
			return printJSON(detail)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			stats, err := retriever.New(database).Stats()
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func newLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Distill working habits from recorded sessions into the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			learnings, err := knowledge.New(database).Learn()
			if err != nil {
				return err
			}
			return printJSON(learnings)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory store as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcpserver.Run(config.Load())
		},
	}
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Back up and restore the memory database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "Copy the database to the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			info, err := syncer.New(cfg.DBPath, cfg.StateDir).Backup()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show sync state and available backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			status, err := syncer.New(cfg.DBPath, cfg.StateDir).Status()
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the database with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			return syncer.New(cfg.DBPath, cfg.StateDir).Restore(args[0])
		},
	})

	return cmd
}

func newExportGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-graph",
		Short: "Export the entity graph in MCP memory-server format",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close() //nolint:errcheck

			graph, err := knowledge.New(database).ExportGraph()
			if err != nil {
				return err
			}
			return printJSON(graph)
		},
	}
}

func newVersionCmd() *cobra.Command {
	var checkUpdate bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the memtrail version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("memtrail %s\n", config.Version)
			if checkUpdate {
				result := updater.CheckSelf(config.Version)
				if result.UpdateAvailable {
					fmt.Printf("update available: %s (%s)\n", result.LatestVersion, result.ReleaseURL)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkUpdate, "check-update", false, "check GitHub for a newer release")
	return cmd
}
