package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/elonfeng/curator/internal/config"
)

var (
	cfgFile string
	raw     config.RawOptions
)

func main() {
	// .env must be loaded before flag defaults read CONTENT_SOURCES.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "curator",
		Short:         "Pull saved articles, videos and feeds, then push the best of them to a reading list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	sources := os.Getenv("CONTENT_SOURCES")
	if sources == "" {
		sources = config.DefaultSources
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	pf.StringVar(&raw.Prefix, "prefix", "./run", "runtime prefix path")
	pf.StringVar(&raw.Start, "start", "", "run start time, ISO-8601 (default: now)")
	pf.StringVar(&raw.RunID, "run-id", "", "run id, namespaces snapshot files")
	pf.StringVar(&raw.JobID, "job-id", "", "job id")
	pf.StringVar(&raw.DataFolder, "data-folder", "./data", "folder holding the JSON snapshots")
	pf.StringVar(&raw.Sources, "sources", sources, "sources to process, comma separated")

	root.AddCommand(syncCmd())
	root.AddCommand(saveCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func addSaveFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&raw.Targets, "targets", "notion", "targets to push, comma separated")
	f.IntVar(&raw.TopicsTopK, "topics-top-k", 3, "pick top-k topics to push")
	f.IntVar(&raw.CategoriesTopK, "categories-top-k", 3, "pick top-k categories to push")
	f.StringVar(&raw.Dedup, "dedup", "true", "whether to dedup items")
	f.Float64Var(&raw.MinScoreToRank, "min-score-to-rank", 4, "minimum relevance score to start ranking")
	f.Float64Var(&raw.MaxDistance, "max-distance", 0.5, "max distance for similarity search, range [0.0, 1.0]")
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull every source and write its snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context())
		},
	}
}

func saveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Process snapshots and push the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd.Context())
		},
	}
	addSaveFlags(cmd)
	return cmd
}

func statsCmd() *cobra.Command {
	var (
		jsonOutput bool
		label      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded run stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), jsonOutput, label, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&label, "label", "", "only stats of this source label (Article, YouTube, RSS)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max stats to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon: sync and save on a schedule, with the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	addSaveFlags(cmd)
	return cmd
}
