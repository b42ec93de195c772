// Command lawkhoj is the pipeline CLI: it ingests statute documents
// into the canonical store, activates transition mappings, populates
// the vector index, and serves hybrid search queries. Reports go to
// stdout; structured logs go to stderr.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// timeUnit rounds report durations for display
const timeUnit = time.Millisecond

var (
	flagConfig  string
	flagDB      string
	flagIndex   string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "lawkhoj",
		Short:         "Statute ingestion and hybrid retrieval pipeline",
		Version:       fmt.Sprintf("%s (built %s, driver %s)", version, buildTime, storage.DriverName),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config overlay")
	root.PersistentFlags().StringVar(&flagDB, "db", "lawkhoj.db", "path to the canonical store")
	root.PersistentFlags().StringVar(&flagIndex, "index", "lawkhoj_index.db", "path to the vector index")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(),
		newActivateCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

func openStore() (storage.Store, error) {
	return storage.NewSQLiteStore(flagDB)
}
