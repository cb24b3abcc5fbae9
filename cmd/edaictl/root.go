// edaictl runs one-shot adjudication tasks against the configured store
// without starting the HTTP server.
//
// Usage:
//
//	edaictl case import -f case.yaml
//	edaictl case show --case-id=<uuid>
//	edaictl adjudicate --case-id=<uuid> [--judge-model=<id>] [--co-judge-model=<id>]
//	edaictl verdicts --case-id=<uuid>
//	edaictl settings show
//	edaictl settings set --provider=<name> --api-key=<key>
//	edaictl rag query <text>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	edai "github.com/manthanabc/EDAI-5"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	storage    string
	sqlitePath string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "edaictl",
	Short:         "Operate the EDAI adjudication pipeline from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.storage, "storage", "", "Storage backend override (postgres|sqlite)")
	pf.StringVar(&rootFlags.sqlitePath, "sqlite-path", "", "SQLite database path override")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(adjudicateCmd)
	rootCmd.AddCommand(verdictsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(ragCmd)
	rootCmd.Version = version
}

// newApp builds the shared wiring. Callers must Close it.
func newApp() (*edai.App, error) {
	level := slog.LevelWarn
	if rootFlags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []edai.Option{edai.WithLogger(logger), edai.WithVersion(version)}
	if rootFlags.storage != "" {
		opts = append(opts, edai.WithStorage(rootFlags.storage))
	}
	if rootFlags.sqlitePath != "" {
		opts = append(opts, edai.WithSQLitePath(rootFlags.sqlitePath))
	}
	app, err := edai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return app, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
