// Package cmd defines the CLI commands for the genealogy crawler.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mathgene/genealogy-crawler/internal/config"
	"github.com/mathgene/genealogy-crawler/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genealogy-crawler",
		Short: "Harvests an academic mentorship graph into Postgres",
		Long: `genealogy-crawler incrementally harvests advisor/advisee relationships
and biographical attributes from a paginated genealogy site and persists
them into a normalized relational store. Re-runs skip already-known
nodes, so the crawl resumes for free across restarts.`,

		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A local .env is optional; absence is not an error.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Service:     "genealogy-crawler",
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			logging.Sync(logger)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSchemaCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
