package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathgene/genealogy-crawler/internal/store"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Applies the relational schema to the configured database",

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := store.New(ctx, store.Config{
				DSN:      cfg.DB.DSN,
				MaxConns: cfg.DB.MaxConns,
				MinConns: cfg.DB.MinConns,
			})
			if err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			defer st.Close()

			if err := st.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
