package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/config"
	"github.com/mind-engage/mindengage-ilq/internal/db"
)

func newMigrateCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd.Context(), func(ctx context.Context, cfg config.Config, a *app.App) error {
				if err := db.Migrate(ctx, a.DB, db.Driver(cfg.DBDriver)); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.DBDriver)
				return err
			})
		},
	}
}
