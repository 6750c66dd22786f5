package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/config"
)

func newImportCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:     "import <fixture.yaml>",
		Aliases: []string{"seed"},
		Short:   "Load contexts, questions, users and pages from a YAML fixture",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			fx, err := app.ReadFixture(f)
			if err != nil {
				return err
			}
			return o.withApp(cmd.Context(), func(ctx context.Context, _ config.Config, a *app.App) error {
				if err := a.Import(ctx, fx); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions, %d users, %d pages\n",
					len(fx.Questions), len(fx.Users), len(fx.Pages))
				return err
			})
		},
	}
}
