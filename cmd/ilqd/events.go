package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/config"
)

func newEventsCmd(o *rootOpts) *cobra.Command {
	var (
		after int64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the attempt event log as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd.Context(), func(ctx context.Context, _ config.Config, a *app.App) error {
				evs, err := a.Events.Since(ctx, after, limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, ev := range evs {
					if err := enc.Encode(ev); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only events with a larger seq")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	return cmd
}
