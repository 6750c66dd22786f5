package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/config"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/logging"
)

type rootOpts struct {
	configPath string
	dbDriver   string
	dbDSN      string
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{}
	cmd := &cobra.Command{
		Use:           "ilqd",
		Short:         "Inline question filter server and tools",
		Long:          "Serves pages with embedded {ILQ:...} questions and manages the site data behind them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "YAML config file (default $ILQ_CONFIG)")
	cmd.PersistentFlags().StringVar(&o.dbDriver, "db-driver", "", "override db_driver (sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&o.dbDSN, "db-dsn", "", "override db_dsn")

	cmd.AddCommand(
		newServeCmd(o),
		newFilterCmd(o),
		newParseCmd(),
		newMigrateCmd(o),
		newImportCmd(o),
		newEventsCmd(o),
	)
	return cmd
}

func (o *rootOpts) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.dbDriver != "" {
		cfg.DBDriver = o.dbDriver
	}
	if o.dbDSN != "" {
		cfg.DBDSN = o.dbDSN
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// withApp opens the database, runs fn and closes everything again.
func (o *rootOpts) withApp(ctx context.Context, fn func(ctx context.Context, cfg config.Config, a *app.App) error) (err error) {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	h, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() { err = multierr.Append(err, h.Close()) }()

	return fn(ctx, cfg, app.New(h, cfg, log))
}
