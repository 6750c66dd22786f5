package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-ilq/internal/api/http"
	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/auth"
	"github.com/mind-engage/mindengage-ilq/internal/config"
)

func newServeCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return o.withApp(ctx, serve)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, a *app.App) error {
	if err := a.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		return err
	}
	srv := &api.Server{
		DB:            a.DB,
		Filter:        a.Filter,
		Pages:         a.Pages,
		Auth:          a.Auth,
		Users:         a.Users,
		Events:        a.Events,
		Checker:       a.Checker,
		Log:           a.Log,
		CORSOrigins:   cfg.CORSOrigins(),
		SecureCookies: cfg.SecureCookies(),
		EnableGuest:   cfg.EnableGuestAuth,
	}
	if cfg.GoogleClientID != "" {
		srv.Google = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI,
			cfg.GoogleAllowedHD, cfg.PublicURL, a.Auth, a.Users, cfg.SecureCookies(), a.Log.Named("google"))
	}
	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	a.Log.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(cfg.Mode)),
		zap.String("db", cfg.DBDriver))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.Log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
