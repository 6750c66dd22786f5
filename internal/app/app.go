// Package app wires the stores, the attempt service and the filter from
// config. The server and the CLI share it.
package app

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/auth"
	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/config"
	"github.com/mind-engage/mindengage-ilq/internal/content"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/filter"
	"github.com/mind-engage/mindengage-ilq/internal/grading"
	"github.com/mind-engage/mindengage-ilq/internal/qengine"
	"github.com/mind-engage/mindengage-ilq/internal/rbac"
	"github.com/mind-engage/mindengage-ilq/internal/syncx"
)

type App struct {
	DB       *sql.DB
	Store    *db.Store
	Bank     *qengine.Bank
	Contexts *qengine.Contexts
	Usages   *qengine.Usages
	Events   *syncx.EventRepo
	Users    *auth.Users
	Pages    *content.Store
	Checker  *rbac.Checker
	Authz    *rbac.Authz
	Auth     *authmw.AuthService
	Filter   *filter.Filter
	Log      *zap.Logger
}

func New(h *sql.DB, cfg config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		DB:       h,
		Store:    db.NewStore(h),
		Bank:     qengine.NewBank(h),
		Contexts: qengine.NewContexts(h),
		Events:   syncx.NewEventRepo(h, cfg.SiteID),
		Users:    auth.NewUsers(h),
		Pages:    content.NewStore(h),
		Checker:  rbac.NewChecker(rbac.Merge(cfg.Roles)),
		Auth:     authmw.NewAuthService(cfg.AuthSecret, cfg.SessionTTL),
		Log:      log,
	}
	a.Usages = qengine.NewUsages(a.Store, a.Bank, grading.NewDefaultGrader(), a.Events)
	a.Authz = rbac.NewAuthz(h, a.Checker, log.Named("authz"))
	a.Filter = filter.New(filter.Deps{
		Bank:     a.Bank,
		Attempts: a.Usages,
		Authz:    a.Authz,
		Contexts: a.Contexts,
		Store:    a.Store,
		Log:      log.Named("filter"),
	})
	return a
}
