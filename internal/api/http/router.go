package http

import (
	"database/sql"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/auth"
	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/content"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/filter"
	"github.com/mind-engage/mindengage-ilq/internal/logging"
	"github.com/mind-engage/mindengage-ilq/internal/rbac"
	"github.com/mind-engage/mindengage-ilq/internal/syncx"
)

// Server holds what the routes need.
type Server struct {
	DB      *sql.DB
	Filter  *filter.Filter
	Pages   *content.Store
	Auth    *authmw.AuthService
	Users   *auth.Users
	Events  *syncx.EventRepo
	Checker *rbac.Checker
	Google  *auth.GoogleOAuth
	Log     *zap.Logger

	CORSOrigins   []string
	SecureCookies bool
	EnableGuest   bool
}

func (s *Server) Routes() nethttp.Handler {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Middleware(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(s.DB))

	r.Post("/auth/login", auth.LoginHandler(s.Auth, s.Users, s.SecureCookies, log))
	r.Post("/auth/logout", auth.LogoutHandler(s.SecureCookies))
	if s.EnableGuest {
		r.Post("/auth/guest", auth.GuestLoginHandler(s.Auth, s.Users, s.SecureCookies, log))
	}
	if s.Google != nil {
		r.Get("/auth/google/login", s.Google.LoginHandler())
		r.Get("/auth/google/callback", s.Google.CallbackHandler())
	}

	// JWT -> role refreshed from the users table -> RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(s.Auth), authmw.AttachRoleFromDB(s.DB, true))

		// anonymous visitors see pages; the filter decides about questions
		pr.Get("/pages/{pageID}", PageHandler(s.Pages, s.Filter, log))
		pr.With(authmw.RequireLogin).
			Post("/pages/{pageID}", PageHandler(s.Pages, s.Filter, log))
		pr.With(s.Checker.Require("page:view")).
			Get("/pages", ListPagesHandler(s.Pages, log))
		pr.With(s.Checker.Require("page:edit")).
			Put("/pages/{pageID}", PutPageHandler(s.Pages, log))

		pr.With(s.Checker.Require("filter:preview")).
			Post("/filter/preview", PreviewHandler(s.Filter, log))

		pr.With(authmw.RequireLogin).
			Post("/me/password", ChangePasswordHandler(s.Users, log))

		ua := &UserAdmin{Users: s.Users, Store: db.NewStore(s.DB), Checker: s.Checker, Log: log}
		pr.With(s.Checker.Require("users:list")).
			Get("/users", ua.List)
		pr.With(s.Checker.Require("users:bulk_upsert")).
			Post("/users", ua.BulkUpsert)
		pr.With(s.Checker.Require("users:set_role")).
			Put("/users/{userID}/role", AdminUpdateUserRoleHandler(s.Users, s.Checker, log))

		if s.Events != nil {
			pr.With(s.Checker.Require("events:read")).
				Get("/events", EventsHandler(s.Events, log))
		}
	})
	return r
}
