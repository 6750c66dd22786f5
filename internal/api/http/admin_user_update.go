package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/auth"
	"github.com/mind-engage/mindengage-ilq/internal/rbac"
)

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// AdminUpdateUserRoleHandler serves PUT /users/{userID}/role. The target may
// be an id or a username; the role must be one the checker knows.
func AdminUpdateUserRoleHandler(users *auth.Users, checker *rbac.Checker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == "" {
			http.Error(w, "missing userID", http.StatusBadRequest)
			return
		}

		var req updateUserRoleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if _, ok := checker.RolePermissions[role]; !ok {
			http.Error(w, "invalid role", http.StatusBadRequest)
			return
		}

		err := users.SetRole(r.Context(), target, role)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, auth.ErrLastAdmin):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case err != nil:
			log.Error("set role", zap.String("target", target), zap.Error(err))
			http.Error(w, "db error", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
