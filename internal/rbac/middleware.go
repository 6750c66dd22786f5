package rbac

import (
	"net/http"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
)

// Require enforces a single permission on the session role. Anonymous
// requests get 401, others without the permission 403.
func (c *Checker) Require(perm string) func(http.Handler) http.Handler {
	return c.RequireAny(perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func (c *Checker) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := authmw.SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "login required", http.StatusUnauthorized)
				return
			}
			if !c.Any(s.Role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
