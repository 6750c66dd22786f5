package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// user, so a role change applies before the token expires.
// allowClaimFallback=true keeps the token role for users the table does not
// know (dev/offline); false drops the session instead.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			s, ok := SessionFromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, s.UserID).Scan(&role)
			switch {
			case err == nil:
				if role != "" {
					s.Role = role
				}
				next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))

			case errors.Is(err, sql.ErrNoRows) || isUsersTableMissing(err):
				if allowClaimFallback {
					next.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSession(ctx, Session{})))

			default:
				http.Error(w, "session lookup failed", http.StatusServiceUnavailable)
			}
		})
	}
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}
