package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
)

const (
	guestCookie = "ilq_guest_id"
	guestPrefix = "guest|"
	RoleGuest   = "guest"
)

// POST /auth/guest issues a session for a browser-scoped guest account. The
// guest role sees page text but, by default, no embedded questions.
func GuestLoginHandler(a *authmw.AuthService, users *Users, secure bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// reuse the guest this browser already has
		if c, err := r.Cookie(guestCookie); err == nil && strings.HasPrefix(c.Value, guestPrefix) {
			var username, role string
			err := users.db.QueryRowContext(ctx, `SELECT username, role FROM users WHERE id=$1`, c.Value).Scan(&username, &role)
			if err == nil && role == RoleGuest {
				setGuestCookie(w, c.Value, secure)
				issue(w, a, authmw.NewSession(c.Value, username, role), secure, log)
				return
			}
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				log.Warn("guest lookup", zap.Error(err))
			}
		}

		sfx := strconv.FormatInt(time.Now().UnixNano(), 36)
		usr, err := users.Put(ctx, User{ID: guestPrefix + sfx, Username: "guest-" + sfx[len(sfx)-6:], Role: RoleGuest}, "")
		if err != nil {
			log.Error("create guest", zap.Error(err))
			http.Error(w, "create guest", http.StatusInternalServerError)
			return
		}
		setGuestCookie(w, usr.ID, secure)
		issue(w, a, authmw.NewSession(usr.ID, usr.Username, usr.Role), secure, log)
	}
}

func setGuestCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     guestCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}
