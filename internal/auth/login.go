package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
)

type loginOut struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	SessKey     string `json:"sesskey"`
}

func setSessionCookie(w http.ResponseWriter, a *authmw.AuthService, tok string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.TTL().Seconds()),
	})
}

func issue(w http.ResponseWriter, a *authmw.AuthService, s authmw.Session, secure bool, log *zap.Logger) {
	tok, err := a.IssueJWT(s)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, a, tok, secure)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginOut{AccessToken: tok, Username: s.Username, Role: s.Role, SessKey: s.SessKey})
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *authmw.AuthService, users *Users, secure bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.Error("login", zap.String("username", req.Username), zap.Error(err))
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		log.Info("login", zap.String("user", s.UserID), zap.String("role", s.Role))
		issue(w, a, s, secure, log)
	}
}

// POST /auth/logout clears the session cookie.
func LogoutHandler(secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     authmw.CookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
