package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
)

const (
	oauthStateCookie    = "ilq_oauth_state"
	oauthRedirectCookie = "ilq_post_auth_redirect"
	googlePrefix        = "google|"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GoogleOAuth signs users in with their Google account. Unknown emails get a
// student account; a known username keeps its id and role.
type GoogleOAuth struct {
	OAuth        oauth2.Config
	AllowedHD    string
	PublicURL    string
	TokenInfoURL string
	Client       *http.Client

	Auth   *authmw.AuthService
	Users  *Users
	Secure bool
	Log    *zap.Logger
}

func NewGoogleOAuth(clientID, secret, redirectURI, allowedHD, publicURL string, a *authmw.AuthService, users *Users, secure bool, log *zap.Logger) *GoogleOAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &GoogleOAuth{
		OAuth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleEndpoint,
		},
		AllowedHD:    allowedHD,
		PublicURL:    publicURL,
		TokenInfoURL: "https://oauth2.googleapis.com/tokeninfo",
		Auth:         a,
		Users:        users,
		Secure:       secure,
		Log:          log,
	}
}

// GET /auth/google/login?redirect=... sends the browser to Google.
func (g *GoogleOAuth) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("redirect")
		if next == "" {
			next = r.Referer()
		}
		if next != "" && !g.sameOrigin(next) {
			http.Error(w, "bad redirect", http.StatusBadRequest)
			return
		}
		if next == "" {
			next = g.home()
		}

		state := uuid.NewString()
		g.setShortCookie(w, oauthStateCookie, state, 10*time.Minute)
		g.setShortCookie(w, oauthRedirectCookie, url.QueryEscape(next), 10*time.Minute)

		opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("include_granted_scopes", "true")}
		if g.AllowedHD != "" {
			opts = append(opts, oauth2.SetAuthURLParam("hd", g.AllowedHD))
		}
		http.Redirect(w, r, g.OAuth.AuthCodeURL(state, opts...), http.StatusFound)
	}
}

type googleTokenInfo struct {
	Iss           string `json:"iss"`
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	HD            string `json:"hd"`
}

// GET /auth/google/callback exchanges the code, checks the id_token with
// Google and issues a session cookie before redirecting back.
func (g *GoogleOAuth) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		c, err := r.Cookie(oauthStateCookie)
		if err != nil || q.Get("state") == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		if g.Client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, g.Client)
		}
		tok, err := g.OAuth.Exchange(ctx, code)
		if err != nil {
			g.Log.Warn("google token exchange", zap.Error(err))
			http.Error(w, "token exchange error", http.StatusBadGateway)
			return
		}
		idToken, _ := tok.Extra("id_token").(string)
		if idToken == "" {
			http.Error(w, "bad token response", http.StatusBadGateway)
			return
		}
		ti, err := g.tokenInfo(ctx, idToken)
		if err != nil {
			g.Log.Warn("google tokeninfo", zap.Error(err))
			http.Error(w, "tokeninfo error", http.StatusBadGateway)
			return
		}
		if err := g.check(ti); err != nil {
			g.Log.Info("google login refused", zap.String("email", ti.Email), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		s, err := g.session(ctx, ti)
		if err != nil {
			g.Log.Error("google user", zap.String("email", ti.Email), zap.Error(err))
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		jwt, err := g.Auth.IssueJWT(s)
		if err != nil {
			g.Log.Error("issue token", zap.Error(err))
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, g.Auth, jwt, g.Secure)
		g.Log.Info("google login", zap.String("user", s.UserID), zap.String("role", s.Role))

		target := g.home()
		if c, err := r.Cookie(oauthRedirectCookie); err == nil {
			if raw, _ := url.QueryUnescape(c.Value); raw != "" && g.sameOrigin(raw) {
				target = raw
			}
		}
		g.setShortCookie(w, oauthStateCookie, "", -1)
		g.setShortCookie(w, oauthRedirectCookie, "", -1)
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func (g *GoogleOAuth) tokenInfo(ctx context.Context, idToken string) (googleTokenInfo, error) {
	var ti googleTokenInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.TokenInfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return ti, err
	}
	hc := g.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return ti, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return ti, fmt.Errorf("tokeninfo: status %d", res.StatusCode)
	}
	err = json.NewDecoder(res.Body).Decode(&ti)
	return ti, err
}

func (g *GoogleOAuth) check(ti googleTokenInfo) error {
	switch {
	case ti.Aud != g.OAuth.ClientID:
		return errors.New("invalid aud")
	case ti.Iss != "accounts.google.com" && ti.Iss != "https://accounts.google.com":
		return errors.New("invalid iss")
	case ti.Email == "" || ti.EmailVerified != "true":
		return errors.New("email not verified")
	case g.AllowedHD != "" && !strings.EqualFold(ti.HD, g.AllowedHD):
		return errors.New("unauthorized domain")
	}
	return nil
}

func (g *GoogleOAuth) session(ctx context.Context, ti googleTokenInfo) (authmw.Session, error) {
	usr, _, err := g.Users.ByUsername(ctx, ti.Email)
	if errors.Is(err, sql.ErrNoRows) {
		usr, err = g.Users.Put(ctx, User{ID: googlePrefix + ti.Sub, Username: ti.Email, Role: "student"}, "")
	}
	if err != nil {
		return authmw.Session{}, err
	}
	return authmw.NewSession(usr.ID, usr.Username, usr.Role), nil
}

func (g *GoogleOAuth) home() string {
	return strings.TrimRight(g.PublicURL, "/") + "/"
}

// sameOrigin allows relative targets, the public URL's origin and localhost.
func (g *GoogleOAuth) sameOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return u.Scheme == "" && !strings.HasPrefix(target, "//")
	}
	if h := u.Hostname(); h == "localhost" || h == "127.0.0.1" {
		return true
	}
	base, err := url.Parse(g.PublicURL)
	return err == nil && base.Host != "" && u.Scheme == base.Scheme && u.Host == base.Host
}

func (g *GoogleOAuth) setShortCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, c)
}
