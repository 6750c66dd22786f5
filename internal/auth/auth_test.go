package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/db"
)

func newUsers(t *testing.T) *Users {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	u := NewUsers(h)
	u.cost = bcrypt.MinCost
	return u
}

func TestAuthenticate(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()
	usr, err := users.Put(ctx, User{Username: "ada", Role: "teacher"}, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if usr.ID == "" {
		t.Fatal("no id assigned")
	}

	s, err := users.Authenticate(ctx, "ada", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID != usr.ID || s.Role != "teacher" || s.SessKey == "" {
		t.Fatalf("session = %+v", s)
	}
	s2, _ := users.Authenticate(ctx, "ada", "s3cret")
	if s2.SessKey == s.SessKey {
		t.Fatal("sesskey reused across logins")
	}

	for _, tc := range []struct{ user, pass string }{{"ada", "wrong"}, {"bob", "s3cret"}} {
		if _, err := users.Authenticate(ctx, tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s/%s err = %v", tc.user, tc.pass, err)
		}
	}

	// re-put without a password keeps the hash
	if _, err := users.Put(ctx, User{ID: usr.ID, Username: "ada", Role: "admin"}, ""); err != nil {
		t.Fatal(err)
	}
	s, err = users.Authenticate(ctx, "ada", "s3cret")
	if err != nil || s.Role != "admin" {
		t.Fatalf("after update: %+v, %v", s, err)
	}
}

func TestPutHashRejectsGarbage(t *testing.T) {
	users := newUsers(t)
	if err := users.PutHash(context.Background(), User{ID: "a", Username: "a", Role: "admin"}, "plain"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoginHandlerAndMiddleware(t *testing.T) {
	users := newUsers(t)
	if _, err := users.Put(context.Background(), User{ID: "u1", Username: "ada"}, "pw"); err != nil {
		t.Fatal(err)
	}
	svc := authmw.NewAuthService("test-secret", time.Hour)
	login := LoginHandler(svc, users, false, zap.NewNop())

	body, _ := json.Marshal(map[string]string{"username": "ada", "password": "pw"})
	w := httptest.NewRecorder()
	login(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("login code = %d: %s", w.Code, w.Body)
	}
	var out loginOut
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != authmw.CookieName || cookies[0].Value != out.AccessToken {
		t.Fatalf("cookies = %+v", cookies)
	}

	var got authmw.Session
	probe := authmw.JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = authmw.SessionFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	probe.ServeHTTP(httptest.NewRecorder(), r)
	if got.UserID != "u1" || got.SessKey != out.SessKey || got.Role != "student" {
		t.Fatalf("session from cookie = %+v", got)
	}

	got = authmw.Session{}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+out.AccessToken)
	probe.ServeHTTP(httptest.NewRecorder(), r)
	if got.UserID != "u1" {
		t.Fatalf("session from bearer = %+v", got)
	}

	w = httptest.NewRecorder()
	bad, _ := json.Marshal(map[string]string{"username": "ada", "password": "nope"})
	login(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(bad)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login code = %d", w.Code)
	}
}

func TestForgedTokenIsAnonymous(t *testing.T) {
	svc := authmw.NewAuthService("right", time.Hour)
	other := authmw.NewAuthService("wrong", time.Hour)
	tok, err := other.IssueJWT(authmw.NewSession("u1", "ada", "admin"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Parse(tok); err == nil {
		t.Fatal("forged token parsed")
	}
	anon := true
	h := authmw.JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := authmw.SessionFromContext(r.Context())
		anon = !ok
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if !anon {
		t.Fatal("forged token attached a session")
	}
}

func TestGuestLoginReusesCookie(t *testing.T) {
	users := newUsers(t)
	svc := authmw.NewAuthService("s", time.Hour)
	h := GuestLoginHandler(svc, users, false, zap.NewNop())

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
	var first loginOut
	_ = json.NewDecoder(w.Body).Decode(&first)
	var guest *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == guestCookie {
			guest = c
		}
	}
	if guest == nil || first.Role != RoleGuest {
		t.Fatalf("guest login: %+v cookies=%v", first, w.Result().Cookies())
	}

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	r.AddCookie(guest)
	h(w, r)
	var second loginOut
	_ = json.NewDecoder(w.Body).Decode(&second)
	if second.Username != first.Username {
		t.Fatalf("guest not reused: %q vs %q", second.Username, first.Username)
	}
}

func TestAttachRoleFromDB(t *testing.T) {
	users := newUsers(t)
	if _, err := users.Put(context.Background(), User{ID: "u1", Username: "ada", Role: "teacher"}, ""); err != nil {
		t.Fatal(err)
	}
	var got authmw.Session
	var ok bool
	h := authmw.AttachRoleFromDB(users.db, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = authmw.SessionFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(authmw.WithSession(r.Context(), authmw.Session{UserID: "u1", Role: "student"}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	if !ok || got.Role != "teacher" {
		t.Fatalf("role not refreshed: %+v", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(authmw.WithSession(r.Context(), authmw.Session{UserID: "ghost", Role: "admin"}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	if ok {
		t.Fatalf("unknown user kept session: %+v", got)
	}
}
