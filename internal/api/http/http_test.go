package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	api "github.com/mind-engage/mindengage-ilq/internal/api/http"
	"github.com/mind-engage/mindengage-ilq/internal/app"
	"github.com/mind-engage/mindengage-ilq/internal/config"
	"github.com/mind-engage/mindengage-ilq/internal/db"
)

const site = `
courses:
  - {id: 2, shortname: c2, fullname: Course two}
contexts:
  - {id: 1, level: system, instance: 0, path: /1}
  - {id: 5, level: course, instance: 2, path: /1/5}
categories:
  - {id: 3, name: Default, context_id: 5}
questions:
  - {id: 42, category_id: 3, name: Capital, type: short_word, prompt: "<p>Capital of France?</p>", answer: [Paris], max_mark: 2}
users:
  - {id: u-ada, username: ada, password: pw, role: student, courses: [2]}
  - {id: u-eve, username: eve, password: pw, role: student}
  - {id: u-tom, username: tom, password: pw, role: teacher}
  - {id: u-root, username: root, password: pw, role: admin}
pages:
  - {id: intro, title: Intro, content: "<p>Try:</p>{ILQ:id=42}", course_id: 2}
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })

	a := app.New(h, config.Defaults(), nil)
	f, err := app.ReadFixture(strings.NewReader(site))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Import(ctx, f); err != nil {
		t.Fatal(err)
	}
	srv := &api.Server{
		DB: h, Filter: a.Filter, Pages: a.Pages, Auth: a.Auth,
		Users: a.Users, Events: a.Events, Checker: a.Checker,
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

type session struct {
	Token   string `json:"access_token"`
	SessKey string `json:"sesskey"`
}

func login(t *testing.T, ts *httptest.Server, user string) session {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": user, "password": "pw"})
	res, err := http.Post(ts.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d", user, res.StatusCode)
	}
	var s session
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	return s
}

func do(t *testing.T, req *http.Request, s session) (int, string) {
	t.Helper()
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values, s session) (int, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, req, s)
}

var usageRe = regexp.MustCompile(`name="usage_id" value="(\d+)"`)

func TestPageRoundTrip(t *testing.T) {
	ts := newServer(t)
	ada := login(t, ts, "ada")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/pages/intro", nil)
	code, body := do(t, req, ada)
	if code != http.StatusOK {
		t.Fatalf("GET page: %d %s", code, body)
	}
	m := usageRe.FindStringSubmatch(body)
	if m == nil || strings.Contains(body, "{ILQ") {
		t.Fatalf("no question form in page:\n%s", body)
	}
	if !strings.Contains(body, `value="`+ada.SessKey+`"`) {
		t.Fatal("form does not carry the sesskey")
	}

	usage := m[1]
	prefix := "q" + usage + ":1_"
	form := url.Values{
		"sesskey":                 {ada.SessKey},
		"usage_id":                {usage},
		"question_id":             {"42"},
		prefix + "answer":         {"Paris"},
		prefix + "-submit":        {"Check"},
		prefix + ":sequencecheck": {"1"},
	}
	code, body = postForm(t, ts, "/pages/intro", form, ada)
	if code != http.StatusOK {
		t.Fatalf("POST page: %d %s", code, body)
	}
	if !strings.Contains(body, `<div class="state">Correct</div>`) || !strings.Contains(body, `name="usage_id" value="`+usage+`"`) {
		t.Fatalf("postback did not grade usage %s:\n%s", usage, body)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/events", nil)
	if code, _ := do(t, req, ada); code != http.StatusForbidden {
		t.Fatalf("student events: %d", code)
	}
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/events?after=0", nil)
	code, body = do(t, req, login(t, ts, "root"))
	if code != http.StatusOK || !strings.Contains(body, `"usage_started"`) || !strings.Contains(body, `"actions_processed"`) {
		t.Fatalf("events: %d %s", code, body)
	}

	form.Set("sesskey", "forged")
	if code, _ := postForm(t, ts, "/pages/intro", form, ada); code != http.StatusForbidden {
		t.Fatalf("forged sesskey: %d", code)
	}
}

func TestPageLeavesTextForAnonymousAndUnenrolled(t *testing.T) {
	ts := newServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/pages/intro", nil)
	code, body := do(t, req, session{})
	if code != http.StatusOK || !strings.Contains(body, "{ILQ:id=42}") {
		t.Fatalf("anonymous: %d %s", code, body)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/pages/intro", nil)
	_, body = do(t, req, login(t, ts, "eve"))
	if !strings.Contains(body, "{ILQ:id=42}") {
		t.Fatalf("unenrolled user got questions:\n%s", body)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/pages/missing", nil)
	if code, _ := do(t, req, session{}); code != http.StatusNotFound {
		t.Fatalf("missing page: %d", code)
	}
}

func TestPreview(t *testing.T) {
	ts := newServer(t)
	body := `{"text":"a {ILQ:id=42,x} b {ILQ:x} c","courseid":2}`

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/filter/preview", strings.NewReader(body))
	if code, _ := do(t, req, login(t, ts, "ada")); code != http.StatusForbidden {
		t.Fatalf("student preview: %d", code)
	}

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/filter/preview", strings.NewReader(body))
	code, out := do(t, req, login(t, ts, "tom"))
	if code != http.StatusOK {
		t.Fatalf("teacher preview: %d %s", code, out)
	}
	var res struct {
		HTML  string `json:"html"`
		Error string `json:"error"`
		Tags  []struct {
			Raw        string   `json:"raw"`
			InvalidIDs []string `json:"invalid_ids"`
			Error      string   `json:"error"`
		} `json:"tags"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	// the malformed second tag leaves the whole text alone
	if res.Error == "" || !strings.Contains(res.HTML, "{ILQ:id=42,x}") {
		t.Fatalf("preview = %+v", res)
	}
	if len(res.Tags) != 2 || res.Tags[0].Error != "" || res.Tags[1].Error == "" ||
		len(res.Tags[0].InvalidIDs) != 1 || res.Tags[0].InvalidIDs[0] != "x" {
		t.Fatalf("tags = %+v", res.Tags)
	}
}

func TestUserAdmin(t *testing.T) {
	ts := newServer(t)
	tom, root := login(t, ts, "tom"), login(t, ts, "root")

	rows := `[{"username":"zed","password":"pw","course_id":2},{"username":"ada","role":"teacher"}]`
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/users", strings.NewReader(rows))
	if code, _ := do(t, req, tom); code != http.StatusForbidden {
		t.Fatalf("teacher bulk upsert: %d", code)
	}
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/users", strings.NewReader(rows))
	req.Header.Set("Content-Type", "application/json")
	code, body := do(t, req, root)
	if code != http.StatusOK || !strings.Contains(body, `"inserted":1`) || !strings.Contains(body, `"updated":1`) {
		t.Fatalf("bulk upsert: %d %s", code, body)
	}
	login(t, ts, "zed")

	// a new user without a password rejects the whole batch
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/users", strings.NewReader(`[{"username":"amy"},{"username":"bo","password":"x"}]`))
	if code, _ := do(t, req, root); code != http.StatusBadRequest {
		t.Fatalf("bad batch: %d", code)
	}

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/users/ada/role", strings.NewReader(`{"role":"wizard"}`))
	if code, _ := do(t, req, root); code != http.StatusBadRequest {
		t.Fatalf("unknown role: %d", code)
	}
	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/users/root/role", strings.NewReader(`{"role":"student"}`))
	if code, _ := do(t, req, root); code != http.StatusBadRequest {
		t.Fatalf("demote last admin: %d", code)
	}
	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/users/ada/role", strings.NewReader(`{"role":"student"}`))
	if code, _ := do(t, req, root); code != http.StatusNoContent {
		t.Fatalf("set role: %d", code)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/users?role=student", nil)
	code, body = do(t, req, root)
	var users []struct{ Username string }
	if err := json.Unmarshal([]byte(body), &users); code != http.StatusOK || err != nil {
		t.Fatalf("list: %d %v", code, err)
	}
	if len(users) != 3 { // ada, eve, zed
		t.Fatalf("students = %+v", users)
	}
}

func TestChangePassword(t *testing.T) {
	ts := newServer(t)
	ada := login(t, ts, "ada")
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/me/password", strings.NewReader(`{"old_password":"nope","new_password":"pw2"}`))
	if code, _ := do(t, req, ada); code != http.StatusForbidden {
		t.Fatalf("wrong old password: %d", code)
	}
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/me/password", strings.NewReader(`{"old_password":"pw","new_password":"pw2"}`))
	if code, _ := do(t, req, ada); code != http.StatusNoContent {
		t.Fatalf("change password: %d", code)
	}
}

func TestHealth(t *testing.T) {
	ts := newServer(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+p, nil)
		if code, _ := do(t, req, session{}); code != http.StatusOK {
			t.Errorf("%s: %d", p, code)
		}
	}
}
