// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

const (
	testRepo   = "MylesMCook/bloomberg-daily"
	testLogin  = "mylesmcook"
	testSecret = "0123456789abcdef0123456789abcdef"

	testConfigYAML = "version: \"1.0\"\nsources:\n  bloomberg:\n    name: Bloomberg\n    type: calibre_recipe\n    recipe: recipes/bloomberg.recipe\n    schedule: \"30 10 * * *\"\n"
)

// testEngine builds a fully initialized engine whose GitHub client and
// health.json fetches are served by a local fake.
func testEngine(t *testing.T) (*engine, *dispatchRecorder) {
	t.Helper()

	rec := new(dispatchRecorder)

	gh := http.NewServeMux()
	gh.HandleFunc("POST /repos/"+testRepo+"/actions/workflows/daily.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.dispatches = append(rec.dispatches, string(body))
		w.WriteHeader(http.StatusNoContent)
	})
	gh.HandleFunc("GET /repos/"+testRepo+"/actions/workflows/daily.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total_count": 1, "workflow_runs": [{"id": 7, "status": "completed", "conclusion": "success", "event": "schedule", "run_number": 42}]}`)
	})
	gh.HandleFunc("GET /repos/"+testRepo+"/contents/config/sources.yaml", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"name":     "sources.yaml",
			"path":     "config/sources.yaml",
			"sha":      "abc123",
			"content":  base64.StdEncoding.EncodeToString([]byte(testConfigYAML)),
			"encoding": "base64",
		})
	})
	gh.HandleFunc("PUT /repos/"+testRepo+"/contents/config/sources.yaml", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.puts = append(rec.puts, string(body))
		io.WriteString(w, `{"content": {"sha": "def456"}}`)
	})
	gh.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		login := testLogin
		if r.Header.Get("Authorization") == "Bearer stranger-token" {
			login = "stranger"
		}
		json.NewEncoder(w).Encode(map[string]string{"login": login})
	})
	gh.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		token := "gho_token"
		if req["code"] == "stranger-code" {
			token = "stranger-token"
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": token, "token_type": "bearer"})
	})
	gh.HandleFunc("GET /health.json", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "ok", "book_count": 2, "total_size_mb": 4.2, "books": []}`)
	})
	ts := httptest.NewServer(gh)
	t.Cleanup(ts.Close)

	e := &engine{
		clientID:      "test-client-id",
		clientSecret:  "test-client-secret",
		ghToken:       "test-gh-token",
		repo:          testRepo,
		workflowFile:  "daily.yml",
		allowedLogins: []string{testLogin},
		sessionSecret: []byte(testSecret),
		baseURL:       ts.URL,
		host:          "localhost:3000",
		stderr:        io.Discard,
	}
	if err := e.init.Get(e.doInit); err != nil {
		t.Fatal(err)
	}
	e.ghc.BaseURL = ts.URL
	e.ghc.AuthBaseURL = ts.URL

	return e, rec
}

type dispatchRecorder struct {
	dispatches []string
	puts       []string
}

// signIn returns a valid session cookie for the allowed test user.
func signIn(t *testing.T, e *engine) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := e.issueSession(w, testLogin); err != nil {
		t.Fatal(err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("want 1 cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func send(t *testing.T, e *engine, r *http.Request, wantStatus int) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	res := w.Result()
	if res.StatusCode != wantStatus {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("%s %s: want status %d, got %d: %s", r.Method, r.URL, wantStatus, res.StatusCode, body)
	}
	return res
}

func TestAuthRedirect(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	res := send(t, e, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusFound)
	testutil.AssertEqual(t, res.Header.Get("Location"), "/login")
}

func TestAPIUnauthorized(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	res := send(t, e, httptest.NewRequest(http.MethodGet, "/api/runs", nil), http.StatusUnauthorized)
	testutil.AssertEqual(t, res.Header.Get("Content-Type"), "application/json")
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)
	cookie := signIn(t, e)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	res := send(t, e, r, http.StatusOK)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{testLogin, "2 books", "42", "daily.yml"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("dashboard must contain %q", want)
		}
	}
}

func TestTrigger(t *testing.T) {
	t.Parallel()
	e, rec := testEngine(t)
	cookie := signIn(t, e)

	r := httptest.NewRequest(http.MethodPost, "/api/trigger", strings.NewReader("source=bloomberg"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(cookie)
	send(t, e, r, http.StatusOK)

	testutil.AssertEqual(t, len(rec.dispatches), 1)
	if !strings.Contains(rec.dispatches[0], `"source":"bloomberg"`) {
		t.Errorf("dispatch body missing source input: %s", rec.dispatches[0])
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)
	cookie := signIn(t, e)

	r := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	r.AddCookie(cookie)
	res := send(t, e, r, http.StatusOK)

	var runs struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, runs.TotalCount, 1)
}

func TestHealthProxy(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)
	cookie := signIn(t, e)

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.AddCookie(cookie)
	res := send(t, e, r, http.StatusOK)

	var doc struct {
		Status    string `json:"status"`
		BookCount int    `json:"book_count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, doc.Status, "ok")
	testutil.AssertEqual(t, doc.BookCount, 2)
}

func TestConfig(t *testing.T) {
	t.Parallel()
	e, rec := testEngine(t)
	cookie := signIn(t, e)

	r := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	r.AddCookie(cookie)
	res := send(t, e, r, http.StatusOK)

	var got configResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got.SHA, "abc123")
	testutil.AssertEqual(t, got.Content, testConfigYAML)

	put := func(body string) *http.Request {
		r := httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(body))
		r.AddCookie(cookie)
		return r
	}

	payload, err := json.Marshal(map[string]string{"content": testConfigYAML, "sha": "abc123"})
	if err != nil {
		t.Fatal(err)
	}
	send(t, e, put(string(payload)), http.StatusOK)
	testutil.AssertEqual(t, len(rec.puts), 1)

	// Broken configs never reach the repository.
	payload, err = json.Marshal(map[string]string{"content": "version: \"1.0\"\nsources:\n  bad:\n    name: Bad\n    type: calibre_recipe\n", "sha": "abc123"})
	if err != nil {
		t.Fatal(err)
	}
	send(t, e, put(string(payload)), http.StatusBadRequest)
	testutil.AssertEqual(t, len(rec.puts), 1)

	// A missing sha is rejected.
	send(t, e, put(`{"content": "x"}`), http.StatusBadRequest)
}

func TestOAuthFlow(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	// /login sets the state cookie and redirects to GitHub.
	res := send(t, e, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusFound)
	loc := res.Header.Get("Location")
	if !strings.Contains(loc, "/login/oauth/authorize?") {
		t.Fatalf("unexpected authorize redirect: %s", loc)
	}
	var state *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	if state == nil {
		t.Fatal("state cookie is not set")
	}

	// The callback exchanges the code and issues a session.
	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state.Value, nil)
	r.AddCookie(state)
	res = send(t, e, r, http.StatusFound)
	testutil.AssertEqual(t, res.Header.Get("Location"), "/")

	var session *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	if session == nil {
		t.Fatal("session cookie is not set")
	}

	// The issued session passes the auth check.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(session)
	send(t, e, r, http.StatusOK)
}

func TestOAuthStateMismatch(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=forged", nil)
	r.AddCookie(&http.Cookie{Name: stateCookie, Value: "different"})
	send(t, e, r, http.StatusBadRequest)
}

func TestOAuthDisallowedLogin(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=stranger-code&state=nonce", nil)
	r.AddCookie(&http.Cookie{Name: stateCookie, Value: "nonce"})
	send(t, e, r, http.StatusForbidden)
}

func TestDebugAuth(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	// Development mode: open.
	if !e.debugAuth(httptest.NewRequest(http.MethodGet, "/debug/", nil)) {
		t.Error("debug endpoints must be open in development mode")
	}

	e.prod = true
	if e.debugAuth(httptest.NewRequest(http.MethodGet, "/debug/", nil)) {
		t.Error("debug endpoints must require a session in production mode")
	}

	r := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	r.AddCookie(signIn(t, e))
	if !e.debugAuth(r) {
		t.Error("signed-in user must pass the debug auth check")
	}
}

func TestSessionTampering(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	cookie := signIn(t, e)
	cookie.Value += "x"

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	res := send(t, e, r, http.StatusFound)
	testutil.AssertEqual(t, res.Header.Get("Location"), "/login")
}
