// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MylesMCook/bloomberg-daily/internal/request"
	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

func testClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &Client{
		Token:       "test-token",
		BaseURL:     ts.URL,
		AuthBaseURL: ts.URL,
	}
}

func TestDispatchWorkflow(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var gotBody map[string]any
	mux.HandleFunc("POST /repos/MylesMCook/bloomberg-daily/actions/workflows/daily.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("bad Authorization header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := testClient(t, mux)
	err := c.DispatchWorkflow(context.Background(), "MylesMCook/bloomberg-daily", "daily.yml", "main", map[string]string{"source": "bloomberg"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, gotBody["ref"], "main")
	testutil.AssertEqual(t, gotBody["inputs"], map[string]any{"source": "bloomberg"})
}

func TestListWorkflowRuns(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/MylesMCook/bloomberg-daily/actions/workflows/daily.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Query().Get("per_page"), "5")
		io.WriteString(w, `{
			"total_count": 1,
			"workflow_runs": [{
				"id": 42,
				"name": "daily",
				"status": "completed",
				"conclusion": "success",
				"event": "schedule",
				"run_number": 17
			}]
		}`)
	})

	c := testClient(t, mux)
	runs, err := c.ListWorkflowRuns(context.Background(), "MylesMCook/bloomberg-daily", "daily.yml", 5)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, runs.TotalCount, 1)
	testutil.AssertEqual(t, runs.Runs[0].ID, int64(42))
	testutil.AssertEqual(t, runs.Runs[0].Conclusion, "success")
}

func TestContents(t *testing.T) {
	t.Parallel()

	const yaml = "version: \"1.0\"\nsources: {}\n"

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/MylesMCook/bloomberg-daily/contents/config/sources.yaml", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&File{
			Name:     "sources.yaml",
			Path:     "config/sources.yaml",
			SHA:      "abc123",
			Content:  base64.StdEncoding.EncodeToString([]byte(yaml)),
			Encoding: "base64",
		})
	})
	var gotPut map[string]string
	mux.HandleFunc("PUT /repos/MylesMCook/bloomberg-daily/contents/config/sources.yaml", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPut); err != nil {
			t.Error(err)
		}
		io.WriteString(w, `{"content": {"sha": "def456"}}`)
	})

	c := testClient(t, mux)

	f, err := c.GetContents(context.Background(), "MylesMCook/bloomberg-daily", "config/sources.yaml", "")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, f.SHA, "abc123")
	decoded, err := f.Decode()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(decoded), yaml)

	if err := c.PutContents(context.Background(), "MylesMCook/bloomberg-daily", "config/sources.yaml", "main", "Update sources.yaml", []byte(yaml), "abc123"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, gotPut["sha"], "abc123")
	testutil.AssertEqual(t, gotPut["branch"], "main")
	testutil.AssertEqual(t, gotPut["message"], "Update sources.yaml")
}

func TestMe(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login": "mylesmcook", "name": "Myles M. Cook"}`)
	})

	c := testClient(t, mux)
	u, err := c.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, u.Login, "mylesmcook")
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body["code"] != "good-code" {
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code", "error_description": "The code is wrong."})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_token", "token_type": "bearer"})
	})

	c := testClient(t, mux)

	token, err := c.ExchangeCode(context.Background(), "id", "secret", "good-code")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, token, "gho_token")

	if _, err := c.ExchangeCode(context.Background(), "id", "secret", "bad-code"); err == nil {
		t.Fatal("want error for bad code")
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Bad credentials"}`, http.StatusUnauthorized)
	})

	c := testClient(t, mux)
	_, err := c.Me(context.Background())
	var se *request.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want StatusError, got %v", err)
	}
	testutil.AssertEqual(t, se.StatusCode, http.StatusUnauthorized)
}

func TestScrubber(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom test-token boom", http.StatusInternalServerError)
	})

	c := testClient(t, mux)
	c.Scrubber = strings.NewReplacer("test-token", "[EXPUNGED]")

	_, err := c.Me(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
	if strings.Contains(err.Error(), "test-token") {
		t.Errorf("token leaked into error: %v", err)
	}
	if !strings.Contains(err.Error(), "[EXPUNGED]") {
		t.Errorf("scrubber placeholder missing: %v", err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()

	c := &Client{}
	u := c.AuthorizeURL("my-id", "https://dash.example.com/auth/callback", "nonce123")
	for _, want := range []string{
		"https://github.com/login/oauth/authorize?",
		"client_id=my-id",
		"state=nonce123",
		"redirect_uri=https%3A%2F%2Fdash.example.com%2Fauth%2Fcallback",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("authorize URL missing %q: %s", want, u)
		}
	}
}
