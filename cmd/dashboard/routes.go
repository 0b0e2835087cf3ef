// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/MylesMCook/bloomberg-daily/internal/api/github"
	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/opds"
	"github.com/MylesMCook/bloomberg-daily/internal/request"
	"github.com/MylesMCook/bloomberg-daily/internal/web"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
})

const configPath = "config/sources.yaml"

func (e *engine) initRoutes() {
	e.mux = http.NewServeMux()

	e.mux.HandleFunc("GET /{$}", e.authed(e.handleDashboard))
	e.mux.HandleFunc("GET /login", e.handleLogin)
	e.mux.HandleFunc("GET /auth/callback", e.handleCallback)
	e.mux.HandleFunc("GET /logout", e.handleLogout)

	e.mux.HandleFunc("POST /api/trigger", e.authed(e.handleTrigger))
	e.mux.HandleFunc("GET /api/runs", e.authed(e.handleRuns))
	e.mux.HandleFunc("GET /api/health", e.authed(e.handleHealth))
	e.mux.HandleFunc("GET /api/config", e.authed(e.handleConfigGet))
	e.mux.HandleFunc("PUT /api/config", e.authed(e.handleConfigPut))

	web.Health(e.mux).RegisterFunc("github", e.githubCheck)

	dbg := web.Debugger(e.logf, e.mux)
	dbg.KV("Repository", e.repo)
	dbg.KV("Workflow file", e.workflowFile)
	dbg.Handle("log", "Log stream", e.logStream)
}

func (e *engine) githubCheck() (status string, ok bool) {
	// Cheap liveness signal: the client is configured. Actual API
	// failures surface in handler responses and the log stream.
	if e.ghToken == "" {
		return "no token", false
	}
	return "configured", true
}

// fetchHealth grabs health.json from the published catalog.
func (e *engine) fetchHealth(ctx context.Context) (*opds.Health, error) {
	if e.baseURL == "" {
		return nil, fmt.Errorf("BASE_URL is not set")
	}
	u := strings.TrimSuffix(e.baseURL, "/") + "/health.json"
	return request.MakeJSON[*opds.Health](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        u,
		HTTPClient: e.httpc,
		Scrubber:   e.scrubber,
	})
}

func (e *engine) handleDashboard(w http.ResponseWriter, r *http.Request) {
	login, err := e.sessionLogin(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := struct {
		Login        string
		Repo         string
		WorkflowFile string
		Health       *opds.Health
		HealthErr    error
		Runs         []github.WorkflowRun
		RunsErr      error
		Stylesheet   string
	}{
		Login:        login,
		Repo:         e.repo,
		WorkflowFile: e.workflowFile,
		Stylesheet:   web.StaticFS.HashName("static/css/main.css"),
	}

	data.Health, data.HealthErr = e.fetchHealth(r.Context())
	if runs, err := e.ghc.ListWorkflowRuns(r.Context(), e.repo, e.workflowFile, 10); err != nil {
		data.RunsErr = err
	} else {
		data.Runs = runs.Runs
	}

	var buf bytes.Buffer
	if err := templates().ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		web.RespondError(e.logf, w, err)
		return
	}
	buf.WriteTo(w)
}

func (e *engine) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var inputs map[string]string
	if src := r.FormValue("source"); src != "" {
		inputs = map[string]string{"source": src}
	}

	if err := e.ghc.DispatchWorkflow(r.Context(), e.repo, e.workflowFile, "main", inputs); err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	e.logf("Dispatched %s on %s (inputs: %v).", e.workflowFile, e.repo, inputs)

	// Forms land back on the dashboard, API clients get JSON.
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	web.RespondJSON(w, map[string]string{"status": "ok"})
}

func (e *engine) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := e.ghc.ListWorkflowRuns(r.Context(), e.repo, e.workflowFile, 10)
	if err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	web.RespondJSON(w, runs)
}

func (e *engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := e.fetchHealth(r.Context())
	if err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	web.RespondJSON(w, h)
}

type configResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

func (e *engine) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	f, err := e.ghc.GetContents(r.Context(), e.repo, configPath, "")
	if err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	content, err := f.Decode()
	if err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	web.RespondJSON(w, configResponse{Content: string(content), SHA: f.SHA})
}

func (e *engine) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.RespondJSONError(e.logf, w, fmt.Errorf("%w: %v", web.ErrBadRequest, err))
		return
	}
	if req.SHA == "" {
		web.RespondJSONError(e.logf, w, fmt.Errorf("%w: sha is required", web.ErrBadRequest))
		return
	}

	// Reject configs that would break the pipeline before they ever
	// reach the repository.
	if _, err := config.Parse([]byte(req.Content)); err != nil {
		web.RespondJSONError(e.logf, w, fmt.Errorf("%w: %v", web.ErrBadRequest, err))
		return
	}

	login, _ := e.sessionLogin(r)
	message := req.Message
	if message == "" {
		message = fmt.Sprintf("Update %s via dashboard (%s)", configPath, login)
	}

	if err := e.ghc.PutContents(r.Context(), e.repo, configPath, "main", message, []byte(req.Content), req.SHA); err != nil {
		web.RespondJSONError(e.logf, w, err)
		return
	}
	e.logf("Updated %s (%s).", configPath, login)
	web.RespondJSON(w, map[string]string{"status": "ok"})
}
