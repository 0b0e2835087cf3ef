// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MylesMCook/bloomberg-daily/internal/api/github"
	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/httplogger"
	"github.com/MylesMCook/bloomberg-daily/internal/logger"
	"github.com/MylesMCook/bloomberg-daily/internal/util/syncx"
	"github.com/MylesMCook/bloomberg-daily/internal/web"
)

func main() { cli.Main(new(engine)) }

type engine struct {
	init syncx.Lazy[error]

	// initialized by doInit
	ghc       *github.Client
	logf      logger.Logf
	logStream logger.Streamer
	mux       *http.ServeMux
	scrubber  *strings.Replacer

	// configuration, read-only after initialization
	addr          string
	prod          bool
	clientID      string
	clientSecret  string
	ghToken       string
	repo          string
	workflowFile  string
	allowedLogins []string
	sessionSecret []byte
	baseURL       string
	host          string
	httpc         *http.Client
	stderr        io.Writer

	// used in tests
	noServerStart bool
}

const logLineLimit = 300

func (e *engine) Flags(fs *flag.FlagSet) {
	fs.StringVar(&e.addr, "addr", "localhost:3000", "Listen on `host:port`.")
	fs.BoolVar(&e.prod, "prod", false, "Run in production mode (debug endpoints require sign-in).")
}

func (e *engine) Run(ctx context.Context, env *cli.Env) error {
	// A .env file is optional and never overrides the real environment.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return err
		}
	}
	getenv := env.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	e.clientID = cmp.Or(e.clientID, getenv("GH_CLIENT_ID"))
	e.clientSecret = cmp.Or(e.clientSecret, getenv("GH_CLIENT_SECRET"))
	e.ghToken = cmp.Or(e.ghToken, getenv("GH_TOKEN"))
	e.repo = cmp.Or(e.repo, getenv("REPO"))
	e.workflowFile = cmp.Or(e.workflowFile, getenv("WORKFLOW_FILE"), "daily.yml")
	if len(e.allowedLogins) == 0 {
		for _, login := range strings.Split(getenv("ALLOWED_LOGINS"), ",") {
			if login = strings.TrimSpace(login); login != "" {
				e.allowedLogins = append(e.allowedLogins, login)
			}
		}
	}
	if len(e.sessionSecret) == 0 {
		e.sessionSecret = []byte(getenv("SESSION_SECRET"))
	}
	e.baseURL = cmp.Or(e.baseURL, getenv("BASE_URL"))
	e.host = cmp.Or(e.host, getenv("HOST"), e.addr)
	e.stderr = env.Stderr

	if err := e.init.Get(e.doInit); err != nil {
		return err
	}

	if e.noServerStart {
		return nil
	}

	return web.ListenAndServe(ctx, &web.ListenAndServeConfig{
		Addr:       e.addr,
		Mux:        e.mux,
		Logf:       e.logf,
		Debuggable: true,
		DebugAuth:  e.debugAuth,
	})
}

func (e *engine) doInit() error {
	switch {
	case e.clientID == "" || e.clientSecret == "":
		return errors.New("GH_CLIENT_ID and GH_CLIENT_SECRET must be set")
	case e.ghToken == "":
		return errors.New("GH_TOKEN must be set")
	case e.repo == "":
		return errors.New("REPO must be set")
	case len(e.allowedLogins) == 0:
		return errors.New("ALLOWED_LOGINS must be set")
	case len(e.sessionSecret) < 16:
		return errors.New("SESSION_SECRET must be set and at least 16 bytes long")
	}

	if e.stderr == nil {
		e.stderr = os.Stderr
	}

	e.logStream = logger.NewStreamer(logLineLimit)
	e.logf = log.New(io.MultiWriter(e.stderr, e.logStream), "", log.LstdFlags).Printf

	if e.httpc == nil {
		e.httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if !e.prod {
		// Trace outgoing GitHub and health.json requests in development.
		e.httpc.Transport = httplogger.New(http.DefaultTransport, httplogger.Logf(e.logf))
	}

	var scrubPairs []string
	for _, val := range []string{e.ghToken, e.clientSecret, string(e.sessionSecret)} {
		if val != "" {
			scrubPairs = append(scrubPairs, val, "[EXPUNGED]")
		}
	}
	e.scrubber = strings.NewReplacer(scrubPairs...)

	e.ghc = &github.Client{
		Token:      e.ghToken,
		HTTPClient: e.httpc,
		Scrubber:   e.scrubber,
	}

	e.initRoutes()
	return nil
}

func (e *engine) debugAuth(r *http.Request) bool {
	if !e.prod {
		return true
	}
	_, err := e.sessionLogin(r)
	return err == nil
}

func (e *engine) redirectURL() string {
	scheme := "https"
	if strings.HasPrefix(e.host, "localhost") || strings.HasPrefix(e.host, "127.0.0.1") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/auth/callback", scheme, e.host)
}
