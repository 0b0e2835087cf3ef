// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Dashboard is the web control panel for the news pipeline: it shows
archive health, lists recent workflow runs, triggers fetches and edits
sources.yaml, all through the GitHub API.

Access is restricted to an allow-list of GitHub users via the OAuth
web flow.

# Usage

	$ dashboard [flags...]

# Environment Variables

Variables can also be put in a .env file in the working directory.

  - GH_CLIENT_ID: GitHub OAuth app client ID.
  - GH_CLIENT_SECRET: GitHub OAuth app client secret.
  - GH_TOKEN: server-side GitHub token used for workflow dispatch and
    repository contents access.
  - REPO: repository in "owner/name" form that hosts the pipeline.
  - WORKFLOW_FILE: workflow file to dispatch. Defaults to "daily.yml".
  - ALLOWED_LOGINS: comma-separated GitHub logins allowed to sign in.
  - SESSION_SECRET: secret used to sign session cookies.
  - BASE_URL: absolute base URL of the published catalog, used to
    fetch health.json.
  - HOST: public host of the dashboard itself, used to build the OAuth
    redirect URL.
*/
package main

import (
	_ "embed"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
