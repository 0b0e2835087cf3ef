// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/cli/clitest"
	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

func writeBooks(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("epub contents"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun(t *testing.T) {
	t.Parallel()

	dir := writeBooks(t, "Bloomberg_2026-02-01.epub", "Bloomberg_2026-02-02.epub")

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"generates": {
			Args:         []string{"-books", dir, "-base-url", "https://example.com/"},
			WantInStdout: "wrote opds.xml and health.json for 2 books",
			CheckFunc: func(t *testing.T, a *app) {
				feed, err := os.ReadFile(filepath.Join(dir, "opds.xml"))
				if err != nil {
					t.Fatal(err)
				}
				for _, want := range []string{
					"urn:uuid:bloomberg-daily-opds-feed",
					"Daily Briefing - Feb 2",
					"https://example.com/books/Bloomberg_2026-02-02.epub",
				} {
					if !strings.Contains(string(feed), want) {
						t.Errorf("opds.xml must contain %q", want)
					}
				}

				health, err := os.ReadFile(filepath.Join(dir, "health.json"))
				if err != nil {
					t.Fatal(err)
				}
				var doc map[string]any
				if err := json.Unmarshal(health, &doc); err != nil {
					t.Fatal(err)
				}
				testutil.AssertEqual(t, doc["status"], "ok")
				testutil.AssertEqual(t, doc["book_count"], float64(2))
			},
		},
		"base URL from environment": {
			Args:         []string{"-books", dir},
			Env:          map[string]string{"OPDS_BASE_URL": "https://example.com/"},
			WantInStdout: "wrote opds.xml",
		},
		"missing base URL": {
			Args:    []string{"-books", dir},
			WantErr: cli.ErrInvalidArgs,
		},
		"separate output directory": {
			Args:         []string{"-books", dir, "-out", filepath.Join(t.TempDir(), "site"), "-base-url", "https://example.com/"},
			WantInStdout: "wrote opds.xml",
		},
	})
}

func TestEmptyArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"empty": {
			Args:         []string{"-books", dir, "-base-url", "https://example.com/"},
			WantInStdout: "for 0 books",
			CheckFunc: func(t *testing.T, a *app) {
				health, err := os.ReadFile(filepath.Join(dir, "health.json"))
				if err != nil {
					t.Fatal(err)
				}
				var doc map[string]any
				if err := json.Unmarshal(health, &doc); err != nil {
					t.Fatal(err)
				}
				testutil.AssertEqual(t, doc["status"], "empty")
			},
		},
	})
}
