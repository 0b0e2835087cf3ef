// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/cli/clitest"
	"github.com/MylesMCook/bloomberg-daily/internal/epub"
	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.epub")
	b := &epub.Build{
		Title: "Bloomberg - February 2, 2026",
		Date:  time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Chapters: []epub.Chapter{
			{Title: "Title Page", HTML: "<p>title</p>"},
			{Title: "Index", HTML: "<p>index</p>"},
			{Title: "Stocks Rise as Traders Weigh Fed Cuts: Markets Wrap", HTML: "<p>" + fmt.Sprintf("%01000d", 1) + "</p>"},
		},
	}
	if err := b.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	t.Parallel()

	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "output.epub")

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"no args": {
			WantErr: cli.ErrInvalidArgs,
		},
		"one arg": {
			Args:    []string{input},
			WantErr: cli.ErrInvalidArgs,
		},
		"missing input": {
			Args:        []string{filepath.Join(t.TempDir(), "nope.epub"), output},
			WantErrType: &fs.PathError{},
		},
	})
}

const profilesYAML = `version: "1.0"
sources:
  bloomberg:
    name: Bloomberg
    type: calibre_recipe
    recipe: Bloomberg.recipe
    schedule: "30 10 * * *"
    device_profiles:
      eink:
        skip_pages: [1, 2]
        strip_images: true
      tablet:
        skip_pages: []
        strip_images: false
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(profilesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wantSpine(t *testing.T, path string, want int) {
	t.Helper()
	count, err := epub.SpineCount(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, count, want)
}

func TestSkipPagesZero(t *testing.T) {
	t.Parallel()

	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "output.epub")

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"keeps every page": {
			Args: []string{"-skip-pages", "0", input, output},
			CheckFunc: func(t *testing.T, a *app) {
				wantSpine(t, output, 3)
			},
		},
	})
}

func TestDeviceProfiles(t *testing.T) {
	t.Parallel()

	input := writeInput(t)
	cfg := writeConfig(t)
	dir := t.TempDir()
	eink := filepath.Join(dir, "eink.epub")
	tablet := filepath.Join(dir, "tablet.epub")
	override := filepath.Join(dir, "override.epub")

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"profile sets skip count": {
			Args: []string{"-config", cfg, "-source", "bloomberg", "-device", "eink", input, eink},
			CheckFunc: func(t *testing.T, a *app) {
				wantSpine(t, eink, 1)
			},
		},
		"profile keeps every page": {
			Args: []string{"-config", cfg, "-source", "bloomberg", "-device", "tablet", input, tablet},
			CheckFunc: func(t *testing.T, a *app) {
				wantSpine(t, tablet, 3)
			},
		},
		"flag wins over profile": {
			Args: []string{"-config", cfg, "-source", "bloomberg", "-device", "eink", "-skip-pages", "1", input, override},
			CheckFunc: func(t *testing.T, a *app) {
				wantSpine(t, override, 2)
			},
		},
		"unknown device": {
			Args:    []string{"-config", cfg, "-source", "bloomberg", "-device", "paperweight", input, filepath.Join(dir, "x.epub")},
			WantErr: cli.ErrInvalidArgs,
		},
		"device without source": {
			Args:    []string{"-config", cfg, "-device", "eink", input, filepath.Join(dir, "y.epub")},
			WantErr: cli.ErrInvalidArgs,
		},
	})
}

func TestProcess(t *testing.T) {
	t.Parallel()

	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "output.epub")

	clitest.Run(t, func(t *testing.T) *app { return new(app) }, map[string]clitest.Case[*app]{
		"processes": {
			Args:         []string{input, output},
			Env:          map[string]string{"WORKFLOW_RUN_ID": "12345", "GIT_SHA": "deadbeef"},
			WantInStdout: "1 articles",
			CheckFunc: func(t *testing.T, a *app) {
				count, err := epub.SpineCount(output)
				if err != nil {
					t.Fatal(err)
				}
				testutil.AssertEqual(t, count, 1)
			},
		},
	})
}
