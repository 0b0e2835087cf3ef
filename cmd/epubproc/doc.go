// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Epubproc post-processes a Calibre-produced EPUB for small e-ink
readers: it drops the generated title and index pages, strips images,
replaces the stylesheet and shortens overlong article titles.

# Usage

	$ epubproc [flags...] <input.epub> <output.epub>

A _diagnostics.json file describing the build is embedded into the
output EPUB.

With -source and -device, the page skip count and image stripping
default to that source's device profile in sources.yaml; explicit
flags win. Pass -skip-pages 0 to keep every page.

# Environment Variables

  - WORKFLOW_RUN_ID: CI run identifier recorded in the diagnostics
    file. Defaults to "local".
  - GIT_SHA: commit recorded in the diagnostics file. Defaults to
    "unknown".
*/
package main

import (
	_ "embed"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
