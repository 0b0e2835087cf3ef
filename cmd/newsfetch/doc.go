// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Newsfetch fetches configured news sources and writes date-stamped EPUB
files into the books directory.

# Usage

	$ newsfetch [flags...]

Sources are defined in sources.yaml. By default newsfetch runs every
enabled scheduled source; pass -source to run a single source
regardless of its schedule mode, for example when a fetch is triggered
manually from the dashboard.

A source whose EPUB for today already exists is skipped unless -force
is given.

# Environment Variables

  - CALIBRE_BIN: path to the ebook-convert binary used by Calibre
    recipe sources. Defaults to "ebook-convert" from PATH.
*/
package main

import (
	_ "embed"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
