// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Bookprune enforces the rolling archive policy: it keeps the newest N
EPUB files in the books directory, by the date embedded in the
filename, and deletes the rest.

# Usage

	$ bookprune [flags...]

Files without a date in their name are considered oldest and are
removed first.
*/
package main

import (
	_ "embed"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
