// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Opdsgen renders the static OPDS catalog (opds.xml) and the health.json
status document from the EPUB files in the books directory. The output
is meant to be published as static files next to the books themselves.

# Usage

	$ opdsgen [flags...]

# Environment Variables

  - OPDS_BASE_URL: absolute base URL of the published site. The
    -base-url flag takes precedence.
*/
package main

import (
	_ "embed"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
