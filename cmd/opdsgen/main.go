// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MylesMCook/bloomberg-daily/internal/atomicio"
	"github.com/MylesMCook/bloomberg-daily/internal/books"
	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/opds"
)

func main() { cli.Main(new(app)) }

type app struct {
	booksDir string
	outDir   string
	baseURL  string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.booksDir, "books", "books", "Read EPUB files from `dir`.")
	fs.StringVar(&a.outDir, "out", "", "Write opds.xml and health.json to `dir`. Defaults to the books directory.")
	fs.StringVar(&a.baseURL, "base-url", "", "Absolute base `URL` of the published site.")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	baseURL := cmp.Or(a.baseURL, env.Getenv("OPDS_BASE_URL"))
	if baseURL == "" {
		return fmt.Errorf("%w: base URL is not set, pass -base-url or set OPDS_BASE_URL", cli.ErrInvalidArgs)
	}
	outDir := cmp.Or(a.outDir, a.booksDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	list, err := books.List(a.booksDir)
	if err != nil {
		return err
	}

	g := &opds.Generator{BaseURL: baseURL}

	feed, err := g.Feed(list)
	if err != nil {
		return err
	}
	if err := atomicio.WriteFile(filepath.Join(outDir, "opds.xml"), feed, 0o644); err != nil {
		return err
	}

	health, err := g.HealthJSON(list)
	if err != nil {
		return err
	}
	if err := atomicio.WriteFile(filepath.Join(outDir, "health.json"), health, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "wrote opds.xml and health.json for %d books to %s\n", len(list), outDir)
	return nil
}
