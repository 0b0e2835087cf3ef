// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/MylesMCook/bloomberg-daily/internal/books"
	"github.com/MylesMCook/bloomberg-daily/internal/cli"
)

func main() { cli.Main(new(app)) }

type app struct {
	booksDir string
	keep     int
	dry      bool
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.booksDir, "books", "books", "Prune EPUB files in `dir`.")
	fs.IntVar(&a.keep, "keep", 7, "Keep the newest `N` books.")
	fs.BoolVar(&a.dry, "dry", false, "Only show what would be removed.")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	if a.keep < 1 {
		return fmt.Errorf("%w: -keep must be at least 1", cli.ErrInvalidArgs)
	}

	removed, err := books.Prune(a.booksDir, a.keep, a.dry)
	if err != nil {
		return err
	}

	verb := "removed"
	if a.dry {
		verb = "would remove"
	}
	for _, b := range removed {
		fmt.Fprintf(env.Stdout, "%s %s\n", verb, b.Name)
	}
	env.Logf("Kept the newest %d books, %s %d.", a.keep, verb, len(removed))
	return nil
}
