// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/books"
	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/filelock"
	"github.com/MylesMCook/bloomberg-daily/internal/source"
)

func main() { cli.Main(new(app)) }

type app struct {
	configPath string
	booksDir   string
	source     string
	force      bool
	dry        bool
	timeout    time.Duration

	// used in tests
	now func() time.Time
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.configPath, "config", "config/sources.yaml", "Load configuration from `path`.")
	fs.StringVar(&a.booksDir, "books", "books", "Write EPUB files to `dir`.")
	fs.StringVar(&a.source, "source", "", "Fetch only this source `ID`, regardless of its schedule mode.")
	fs.BoolVar(&a.force, "force", false, "Fetch even when today's EPUB already exists.")
	fs.BoolVar(&a.dry, "dry", false, "Only show what would be fetched.")
	fs.DurationVar(&a.timeout, "timeout", 30*time.Minute, "Give up on a single source after `duration`.")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	var ids []string
	if a.source != "" {
		s, ok := cfg.Sources[a.source]
		if !ok {
			return fmt.Errorf("%w: source %q is not configured", cli.ErrInvalidArgs, a.source)
		}
		if !s.IsEnabled() {
			return fmt.Errorf("source %q is disabled", a.source)
		}
		ids = []string{a.source}
	} else {
		ids = cfg.EnabledSources(config.ModeScheduled)
		slices.Sort(ids)
	}
	if len(ids) == 0 {
		env.Logf("Nothing to fetch.")
		return nil
	}

	if err := os.MkdirAll(a.booksDir, 0o755); err != nil {
		return err
	}

	lock, err := filelock.Acquire(filepath.Join(a.booksDir, ".fetch.lock"), fmt.Sprintf("pid %d", os.Getpid()))
	if err != nil {
		if errors.Is(err, filelock.ErrAlreadyLocked) {
			return errors.New("another fetch is already running")
		}
		return err
	}
	defer lock.Release()

	now := time.Now
	if a.now != nil {
		now = a.now
	}
	today := now()

	var failed []string
	for _, id := range ids {
		if err := a.fetchOne(ctx, env, cfg.Sources[id], id, today); err != nil {
			env.Logf("Fetching %s failed: %v", id, err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d sources failed: %v", len(failed), len(ids), failed)
	}
	return nil
}

func (a *app) fetchOne(ctx context.Context, env *cli.Env, s config.Source, id string, today time.Time) error {
	out := filepath.Join(a.booksDir, books.Filename(s.Name, today))

	if !a.force {
		if _, err := os.Stat(out); err == nil {
			fmt.Fprintf(env.Stdout, "%s: %s already exists, skipping\n", id, filepath.Base(out))
			return nil
		}
	}
	if a.dry {
		fmt.Fprintf(env.Stdout, "%s: would fetch %s\n", id, filepath.Base(out))
		return nil
	}

	f, err := source.New(id, s, source.Options{
		Logf:       env.Logf,
		CalibreBin: env.Getenv("CALIBRE_BIN"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Fetch to a temporary name so a half-written EPUB never becomes
	// visible to the catalog generator. The name still has to end in
	// .epub, both for validation and for ebook-convert to pick the
	// right output format.
	tmp := strings.TrimSuffix(out, ".epub") + ".tmp.epub"
	defer os.Remove(tmp)
	res, err := f.Fetch(ctx, tmp)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "%s: fetched %s (%d articles, %.1f MB, took %v)\n",
		id, filepath.Base(out), res.ArticleCount, float64(res.Size)/(1<<20), res.Duration)
	return nil
}
