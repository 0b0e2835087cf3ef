// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package source

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/epub"
	"github.com/MylesMCook/bloomberg-daily/internal/logger"
)

// calibreFetcher runs Calibre's ebook-convert with a news recipe. The
// recipe does the actual scraping; we only drive the conversion and
// check the result.
type calibreFetcher struct {
	id   string
	src  config.Source
	opts Options
}

func (f *calibreFetcher) Type() config.SourceType { return config.TypeCalibreRecipe }

func (f *calibreFetcher) bin() string {
	return cmp.Or(f.opts.CalibreBin, os.Getenv("CALIBRE_BIN"), "ebook-convert")
}

func (f *calibreFetcher) Fetch(ctx context.Context, outPath string) (*Result, error) {
	start := f.opts.now()

	args := []string{f.src.Recipe, outPath}
	if f.src.AuthorOverride != "" {
		args = append(args, "--authors="+f.src.AuthorOverride)
	}
	if f.src.PublisherOverride != "" {
		args = append(args, "--publisher="+f.src.PublisherOverride)
	}

	f.opts.logf("source %s: running %s %s", f.id, f.bin(), f.src.Recipe)

	logw := logger.Logf(f.opts.logf)
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	cmd.Stdout = logw
	cmd.Stderr = logw
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("source %q: %s failed: %w", f.id, f.bin(), err)
	}

	warnings, err := epub.Validate(outPath)
	if err != nil {
		return nil, fmt.Errorf("source %q: conversion produced a broken EPUB: %w", f.id, err)
	}
	for _, w := range warnings {
		f.opts.logf("source %s: %s", f.id, w)
	}

	fi, err := os.Stat(outPath)
	if err != nil {
		return nil, err
	}
	articles, err := epub.SpineCount(outPath)
	if err != nil {
		f.opts.logf("source %s: counting articles: %v", f.id, err)
	}

	return &Result{
		Source:       f.id,
		Path:         outPath,
		ArticleCount: articles,
		Size:         fi.Size(),
		Duration:     f.opts.now().Sub(start).Round(time.Millisecond),
	}, nil
}
