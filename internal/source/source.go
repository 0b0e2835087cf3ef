// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package source fetches news content and turns it into EPUB files.
//
// Each configured source maps to a [Fetcher]: Calibre recipe sources
// shell out to ebook-convert, feed sources assemble an EPUB from RSS
// or Atom feeds, and Gutenberg sources download a public domain book
// from Project Gutenberg.
package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/api/gutendex"
	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/logger"
)

// Result summarizes a successful fetch.
type Result struct {
	Source       string        `json:"source"`
	Path         string        `json:"path"`
	ArticleCount int           `json:"article_count"`
	Size         int64         `json:"size"`
	Duration     time.Duration `json:"duration"`
}

// Fetcher produces a single day's EPUB for one configured source.
type Fetcher interface {
	// Type reports what kind of source this is.
	Type() config.SourceType
	// Fetch writes the EPUB to outPath.
	Fetch(ctx context.Context, outPath string) (*Result, error)
}

// Options tweak fetcher behavior. The zero value is usable.
type Options struct {
	// Logf is used for progress logging. Defaults to log.Printf.
	Logf logger.Logf
	// HTTPClient is used for all outgoing requests.
	HTTPClient *http.Client
	// CalibreBin overrides the ebook-convert binary. Defaults to the
	// CALIBRE_BIN environment variable, then "ebook-convert".
	CalibreBin string
	// Gutendex overrides the Gutendex client, used in tests.
	Gutendex *gutendex.Client
	// Now is injectable in tests.
	Now func() time.Time
}

func (o *Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// New returns the fetcher for a configured source.
func New(id string, s config.Source, opts Options) (Fetcher, error) {
	switch s.Type {
	case config.TypeCalibreRecipe:
		return &calibreFetcher{id: id, src: s, opts: opts}, nil
	case config.TypeFeed:
		return &feedFetcher{id: id, src: s, opts: opts}, nil
	case config.TypeGutenberg:
		return &gutenbergFetcher{id: id, src: s, opts: opts}, nil
	default:
		return nil, fmt.Errorf("source %q: unknown type %q", id, s.Type)
	}
}
