// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/api/gutendex"
	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/epub"
)

// gutenbergFetcher downloads a public domain book from Project
// Gutenberg, picking the most popular catalog match for the configured
// search query that has an EPUB available.
type gutenbergFetcher struct {
	id   string
	src  config.Source
	opts Options
}

func (f *gutenbergFetcher) Type() config.SourceType { return config.TypeGutenberg }

func (f *gutenbergFetcher) client() *gutendex.Client {
	if f.opts.Gutendex != nil {
		return f.opts.Gutendex
	}
	c := &gutendex.Client{HTTPClient: f.opts.HTTPClient}
	if f.src.RateLimit != nil && f.src.RateLimit.RequestsPerSecond > 0 {
		c.MinInterval = time.Duration(float64(time.Second) / f.src.RateLimit.RequestsPerSecond)
	}
	if f.src.RateLimit != nil && f.src.RateLimit.CacheHours > 0 {
		c.CacheTTL = time.Duration(f.src.RateLimit.CacheHours) * time.Hour
	}
	return c
}

func (f *gutenbergFetcher) Fetch(ctx context.Context, outPath string) (*Result, error) {
	start := f.opts.now()
	c := f.client()

	books, err := c.Search(ctx, gutendex.SearchParams{Query: f.src.SearchQuery})
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", f.id, err)
	}

	// Gutendex sorts results by download count, so the first one with
	// an EPUB is the most popular match.
	var book *gutendex.Book
	for i := range books {
		if books[i].EPUBURL() != "" {
			book = &books[i]
			break
		}
	}
	if book == nil {
		return nil, fmt.Errorf("source %q: no books with an EPUB match %q", f.id, f.src.SearchQuery)
	}

	f.opts.logf("source %s: downloading %q by %s", f.id, book.Title, book.AuthorName())

	out, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	n, err := c.DownloadEPUB(ctx, book, out)
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return nil, fmt.Errorf("source %q: %w", f.id, err)
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	if _, err := epub.Validate(outPath); err != nil {
		return nil, fmt.Errorf("source %q: downloaded a broken EPUB: %w", f.id, err)
	}

	return &Result{
		Source:       f.id,
		Path:         outPath,
		ArticleCount: 1,
		Size:         n,
		Duration:     f.opts.now().Sub(start).Round(time.Millisecond),
	}, nil
}
