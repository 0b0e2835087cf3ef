// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package source

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/epub"
	"github.com/MylesMCook/bloomberg-daily/internal/request"
	"github.com/MylesMCook/bloomberg-daily/internal/util/syncx"
)

const (
	feedConcurrencyLimit = 4  // feeds fetched at the same time
	maxItemsPerSection   = 20 // newest items kept from each feed
)

// feedFetcher assembles an EPUB from one or more RSS or Atom feeds,
// one section per feed.
type feedFetcher struct {
	id   string
	src  config.Source
	opts Options

	mu          sync.Mutex
	lastRequest time.Time
}

func (f *feedFetcher) Type() config.SourceType { return config.TypeFeed }

// rateLimit spaces out feed requests according to the source's
// requests_per_second setting.
func (f *feedFetcher) rateLimit() {
	if f.src.RateLimit == nil || f.src.RateLimit.RequestsPerSecond <= 0 {
		return
	}
	interval := time.Duration(float64(time.Second) / f.src.RateLimit.RequestsPerSecond)

	f.mu.Lock()
	var wait time.Duration
	now := f.opts.now()
	if !f.lastRequest.IsZero() {
		if elapsed := now.Sub(f.lastRequest); elapsed < interval {
			wait = interval - elapsed
		}
	}
	f.lastRequest = now.Add(wait)
	f.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}

type sectionResult struct {
	section  string
	chapters []epub.Chapter
	err      error
}

func (f *feedFetcher) Fetch(ctx context.Context, outPath string) (*Result, error) {
	start := f.opts.now()

	sections := slices.Sorted(maps.Keys(f.src.Feeds))

	results := make([]sectionResult, len(sections))
	wg := syncx.NewLimitedWaitGroup(feedConcurrencyLimit)
	for i, section := range sections {
		wg.Go(func() {
			chapters, err := f.fetchSection(ctx, section, f.src.Feeds[section])
			results[i] = sectionResult{section: section, chapters: chapters, err: err}
		})
	}
	wg.Wait()

	var chapters []epub.Chapter
	for _, r := range results {
		if r.err != nil {
			// A single broken feed must not sink the whole issue.
			f.opts.logf("source %s: section %s: %v", f.id, r.section, r.err)
			continue
		}
		chapters = append(chapters, r.chapters...)
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("source %q: all feeds failed or were empty", f.id)
	}

	day := f.opts.now()
	b := &epub.Build{
		Title:     fmt.Sprintf("%s - %s", f.src.Name, day.Format("January 2, 2006")),
		Author:    cmp.Or(f.src.AuthorOverride, f.src.Name),
		Publisher: cmp.Or(f.src.PublisherOverride, f.src.Name),
		Date:      day,
		Chapters:  chapters,
	}
	if err := b.WriteFile(outPath); err != nil {
		return nil, fmt.Errorf("source %q: %w", f.id, err)
	}

	fi, err := os.Stat(outPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		Source:       f.id,
		Path:         outPath,
		ArticleCount: len(chapters),
		Size:         fi.Size(),
		Duration:     f.opts.now().Sub(start).Round(time.Millisecond),
	}, nil
}

func (f *feedFetcher) fetchSection(ctx context.Context, section, url string) ([]epub.Chapter, error) {
	f.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", request.UserAgent())

	httpc := f.opts.HTTPClient
	if httpc == nil {
		httpc = request.DefaultClient
	}
	res, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &request.StatusError{
			Method:     http.MethodGet,
			URL:        url,
			StatusCode: res.StatusCode,
		}
	}

	feed, err := gofeed.NewParser().Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var chapters []epub.Chapter
	for _, item := range feed.Items {
		if len(chapters) == maxItemsPerSection {
			break
		}
		body := cmp.Or(item.Content, item.Description)
		if item.Title == "" || body == "" {
			continue
		}
		ch := epub.Chapter{
			Title:   epub.ShortenTitle(item.Title),
			Section: section,
			URL:     item.Link,
			HTML:    body,
		}
		if item.PublishedParsed != nil {
			ch.Published = *item.PublishedParsed
		}
		chapters = append(chapters, ch)
	}

	f.opts.logf("source %s: section %s: %d articles", f.id, section, len(chapters))
	return chapters, nil
}
