// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package gutendex provides a client for the Gutendex API, an
// unofficial but reliable catalog API for Project Gutenberg. Requests
// are rate limited and search results are cached in memory, because
// both services run on donated infrastructure.
package gutendex

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/request"
)

const defaultBaseURL = "https://gutendex.com"

// Client is a Gutendex API client. The zero value is usable.
type Client struct {
	// HTTPClient is an optional custom HTTP client object to use for
	// requests. If not provided, request.DefaultClient will be used.
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	// MinInterval is the minimum delay between consecutive API
	// requests. Defaults to one second.
	MinInterval time.Duration
	// CacheTTL is how long search results are reused. Defaults to 24
	// hours.
	CacheTTL time.Duration
	// Now and Sleep are injectable in tests.
	Now   func() time.Time
	Sleep func(time.Duration)

	mu          sync.Mutex
	lastRequest time.Time
	cache       map[string]cacheEntry
}

type cacheEntry struct {
	at    time.Time
	books []Book
}

// Book is the Gutendex metadata for a single Project Gutenberg book.
type Book struct {
	ID            int               `json:"id"`
	Title         string            `json:"title"`
	Authors       []Author          `json:"authors"`
	Subjects      []string          `json:"subjects"`
	Languages     []string          `json:"languages"`
	DownloadCount int               `json:"download_count"`
	Formats       map[string]string `json:"formats"`
}

// Author is a book author record.
type Author struct {
	Name string `json:"name"`
}

// AuthorName returns the first author, or "Unknown".
func (b *Book) AuthorName() string {
	if len(b.Authors) > 0 {
		return b.Authors[0].Name
	}
	return "Unknown"
}

// EPUBURL returns the EPUB download URL, or an empty string when the
// book has no EPUB format.
func (b *Book) EPUBURL() string {
	for _, format := range []string{"application/epub+zip", "application/epub"} {
		if u, ok := b.Formats[format]; ok {
			return u
		}
	}
	return ""
}

// SearchParams filter a catalog search.
type SearchParams struct {
	Query    string
	Author   string
	Title    string
	Topic    string
	Language string // defaults to "en"
	Page     int    // defaults to 1
}

func (p *SearchParams) values() url.Values {
	v := url.Values{}
	page := p.Page
	if page == 0 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if p.Query != "" {
		v.Set("search", p.Query)
	}
	if p.Author != "" {
		v.Set("author", p.Author)
	}
	if p.Title != "" {
		v.Set("title", p.Title)
	}
	if p.Topic != "" {
		v.Set("topic", p.Topic)
	}
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	v.Set("languages", lang)
	return v
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) minInterval() time.Duration {
	if c.MinInterval > 0 {
		return c.MinInterval
	}
	return time.Second
}

func (c *Client) cacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return 24 * time.Hour
}

// rateLimit blocks until a new request is allowed.
func (c *Client) rateLimit() {
	sleep := time.Sleep
	if c.Sleep != nil {
		sleep = c.Sleep
	}

	c.mu.Lock()
	var wait time.Duration
	now := c.now()
	if !c.lastRequest.IsZero() {
		if elapsed := now.Sub(c.lastRequest); elapsed < c.minInterval() {
			wait = c.minInterval() - elapsed
		}
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		sleep(wait)
	}
}

type searchResponse struct {
	Count   int    `json:"count"`
	Results []Book `json:"results"`
}

// Search queries the catalog, reusing cached results when a search with
// the same parameters ran within the cache TTL.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Book, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(p.values().Encode())))

	c.mu.Lock()
	if e, ok := c.cache[key]; ok && c.now().Sub(e.at) < c.cacheTTL() {
		c.mu.Unlock()
		return e.books, nil
	}
	c.mu.Unlock()

	c.rateLimit()
	resp, err := request.MakeJSON[searchResponse](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        c.baseURL() + "/books?" + p.values().Encode(),
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]cacheEntry)
	}
	c.cache[key] = cacheEntry{at: c.now(), books: resp.Results}
	c.mu.Unlock()

	return resp.Results, nil
}

// Get returns the metadata for a single book, or nil if it does not
// exist.
func (c *Client) Get(ctx context.Context, id int) (*Book, error) {
	c.rateLimit()
	b, err := request.MakeJSON[*Book](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        fmt.Sprintf("%s/books/%d", c.baseURL(), id),
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		var se *request.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// DownloadEPUB downloads the book's EPUB and writes it to w, returning
// the number of bytes written.
func (c *Client) DownloadEPUB(ctx context.Context, b *Book, w io.Writer) (int64, error) {
	epubURL := b.EPUBURL()
	if epubURL == "" {
		return 0, fmt.Errorf("gutendex: no EPUB format available for %q", b.Title)
	}

	c.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, epubURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", request.UserAgent())

	httpc := c.HTTPClient
	if httpc == nil {
		httpc = request.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &request.StatusError{
			Method:     http.MethodGet,
			URL:        epubURL,
			StatusCode: resp.StatusCode,
		}
	}

	return io.Copy(w, resp.Body)
}
