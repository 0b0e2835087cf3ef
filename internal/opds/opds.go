// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package opds renders the static OPDS 1.2 catalog and the health.json
// status document from the book archive.
package opds

import (
	"crypto/md5"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"time"

	"github.com/MylesMCook/bloomberg-daily/internal/books"
)

// Generator renders catalog documents. The zero value is not usable:
// BaseURL is required.
type Generator struct {
	// BaseURL is the absolute base of the published site, always with a
	// trailing slash. OPDS readers are picky about relative links.
	BaseURL string
	// Now returns the current time. Defaults to time.Now, injectable in
	// tests.
	Now func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

const timeFormat = "2006-01-02T15:04:05Z"

type atomFeed struct {
	XMLName   xml.Name `xml:"feed"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsDC   string   `xml:"xmlns:dc,attr"`
	XmlnsOPDS string   `xml:"xmlns:opds,attr"`
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Subtitle  string   `xml:"subtitle"`
	Icon      string   `xml:"icon"`
	Updated   string   `xml:"updated"`
	Author    atomAuthor
	Links     []atomLink  `xml:"link"`
	Entries   []atomEntry `xml:"entry"`
}

type atomAuthor struct {
	XMLName xml.Name `xml:"author"`
	Name    string   `xml:"name"`
	URI     string   `xml:"uri,omitempty"`
}

type atomLink struct {
	Href   string `xml:"href,attr"`
	Rel    string `xml:"rel,attr"`
	Type   string `xml:"type,attr"`
	Length int64  `xml:"length,attr,omitempty"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type atomEntry struct {
	Title      string `xml:"title"`
	ID         string `xml:"id"`
	Updated    string `xml:"updated"`
	Author     atomAuthor
	Publisher  string         `xml:"dc:publisher"`
	Categories []atomCategory `xml:"category"`
	Summary    string         `xml:"summary"`
	Content    atomContent    `xml:"content"`
	Links      []atomLink     `xml:"link"`
}

const (
	feedID       = "urn:uuid:bloomberg-daily-opds-feed"
	feedTitle    = "Bloomberg Daily Briefing"
	feedIcon     = "https://assets.bwbx.io/s3/javelin/public/hub/images/favicon-black-63fe5249d3.png"
	opdsFeedType = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	epubType     = "application/epub+zip"

	relAcquisition = "http://opds-spec.org/acquisition"
	relOpenAccess  = "http://opds-spec.org/acquisition/open-access"
)

// Feed renders the OPDS acquisition feed for the given books, which are
// expected to be sorted newest first (as [books.List] returns them).
func (g *Generator) Feed(list []books.Book) ([]byte, error) {
	var subtitle string
	switch n := len(list); n {
	case 0:
		subtitle = "No issues available"
	case 1:
		subtitle = "1 issue available"
	default:
		subtitle = fmt.Sprintf("%d issues available (rolling weekly archive)", n)
	}

	f := &atomFeed{
		Xmlns:     "http://www.w3.org/2005/Atom",
		XmlnsDC:   "http://purl.org/dc/terms/",
		XmlnsOPDS: "http://opds-spec.org/2010/catalog",
		ID:        feedID,
		Title:     feedTitle,
		Subtitle:  subtitle,
		Icon:      feedIcon,
		Updated:   g.now().Format(timeFormat),
		Author: atomAuthor{
			Name: "Bloomberg News Pipeline",
			URI:  "https://github.com/MylesMCook/bloomberg-daily",
		},
		Links: []atomLink{
			{Href: g.BaseURL + "opds.xml", Rel: "self", Type: opdsFeedType},
			{Href: g.BaseURL + "opds.xml", Rel: "start", Type: opdsFeedType},
		},
	}

	for _, b := range list {
		url := g.BaseURL + "books/" + b.Name
		f.Entries = append(f.Entries, atomEntry{
			Title:     books.DisplayTitle(b.Name),
			ID:        fmt.Sprintf("urn:uuid:%x", md5.Sum([]byte(b.Name))),
			Updated:   b.ModTime.UTC().Format(timeFormat),
			Author:    atomAuthor{Name: "Bloomberg News"},
			Publisher: "Bloomberg L.P.",
			Categories: []atomCategory{
				{Term: "news", Label: "News"},
				{Term: "technology", Label: "Technology"},
				{Term: "business", Label: "Business"},
			},
			Summary: "AI, Technology, Industries, and Latest news from Bloomberg",
			Content: atomContent{Type: "text", Text: "AI · Technology · Industries · Latest"},
			Links: []atomLink{
				{Href: url, Rel: relAcquisition, Type: epubType, Length: b.Size},
				{Href: url, Rel: relOpenAccess, Type: epubType},
			},
		})
	}

	out, err := xml.MarshalIndent(f, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Health is the health.json document consumed by the dashboard and by
// uptime checks.
type Health struct {
	Status         string       `json:"status"`
	LastUpdate     string       `json:"last_update"`
	BookCount      int          `json:"book_count"`
	OldestBook     *string      `json:"oldest_book"`
	NewestBook     *string      `json:"newest_book"`
	TotalSizeBytes int64        `json:"total_size_bytes"`
	TotalSizeMB    float64      `json:"total_size_mb"`
	OPDSURL        string       `json:"opds_url"`
	Books          []HealthBook `json:"books"`
}

// HealthBook is the per-book record in [Health].
type HealthBook struct {
	Filename  string  `json:"filename"`
	Date      *string `json:"date"`
	SizeBytes int64   `json:"size_bytes"`
	Title     string  `json:"title"`
}

// HealthDoc builds the health document for the given books.
func (g *Generator) HealthDoc(list []books.Book) *Health {
	h := &Health{
		Status:     "empty",
		LastUpdate: g.now().Format(timeFormat),
		BookCount:  len(list),
		OPDSURL:    g.BaseURL + "opds.xml",
		Books:      []HealthBook{},
	}
	if len(list) > 0 {
		h.Status = "ok"
	}

	var oldest, newest string
	for _, b := range list {
		hb := HealthBook{
			Filename:  b.Name,
			SizeBytes: b.Size,
			Title:     books.DisplayTitle(b.Name),
		}
		if b.Date != "" {
			date := b.Date
			hb.Date = &date
			if oldest == "" || date < oldest {
				oldest = date
			}
			if date > newest {
				newest = date
			}
		}
		h.TotalSizeBytes += b.Size
		h.Books = append(h.Books, hb)
	}
	if oldest != "" {
		h.OldestBook = &oldest
		h.NewestBook = &newest
	}
	h.TotalSizeMB = math.Round(float64(h.TotalSizeBytes)/1024/1024*100) / 100

	return h
}

// HealthJSON renders health.json.
func (g *Generator) HealthJSON(list []books.Book) ([]byte, error) {
	b, err := json.MarshalIndent(g.HealthDoc(list), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
