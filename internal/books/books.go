// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package books models the rolling EPUB archive: a flat directory of
// date-stamped files like Bloomberg_2026-01-31.epub.
package books

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Book is a single EPUB in the archive.
type Book struct {
	Name    string // base filename
	Path    string
	Date    string // YYYY-MM-DD from the filename, empty if absent
	Size    int64
	ModTime time.Time
}

var dateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// DateOf extracts the YYYY-MM-DD date embedded in a filename, or returns
// an empty string if there is none.
func DateOf(name string) string {
	return dateRe.FindString(name)
}

// Filename returns the archive filename for a source on a given day,
// for example Bloomberg_2026-01-31.epub. Spaces in the source name are
// replaced with underscores.
func Filename(source string, day time.Time) string {
	return strings.ReplaceAll(source, " ", "_") + "_" + day.Format("2006-01-02") + ".epub"
}

// DisplayTitle derives the human-readable catalog title from a filename:
// Bloomberg_2026-01-31.epub becomes "Daily Briefing - Jan 31". Filenames
// without a date fall back to the stem with underscores replaced by
// spaces.
func DisplayTitle(name string) string {
	if date := DateOf(name); date != "" {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			return fmt.Sprintf("Daily Briefing - %s %d", t.Format("Jan"), t.Day())
		}
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ReplaceAll(stem, "_", " ")
}

// List returns all *.epub files in dir, newest first by the date in the
// filename. Files without a date sort last. A missing directory is not
// an error and yields an empty list.
func List(dir string) ([]Book, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var list []Book
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".epub") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, err
		}
		list = append(list, Book{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Date:    DateOf(e.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	slices.SortStableFunc(list, func(a, b Book) int {
		// Newest date first; dateless files sort as oldest.
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return list, nil
}

// Prune deletes every book past the newest keep ones and returns the
// removed books. With dry set it only reports what would be removed.
func Prune(dir string, keep int, dry bool) ([]Book, error) {
	if keep < 1 {
		return nil, fmt.Errorf("books: keep must be at least 1, got %d", keep)
	}

	list, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(list) <= keep {
		return nil, nil
	}

	doomed := list[keep:]
	if dry {
		return doomed, nil
	}
	for _, b := range doomed {
		if err := os.Remove(b.Path); err != nil {
			return nil, fmt.Errorf("books: removing %s: %w", b.Name, err)
		}
	}
	return doomed, nil
}
