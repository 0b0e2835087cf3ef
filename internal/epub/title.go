// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package epub

import (
	"regexp"
	"strings"
)

// maxTitleLength is the longest TOC title that fits on one line of the
// target reader's contents screen.
const maxTitleLength = 50

var titleSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-–—]\s*Bloomberg.*$`),
	regexp.MustCompile(`\s*\(\d+\)\s*$`), // (1), (2), etc.
	regexp.MustCompile(`(?i)\s*\|\s*Bloomberg.*$`),
	regexp.MustCompile(`(?i)\s*:\s*Markets\s*Wrap\s*$`),
}

var titleBreaks = []string{":", " - ", " – ", ", "}

// ShortenTitle shortens an article title for TOC display. It drops
// boilerplate suffixes, then tries to cut at a natural break point, and
// as a last resort truncates at a word boundary with an ellipsis.
func ShortenTitle(title string) string {
	return shortenTitle(title, maxTitleLength)
}

func shortenTitle(title string, maxLen int) string {
	for _, re := range titleSuffixes {
		title = re.ReplaceAllString(title, "")
	}

	runes := []rune(title)
	if len(runes) <= maxLen {
		return strings.TrimSpace(title)
	}

	// Truncate at a natural break point, keeping the head if it is
	// substantial on its own.
	for _, br := range titleBreaks {
		head, _, found := strings.Cut(title, br)
		if !found {
			continue
		}
		if n := len([]rune(head)); n >= 20 && n <= maxLen {
			return strings.TrimSpace(head)
		}
	}

	// Last resort: hard truncate, preferring a word boundary unless it
	// cuts away too much.
	truncated := runes[:maxLen-3]
	if i := lastIndexRune(truncated, ' '); float64(i) > float64(maxLen)*0.6 {
		truncated = truncated[:i]
	}
	return strings.TrimSpace(string(truncated)) + "..."
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
