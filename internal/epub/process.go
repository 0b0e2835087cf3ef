// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package epub

import (
	"cmp"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/MylesMCook/bloomberg-daily/internal/logger"
)

//go:embed stylesheet.css
var defaultStylesheet []byte

// ProcessOptions control the post-processing performed by [Process].
type ProcessOptions struct {
	// SkipPages is how many leading spine items to drop (the generated
	// cover and section index). Nil selects the default of 2; a pointer
	// to zero keeps every page.
	SkipPages *int
	// KeepImages disables image stripping.
	KeepImages bool
	// CSS replaces the embedded device stylesheet.
	CSS []byte
	// WorkflowRunID and GitSHA are recorded in the diagnostics file.
	WorkflowRunID string
	GitSHA        string
	// Logf, if set, receives progress output.
	Logf logger.Logf
}

// Result summarizes what [Process] did.
type Result struct {
	ArticleCount    int
	ImagesRemoved   int
	TitlesShortened int
	OutputSize      int64
}

// Diagnostics is the _diagnostics.json document embedded into every
// processed EPUB for post-mortem debugging on the device.
type Diagnostics struct {
	BuildTime        string   `json:"build_time"`
	WorkflowRunID    string   `json:"workflow_run_id"`
	GitSHA           string   `json:"git_sha"`
	InputFile        string   `json:"input_file"`
	OutputFile       string   `json:"output_file"`
	RawSizeBytes     int64    `json:"raw_size_bytes"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	GoVersion        string   `json:"go_version"`
	SectionsFound    []string `json:"sections_found"`
	ArticleCount     int      `json:"article_count"`
}

// Process post-processes the EPUB at input for the target e-ink device
// and writes the result to output: trims the leading spine items,
// strips images (keeping the cover), swaps in the device stylesheet,
// shortens TOC titles and embeds a diagnostics file. TOC failures are
// logged and skipped, never fatal.
func Process(input, output string, opts *ProcessOptions) (*Result, error) {
	start := time.Now()
	if opts == nil {
		opts = &ProcessOptions{}
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(format string, args ...any) {}
	}
	skip := 2
	if opts.SkipPages != nil {
		skip = *opts.SkipPages
	}

	warnings, err := Validate(input)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logf("%s: %s", input, w)
	}

	inputInfo, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "epubproc")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	logf("Extracting %s...", input)
	if err := Unpack(input, tmp); err != nil {
		return nil, err
	}

	opfPath, err := findOPF(tmp)
	if err != nil {
		return nil, err
	}
	opfDir := filepath.Dir(opfPath)

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(opfPath); err != nil {
		return nil, fmt.Errorf("epub: parsing %s: %w", opfPath, err)
	}

	manifest := doc.FindElement("//manifest")
	spine := doc.FindElement("//spine")
	if manifest == nil || spine == nil {
		return nil, fmt.Errorf("epub: %s has no manifest or spine", input)
	}

	res := new(Result)

	itemrefs := spine.SelectElements("itemref")
	res.ArticleCount = max(0, len(itemrefs)-skip)
	logf("Removing first %d of %d spine items...", skip, len(itemrefs))
	for i, ref := range itemrefs {
		if i >= skip {
			break
		}
		spine.RemoveChild(ref)
	}

	if !opts.KeepImages {
		logf("Stripping images...")
		res.ImagesRemoved, err = stripImages(tmp, manifest)
		if err != nil {
			return nil, err
		}
		logf("Removed %d images", res.ImagesRemoved)
	}

	css := opts.CSS
	if css == nil {
		css = defaultStylesheet
	}
	if err := os.WriteFile(filepath.Join(opfDir, "stylesheet.css"), css, 0o644); err != nil {
		return nil, err
	}

	logf("Processing TOC titles...")
	if ncx := filepath.Join(opfDir, "toc.ncx"); fileExists(ncx) {
		n, err := shortenNCXTitles(ncx)
		if err != nil {
			logf("TOC processing failed, continuing: %v", err)
		} else {
			res.TitlesShortened += n
		}
	}
	if nav := filepath.Join(opfDir, "nav.xhtml"); fileExists(nav) {
		n, err := shortenNavTitles(nav)
		if err != nil {
			logf("Nav processing failed, continuing: %v", err)
		} else {
			res.TitlesShortened += n
		}
	}

	diag := &Diagnostics{
		BuildTime:        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		WorkflowRunID:    cmp.Or(opts.WorkflowRunID, "local"),
		GitSHA:           cmp.Or(opts.GitSHA, "unknown"),
		InputFile:        filepath.Base(input),
		OutputFile:       filepath.Base(output),
		RawSizeBytes:     inputInfo.Size(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		GoVersion:        runtime.Version(),
		SectionsFound:    []string{},
		ArticleCount:     res.ArticleCount,
	}
	if err := writeDiagnostics(filepath.Join(opfDir, "_diagnostics.json"), manifest, diag); err != nil {
		return nil, err
	}

	doc.WriteSettings.CanonicalEndTags = false
	if err := doc.WriteToFile(opfPath); err != nil {
		return nil, err
	}

	logf("Repackaging EPUB...")
	if err := Pack(tmp, output); err != nil {
		return nil, err
	}

	fi, err := os.Stat(output)
	if err != nil {
		return nil, err
	}
	res.OutputSize = fi.Size()
	logf("Wrote %s (%d bytes) in %v", output, res.OutputSize, time.Since(start).Round(time.Millisecond))

	return res, nil
}

func findOPF(dir string) (string, error) {
	var opf string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".opf") {
			opf = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if opf == "" {
		return "", fmt.Errorf("epub: no .opf package file found")
	}
	return opf, nil
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".svg":  true,
	".webp": true,
}

var (
	imgTagRe      = regexp.MustCompile(`(?i)<img[^>]*/?>`)
	emptyFigureRe = regexp.MustCompile(`(?i)<figure[^>]*>\s*</figure>`)
	emptyImgDivRe = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*img[^"]*"[^>]*>\s*</div>`)
)

// stripImages removes image files and their manifest entries, then
// drops <img> tags and emptied containers from the markup. Anything
// whose name mentions "cover" is kept for readers that render it.
func stripImages(dir string, manifest *etree.Element) (removed int, err error) {
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if strings.Contains(strings.ToLower(d.Name()), "cover") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, item := range manifest.SelectElements("item") {
		mediaType := item.SelectAttrValue("media-type", "")
		href := item.SelectAttrValue("href", "")
		if strings.HasPrefix(mediaType, "image/") && !strings.Contains(strings.ToLower(href), "cover") {
			manifest.RemoveChild(item)
		}
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".xhtml":
			return stripImgTags(path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

func stripImgTags(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(b)
	content = imgTagRe.ReplaceAllStringFunc(content, func(tag string) string {
		// Keep cover references for readers that support them.
		if strings.Contains(strings.ToLower(tag), "cover") {
			return tag
		}
		return ""
	})
	content = emptyFigureRe.ReplaceAllString(content, "")
	content = emptyImgDivRe.ReplaceAllString(content, "")
	return os.WriteFile(path, []byte(content), 0o644)
}

func shortenNCXTitles(path string) (modified int, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return 0, err
	}
	for _, text := range doc.FindElements("//navLabel/text") {
		original := text.Text()
		if original == "" {
			continue
		}
		if shortened := ShortenTitle(original); shortened != original {
			text.SetText(shortened)
			modified++
		}
	}
	if err := doc.WriteToFile(path); err != nil {
		return 0, err
	}
	return modified, nil
}

var navLinkRe = regexp.MustCompile(`(<a[^>]*>)([^<]+)(</a>)`)

func shortenNavTitles(path string) (modified int, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content := navLinkRe.ReplaceAllStringFunc(string(b), func(link string) string {
		m := navLinkRe.FindStringSubmatch(link)
		if shortened := ShortenTitle(m[2]); shortened != m[2] {
			modified++
			return m[1] + shortened + m[3]
		}
		return link
	})
	return modified, os.WriteFile(path, []byte(content), 0o644)
}

func writeDiagnostics(path string, manifest *etree.Element, diag *Diagnostics) error {
	b, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}

	item := manifest.CreateElement("item")
	item.CreateAttr("id", "diagnostics")
	item.CreateAttr("href", "_diagnostics.json")
	item.CreateAttr("media-type", "application/json")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
