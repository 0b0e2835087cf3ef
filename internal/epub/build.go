// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package epub

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"strings"
	"time"
)

// Chapter is a single article in a built EPUB.
type Chapter struct {
	Title     string
	Section   string
	URL       string
	Published time.Time
	// HTML is the article body markup as supplied by the source. It is
	// written into the chapter verbatim; no well-formedness or escaping
	// is enforced, so loose feed HTML produces loose chapters.
	HTML string
}

// Build describes an EPUB assembled from fetched articles. It produces
// a minimal EPUB 3 container with an EPUB 2 toc.ncx for older readers.
type Build struct {
	Title     string
	Author    string
	Publisher string
	Language  string // defaults to "en"
	Date      time.Time
	Chapters  []Chapter
}

// WriteFile assembles the EPUB and writes it to path.
func (b *Build) WriteFile(path string) (err error) {
	if len(b.Chapters) == 0 {
		return fmt.Errorf("epub: nothing to build, no chapters")
	}
	lang := b.Language
	if lang == "" {
		lang = "en"
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)

	store := func(name, content string) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}
	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	if err := store("mimetype", Mimetype); err != nil {
		return err
	}
	if err := write("META-INF/container.xml", containerXML); err != nil {
		return err
	}
	if err := write("OEBPS/content.opf", b.opf(lang)); err != nil {
		return err
	}
	if err := write("OEBPS/toc.ncx", b.ncx()); err != nil {
		return err
	}
	if err := write("OEBPS/nav.xhtml", b.nav(lang)); err != nil {
		return err
	}
	if err := write("OEBPS/stylesheet.css", string(defaultStylesheet)); err != nil {
		return err
	}
	for i, ch := range b.Chapters {
		if err := write(chapterName(i), ch.xhtml(lang)); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func chapterName(i int) string {
	return fmt.Sprintf("OEBPS/chapter_%03d.xhtml", i+1)
}

func (b *Build) uid() string {
	return "bloomberg-daily-" + b.Date.Format("2006-01-02")
}

func (b *Build) opf(lang string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:identifier id=\"uid\">urn:uuid:%s</dc:identifier>\n", b.uid())
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", html.EscapeString(b.Title))
	fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(b.Author))
	fmt.Fprintf(&sb, "    <dc:publisher>%s</dc:publisher>\n", html.EscapeString(b.Publisher))
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", lang)
	fmt.Fprintf(&sb, "    <dc:date>%s</dc:date>\n", b.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n", b.Date.UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString(`  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="css" href="stylesheet.css" media-type="text/css"/>
`)
	for i := range b.Chapters {
		fmt.Fprintf(&sb, "    <item id=\"chapter-%03d\" href=\"chapter_%03d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i+1, i+1)
	}
	sb.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	for i := range b.Chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"chapter-%03d\"/>\n", i+1)
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

func (b *Build) ncx() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
`)
	fmt.Fprintf(&sb, "    <meta name=\"dtb:uid\" content=\"urn:uuid:%s\"/>\n", b.uid())
	sb.WriteString(`    <meta name="dtb:depth" content="1"/>
  </head>
`)
	fmt.Fprintf(&sb, "  <docTitle><text>%s</text></docTitle>\n  <navMap>\n", html.EscapeString(b.Title))
	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, `    <navPoint id="navpoint-%d" playOrder="%d">
      <navLabel><text>%s</text></navLabel>
      <content src="chapter_%03d.xhtml"/>
    </navPoint>
`, i+1, i+1, html.EscapeString(ch.Title), i+1)
	}
	sb.WriteString("  </navMap>\n</ncx>\n")
	return sb.String()
}

func (b *Build) nav(lang string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="%s">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="stylesheet.css"/>
</head>
<body>
  <nav epub:type="toc">
    <h1>Contents</h1>
    <ol>
`, lang, html.EscapeString(b.Title))
	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, "      <li><a href=\"chapter_%03d.xhtml\">%s</a></li>\n", i+1, html.EscapeString(ch.Title))
	}
	sb.WriteString("    </ol>\n  </nav>\n</body>\n</html>\n")
	return sb.String()
}

func (ch *Chapter) xhtml(lang string) string {
	var meta strings.Builder
	if ch.Section != "" {
		meta.WriteString(html.EscapeString(ch.Section))
	}
	if !ch.Published.IsZero() {
		if meta.Len() > 0 {
			meta.WriteString(" · ")
		}
		meta.WriteString(ch.Published.Format("Jan 2, 15:04"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" lang="%s">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="stylesheet.css"/>
</head>
<body>
  <h1>%s</h1>
`, lang, html.EscapeString(ch.Title), html.EscapeString(ch.Title))
	if meta.Len() > 0 {
		fmt.Fprintf(&sb, "  <p class=\"article-meta\">%s</p>\n", meta.String())
	}
	sb.WriteString(ch.HTML)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}
