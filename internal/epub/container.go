// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package epub performs zip-level and XML-level surgery on EPUB files:
// unpack and repack, post-processing for e-ink readers, and a minimal
// builder used by feed sources. It is not a general EPUB engine.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

// Mimetype is the contents of the mimetype file every EPUB carries as
// its first, uncompressed zip entry.
const Mimetype = "application/epub+zip"

// Validate performs a cheap sanity check on an EPUB file: it must
// exist, have a .epub suffix, be at least 1000 bytes and be a readable
// zip. A missing mimetype entry is not fatal and is returned as a
// warning.
func Validate(path string) (warnings []string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return nil, fmt.Errorf("epub: %s: not an .epub file", path)
	}
	if fi.Size() < 1000 {
		return nil, fmt.Errorf("epub: %s is too small (%d bytes), possibly empty or corrupt", path, fi.Size())
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: %s: not a valid zip: %w", path, err)
	}
	defer zr.Close()

	hasMimetype := false
	for _, f := range zr.File {
		if f.Name == "mimetype" {
			hasMimetype = true
			break
		}
	}
	if !hasMimetype {
		warnings = append(warnings, "missing mimetype entry, EPUB may be malformed")
	}

	return warnings, nil
}

// SpineCount returns the number of spine entries (reading order pages)
// in the EPUB at path.
func SpineCount(path string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("epub: opening %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".opf") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, err
		}
		doc := etree.NewDocument()
		_, err = doc.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return 0, fmt.Errorf("epub: parsing %s: %w", f.Name, err)
		}
		return len(doc.FindElements("//spine/itemref")), nil
	}

	return 0, fmt.Errorf("epub: %s: no OPF package document found", path)
}

// Unpack extracts the EPUB at src into dir.
func Unpack(src, dir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("epub: opening %s: %w", src, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if name == ".." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) || filepath.IsAbs(name) {
			return fmt.Errorf("epub: %s contains invalid entry path %q", src, f.Name)
		}
		target := filepath.Join(dir, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("epub: extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Pack zips the contents of dir into an EPUB at out, writing the
// mimetype entry first and uncompressed as the format requires.
func Pack(dir, out string) (err error) {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(out)
		}
	}()

	zw := zip.NewWriter(f)

	if _, err := os.Stat(filepath.Join(dir, "mimetype")); err == nil {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			return err
		}
		b, err := os.ReadFile(filepath.Join(dir, "mimetype"))
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "mimetype" {
			return nil
		}

		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}
