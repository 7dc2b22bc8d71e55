// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftest builds small PDF fixtures for tests: blank documents of a
// given page count, optionally with an outline.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// Encode returns a minimal PDF with the given number of blank letter-size
// pages. Each page carries a content stream naming its page number so
// extracted chunks can be told apart.
func Encode(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// Objects 1 and 2 are the catalog and the page tree; pages follow as
	// page/content pairs starting at object 3.
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] /Resources << >> >>",
		bytes.TrimSpace(kids.Bytes()), pages))

	for i := 0; i < pages; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", 4+2*i))
		content := fmt.Sprintf("%% page %d\n", i+1)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Blank writes a blank PDF with the given number of pages to dir/name and
// returns its path.
func Blank(t testing.TB, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Encode(pages), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

// Mark builds an outline entry pointing at page.
func Mark(title string, page int, kids ...pdfcpu.Bookmark) pdfcpu.Bookmark {
	return pdfcpu.Bookmark{Title: title, PageFrom: page, Kids: kids}
}

// WithOutline writes a blank PDF with the given page count and outline to
// dir/name and returns its path.
func WithOutline(t testing.TB, dir, name string, pages int, marks []pdfcpu.Bookmark) string {
	t.Helper()
	plain := Blank(t, dir, "plain-"+name, pages)
	path := filepath.Join(dir, name)
	if err := api.AddBookmarksFile(plain, path, marks, true, nil); err != nil {
		t.Fatalf("adding outline to %s: %v", path, err)
	}
	return path
}
