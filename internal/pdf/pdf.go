// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf reads page counts and outlines from PDF files and extracts
// page ranges into new files. It is the only package that talks to pdfcpu.
// Implements: docs/ARCHITECTURE § Structure Analysis, § Chunk Writing.
package pdf

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Bookmark is one outline entry as stored in the file. Page is 1-indexed
// and 0 when the entry has no resolvable destination.
type Bookmark struct {
	Title string
	Page  int
	Kids  []Bookmark
}

// PDFCPU implements page counting, outline reading and page extraction
// with pdfcpu. The zero value is ready to use.
type PDFCPU struct{}

// New returns a pdfcpu-backed reader and extractor.
func New() *PDFCPU {
	return &PDFCPU{}
}

// config returns a fresh relaxed configuration. Configurations are not
// shared between calls because extraction runs concurrently.
func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in the file at path.
func (p *PDFCPU) PageCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	n, err := api.PageCount(f, config())
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	return n, nil
}

// Bookmarks returns the outline tree of the file at path. A file without
// an outline returns an empty slice or an error, depending on how the
// outline is missing; callers treat both as "no outline".
func (p *PDFCPU) Bookmarks(ctx context.Context, path string) ([]Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, config())
	if err != nil {
		return nil, fmt.Errorf("reading outline of %s: %w", path, err)
	}
	return convertBookmarks(bms), nil
}

func convertBookmarks(bms []pdfcpu.Bookmark) []Bookmark {
	if len(bms) == 0 {
		return nil
	}
	out := make([]Bookmark, len(bms))
	for i, bm := range bms {
		out[i] = Bookmark{
			Title: bm.Title,
			Page:  bm.PageFrom,
			Kids:  convertBookmarks(bm.Kids),
		}
	}
	return out
}

// Extract writes pages r.Start through r.End of src to dst. Page resources
// are carried over by pdfcpu; the source is not modified.
func (p *PDFCPU) Extract(ctx context.Context, src, dst string, r types.PageRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel := []string{fmt.Sprintf("%d-%d", r.Start, r.End)}
	if err := api.TrimFile(src, dst, sel, config()); err != nil {
		return fmt.Errorf("extracting pages %s of %s: %w", r, src, err)
	}
	return nil
}
