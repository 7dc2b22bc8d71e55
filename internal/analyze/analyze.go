// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze reads the page count and outline of a source PDF and
// summarizes the outline per level.
// Implements: docs/ARCHITECTURE § Structure Analysis.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/internal/pdf"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

const (
	mimePDF = "application/pdf"

	// sampleTitles is the number of titles kept per outline level.
	sampleTitles = 5
)

// Reader reads the page structure of a PDF file.
type Reader interface {
	PageCount(ctx context.Context, path string) (int, error)
	Bookmarks(ctx context.Context, path string) ([]pdf.Bookmark, error)
}

// Analyzer produces a Structure for a source document. It never modifies
// the source.
type Analyzer struct {
	reader Reader
}

// New returns an Analyzer reading through r.
func New(r Reader) *Analyzer {
	return &Analyzer{reader: r}
}

// Analyze opens the document at path and returns its structure. Unreadable,
// non-PDF, corrupt or encrypted input fails with *types.StructureReadError.
// An outline that cannot be read after the page count succeeded is treated
// as absent.
func (a *Analyzer) Analyze(ctx context.Context, path string) (types.Structure, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Structure{}, &types.StructureReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return types.Structure{}, &types.StructureReadError{Path: path, Err: errors.New("is a directory")}
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return types.Structure{}, &types.StructureReadError{Path: path, Err: err}
	}
	if !mt.Is(mimePDF) {
		return types.Structure{}, &types.StructureReadError{
			Path: path,
			Err:  fmt.Errorf("not a PDF (detected %s)", mt.String()),
		}
	}

	pages, err := a.reader.PageCount(ctx, path)
	if err != nil {
		return types.Structure{}, &types.StructureReadError{Path: path, Err: err}
	}

	doc := types.Document{Path: path, Pages: pages}

	bms, err := a.reader.Bookmarks(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return types.Structure{}, ctx.Err()
		}
		log.Warn().Err(err).Str("path", path).Msg("outline unreadable, continuing without it")
		bms = nil
	}

	var dropped int
	for _, bm := range bms {
		dropped += addBookmark(&doc.Outline, -1, bm, pages)
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Str("path", path).Msg("ignored bookmarks outside the page range")
	}

	log.Debug().
		Str("path", path).
		Int("pages", pages).
		Int("bookmarks", len(doc.Outline.Nodes)).
		Int("depth", doc.Outline.Depth()).
		Msg("analyzed structure")

	return types.Structure{
		Document:  doc,
		Levels:    Levels(doc.Outline, sampleTitles),
		SizeBytes: info.Size(),
	}, nil
}

// addBookmark adds bm and its kids under parent. A bookmark whose page lies
// outside [1, pages] is dropped and its kids move up to parent. It returns
// the number of dropped bookmarks.
func addBookmark(o *types.Outline, parent int, bm pdf.Bookmark, pages int) int {
	dropped := 0
	idx := parent
	if bm.Page >= 1 && bm.Page <= pages {
		idx = o.Add(parent, bm.Title, bm.Page)
	} else {
		dropped++
	}
	for _, kid := range bm.Kids {
		dropped += addBookmark(o, idx, kid, pages)
	}
	return dropped
}

// Levels summarizes the outline per level: bookmark count, distinct anchor
// pages and up to samples titles in document order.
func Levels(o types.Outline, samples int) []types.LevelInfo {
	depth := o.Depth()
	if depth == 0 {
		return nil
	}
	infos := make([]types.LevelInfo, depth)
	pageSets := make([]map[int]bool, depth)
	for i := range infos {
		infos[i].Level = i + 1
		pageSets[i] = map[int]bool{}
	}
	o.Walk(func(_ int, n types.OutlineNode) bool {
		li := &infos[n.Level-1]
		li.Count++
		pageSets[n.Level-1][n.Page] = true
		if len(li.SampleTitles) < samples {
			li.SampleTitles = append(li.SampleTitles, n.Title)
		}
		return true
	})
	for i := range infos {
		infos[i].UniquePages = len(pageSets[i])
	}
	return infos
}
