// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package converttest provides synthetic conversion output for tests.
package converttest

import (
	"context"
	"fmt"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Fragment returns a fragment for a document of the given page count. Each
// page holds a group with a heading and a paragraph; every fifth page also
// carries a table. All provenance is local to the document.
func Fragment(name string, pages int) *types.Fragment {
	f := types.NewFragment(name)
	for p := 1; p <= pages; p++ {
		f.AddPage(types.PageItem{PageNo: p, Size: types.Size{Width: 612, Height: 792}})

		groupRef := f.Append(types.KindGroup, types.Item{
			Parent:   &types.RefItem{Ref: types.BodyRef},
			Children: []types.RefItem{},
			Label:    "section",
			Prov:     []types.ProvenanceItem{{PageNo: p}},
		})
		f.Body.Children = append(f.Body.Children, types.RefItem{Ref: groupRef})
		gi := len(f.Groups) - 1

		heading := f.Append(types.KindText, types.Item{
			Parent:   &types.RefItem{Ref: groupRef},
			Children: []types.RefItem{},
			Label:    "section_header",
			Text:     fmt.Sprintf("Page %d", p),
			Prov:     []types.ProvenanceItem{{PageNo: p}},
		})
		para := f.Append(types.KindText, types.Item{
			Parent:   &types.RefItem{Ref: groupRef},
			Children: []types.RefItem{},
			Label:    "text",
			Text:     fmt.Sprintf("Body text of page %d.", p),
			Prov:     []types.ProvenanceItem{{PageNo: p}},
		})
		f.Groups[gi].Children = append(f.Groups[gi].Children, types.RefItem{Ref: heading}, types.RefItem{Ref: para})

		if p%5 == 0 {
			table := f.Append(types.KindTable, types.Item{
				Parent:   &types.RefItem{Ref: groupRef},
				Children: []types.RefItem{},
				Label:    "table",
				Prov:     []types.ProvenanceItem{{PageNo: p}},
			})
			f.Groups[gi].Children = append(f.Groups[gi].Children, types.RefItem{Ref: table})
		}
	}
	return f
}

// PageCounter counts pages of a PDF file.
type PageCounter interface {
	PageCount(ctx context.Context, path string) (int, error)
}

// Converter produces a synthetic fragment sized to each chunk it is given.
type Converter struct {
	Pages PageCounter
}

func (c Converter) Convert(ctx context.Context, pdfPath string) (*types.Fragment, error) {
	n, err := c.Pages.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	return Fragment(pdfPath, n), nil
}
