// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reassemble

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Export writes the merged document in the engine's native JSON schema.
func Export(w io.Writer, doc *types.MergedDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc.Document); err != nil {
		return fmt.Errorf("encoding merged document: %w", err)
	}
	return nil
}

// ExportFile writes the merged document to path, creating parent
// directories as needed.
func ExportFile(path string, doc *types.MergedDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Export(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Stats summarizes a merged document.
type Stats struct {
	Items       map[types.ItemKind]int `json:"items"`
	TotalItems  int                    `json:"total_items"`
	UniquePages int                    `json:"unique_pages"`
	FirstPage   int                    `json:"first_page"`
	LastPage    int                    `json:"last_page"`
	Discarded   int                    `json:"discarded"`
}

// Statistics computes item counts and page coverage of doc.
func Statistics(doc *types.MergedDocument) Stats {
	s := Stats{Items: doc.Document.CountItems(), Discarded: doc.Report.Discarded}
	for _, n := range s.Items {
		s.TotalItems += n
	}
	seen := map[int]bool{}
	for _, p := range doc.Provenance {
		seen[p.Page] = true
	}
	for _, p := range doc.Document.PageNumbers() {
		seen[p] = true
	}
	for p := range seen {
		if s.FirstPage == 0 || p < s.FirstPage {
			s.FirstPage = p
		}
		if p > s.LastPage {
			s.LastPage = p
		}
	}
	s.UniquePages = len(seen)
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("%d items (%d texts, %d tables, %d pictures, %d groups), %d pages (%d-%d), %d overlap items discarded",
		s.TotalItems, s.Items[types.KindText], s.Items[types.KindTable], s.Items[types.KindPicture], s.Items[types.KindGroup],
		s.UniquePages, s.FirstPage, s.LastPage, s.Discarded)
}
