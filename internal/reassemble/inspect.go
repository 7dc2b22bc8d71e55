// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reassemble

import (
	"fmt"
	"sort"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Issue is a problem found in a set of conversion results before merging.
type Issue struct {
	Chunk   int    `json:"chunk"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Chunk < 0 {
		return i.Message
	}
	return fmt.Sprintf("chunk %d: %s", i.Chunk, i.Message)
}

// Inspect checks a results set without merging it: failed chunks, gaps
// in the chunk index sequence, breaks in page continuity between
// consecutive chunks, and provenance outside each chunk's local range.
// Results are examined in index order.
func Inspect(results []types.ConversionResult) []Issue {
	ordered := append([]types.ConversionResult(nil), results...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Spec.Index < ordered[j].Spec.Index })

	var issues []Issue
	for i, r := range ordered {
		spec := r.Spec
		if i == 0 && spec.Index != 0 {
			issues = append(issues, Issue{Chunk: -1, Message: fmt.Sprintf("chunks 0-%d missing", spec.Index-1)})
		}
		if i > 0 {
			prev := ordered[i-1].Spec
			switch {
			case spec.Index == prev.Index:
				issues = append(issues, Issue{Chunk: spec.Index, Message: "duplicate result"})
			case spec.Index > prev.Index+1:
				issues = append(issues, Issue{Chunk: -1, Message: fmt.Sprintf("chunk index gap between %d and %d", prev.Index, spec.Index)})
			case spec.NominalStart() != prev.End+1:
				issues = append(issues, Issue{Chunk: spec.Index, Message: fmt.Sprintf("owns pages from %d, previous chunk ends at %d", spec.NominalStart(), prev.End)})
			}
		}
		if !r.OK() {
			msg := "no document"
			if r.Err != nil {
				msg = r.Err.Reason()
			}
			issues = append(issues, Issue{Chunk: spec.Index, Message: "failed: " + msg})
			continue
		}
		local := spec.Pages()
		bad := 0
		for _, kind := range types.ItemKinds {
			for _, it := range r.Fragment.Items(kind) {
				for _, p := range it.Prov {
					if p.PageNo < 1 || p.PageNo > local {
						bad++
					}
				}
			}
		}
		if bad > 0 {
			issues = append(issues, Issue{Chunk: spec.Index, Message: fmt.Sprintf("%d provenance entries outside local pages 1-%d", bad, local)})
		}
	}
	return issues
}
