// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// MonotonicityViolation marks a provenance entry whose page is lower than
// the entry before it.
type MonotonicityViolation struct {
	Position int    `json:"position"`
	Ref      string `json:"ref"`
	Page     int    `json:"page"`
	Previous int    `json:"previous"`
}

// ChunkMisalignment records a fragment whose reported local page span
// differs from the span its chunk declared.
type ChunkMisalignment struct {
	Index         int `json:"index"`
	DeclaredFirst int `json:"declared_first"`
	DeclaredLast  int `json:"declared_last"`
	ActualFirst   int `json:"actual_first"`
	ActualLast    int `json:"actual_last"`
}

// ValidationReport is the result of validating a merge.
type ValidationReport struct {
	// TotalPages is N, the page count of the source document.
	TotalPages int `json:"total_pages"`

	// CoveredPages is the number of distinct in-range pages covered by
	// surviving content.
	CoveredPages int `json:"covered_pages"`

	// Gaps lists page ranges no chunk covered.
	Gaps []PageRange `json:"gaps,omitempty"`

	// Overlaps lists pages claimed by more than one chunk after overlap
	// de-duplication.
	Overlaps []int `json:"overlaps,omitempty"`

	// OutOfRange lists global pages outside [1, N].
	OutOfRange []int `json:"out_of_range,omitempty"`

	Monotonicity  []MonotonicityViolation `json:"monotonicity,omitempty"`
	Misalignments []ChunkMisalignment     `json:"misalignments,omitempty"`

	// Discarded counts items dropped because they were anchored to a page
	// owned by the preceding chunk.
	Discarded int `json:"discarded"`
}

// OK reports whether the merge passed every check.
func (r ValidationReport) OK() bool {
	return len(r.Gaps) == 0 && len(r.Overlaps) == 0 && len(r.OutOfRange) == 0 &&
		len(r.Monotonicity) == 0 && len(r.Misalignments) == 0
}

// String renders the report for terminal output.
func (r ValidationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "coverage: %d/%d pages", r.CoveredPages, r.TotalPages)
	if r.Discarded > 0 {
		fmt.Fprintf(&b, " (%d overlap items discarded)", r.Discarded)
	}
	b.WriteString("\n")
	for _, g := range r.Gaps {
		fmt.Fprintf(&b, "gap: pages %s not covered\n", g)
	}
	if len(r.Overlaps) > 0 {
		fmt.Fprintf(&b, "duplicate pages: %v\n", r.Overlaps)
	}
	if len(r.OutOfRange) > 0 {
		fmt.Fprintf(&b, "pages out of range: %v\n", r.OutOfRange)
	}
	for _, m := range r.Monotonicity {
		fmt.Fprintf(&b, "monotonicity: %s on page %d follows page %d (position %d)\n",
			m.Ref, m.Page, m.Previous, m.Position)
	}
	for _, m := range r.Misalignments {
		fmt.Fprintf(&b, "alignment: chunk %d declared pages %d-%d, fragment reports %d-%d\n",
			m.Index, m.DeclaredFirst, m.DeclaredLast, m.ActualFirst, m.ActualLast)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
