// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Strategy names a planning strategy. The set is closed.
type Strategy string

const (
	StrategySingle   Strategy = "single_chunk"
	StrategyFixed    Strategy = "fixed"
	StrategyHybrid   Strategy = "hybrid"
	StrategyEnhanced Strategy = "enhanced"
)

// ParseStrategy converts a user-supplied strategy name. The empty string
// means automatic selection and is returned as "".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return "", nil
	case string(StrategyFixed):
		return StrategyFixed, nil
	case string(StrategyHybrid):
		return StrategyHybrid, nil
	case string(StrategyEnhanced):
		return StrategyEnhanced, nil
	}
	return "", fmt.Errorf("unknown strategy %q: want fixed, hybrid or enhanced", s)
}

// PageRange is an inclusive, 1-indexed page interval.
type PageRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r PageRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ChunkSpec describes one planned chunk. Index defines the total order of
// a plan. The chunk covers [Start, End]; the first Overlap pages are shared
// with the predecessor, which owns them during reassembly.
type ChunkSpec struct {
	// Index is the 0-based position of the chunk in the plan.
	Index int `json:"index" yaml:"index"`

	// Start is the first page written to the chunk, including overlap.
	Start int `json:"start" yaml:"start"`

	// End is the last page of the chunk (inclusive).
	End int `json:"end" yaml:"end"`

	// Overlap is the number of leading pages shared with the predecessor.
	Overlap int `json:"overlap" yaml:"overlap"`

	// Source is the path of the document the chunk is cut from.
	Source string `json:"source" yaml:"source"`

	// Title is the first outline title inside the chunk, if any.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// NominalStart is the first page the chunk owns.
func (c ChunkSpec) NominalStart() int {
	return c.Start + c.Overlap
}

// Pages returns the number of pages written to the chunk file.
func (c ChunkSpec) Pages() int {
	return c.End - c.Start + 1
}

// NominalPages returns the number of pages the chunk owns.
func (c ChunkSpec) NominalPages() int {
	return c.End - c.NominalStart() + 1
}

// Range returns the full written range.
func (c ChunkSpec) Range() PageRange {
	return PageRange{Start: c.Start, End: c.End}
}

// FileName returns the artifact name encoding index and page range.
func (c ChunkSpec) FileName() string {
	return fmt.Sprintf("chunk_%04d_pages_%04d_%04d.pdf", c.Index, c.Start, c.End)
}

// ChunkFile is a ChunkSpec materialized on disk.
type ChunkFile struct {
	Spec ChunkSpec `json:"spec" yaml:"spec"`
	Path string    `json:"path" yaml:"path"`

	// PagesWritten is the page count read back from the artifact. It must
	// equal Spec.Pages().
	PagesWritten int `json:"pages_written" yaml:"pages_written"`
}

// BoundViolation records a planned chunk whose owned size falls outside
// [MinPages, MaxPages].
type BoundViolation struct {
	Index int `json:"index" yaml:"index"`
	Pages int `json:"pages" yaml:"pages"`
	Min   int `json:"min" yaml:"min"`
	Max   int `json:"max" yaml:"max"`
}

func (v BoundViolation) String() string {
	return fmt.Sprintf("chunk %d has %d pages (bounds %d-%d)", v.Index, v.Pages, v.Min, v.Max)
}

// Plan is the output of strategy selection and chunk planning.
type Plan struct {
	Strategy Strategy    `json:"strategy" yaml:"strategy"`
	Level    int         `json:"level,omitempty" yaml:"level,omitempty"`
	Pages    int         `json:"pages" yaml:"pages"`
	Source   string      `json:"source" yaml:"source"`
	Specs    []ChunkSpec `json:"chunks" yaml:"chunks"`

	// Constraints records the constraints the plan was computed with.
	Constraints Constraints `json:"constraints" yaml:"constraints"`

	// Violations lists chunks outside the size bounds. They are reported,
	// never fatal.
	Violations []BoundViolation `json:"violations,omitempty" yaml:"violations,omitempty"`

	// Notes carries human-readable remarks such as strategy fallbacks.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// NumChunks returns the number of chunks in the plan.
func (p Plan) NumChunks() int {
	return len(p.Specs)
}

// SizeStats returns the minimum, maximum and average owned chunk size.
func (p Plan) SizeStats() (minSize, maxSize int, avg float64) {
	if len(p.Specs) == 0 {
		return 0, 0, 0
	}
	total := 0
	minSize = p.Specs[0].NominalPages()
	for _, s := range p.Specs {
		n := s.NominalPages()
		total += n
		if n < minSize {
			minSize = n
		}
		if n > maxSize {
			maxSize = n
		}
	}
	return minSize, maxSize, float64(total) / float64(len(p.Specs))
}

// Summary renders a short multi-line description of the plan.
func (p Plan) Summary() string {
	minSize, maxSize, avg := p.SizeStats()
	strategy := string(p.Strategy)
	if p.Level > 0 {
		strategy = fmt.Sprintf("%s (outline level %d)", p.Strategy, p.Level)
	}
	s := fmt.Sprintf("Strategy: %s\nTotal pages: %d\nChunks: %d\nChunk size: min %d, max %d, avg %.1f",
		strategy, p.Pages, len(p.Specs), minSize, maxSize, avg)
	if p.Constraints.Overlap > 0 {
		s += fmt.Sprintf("\nOverlap: %d pages", p.Constraints.Overlap)
	}
	for _, v := range p.Violations {
		s += "\nWarning: " + v.String()
	}
	for _, n := range p.Notes {
		s += "\nNote: " + n
	}
	return s
}
