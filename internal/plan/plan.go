// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan selects a chunking strategy for a document and computes the
// chunk list. Planning is pure: it reads a Structure and Constraints and
// returns a Plan without touching the filesystem.
// Implements: docs/ARCHITECTURE § Strategy Selection, § Chunk Planning.
package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// ErrPlanInvariant reports a chunk list that does not partition the
// document. It indicates a planner defect, never bad input.
var ErrPlanInvariant = errors.New("plan invariant violated")

// Planner computes the chunk list for one strategy.
type Planner interface {
	Plan(s types.Structure, c types.Constraints) ([]types.ChunkSpec, error)
}

// Validate checks constraints supplied by the user.
func Validate(c types.Constraints) error {
	switch {
	case c.MaxPages < 1:
		return fmt.Errorf("max pages must be at least 1, got %d", c.MaxPages)
	case c.MinPages < 1:
		return fmt.Errorf("min pages must be at least 1, got %d", c.MinPages)
	case c.Overlap < 0:
		return fmt.Errorf("overlap must not be negative, got %d", c.Overlap)
	case c.MaxDepth < 1:
		return fmt.Errorf("max depth must be at least 1, got %d", c.MaxDepth)
	}
	return nil
}

// Select chooses a strategy for s and returns the resulting plan. force
// names a strategy requested by the user; the empty strategy selects
// automatically:
//
//  1. a document of at most MaxPages pages is a single chunk;
//  2. a document without a usable outline is split evenly;
//  3. the shallowest outline level whose chunks all fit the size bounds
//     is used as is (hybrid);
//  4. otherwise the level with the fewest bound violations and the most
//     even chunk sizes wins (enhanced).
func Select(s types.Structure, c types.Constraints, force types.Strategy) (types.Plan, error) {
	if err := Validate(c); err != nil {
		return types.Plan{}, err
	}
	n := s.Document.Pages
	if n <= 0 {
		return types.Plan{}, &types.StrategySelectionError{
			Reason: fmt.Sprintf("document %s has %d pages", s.Document.Path, n),
		}
	}

	p := types.Plan{
		Pages:       n,
		Source:      s.Document.Path,
		Constraints: c,
	}

	var planner Planner
	switch {
	case n <= c.MaxPages:
		p.Strategy = types.StrategySingle
		planner = Single{}

	case force == types.StrategyFixed:
		p.Strategy = types.StrategyFixed
		planner = Fixed{}

	case shallow(s.Document.Outline, n):
		if force == types.StrategyHybrid || force == types.StrategyEnhanced {
			p.Notes = append(p.Notes, fmt.Sprintf("%s requested but the document has no usable outline; using fixed", force))
		}
		p.Strategy = types.StrategyFixed
		planner = Fixed{}

	case force == types.StrategyEnhanced:
		p.Strategy = types.StrategyEnhanced
		p.Level, _ = bestLevel(s, c)
		planner = Enhanced{Level: p.Level}

	default:
		if level, ok := firstFittingLevel(s, c); ok {
			p.Strategy = types.StrategyHybrid
			p.Level = level
			planner = Hybrid{Level: level}
			break
		}
		if force == types.StrategyHybrid {
			p.Notes = append(p.Notes, "no outline level fits the size bounds; using level 1")
			p.Strategy = types.StrategyHybrid
			p.Level = 1
			planner = Hybrid{Level: 1}
			break
		}
		p.Strategy = types.StrategyEnhanced
		p.Level, _ = bestLevel(s, c)
		planner = Enhanced{Level: p.Level}
	}

	specs, err := planner.Plan(s, c)
	if err != nil {
		return types.Plan{}, err
	}
	p.Specs = specs
	if p.Strategy != types.StrategySingle {
		p.Violations = violations(specs, c)
	}
	return p, nil
}

// Compare plans s with every strategy and with automatic selection, in
// the order fixed, hybrid, enhanced, auto.
func Compare(s types.Structure, c types.Constraints) ([]types.Plan, error) {
	forced := []types.Strategy{types.StrategyFixed, types.StrategyHybrid, types.StrategyEnhanced, ""}
	plans := make([]types.Plan, 0, len(forced))
	for _, f := range forced {
		p, err := Select(s, c, f)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// shallow reports whether the outline offers fewer than two distinct
// in-range anchor pages.
func shallow(o types.Outline, n int) bool {
	count := 0
	for _, p := range o.AnchorPages(0) {
		if p >= 1 && p <= n {
			count++
		}
	}
	return count < 2
}

// maxLevel is the deepest outline level planning considers.
func maxLevel(o types.Outline, c types.Constraints) int {
	return min(o.Depth(), c.MaxDepth)
}

func firstFittingLevel(s types.Structure, c types.Constraints) (int, bool) {
	for level := 1; level <= maxLevel(s.Document.Outline, c); level++ {
		ranges := hybridRanges(spans(cutPoints(s.Document.Outline, level, s.Document.Pages), s.Document.Pages), c)
		if scoreRanges(ranges, c).Violations == 0 {
			return level, true
		}
	}
	return 0, false
}

func violations(specs []types.ChunkSpec, c types.Constraints) []types.BoundViolation {
	var out []types.BoundViolation
	for _, sp := range specs {
		if n := sp.NominalPages(); n < c.MinPages || n > c.MaxPages {
			out = append(out, types.BoundViolation{Index: sp.Index, Pages: n, Min: c.MinPages, Max: c.MaxPages})
		}
	}
	return out
}

// finalize turns nominal ranges into chunk specs with overlap and titles,
// then checks the partition invariant.
func finalize(ranges []types.PageRange, s types.Structure, c types.Constraints, level int) ([]types.ChunkSpec, error) {
	specs := withOverlap(ranges, c.Overlap, s.Document.Path)
	assignTitles(specs, s.Document.Outline, level)
	if err := Verify(specs, s.Document.Pages); err != nil {
		return nil, err
	}
	return specs, nil
}

// withOverlap builds specs from nominal ranges. Each chunk after the first
// starts overlap pages early, but never before its predecessor's nominal
// start.
func withOverlap(ranges []types.PageRange, overlap int, source string) []types.ChunkSpec {
	specs := make([]types.ChunkSpec, len(ranges))
	for i, r := range ranges {
		start := r.Start
		if i > 0 && overlap > 0 {
			start = max(r.Start-overlap, ranges[i-1].Start, 1)
		}
		specs[i] = types.ChunkSpec{
			Index:   i,
			Start:   start,
			End:     r.End,
			Overlap: r.Start - start,
			Source:  source,
		}
	}
	return specs
}

// assignTitles gives each chunk the first bookmark title anchored in its
// owned range. Only bookmarks at or above level count; 0 means all.
func assignTitles(specs []types.ChunkSpec, o types.Outline, level int) {
	type mark struct {
		page  int
		title string
	}
	var marks []mark
	o.Walk(func(_ int, n types.OutlineNode) bool {
		if level == 0 || n.Level <= level {
			marks = append(marks, mark{n.Page, n.Title})
		}
		return true
	})
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].page < marks[j].page })

	for i := range specs {
		lo, hi := specs[i].NominalStart(), specs[i].End
		j := sort.Search(len(marks), func(k int) bool { return marks[k].page >= lo })
		if j < len(marks) && marks[j].page <= hi {
			specs[i].Title = marks[j].title
		}
	}
}

// Verify checks that specs are indexed 0..k-1 and that their nominal ranges
// partition [1, n] with 1 <= Start <= NominalStart <= End <= n.
func Verify(specs []types.ChunkSpec, n int) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no chunks for %d pages", ErrPlanInvariant, n)
	}
	next := 1
	for i, sp := range specs {
		switch {
		case sp.Index != i:
			return fmt.Errorf("%w: chunk at position %d has index %d", ErrPlanInvariant, i, sp.Index)
		case sp.Start < 1 || sp.Overlap < 0 || sp.NominalStart() > sp.End || sp.End > n:
			return fmt.Errorf("%w: chunk %d has range %d-%d (overlap %d) in %d pages",
				ErrPlanInvariant, i, sp.Start, sp.End, sp.Overlap, n)
		case sp.NominalStart() != next:
			return fmt.Errorf("%w: chunk %d owns pages from %d, want %d", ErrPlanInvariant, i, sp.NominalStart(), next)
		case i == 0 && sp.Overlap != 0:
			return fmt.Errorf("%w: first chunk overlaps backward", ErrPlanInvariant)
		}
		next = sp.End + 1
	}
	if next != n+1 {
		return fmt.Errorf("%w: chunks end at page %d, want %d", ErrPlanInvariant, next-1, n)
	}
	return nil
}
