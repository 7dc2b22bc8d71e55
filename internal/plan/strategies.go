// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"sort"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Single plans the whole document as one chunk.
type Single struct{}

func (Single) Plan(s types.Structure, c types.Constraints) ([]types.ChunkSpec, error) {
	n := s.Document.Pages
	return finalize([]types.PageRange{{Start: 1, End: n}}, s, c, 0)
}

// Fixed splits the document into the fewest chunks of at most MaxPages
// pages, with sizes differing by at most one.
type Fixed struct{}

func (Fixed) Plan(s types.Structure, c types.Constraints) ([]types.ChunkSpec, error) {
	return finalize(evenRanges(1, s.Document.Pages, c.MaxPages), s, c, 0)
}

// Hybrid cuts the document at the bookmarks of outline levels 1 through
// Level, merges small neighbouring spans and splits oversized ones evenly.
type Hybrid struct {
	Level int
}

func (h Hybrid) Plan(s types.Structure, c types.Constraints) ([]types.ChunkSpec, error) {
	n := s.Document.Pages
	ranges := hybridRanges(spans(cutPoints(s.Document.Outline, h.Level, n), n), c)
	return finalize(ranges, s, c, h.Level)
}

// Enhanced plans like Hybrid at the outline level that scores best. A zero
// Level is resolved by scoring every level up to MaxDepth.
type Enhanced struct {
	Level int
}

func (e Enhanced) Plan(s types.Structure, c types.Constraints) ([]types.ChunkSpec, error) {
	level := e.Level
	if level == 0 {
		level, _ = bestLevel(s, c)
	}
	return Hybrid{Level: level}.Plan(s, c)
}

// Score ranks a chunk list: fewer bound violations first, then lower size
// variance.
type Score struct {
	Violations int
	Variance   float64
}

// Less reports whether sc ranks strictly better than other.
func (sc Score) Less(other Score) bool {
	if sc.Violations != other.Violations {
		return sc.Violations < other.Violations
	}
	return sc.Variance < other.Variance
}

// bestLevel scores every outline level from 1 to min(depth, MaxDepth) and
// returns the best one. Ties keep the shallower level.
func bestLevel(s types.Structure, c types.Constraints) (int, Score) {
	n := s.Document.Pages
	best, bestScore := 1, Score{Violations: -1}
	for level := 1; level <= max(maxLevel(s.Document.Outline, c), 1); level++ {
		sc := scoreRanges(hybridRanges(spans(cutPoints(s.Document.Outline, level, n), n), c), c)
		if bestScore.Violations < 0 || sc.Less(bestScore) {
			best, bestScore = level, sc
		}
	}
	return best, bestScore
}

// LevelScores returns the score of each candidate outline level, starting
// at level 1.
func LevelScores(s types.Structure, c types.Constraints) []Score {
	n := s.Document.Pages
	var scores []Score
	for level := 1; level <= maxLevel(s.Document.Outline, c); level++ {
		scores = append(scores, scoreRanges(hybridRanges(spans(cutPoints(s.Document.Outline, level, n), n), c), c))
	}
	return scores
}

func scoreRanges(ranges []types.PageRange, c types.Constraints) Score {
	if len(ranges) == 0 {
		return Score{}
	}
	var sc Score
	total := 0
	for _, r := range ranges {
		size := r.Len()
		total += size
		if size < c.MinPages || size > c.MaxPages {
			sc.Violations++
		}
	}
	mean := float64(total) / float64(len(ranges))
	for _, r := range ranges {
		d := float64(r.Len()) - mean
		sc.Variance += d * d
	}
	sc.Variance /= float64(len(ranges))
	return sc
}

// evenRanges splits [start, end] into ceil(len/maxPages) ranges whose sizes
// differ by at most one; the leading ranges take the extra pages.
func evenRanges(start, end, maxPages int) []types.PageRange {
	n := end - start + 1
	if n <= 0 {
		return nil
	}
	k := (n + maxPages - 1) / maxPages
	base, rem := n/k, n%k
	out := make([]types.PageRange, 0, k)
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, types.PageRange{Start: start, End: start + size - 1})
		start += size
	}
	return out
}

// cutPoints returns the sorted distinct anchor pages of bookmarks at or
// above level that lie in [1, n]. Page 1 is always a cut point.
func cutPoints(o types.Outline, level, n int) []int {
	seen := map[int]bool{1: true}
	for _, node := range o.Nodes {
		if node.Level <= level && node.Page >= 1 && node.Page <= n {
			seen[node.Page] = true
		}
	}
	cuts := make([]int, 0, len(seen))
	for p := range seen {
		cuts = append(cuts, p)
	}
	sort.Ints(cuts)
	return cuts
}

// spans turns sorted cut points into contiguous ranges covering [1, n].
func spans(cuts []int, n int) []types.PageRange {
	out := make([]types.PageRange, len(cuts))
	for i, c := range cuts {
		end := n
		if i+1 < len(cuts) {
			end = cuts[i+1] - 1
		}
		out[i] = types.PageRange{Start: c, End: end}
	}
	return out
}

// hybridRanges groups spans into chunks. A span larger than MaxPages is
// split evenly on its own. Otherwise a span joins the running group while
// the group is below MinPages and the combined size stays within MaxPages.
// A trailing group below MinPages joins the previous chunk when it fits.
func hybridRanges(sp []types.PageRange, c types.Constraints) []types.PageRange {
	var out []types.PageRange
	var group *types.PageRange

	flush := func() {
		if group != nil {
			out = append(out, *group)
			group = nil
		}
	}

	for _, s := range sp {
		if s.Len() > c.MaxPages {
			flush()
			out = append(out, evenRanges(s.Start, s.End, c.MaxPages)...)
			continue
		}
		switch {
		case group == nil:
			g := s
			group = &g
		case group.Len()+s.Len() <= c.MaxPages && group.Len() < c.MinPages:
			group.End = s.End
		default:
			flush()
			g := s
			group = &g
		}
	}

	if group != nil {
		if n := len(out); n > 0 && group.Len() < c.MinPages && out[n-1].Len()+group.Len() <= c.MaxPages {
			out[n-1].End = group.End
		} else {
			out = append(out, *group)
		}
	}
	return out
}
