// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reassemble merges per-chunk fragments into one document in
// global page coordinates and validates the result.
// Implements: docs/ARCHITECTURE § Reassembly.
package reassemble

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Engine merges conversion results. The zero value is ready to use.
type Engine struct{}

// New returns a reassembly engine.
func New() *Engine {
	return &Engine{}
}

// Merge combines the fragments of results in chunk order. Every spec must
// have a successful result, otherwise Merge fails with a
// *types.MissingChunkError for the lowest such index before merging
// anything. The merged document is always validated; a document that
// fails validation is not returned and the error is a
// *types.MergeValidationError carrying the report.
func (e *Engine) Merge(specs []types.ChunkSpec, results []types.ConversionResult, pages int) (*types.MergedDocument, error) {
	ordered := append([]types.ChunkSpec(nil), specs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	byIndex, err := index(ordered, results)
	if err != nil {
		return nil, err
	}

	m := &merger{
		out:    types.NewFragment(documentName(ordered)),
		claims: map[int][]int{},
	}
	for _, spec := range ordered {
		m.add(spec, byIndex[spec.Index].Fragment)
	}

	report := m.validate(ordered, pages)
	if !report.OK() {
		return nil, &types.MergeValidationError{Report: report}
	}
	log.Debug().
		Int("chunks", len(ordered)).
		Int("entries", len(m.prov)).
		Int("discarded", report.Discarded).
		Msg("merged fragments")

	return &types.MergedDocument{Document: m.out, Provenance: m.prov, Report: report}, nil
}

// index maps results by chunk index and checks that every spec has a
// successful result.
func index(specs []types.ChunkSpec, results []types.ConversionResult) (map[int]*types.ConversionResult, error) {
	known := make(map[int]bool, len(specs))
	for _, s := range specs {
		known[s.Index] = true
	}

	byIndex := make(map[int]*types.ConversionResult, len(results))
	for i := range results {
		r := &results[i]
		idx := r.Spec.Index
		if !known[idx] {
			return nil, fmt.Errorf("result for chunk %d does not belong to the plan", idx)
		}
		if _, dup := byIndex[idx]; dup {
			return nil, fmt.Errorf("duplicate result for chunk %d", idx)
		}
		byIndex[idx] = r
	}

	for _, s := range specs {
		r, ok := byIndex[s.Index]
		switch {
		case !ok:
			return nil, &types.MissingChunkError{Index: s.Index, Cause: "no result"}
		case r.Err != nil:
			return nil, &types.MissingChunkError{Index: s.Index, Cause: r.Err.Reason()}
		case r.Fragment == nil:
			return nil, &types.MissingChunkError{Index: s.Index, Cause: "no document"}
		}
	}
	return byIndex, nil
}

func documentName(specs []types.ChunkSpec) string {
	if len(specs) == 0 || specs[0].Source == "" {
		return "merged"
	}
	base := filepath.Base(specs[0].Source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// merger accumulates the merged fragment.
type merger struct {
	out       *types.Fragment
	prov      []types.ProvenanceEntry
	claims    map[int][]int // global page -> claiming chunk indices
	discarded int
	spans     []span
}

// span is the local page span a fragment reported.
type span struct {
	index       int
	first, last int
}

// node is a fragment item with its keep decision.
type node struct {
	kind     types.ItemKind
	item     types.Item
	keep     bool
	children []*node
}

func (m *merger) add(spec types.ChunkSpec, frag *types.Fragment) {
	offset := spec.Start - 1
	nominal := spec.NominalStart()

	first, last := frag.PageSpan()
	m.spans = append(m.spans, span{index: spec.Index, first: first, last: last})

	visited := map[string]bool{}
	var build func(ref string, inherited bool) *node
	build = func(ref string, inherited bool) *node {
		if visited[ref] {
			return nil
		}
		visited[ref] = true
		kind, _, ok := types.ParseRef(ref)
		if !ok {
			return nil
		}
		it, ok := frag.Resolve(ref)
		if !ok {
			log.Debug().Int("chunk", spec.Index).Str("ref", ref).Msg("dangling reference")
			return nil
		}
		n := &node{kind: kind, item: *it}
		anchored := it.AnchorPage() > 0
		if anchored {
			n.keep = it.AnchorPage()+offset >= nominal
		}
		for _, c := range it.Children {
			ctx := inherited
			if anchored {
				ctx = n.keep
			}
			if child := build(c.Ref, ctx); child != nil {
				n.children = append(n.children, child)
			}
		}
		if !anchored {
			n.keep = inherited && len(n.children) == 0
			for _, c := range n.children {
				n.keep = n.keep || c.keep
			}
		}
		return n
	}

	var roots []*node
	for _, c := range frag.Body.Children {
		if n := build(c.Ref, true); n != nil {
			roots = append(roots, n)
		}
	}

	if total := countItems(frag); total > len(visited) {
		log.Debug().Int("chunk", spec.Index).Int("unreachable", total-len(visited)).Msg("ignoring items outside the body tree")
	}

	for _, n := range roots {
		m.emit(spec, n, types.BodyRef, offset)
	}

	for _, p := range frag.Pages {
		g := p.PageNo + offset
		if g < nominal {
			continue
		}
		m.out.AddPage(types.PageItem{PageNo: g, Size: p.Size})
		m.claims[g] = append(m.claims[g], spec.Index)
	}
	if len(frag.Pages) == 0 {
		m.claimFromProvenance(spec, roots, offset, nominal)
	}
}

// emit appends kept nodes under parent in depth-first order. Discarded
// nodes hand their children to parent.
func (m *merger) emit(spec types.ChunkSpec, n *node, parent string, offset int) {
	if !n.keep {
		m.discarded++
		for _, c := range n.children {
			m.emit(spec, c, parent, offset)
		}
		return
	}

	it := n.item
	it.Parent = &types.RefItem{Ref: parent}
	it.Children = []types.RefItem{}
	if len(n.item.Prov) > 0 {
		it.Prov = make([]types.ProvenanceItem, len(n.item.Prov))
		for i, p := range n.item.Prov {
			p.PageNo += offset
			it.Prov[i] = p
		}
	}
	ref := m.out.Append(n.kind, it)
	m.attach(parent, ref)

	for _, p := range it.Prov {
		m.prov = append(m.prov, types.ProvenanceEntry{Ref: ref, Page: p.PageNo, Chunk: spec.Index})
	}
	for _, c := range n.children {
		m.emit(spec, c, ref, offset)
	}
}

func (m *merger) attach(parent, child string) {
	if parent == types.BodyRef {
		m.out.Body.Children = append(m.out.Body.Children, types.RefItem{Ref: child})
		return
	}
	if p, ok := m.out.Resolve(parent); ok {
		p.Children = append(p.Children, types.RefItem{Ref: child})
	}
}

// claimFromProvenance records page claims for a fragment that lists no
// page entries. Only kept nodes claim pages; discarded nodes still pass
// through to their children.
func (m *merger) claimFromProvenance(spec types.ChunkSpec, roots []*node, offset, nominal int) {
	seen := map[int]bool{}
	var walk func(n *node)
	walk = func(n *node) {
		if n.keep {
			for _, p := range n.item.Prov {
				if g := p.PageNo + offset; g >= nominal && !seen[g] {
					seen[g] = true
					m.claims[g] = append(m.claims[g], spec.Index)
				}
			}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
}

func countItems(f *types.Fragment) int {
	total := 0
	for _, k := range types.ItemKinds {
		total += len(f.Items(k))
	}
	return total
}

func (m *merger) validate(specs []types.ChunkSpec, pages int) types.ValidationReport {
	r := types.ValidationReport{TotalPages: pages, Discarded: m.discarded}

	claimed := make([]int, 0, len(m.claims))
	for p := range m.claims {
		claimed = append(claimed, p)
	}
	sort.Ints(claimed)
	for _, p := range claimed {
		switch {
		case p < 1 || p > pages:
			r.OutOfRange = append(r.OutOfRange, p)
		case len(m.claims[p]) > 1:
			r.Overlaps = append(r.Overlaps, p)
			r.CoveredPages++
		default:
			r.CoveredPages++
		}
	}
	r.Gaps = gaps(m.claims, pages)

	for i := 1; i < len(m.prov); i++ {
		if m.prov[i].Page < m.prov[i-1].Page {
			r.Monotonicity = append(r.Monotonicity, types.MonotonicityViolation{
				Position: i,
				Ref:      m.prov[i].Ref,
				Page:     m.prov[i].Page,
				Previous: m.prov[i-1].Page,
			})
		}
	}
	for _, p := range m.prov {
		if p.Page < 1 || p.Page > pages {
			if !containsInt(r.OutOfRange, p.Page) {
				r.OutOfRange = append(r.OutOfRange, p.Page)
			}
		}
	}
	sort.Ints(r.OutOfRange)

	for i, s := range m.spans {
		want := specs[i].Pages()
		if s.first != 1 || s.last != want {
			r.Misalignments = append(r.Misalignments, types.ChunkMisalignment{
				Index:         s.index,
				DeclaredFirst: 1,
				DeclaredLast:  want,
				ActualFirst:   s.first,
				ActualLast:    s.last,
			})
		}
	}
	return r
}

// gaps returns the maximal runs of pages in [1, n] nobody claimed.
func gaps(claims map[int][]int, n int) []types.PageRange {
	var out []types.PageRange
	for p := 1; p <= n; p++ {
		if len(claims[p]) > 0 {
			continue
		}
		if k := len(out); k > 0 && out[k-1].End == p-1 {
			out[k-1].End = p
			continue
		}
		out = append(out, types.PageRange{Start: p, End: p})
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
