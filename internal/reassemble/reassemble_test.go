// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reassemble

import (
	"bytes"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfsplit/internal/convert"
	"github.com/pdiddy/pdfsplit/internal/convert/converttest"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

func spec(index, start, end, overlap int) types.ChunkSpec {
	return types.ChunkSpec{Index: index, Start: start, End: end, Overlap: overlap, Source: "/docs/report.pdf"}
}

// ok builds a successful result whose fragment matches the chunk size.
func ok(s types.ChunkSpec) types.ConversionResult {
	return types.ConversionResult{Spec: s, Path: s.FileName(), Fragment: converttest.Fragment(s.FileName(), s.Pages())}
}

func withFragment(s types.ChunkSpec, f *types.Fragment) types.ConversionResult {
	return types.ConversionResult{Spec: s, Path: s.FileName(), Fragment: f}
}

func failed(s types.ChunkSpec, msg string) types.ConversionResult {
	return types.ConversionResult{Spec: s, Path: s.FileName(), Err: &types.ConversionError{Index: s.Index, Path: s.FileName(), Message: msg}}
}

func assertMonotonic(t *testing.T, doc *types.MergedDocument) {
	t.Helper()
	pages := doc.ProvenancePages()
	assert.True(t, sort.IntsAreSorted(pages), "provenance pages not monotonic: %v", pages)
}

func TestMergeContiguous(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 40, 0), spec(1, 41, 100, 0)}
	// Results arrive out of order.
	results := []types.ConversionResult{ok(specs[1]), ok(specs[0])}

	doc, err := New().Merge(specs, results, 100)
	require.NoError(t, err)

	assert.True(t, doc.Report.OK())
	assert.Equal(t, 100, doc.Report.CoveredPages)
	assert.Zero(t, doc.Report.Discarded)
	assert.Equal(t, "report", doc.Document.Name)
	assert.Len(t, doc.Document.Groups, 100)
	assert.Len(t, doc.Document.Texts, 200)
	assert.Len(t, doc.Document.Tables, 20)
	assert.Len(t, doc.Document.Pages, 100)
	assert.Len(t, doc.Document.Body.Children, 100)
	assertMonotonic(t, doc)

	// The first group of chunk 1 sits on local page 1, global page 41.
	g := doc.Document.Groups[40]
	assert.Equal(t, 41, g.AnchorPage())
	assert.Equal(t, "#/groups/40", g.SelfRef)
	assert.Equal(t, types.BodyRef, g.Parent.Ref)
	require.Len(t, g.Children, 2)
	child, found := doc.Document.Resolve(g.Children[0].Ref)
	require.True(t, found)
	assert.Equal(t, "Page 1", child.Text)
	assert.Equal(t, 41, child.AnchorPage())
	assert.Equal(t, g.SelfRef, child.Parent.Ref)
}

func TestMergeDeduplicatesOverlap(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 55, 0), spec(1, 51, 100, 5)}
	results := []types.ConversionResult{ok(specs[0]), ok(specs[1])}

	doc, err := New().Merge(specs, results, 100)
	require.NoError(t, err)

	// Chunk 1 repeats pages 51-55: five groups, ten texts and the table on
	// its local page 5.
	assert.Equal(t, 16, doc.Report.Discarded)
	assert.Len(t, doc.Document.Groups, 100)
	assert.Len(t, doc.Document.Texts, 200)
	assert.Len(t, doc.Document.Tables, 20)
	assert.Equal(t, 100, doc.Report.CoveredPages)
	assertMonotonic(t, doc)

	perPage := map[int]int{}
	for _, g := range doc.Document.Groups {
		perPage[g.AnchorPage()]++
	}
	for p := 1; p <= 100; p++ {
		assert.Equal(t, 1, perPage[p], "page %d", p)
	}

	// The fixture puts a group, a heading and a paragraph on every page and
	// a table on every fifth, so each page contributes that content once.
	entries := map[int]int{}
	for _, e := range doc.Provenance {
		entries[e.Page]++
	}
	for p := 51; p <= 55; p++ {
		want := 3
		if p%5 == 0 {
			want = 4
		}
		assert.Equal(t, want, entries[p], "page %d", p)
	}

	// Pages 51-55 come from chunk 0.
	for _, e := range doc.Provenance {
		if e.Page <= 55 {
			assert.Equal(t, 0, e.Chunk, "entry %s", e.Ref)
		} else {
			assert.Equal(t, 1, e.Chunk, "entry %s", e.Ref)
		}
	}
}

func TestMergeReparentsSurvivingDescendants(t *testing.T) {
	// Chunk 1 covers pages 4-6 and owns only page 6. Its section starts on
	// local page 1 but contains a paragraph on local page 3.
	specs := []types.ChunkSpec{spec(0, 1, 5, 0), spec(1, 4, 6, 2)}

	f := types.NewFragment("chunk1")
	for p := 1; p <= 3; p++ {
		f.AddPage(types.PageItem{PageNo: p})
	}
	section := f.Append(types.KindGroup, types.Item{
		Parent: &types.RefItem{Ref: types.BodyRef},
		Label:  "section",
		Prov:   []types.ProvenanceItem{{PageNo: 1}},
	})
	f.Body.Children = append(f.Body.Children, types.RefItem{Ref: section})
	early := f.Append(types.KindText, types.Item{Parent: &types.RefItem{Ref: section}, Label: "text", Text: "early", Prov: []types.ProvenanceItem{{PageNo: 2}}})
	late := f.Append(types.KindText, types.Item{Parent: &types.RefItem{Ref: section}, Label: "text", Text: "late", Prov: []types.ProvenanceItem{{PageNo: 3}}})
	f.Groups[0].Children = []types.RefItem{{Ref: early}, {Ref: late}}

	doc, err := New().Merge(specs, []types.ConversionResult{ok(specs[0]), withFragment(specs[1], f)}, 6)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Report.Discarded)
	last := doc.Document.Texts[len(doc.Document.Texts)-1]
	assert.Equal(t, "late", last.Text)
	assert.Equal(t, 6, last.AnchorPage())
	assert.Equal(t, types.BodyRef, last.Parent.Ref)

	bodyTail := doc.Document.Body.Children[len(doc.Document.Body.Children)-1]
	assert.Equal(t, last.SelfRef, bodyTail.Ref)
	assertMonotonic(t, doc)
}

func TestMergeKeepsUnanchoredGroupsWithContent(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 2, 0), spec(1, 2, 4, 1)}

	f := types.NewFragment("chunk1")
	for p := 1; p <= 3; p++ {
		f.AddPage(types.PageItem{PageNo: p})
	}
	// A list spanning the overlap page and an owned page, and one entirely
	// on the overlap page.
	list := f.Append(types.KindGroup, types.Item{Parent: &types.RefItem{Ref: types.BodyRef}, Label: "list"})
	stale := f.Append(types.KindGroup, types.Item{Parent: &types.RefItem{Ref: types.BodyRef}, Label: "list"})
	f.Body.Children = []types.RefItem{{Ref: list}, {Ref: stale}}
	a := f.Append(types.KindText, types.Item{Parent: &types.RefItem{Ref: list}, Label: "list_item", Text: "a", Prov: []types.ProvenanceItem{{PageNo: 1}}})
	b := f.Append(types.KindText, types.Item{Parent: &types.RefItem{Ref: list}, Label: "list_item", Text: "b", Prov: []types.ProvenanceItem{{PageNo: 2}}})
	c := f.Append(types.KindText, types.Item{Parent: &types.RefItem{Ref: stale}, Label: "list_item", Text: "c", Prov: []types.ProvenanceItem{{PageNo: 1}}})
	f.Groups[0].Children = []types.RefItem{{Ref: a}, {Ref: b}}
	f.Groups[1].Children = []types.RefItem{{Ref: c}}

	doc, err := New().Merge(specs, []types.ConversionResult{ok(specs[0]), withFragment(specs[1], f)}, 4)
	require.NoError(t, err)

	// a, c and the stale list are dropped.
	assert.Equal(t, 3, doc.Report.Discarded)
	kept := doc.Document.Groups[len(doc.Document.Groups)-1]
	assert.Equal(t, "list", kept.Label)
	require.Len(t, kept.Children, 1)
	item, found := doc.Document.Resolve(kept.Children[0].Ref)
	require.True(t, found)
	assert.Equal(t, "b", item.Text)
	assert.Equal(t, 3, item.AnchorPage())
}

func TestMergeMissingChunk(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 10, 0), spec(1, 11, 20, 0), spec(2, 21, 30, 0)}

	tests := []struct {
		name    string
		results []types.ConversionResult
		want    int
	}{
		{"absent", []types.ConversionResult{ok(specs[0]), ok(specs[2])}, 1},
		{"failed", []types.ConversionResult{ok(specs[0]), ok(specs[1]), failed(specs[2], "engine crashed")}, 2},
		{"lowest wins", []types.ConversionResult{failed(specs[1], "timeout")}, 0},
		{"nil fragment", []types.ConversionResult{{Spec: specs[0]}, ok(specs[1]), ok(specs[2])}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := New().Merge(specs, tt.results, 30)
			assert.Nil(t, doc)
			var missing *types.MissingChunkError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tt.want, missing.Index)
		})
	}
}

func TestMergeRejectsForeignResults(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 10, 0)}

	_, err := New().Merge(specs, []types.ConversionResult{ok(specs[0]), ok(spec(7, 11, 20, 0))}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 7")

	_, err = New().Merge(specs, []types.ConversionResult{ok(specs[0]), ok(specs[0])}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestMergeValidation(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 5, 0), spec(1, 6, 10, 0)}

	tests := []struct {
		name   string
		second *types.Fragment
		first  *types.Fragment
		check  func(t *testing.T, r types.ValidationReport)
	}{
		{
			name:   "short fragment leaves a gap",
			second: converttest.Fragment("c1", 3),
			check: func(t *testing.T, r types.ValidationReport) {
				assert.Equal(t, []types.PageRange{{Start: 9, End: 10}}, r.Gaps)
				assert.Equal(t, 8, r.CoveredPages)
				require.Len(t, r.Misalignments, 1)
				assert.Equal(t, types.ChunkMisalignment{Index: 1, DeclaredFirst: 1, DeclaredLast: 5, ActualFirst: 1, ActualLast: 3}, r.Misalignments[0])
			},
		},
		{
			name:   "long fragment runs past the document",
			second: converttest.Fragment("c1", 6),
			check: func(t *testing.T, r types.ValidationReport) {
				assert.Equal(t, []int{11}, r.OutOfRange)
				assert.Empty(t, r.Gaps)
				require.Len(t, r.Misalignments, 1)
			},
		},
		{
			name:  "spill into the next chunk duplicates a page",
			first: converttest.Fragment("c0", 6),
			check: func(t *testing.T, r types.ValidationReport) {
				assert.Equal(t, []int{6}, r.Overlaps)
				require.Len(t, r.Misalignments, 1)
				assert.Equal(t, 0, r.Misalignments[0].Index)
			},
		},
		{
			name: "reading order goes backwards",
			second: func() *types.Fragment {
				f := converttest.Fragment("c1", 5)
				c := f.Body.Children
				c[0], c[4] = c[4], c[0]
				return f
			}(),
			check: func(t *testing.T, r types.ValidationReport) {
				assert.NotEmpty(t, r.Monotonicity)
				assert.Empty(t, r.Gaps)
				assert.Empty(t, r.Misalignments)
				// Page 10 now precedes pages 7-9.
				assert.Equal(t, 7, r.Monotonicity[0].Page)
				assert.Equal(t, 10, r.Monotonicity[0].Previous)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := ok(specs[0]), ok(specs[1])
			if tt.first != nil {
				first = withFragment(specs[0], tt.first)
			}
			if tt.second != nil {
				second = withFragment(specs[1], tt.second)
			}

			doc, err := New().Merge(specs, []types.ConversionResult{first, second}, 10)
			assert.Nil(t, doc)
			var verr *types.MergeValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.False(t, verr.Report.OK())
			tt.check(t, verr.Report)
		})
	}
}

func TestMergeWithoutPageEntries(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 3, 0), spec(1, 3, 5, 1)}
	var results []types.ConversionResult
	for _, s := range specs {
		f := converttest.Fragment(s.FileName(), s.Pages())
		f.Pages = nil
		results = append(results, withFragment(s, f))
	}

	doc, err := New().Merge(specs, results, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Report.CoveredPages)
	assert.Empty(t, doc.Document.Pages)
}

func TestMergeWithoutPageEntriesIgnoresDiscardedContent(t *testing.T) {
	// Chunk 1 covers pages 4-7 and owns 6-7. Its only item touching page 6
	// starts on page 5, so it is dropped and page 6 is left uncovered.
	specs := []types.ChunkSpec{spec(0, 1, 5, 0), spec(1, 4, 7, 2)}

	first := converttest.Fragment(specs[0].FileName(), 5)
	first.Pages = nil

	f := types.NewFragment("chunk1")
	stale := f.Append(types.KindText, types.Item{
		Parent: &types.RefItem{Ref: types.BodyRef},
		Label:  "text",
		Text:   "spans the boundary",
		Prov:   []types.ProvenanceItem{{PageNo: 2}, {PageNo: 3}},
	})
	tail := f.Append(types.KindText, types.Item{
		Parent: &types.RefItem{Ref: types.BodyRef},
		Label:  "text",
		Text:   "last page",
		Prov:   []types.ProvenanceItem{{PageNo: 4}},
	})
	f.Body.Children = []types.RefItem{{Ref: stale}, {Ref: tail}}

	doc, err := New().Merge(specs, []types.ConversionResult{withFragment(specs[0], first), withFragment(specs[1], f)}, 7)
	assert.Nil(t, doc)
	var verr *types.MergeValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, []types.PageRange{{Start: 6, End: 6}}, verr.Report.Gaps)
	assert.Equal(t, 6, verr.Report.CoveredPages)
	assert.Equal(t, 1, verr.Report.Discarded)
}

func TestExport(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 10, 0), spec(1, 9, 20, 2)}
	doc, err := New().Merge(specs, []types.ConversionResult{ok(specs[0]), ok(specs[1])}, 20)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, doc))

	back, err := convert.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, doc.Document.CountItems(), back.CountItems())
	assert.Equal(t, doc.Document.PageNumbers(), back.PageNumbers())

	path := filepath.Join(t.TempDir(), "out", "merged.json")
	require.NoError(t, ExportFile(path, doc))
}

func TestStatistics(t *testing.T) {
	specs := []types.ChunkSpec{spec(0, 1, 10, 0), spec(1, 9, 20, 2)}
	doc, err := New().Merge(specs, []types.ConversionResult{ok(specs[0]), ok(specs[1])}, 20)
	require.NoError(t, err)

	s := Statistics(doc)
	assert.Equal(t, 20, s.UniquePages)
	assert.Equal(t, 1, s.FirstPage)
	assert.Equal(t, 20, s.LastPage)
	assert.Equal(t, 20, s.Items[types.KindGroup])
	assert.Equal(t, 4, s.Items[types.KindTable])
	assert.Equal(t, 20+40+4, s.TotalItems)
	// Chunk 1 repeats pages 9 and 10: two groups and four texts.
	assert.Equal(t, 6, s.Discarded)
	assert.Contains(t, s.String(), "64 items")
}

func TestInspect(t *testing.T) {
	s0, s1, s3 := spec(0, 1, 10, 0), spec(1, 12, 20, 0), spec(3, 31, 40, 0)

	bad := converttest.Fragment("c0", 10)
	bad.Texts[0].Prov[0].PageNo = 14

	issues := Inspect([]types.ConversionResult{failed(s3, "boom"), withFragment(s0, bad), ok(s1)})

	var msgs []string
	for _, i := range issues {
		msgs = append(msgs, i.String())
	}
	assert.Equal(t, []string{
		"chunk 0: 1 provenance entries outside local pages 1-10",
		"chunk 1: owns pages from 12, previous chunk ends at 10",
		"chunk index gap between 1 and 3",
		"chunk 3: failed: boom",
	}, msgs)

	assert.Empty(t, Inspect([]types.ConversionResult{ok(spec(0, 1, 10, 0)), ok(spec(1, 9, 20, 2))}))
}
