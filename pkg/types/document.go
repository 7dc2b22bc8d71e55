// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// Document identifies a source PDF and its page structure. Pages are
// 1-indexed; all ranges derived from a Document are inclusive.
type Document struct {
	// Path is the local filesystem path of the source PDF.
	Path string `json:"path" yaml:"path"`

	// Pages is the total page count N.
	Pages int `json:"pages" yaml:"pages"`

	// Outline is the bookmark tree. It is empty for flat documents.
	Outline Outline `json:"outline" yaml:"outline"`
}

// OutlineNode is one bookmark. Nodes live in an Outline arena and refer
// to each other by index, never by pointer.
type OutlineNode struct {
	// Title is the bookmark text.
	Title string `json:"title" yaml:"title"`

	// Level is the nesting depth, starting at 1 for top-level entries.
	Level int `json:"level" yaml:"level"`

	// Page is the 1-indexed anchor page the bookmark points at.
	Page int `json:"page" yaml:"page"`

	// Parent is the index of the parent node, or -1 for top-level entries.
	Parent int `json:"parent" yaml:"parent"`

	// Children holds the indices of child nodes in document order.
	Children []int `json:"children,omitempty" yaml:"children,omitempty"`
}

// Outline is a flat, ordered arena of bookmark nodes.
type Outline struct {
	Nodes []OutlineNode `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Roots []int         `json:"roots,omitempty" yaml:"roots,omitempty"`
}

// Add appends a node under parent (-1 for a root) and returns its index.
// The node's Level is derived from the parent.
func (o *Outline) Add(parent int, title string, page int) int {
	level := 1
	if parent >= 0 {
		level = o.Nodes[parent].Level + 1
	}
	idx := len(o.Nodes)
	o.Nodes = append(o.Nodes, OutlineNode{
		Title:  title,
		Level:  level,
		Page:   page,
		Parent: parent,
	})
	if parent >= 0 {
		o.Nodes[parent].Children = append(o.Nodes[parent].Children, idx)
	} else {
		o.Roots = append(o.Roots, idx)
	}
	return idx
}

// IsEmpty reports whether the outline has no nodes.
func (o Outline) IsEmpty() bool {
	return len(o.Nodes) == 0
}

// Depth returns the deepest node level, or 0 for an empty outline.
func (o Outline) Depth() int {
	depth := 0
	for _, n := range o.Nodes {
		if n.Level > depth {
			depth = n.Level
		}
	}
	return depth
}

// AnchorPages returns the distinct anchor pages of all nodes at or above
// level, sorted. A level of 0 or less means every level.
func (o Outline) AnchorPages(level int) []int {
	seen := map[int]bool{}
	for _, n := range o.Nodes {
		if level > 0 && n.Level > level {
			continue
		}
		seen[n.Page] = true
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Walk visits nodes depth-first in document order. Visiting stops early
// when fn returns false.
func (o Outline) Walk(fn func(idx int, n OutlineNode) bool) {
	var visit func(idx int) bool
	visit = func(idx int) bool {
		if !fn(idx, o.Nodes[idx]) {
			return false
		}
		for _, c := range o.Nodes[idx].Children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, r := range o.Roots {
		if !visit(r) {
			return
		}
	}
}

// LevelInfo summarizes the bookmarks found at one outline level.
type LevelInfo struct {
	Level        int      `json:"level" yaml:"level"`
	Count        int      `json:"count" yaml:"count"`
	UniquePages  int      `json:"unique_pages" yaml:"unique_pages"`
	SampleTitles []string `json:"sample_titles,omitempty" yaml:"sample_titles,omitempty"`
}

// Structure is the read-only summary produced by structure analysis.
type Structure struct {
	Document Document    `json:"document" yaml:"document"`
	Levels   []LevelInfo `json:"levels,omitempty" yaml:"levels,omitempty"`

	// SizeBytes is the size of the source file on disk.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`
}

// HasOutline reports whether any bookmarks were found.
func (s Structure) HasOutline() bool {
	return !s.Document.Outline.IsEmpty()
}
