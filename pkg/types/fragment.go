// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaName is the document schema emitted by the conversion engine and
// by the merged export.
const SchemaName = "DoclingDocument"

// ItemKind names the item collections of a Fragment. A reference such as
// "#/texts/3" points at index 3 of the texts collection.
type ItemKind string

const (
	KindText    ItemKind = "texts"
	KindTable   ItemKind = "tables"
	KindPicture ItemKind = "pictures"
	KindGroup   ItemKind = "groups"
)

// BodyRef is the reference of the document root.
const BodyRef = "#/body"

// ItemKinds lists the item collections in export order.
var ItemKinds = []ItemKind{KindText, KindTable, KindPicture, KindGroup}

// RefItem is a JSON pointer style reference to another node.
type RefItem struct {
	Ref string `json:"$ref"`
}

// Ref builds the reference string for index idx of kind.
func Ref(kind ItemKind, idx int) string {
	return fmt.Sprintf("#/%s/%d", kind, idx)
}

// ParseRef splits a reference such as "#/tables/2" into kind and index.
// The body reference returns ok=false.
func ParseRef(ref string) (kind ItemKind, idx int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 {
		return "", 0, false
	}
	switch k := ItemKind(parts[0]); k {
	case KindText, KindTable, KindPicture, KindGroup:
		return k, n, true
	}
	return "", 0, false
}

// BoundingBox locates an item on its page.
type BoundingBox struct {
	L           float64 `json:"l"`
	T           float64 `json:"t"`
	R           float64 `json:"r"`
	B           float64 `json:"b"`
	CoordOrigin string  `json:"coord_origin,omitempty"`
}

// ProvenanceItem ties an item to the page it was extracted from. PageNo is
// local to the chunk inside a Fragment and global inside a merged document.
type ProvenanceItem struct {
	PageNo   int          `json:"page_no"`
	BBox     *BoundingBox `json:"bbox,omitempty"`
	CharSpan []int        `json:"charspan,omitempty"`
}

// Item is one extracted element or group.
type Item struct {
	SelfRef  string           `json:"self_ref"`
	Parent   *RefItem         `json:"parent,omitempty"`
	Children []RefItem        `json:"children"`
	Label    string           `json:"label"`
	Text     string           `json:"text,omitempty"`
	Orig     string           `json:"orig,omitempty"`
	Prov     []ProvenanceItem `json:"prov,omitempty"`

	// Data carries kind-specific payload (table cells, picture metadata)
	// verbatim.
	Data json.RawMessage `json:"data,omitempty"`
}

// AnchorPage returns the page of the first provenance entry, or 0 when
// the item has no provenance.
func (it Item) AnchorPage() int {
	if len(it.Prov) == 0 {
		return 0
	}
	return it.Prov[0].PageNo
}

// Size is a page size in points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageItem describes one page of a Fragment.
type PageItem struct {
	PageNo int  `json:"page_no"`
	Size   Size `json:"size"`
}

// Group is the document root node.
type Group struct {
	SelfRef  string    `json:"self_ref"`
	Children []RefItem `json:"children"`
	Label    string    `json:"label,omitempty"`
	Name     string    `json:"name,omitempty"`
}

// Fragment is the structured output for one converted chunk, shaped like
// the conversion engine's native document schema.
type Fragment struct {
	SchemaName string              `json:"schema_name"`
	Version    string              `json:"version"`
	Name       string              `json:"name"`
	Body       Group               `json:"body"`
	Texts      []Item              `json:"texts"`
	Tables     []Item              `json:"tables"`
	Pictures   []Item              `json:"pictures"`
	Groups     []Item              `json:"groups"`
	Pages      map[string]PageItem `json:"pages"`
}

// NewFragment returns an empty Fragment with an initialized body.
func NewFragment(name string) *Fragment {
	return &Fragment{
		SchemaName: SchemaName,
		Version:    "1.0.0",
		Name:       name,
		Body:       Group{SelfRef: BodyRef, Children: []RefItem{}, Label: "unspecified", Name: "_root_"},
		Texts:      []Item{},
		Tables:     []Item{},
		Pictures:   []Item{},
		Groups:     []Item{},
		Pages:      map[string]PageItem{},
	}
}

// Items returns the collection for kind.
func (f *Fragment) Items(kind ItemKind) []Item {
	switch kind {
	case KindText:
		return f.Texts
	case KindTable:
		return f.Tables
	case KindPicture:
		return f.Pictures
	case KindGroup:
		return f.Groups
	}
	return nil
}

// Resolve returns the item a reference points at.
func (f *Fragment) Resolve(ref string) (*Item, bool) {
	kind, idx, ok := ParseRef(ref)
	if !ok {
		return nil, false
	}
	items := f.Items(kind)
	if idx >= len(items) {
		return nil, false
	}
	return &items[idx], true
}

// Append adds item to the collection for kind, sets its SelfRef and
// returns the new reference.
func (f *Fragment) Append(kind ItemKind, item Item) string {
	var idx int
	switch kind {
	case KindText:
		idx = len(f.Texts)
		item.SelfRef = Ref(kind, idx)
		f.Texts = append(f.Texts, item)
	case KindTable:
		idx = len(f.Tables)
		item.SelfRef = Ref(kind, idx)
		f.Tables = append(f.Tables, item)
	case KindPicture:
		idx = len(f.Pictures)
		item.SelfRef = Ref(kind, idx)
		f.Pictures = append(f.Pictures, item)
	case KindGroup:
		idx = len(f.Groups)
		item.SelfRef = Ref(kind, idx)
		f.Groups = append(f.Groups, item)
	}
	return item.SelfRef
}

// AddPage records a page entry.
func (f *Fragment) AddPage(p PageItem) {
	if f.Pages == nil {
		f.Pages = map[string]PageItem{}
	}
	f.Pages[strconv.Itoa(p.PageNo)] = p
}

// PageNumbers returns the page numbers listed in Pages, sorted.
func (f *Fragment) PageNumbers() []int {
	nums := make([]int, 0, len(f.Pages))
	for _, p := range f.Pages {
		nums = append(nums, p.PageNo)
	}
	sort.Ints(nums)
	return nums
}

// PageSpan returns the reported first and last page. Page entries are
// authoritative; provenance is used when the fragment lists no pages.
// Both values are 0 for a fragment with neither.
func (f *Fragment) PageSpan() (first, last int) {
	if nums := f.PageNumbers(); len(nums) > 0 {
		return nums[0], nums[len(nums)-1]
	}
	for _, kind := range ItemKinds {
		for _, it := range f.Items(kind) {
			for _, p := range it.Prov {
				if first == 0 || p.PageNo < first {
					first = p.PageNo
				}
				if p.PageNo > last {
					last = p.PageNo
				}
			}
		}
	}
	return first, last
}

// CountItems returns the number of items in each collection.
func (f *Fragment) CountItems() map[ItemKind]int {
	return map[ItemKind]int{
		KindText:    len(f.Texts),
		KindTable:   len(f.Tables),
		KindPicture: len(f.Pictures),
		KindGroup:   len(f.Groups),
	}
}
