// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// ConversionResult is the outcome of converting one chunk. Exactly one of
// Fragment and Err is set. Results are created by the batch processor and
// consumed once by reassembly.
type ConversionResult struct {
	Spec      ChunkSpec        `json:"spec"`
	Path      string           `json:"chunk_path"`
	Fragment  *Fragment        `json:"document_dict,omitempty"`
	Err       *ConversionError `json:"-"`
	WorkerID  string           `json:"worker_id,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
}

// OK reports whether the conversion produced a fragment.
func (r ConversionResult) OK() bool {
	return r.Err == nil && r.Fragment != nil
}

// conversionResultJSON is the on-disk shape of a result. Failures are
// stored as a success flag and a message.
type conversionResultJSON struct {
	Spec      ChunkSpec     `json:"spec"`
	Path      string        `json:"chunk_path"`
	Success   bool          `json:"success"`
	Fragment  *Fragment     `json:"document_dict"`
	Error     string        `json:"error,omitempty"`
	WorkerID  string        `json:"worker_id,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// MarshalJSON writes the result with a success flag and error message.
func (r ConversionResult) MarshalJSON() ([]byte, error) {
	out := conversionResultJSON{
		Spec:      r.Spec,
		Path:      r.Path,
		Success:   r.OK(),
		Fragment:  r.Fragment,
		WorkerID:  r.WorkerID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
	}
	if r.Err != nil {
		out.Error = r.Err.Reason()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result written by MarshalJSON. A failed result
// gets a ConversionError carrying the recorded message.
func (r *ConversionResult) UnmarshalJSON(data []byte) error {
	var in conversionResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ConversionResult{
		Spec:      in.Spec,
		Path:      in.Path,
		Fragment:  in.Fragment,
		WorkerID:  in.WorkerID,
		StartedAt: in.StartedAt,
		Duration:  in.Duration,
	}
	if !in.Success || in.Fragment == nil {
		msg := in.Error
		if msg == "" {
			msg = "no document in result"
		}
		r.Fragment = nil
		r.Err = &ConversionError{Index: in.Spec.Index, Path: in.Path, Message: msg}
	}
	return nil
}

// ProvenanceEntry records one element of the merged document and the
// global page it came from, in emission order.
type ProvenanceEntry struct {
	Ref   string `json:"ref"`
	Page  int    `json:"page"`
	Chunk int    `json:"chunk"`
}

// MergedDocument is the reassembled output in global page coordinates.
type MergedDocument struct {
	Document   *Fragment         `json:"document"`
	Provenance []ProvenanceEntry `json:"provenance"`
	Report     ValidationReport  `json:"report"`
}

// ProvenancePages returns the page sequence of the provenance log.
func (m *MergedDocument) ProvenancePages() []int {
	pages := make([]int, len(m.Provenance))
	for i, p := range m.Provenance {
		pages[i] = p.Page
	}
	return pages
}
