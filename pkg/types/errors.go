// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"strings"
)

// StructureReadError reports a source document that could not be opened,
// parsed or decrypted.
type StructureReadError struct {
	Path string
	Err  error
}

func (e *StructureReadError) Error() string {
	return fmt.Sprintf("reading structure of %s: %v", e.Path, e.Err)
}

func (e *StructureReadError) Unwrap() error { return e.Err }

// StrategySelectionError reports degenerate planning input.
type StrategySelectionError struct {
	Reason string
}

func (e *StrategySelectionError) Error() string {
	return "selecting strategy: " + e.Reason
}

// ChunkWriteError reports a chunk that could not be materialized.
type ChunkWriteError struct {
	Index int
	Path  string
	Err   error
}

func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("writing chunk %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *ChunkWriteError) Unwrap() error { return e.Err }

// ChunkWriteErrors aggregates the per-chunk failures of one write phase.
type ChunkWriteErrors []*ChunkWriteError

func (e ChunkWriteErrors) Error() string {
	return fmt.Sprintf("%d chunk(s) failed to write: indices %v", len(e), e.Indices())
}

// Indices returns the failed chunk indices in ascending order.
func (e ChunkWriteErrors) Indices() []int {
	idx := make([]int, len(e))
	for i, w := range e {
		idx[i] = w.Index
	}
	sort.Ints(idx)
	return idx
}

// ConversionError reports a chunk the conversion engine failed on. Err is
// nil when the error was restored from a results file; Message then holds
// the recorded text.
type ConversionError struct {
	Index   int
	Path    string
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting chunk %d (%s): %s", e.Index, e.Path, e.Reason())
}

// Reason returns the engine's message without the chunk prefix.
func (e *ConversionError) Reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ConversionError) Unwrap() error { return e.Err }

// WorkerPoolError reports that the batch could not obtain workers. It is
// fatal to the batch.
type WorkerPoolError struct {
	Err error
}

func (e *WorkerPoolError) Error() string {
	return "worker pool: " + e.Err.Error()
}

func (e *WorkerPoolError) Unwrap() error { return e.Err }

// MissingChunkError reports a planned chunk without a successful
// conversion result.
type MissingChunkError struct {
	Index int
	Cause string
}

func (e *MissingChunkError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("missing chunk %d: %s", e.Index, e.Cause)
	}
	return fmt.Sprintf("missing chunk %d", e.Index)
}

// MergeValidationError carries the report of a merge that failed
// validation. No merged document accompanies it.
type MergeValidationError struct {
	Report ValidationReport
}

func (e *MergeValidationError) Error() string {
	var problems []string
	if n := len(e.Report.Gaps); n > 0 {
		problems = append(problems, fmt.Sprintf("%d gap(s)", n))
	}
	if n := len(e.Report.Overlaps); n > 0 {
		problems = append(problems, fmt.Sprintf("%d duplicate page(s)", n))
	}
	if n := len(e.Report.OutOfRange); n > 0 {
		problems = append(problems, fmt.Sprintf("%d out-of-range page(s)", n))
	}
	if n := len(e.Report.Monotonicity); n > 0 {
		problems = append(problems, fmt.Sprintf("%d monotonicity violation(s)", n))
	}
	if n := len(e.Report.Misalignments); n > 0 {
		problems = append(problems, fmt.Sprintf("%d misaligned chunk(s)", n))
	}
	return "merge validation failed: " + strings.Join(problems, ", ")
}
