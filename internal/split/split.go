// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package split materializes planned chunks as standalone PDF files using
// a bounded pool of concurrent writers.
// Implements: docs/ARCHITECTURE § Chunk Writing.
package split

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// ErrCanceled marks chunks that were never started because the write
// phase was stopped.
var ErrCanceled = errors.New("write canceled before start")

// Extractor copies a page range into a new file and counts pages.
type Extractor interface {
	Extract(ctx context.Context, src, dst string, r types.PageRange) error
	PageCount(ctx context.Context, path string) (int, error)
}

// Result holds the outcome of a write phase. Files and Failed are ordered
// by chunk index.
type Result struct {
	Files    []types.ChunkFile
	Failed   types.ChunkWriteErrors
	Duration time.Duration
}

// Succeeded returns the number of chunks written.
func (r Result) Succeeded() int {
	return len(r.Files)
}

// HasFailures reports whether any chunk failed.
func (r Result) HasFailures() bool {
	return len(r.Failed) > 0
}

// Err returns the failures as one error, or nil.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return r.Failed
}

// Writer extracts chunks concurrently.
type Writer struct {
	ext Extractor
	cfg types.WriterConfig
}

// NewWriter returns a Writer using ext. A non-positive cfg.Workers means
// one writer per CPU.
func NewWriter(ext Extractor, cfg types.WriterConfig) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Writer{ext: ext, cfg: cfg}
}

// slot receives the outcome of one chunk. Each slot is written by exactly
// one goroutine.
type slot struct {
	file types.ChunkFile
	err  *types.ChunkWriteError
}

// Write extracts every spec from doc into outDir. Chunk failures are
// collected in the Result and do not stop siblings unless FailFast is set,
// in which case chunks not yet started are recorded as canceled while
// running writes finish. The returned error covers setup only.
func (w *Writer) Write(ctx context.Context, doc types.Document, specs []types.ChunkSpec, outDir string) (Result, error) {
	start := time.Now()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating chunk directory %s: %w", outDir, err)
	}

	sched, stop := context.WithCancel(ctx)
	defer stop()

	slots := make([]slot, len(specs))
	sem := make(chan struct{}, w.cfg.Workers)
	var wg sync.WaitGroup

	for i, spec := range specs {
		path := filepath.Join(outDir, spec.FileName())

		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-sched.Done():
		}
		if sched.Err() != nil {
			if acquired {
				<-sem
			}
			slots[i].err = &types.ChunkWriteError{Index: spec.Index, Path: path, Err: ErrCanceled}
			continue
		}

		wg.Add(1)
		go func(i int, spec types.ChunkSpec, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			f, err := w.writeOne(ctx, doc.Path, spec, path)
			if err != nil {
				slots[i].err = &types.ChunkWriteError{Index: spec.Index, Path: path, Err: err}
				log.Warn().Err(err).Int("chunk", spec.Index).Msg("chunk write failed")
				if w.cfg.FailFast {
					stop()
				}
				return
			}
			slots[i].file = f
			log.Debug().Int("chunk", spec.Index).Str("path", path).Int("pages", f.PagesWritten).Msg("chunk written")
		}(i, spec, path)
	}
	wg.Wait()

	var res Result
	for _, s := range slots {
		if s.err != nil {
			res.Failed = append(res.Failed, s.err)
			continue
		}
		res.Files = append(res.Files, s.file)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (w *Writer) writeOne(ctx context.Context, src string, spec types.ChunkSpec, path string) (types.ChunkFile, error) {
	if err := w.ext.Extract(ctx, src, path, spec.Range()); err != nil {
		os.Remove(path)
		return types.ChunkFile{}, err
	}
	n, err := w.ext.PageCount(ctx, path)
	if err != nil {
		os.Remove(path)
		return types.ChunkFile{}, fmt.Errorf("verifying %s: %w", path, err)
	}
	if n != spec.Pages() {
		os.Remove(path)
		return types.ChunkFile{}, fmt.Errorf("wrote %d pages, want %d", n, spec.Pages())
	}
	return types.ChunkFile{Spec: spec, Path: path, PagesWritten: n}, nil
}
