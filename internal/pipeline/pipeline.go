// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the phases of a conversion in order: analyze,
// plan, write, convert and merge. Each phase completes for every chunk
// before the next begins, and failures are reported per phase.
// Implements: docs/ARCHITECTURE § Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/internal/batch"
	"github.com/pdiddy/pdfsplit/internal/metrics"
	"github.com/pdiddy/pdfsplit/internal/plan"
	"github.com/pdiddy/pdfsplit/internal/split"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Analyzer reads document structure.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (types.Structure, error)
}

// ChunkWriter materializes planned chunks.
type ChunkWriter interface {
	Write(ctx context.Context, doc types.Document, specs []types.ChunkSpec, outDir string) (split.Result, error)
}

// BatchConverter converts chunk files.
type BatchConverter interface {
	Run(ctx context.Context, files []types.ChunkFile) ([]types.ConversionResult, error)
	Stats() batch.Stats
}

// Merger reassembles conversion results.
type Merger interface {
	Merge(specs []types.ChunkSpec, results []types.ConversionResult, pages int) (*types.MergedDocument, error)
}

// Ledger records run progress. *ledger.Store satisfies it.
type Ledger interface {
	BeginRun(ctx context.Context, source string) (string, error)
	RecordPlan(ctx context.Context, runID string, p types.Plan) error
	RecordWrites(ctx context.Context, runID string, files []types.ChunkFile, failed types.ChunkWriteErrors) error
	RecordConversions(ctx context.Context, runID string, results []types.ConversionResult) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// Deps are the phase implementations. Ledger and Metrics are optional.
type Deps struct {
	Analyzer Analyzer
	Writer   ChunkWriter
	Batch    BatchConverter
	Merger   Merger
	Ledger   Ledger
	Metrics  *metrics.Metrics
}

// Report describes what a run did, phase by phase. Fields of phases that
// did not run are zero.
type Report struct {
	RunID     string
	Structure types.Structure
	Plan      types.Plan
	ChunkDir  string
	Write     split.Result
	Results   []types.ConversionResult
	Summary   batch.Summary
	Workers   batch.Stats
	Merged    *types.MergedDocument
	Timings   map[string]time.Duration

	unrecorded bool
}

// Pipeline wires the phases with one immutable configuration.
type Pipeline struct {
	cfg  types.PipelineConfig
	deps Deps
}

// New returns a Pipeline.
func New(cfg types.PipelineConfig, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps}
}

// Plan analyzes the document at path and selects a chunk plan.
func (p *Pipeline) Plan(ctx context.Context, path string) (types.Structure, types.Plan, error) {
	r := &Report{Timings: map[string]time.Duration{}, unrecorded: true}
	if err := p.plan(ctx, path, r); err != nil {
		return r.Structure, types.Plan{}, err
	}
	return r.Structure, r.Plan, nil
}

// Chunk analyzes and plans the document, then writes the chunks and the
// manifest to outDir.
func (p *Pipeline) Chunk(ctx context.Context, path, outDir string) (*Report, error) {
	r := p.newReport()
	err := p.record(ctx, path, r, func() error {
		if err := p.plan(ctx, path, r); err != nil {
			return err
		}
		return p.write(ctx, outDir, r)
	})
	return r, err
}

// Run converts the document at path end to end. Chunks go to the
// configured chunk directory, or a temporary one removed afterwards unless
// KeepParts is set. The run stops after the write phase when any chunk
// failed to write.
func (p *Pipeline) Run(ctx context.Context, path string) (*Report, error) {
	r := p.newReport()
	err := p.record(ctx, path, r, func() error {
		if err := p.plan(ctx, path, r); err != nil {
			return err
		}

		dir, cleanup, err := p.chunkDir()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := p.write(ctx, dir, r); err != nil {
			return err
		}
		if err := p.convert(ctx, r.Write.Files, r); err != nil {
			return err
		}
		return p.merge(r)
	})
	return r, err
}

// ConvertDir converts previously written chunks in dir and merges them.
// The total page count comes from the manifest when present, otherwise
// from the last chunk.
func (p *Pipeline) ConvertDir(ctx context.Context, dir string) (*Report, error) {
	r := p.newReport()
	r.ChunkDir = dir
	err := p.record(ctx, dir, r, func() error {
		files, err := split.Load(dir)
		if err != nil {
			return err
		}
		if r.Plan, err = planFromDir(dir, files); err != nil {
			return err
		}
		r.Write = split.Result{Files: files}
		p.ledger(r, "recording plan", func(l Ledger) error { return l.RecordPlan(ctx, r.RunID, r.Plan) })
		p.ledger(r, "recording writes", func(l Ledger) error { return l.RecordWrites(ctx, r.RunID, files, nil) })
		if err := p.convert(ctx, files, r); err != nil {
			return err
		}
		return p.merge(r)
	})
	return r, err
}

// planFromDir returns the manifest plan for dir, or one rebuilt from files
// when dir has no manifest.
func planFromDir(dir string, files []types.ChunkFile) (types.Plan, error) {
	m, err := split.ReadManifest(dir)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return types.Plan{}, err
	}
	specs := split.Specs(files)
	pl := types.Plan{Source: dir, Specs: specs}
	if len(specs) > 0 {
		pl.Pages = specs[len(specs)-1].End
	}
	return pl, nil
}

func (p *Pipeline) newReport() *Report {
	return &Report{Timings: map[string]time.Duration{}}
}

// record opens a ledger run around fn. Ledger failures are logged and
// never fail the run.
func (p *Pipeline) record(ctx context.Context, source string, r *Report, fn func() error) error {
	r.RunID = uuid.NewString()
	if p.deps.Ledger != nil {
		id, err := p.deps.Ledger.BeginRun(ctx, source)
		if err != nil {
			log.Warn().Err(err).Msg("ledger unavailable, run not recorded")
			r.unrecorded = true
		} else {
			r.RunID = id
		}
	}
	log.Info().Str("run", r.RunID).Str("source", source).Msg("run started")

	err := fn()

	// The run may have been canceled; the outcome is still recorded.
	p.ledger(r, "finishing run", func(l Ledger) error { return l.FinishRun(context.WithoutCancel(ctx), r.RunID, err) })
	if err != nil {
		log.Error().Err(err).Str("run", r.RunID).Msg("run failed")
	} else {
		log.Info().Str("run", r.RunID).Msg("run finished")
	}
	return err
}

func (p *Pipeline) ledger(r *Report, what string, fn func(Ledger) error) {
	if p.deps.Ledger == nil || r.unrecorded {
		return
	}
	if err := fn(p.deps.Ledger); err != nil {
		log.Warn().Err(err).Msg("ledger: " + what)
	}
}

func (p *Pipeline) timed(r *Report, phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	r.Timings[phase] = d
	p.deps.Metrics.ObservePhase(phase, d)
	return err
}

func (p *Pipeline) plan(ctx context.Context, path string, r *Report) error {
	err := p.timed(r, metrics.PhaseAnalyze, func() error {
		s, err := p.deps.Analyzer.Analyze(ctx, path)
		r.Structure = s
		return err
	})
	if err != nil {
		return err
	}

	err = p.timed(r, metrics.PhasePlan, func() error {
		pl, err := plan.Select(r.Structure, p.cfg.Constraints, p.cfg.Strategy)
		r.Plan = pl
		return err
	})
	if err != nil {
		return err
	}
	p.deps.Metrics.ObservePlan(r.Plan)
	p.ledger(r, "recording plan", func(l Ledger) error { return l.RecordPlan(ctx, r.RunID, r.Plan) })
	log.Info().
		Str("strategy", string(r.Plan.Strategy)).
		Int("level", r.Plan.Level).
		Int("chunks", r.Plan.NumChunks()).
		Int("pages", r.Plan.Pages).
		Msg("plan selected")
	return nil
}

func (p *Pipeline) write(ctx context.Context, dir string, r *Report) error {
	r.ChunkDir = dir
	err := p.timed(r, metrics.PhaseWrite, func() error {
		res, err := p.deps.Writer.Write(ctx, r.Structure.Document, r.Plan.Specs, dir)
		r.Write = res
		return err
	})
	if err != nil {
		return err
	}
	p.deps.Metrics.ObserveWrites(r.Write.Succeeded(), len(r.Write.Failed))
	p.ledger(r, "recording writes", func(l Ledger) error {
		return l.RecordWrites(ctx, r.RunID, r.Write.Files, r.Write.Failed)
	})

	if r.Write.HasFailures() {
		return r.Write.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := split.WriteManifest(dir, r.Plan); err != nil {
		return err
	}
	log.Info().Int("chunks", r.Write.Succeeded()).Str("dir", dir).Dur("took", r.Write.Duration).Msg("chunks written")
	return nil
}

func (p *Pipeline) convert(ctx context.Context, files []types.ChunkFile, r *Report) error {
	var runErr error
	p.timed(r, metrics.PhaseConvert, func() error {
		r.Results, runErr = p.deps.Batch.Run(ctx, files)
		return runErr
	})
	r.Summary = batch.Summarize(r.Results)
	r.Workers = p.deps.Batch.Stats()

	p.deps.Metrics.ObserveConversions(r.Results)
	p.deps.Metrics.ObserveWorkers(r.Workers.Launched, r.Workers.Retired, r.Workers.LaunchFailures)
	p.ledger(r, "recording conversions", func(l Ledger) error {
		return l.RecordConversions(context.WithoutCancel(ctx), r.RunID, r.Results)
	})

	log.Info().
		Int("converted", r.Summary.Converted).
		Int("failed", r.Summary.Failed).
		Ints("failures", r.Summary.Failures).
		Int("workers_launched", r.Workers.Launched).
		Msg("conversion finished")
	return runErr
}

func (p *Pipeline) merge(r *Report) error {
	return p.timed(r, metrics.PhaseMerge, func() error {
		doc, err := p.deps.Merger.Merge(r.Plan.Specs, r.Results, r.Plan.Pages)
		if err != nil {
			var verr *types.MergeValidationError
			if errors.As(err, &verr) {
				log.Error().Str("report", verr.Report.String()).Msg("merge validation failed")
			}
			return err
		}
		r.Merged = doc
		p.deps.Metrics.ObserveMerge(doc.Report.CoveredPages)
		return nil
	})
}

// chunkDir returns the directory for this run's chunks and a cleanup
// function.
func (p *Pipeline) chunkDir() (string, func(), error) {
	if p.cfg.ChunkDir != "" {
		return p.cfg.ChunkDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "pdfsplit-chunks-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating chunk directory: %w", err)
	}
	if p.cfg.KeepParts {
		return dir, func() { log.Info().Str("dir", dir).Msg("keeping chunk files") }, nil
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("removing chunk directory")
		}
	}, nil
}
