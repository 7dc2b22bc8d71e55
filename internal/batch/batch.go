// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch converts chunk files on a bounded pool of isolated workers.
// Each pool slot leases a worker for at most MaxTasks conversions, then
// retires it and launches a fresh one.
// Implements: docs/ARCHITECTURE § Batch Conversion.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

const (
	defaultLaunchAttempts = 3
	defaultLaunchDelay    = 200 * time.Millisecond
)

// ErrCanceled marks chunks that were never handed to a worker.
var ErrCanceled = errors.New("conversion canceled before start")

// Worker converts chunks, one at a time, in its own address space.
type Worker interface {
	ID() string
	Convert(ctx context.Context, file types.ChunkFile) (*types.Fragment, error)
	Close() error
}

// Launcher starts workers.
type Launcher interface {
	Launch(ctx context.Context, id string) (Worker, error)
}

// Stats counts worker lifecycles.
type Stats struct {
	Launched       int
	Retired        int
	LaunchFailures int
}

// Processor runs conversions. A Processor may be reused for several runs;
// Stats accumulate.
type Processor struct {
	launcher Launcher
	cfg      types.BatchConfig

	launched       atomic.Int64
	retired        atomic.Int64
	launchFailures atomic.Int64
}

// New returns a Processor launching workers through l.
func New(l Launcher, cfg types.BatchConfig) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = types.DefaultMaxTasks
	}
	if cfg.LaunchAttempts <= 0 {
		cfg.LaunchAttempts = defaultLaunchAttempts
	}
	if cfg.LaunchDelay <= 0 {
		cfg.LaunchDelay = defaultLaunchDelay
	}
	return &Processor{launcher: l, cfg: cfg}
}

// Stats returns the lifecycle counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Launched:       int(p.launched.Load()),
		Retired:        int(p.retired.Load()),
		LaunchFailures: int(p.launchFailures.Load()),
	}
}

// lease is a worker bound to a pool slot with a remaining task budget.
type lease struct {
	w    Worker
	left int
}

// Run converts files and returns one result per file, sorted by chunk
// index. A failed conversion is recorded in its result and never stops the
// others. When no worker can be launched the run stops scheduling, records
// the unstarted chunks as canceled and returns a *types.WorkerPoolError.
// Canceling ctx stops scheduling and kills running conversions.
func (p *Processor) Run(ctx context.Context, files []types.ChunkFile) ([]types.ConversionResult, error) {
	results := make([]types.ConversionResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	sched, stop := context.WithCancel(ctx)
	defer stop()

	tasks := make(chan int, len(files))
	for i := range files {
		tasks <- i
	}
	close(tasks)

	var (
		fatalOnce sync.Once
		fatal     error
		wg        sync.WaitGroup
	)

	slots := min(p.cfg.Workers, len(files))
	for s := 0; s < slots; s++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			var l *lease
			generation := 0

			defer func() {
				if l != nil {
					p.retire(l.w)
				}
			}()

			for i := range tasks {
				f := files[i]
				if sched.Err() != nil {
					results[i] = canceled(sched, f)
					continue
				}

				if l == nil {
					generation++
					w, err := p.launch(sched, fmt.Sprintf("worker-%d.%d", slot, generation))
					if err != nil {
						if ctx.Err() == nil {
							fatalOnce.Do(func() {
								fatal = &types.WorkerPoolError{Err: err}
								log.Error().Err(err).Int("slot", slot).Msg("worker pool failed, stopping batch")
								stop()
							})
						}
						results[i] = canceled(sched, f)
						continue
					}
					l = &lease{w: w, left: p.cfg.MaxTasks}
				}

				results[i] = p.convert(ctx, l.w, f)
				l.left--
				if l.left <= 0 || !results[i].OK() {
					p.retire(l.w)
					l = nil
				}
			}
		}(s)
	}
	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool { return results[a].Spec.Index < results[b].Spec.Index })

	if fatal != nil {
		return results, fatal
	}
	return results, ctx.Err()
}

func (p *Processor) launch(ctx context.Context, id string) (Worker, error) {
	var w Worker
	err := retry.Do(
		func() error {
			var err error
			w, err = p.launcher.Launch(ctx, id)
			if err != nil {
				p.launchFailures.Add(1)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.LaunchAttempts)),
		retry.Delay(p.cfg.LaunchDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("worker", id).Uint("attempt", n+1).Msg("worker launch failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("launching %s: %w", id, err)
	}
	p.launched.Add(1)
	log.Debug().Str("worker", id).Msg("worker launched")
	return w, nil
}

func (p *Processor) retire(w Worker) {
	if err := w.Close(); err != nil {
		log.Debug().Err(err).Str("worker", w.ID()).Msg("closing worker")
	}
	p.retired.Add(1)
	log.Debug().Str("worker", w.ID()).Msg("worker retired")
}

func (p *Processor) convert(ctx context.Context, w Worker, f types.ChunkFile) types.ConversionResult {
	res := types.ConversionResult{
		Spec:      f.Spec,
		Path:      f.Path,
		WorkerID:  w.ID(),
		StartedAt: time.Now(),
	}
	frag, err := w.Convert(ctx, f)
	res.Duration = time.Since(res.StartedAt)
	if err == nil && frag == nil {
		err = errors.New("worker returned no document")
	}
	if err != nil {
		res.Err = &types.ConversionError{Index: f.Spec.Index, Path: f.Path, Err: err}
		log.Warn().Err(err).Int("chunk", f.Spec.Index).Str("worker", w.ID()).Msg("conversion failed")
		return res
	}
	res.Fragment = frag
	log.Debug().Int("chunk", f.Spec.Index).Str("worker", w.ID()).Dur("took", res.Duration).Msg("chunk converted")
	return res
}

func canceled(ctx context.Context, f types.ChunkFile) types.ConversionResult {
	err := ErrCanceled
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = fmt.Errorf("%w: %w", ErrCanceled, cause)
	}
	return types.ConversionResult{
		Spec: f.Spec,
		Path: f.Path,
		Err:  &types.ConversionError{Index: f.Spec.Index, Path: f.Path, Err: err},
	}
}

// ConverterFunc converts one chunk file in the calling process.
type ConverterFunc func(ctx context.Context, file types.ChunkFile) (*types.Fragment, error)

// InProcessLauncher runs conversions inside the coordinator process. It
// gives up isolation and is meant for debugging and for engines that are
// already isolated (such as the container backend).
type InProcessLauncher struct {
	Convert ConverterFunc
}

func (l InProcessLauncher) Launch(ctx context.Context, id string) (Worker, error) {
	return inProcessWorker{id: id, convert: l.Convert}, nil
}

type inProcessWorker struct {
	id      string
	convert ConverterFunc
}

func (w inProcessWorker) ID() string { return w.id }

func (w inProcessWorker) Convert(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
	return w.convert(ctx, f)
}

func (w inProcessWorker) Close() error { return nil }

// Summary counts converted and failed chunks.
type Summary struct {
	Converted int
	Failed    int
	Failures  []int
}

// Total returns the number of chunks processed.
func (s Summary) Total() int {
	return s.Converted + s.Failed
}

// HasFailures reports whether any chunk failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Summarize counts results.
func Summarize(results []types.ConversionResult) Summary {
	var s Summary
	for _, r := range results {
		if r.OK() {
			s.Converted++
			continue
		}
		s.Failed++
		s.Failures = append(s.Failures, r.Spec.Index)
	}
	return s
}
