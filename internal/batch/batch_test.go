// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfsplit/internal/convert/converttest"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

// fakeLauncher hands out fakeWorkers and records their lifecycles.
type fakeLauncher struct {
	mu       sync.Mutex
	workers  []*fakeWorker
	failures int // number of launches to fail before succeeding; -1 fails always
	attempts atomic.Int32
	convert  func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error)
}

func (l *fakeLauncher) Launch(ctx context.Context, id string) (Worker, error) {
	n := int(l.attempts.Add(1))
	if l.failures < 0 || n <= l.failures {
		return nil, fmt.Errorf("spawn %s: resource temporarily unavailable", id)
	}
	w := &fakeWorker{id: id, convert: l.convert}
	l.mu.Lock()
	l.workers = append(l.workers, w)
	l.mu.Unlock()
	return w, nil
}

type fakeWorker struct {
	id      string
	convert func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error)
	tasks   atomic.Int32
	closed  atomic.Bool
}

func (w *fakeWorker) ID() string { return w.id }

func (w *fakeWorker) Convert(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
	if w.closed.Load() {
		return nil, errors.New("worker used after close")
	}
	w.tasks.Add(1)
	if w.convert != nil {
		return w.convert(ctx, f)
	}
	return converttest.Fragment(f.Path, f.Spec.Pages()), nil
}

func (w *fakeWorker) Close() error {
	w.closed.Store(true)
	return nil
}

func chunkFiles(n int) []types.ChunkFile {
	files := make([]types.ChunkFile, n)
	for i := range files {
		spec := types.ChunkSpec{Index: i, Start: i*10 + 1, End: i*10 + 10}
		files[i] = types.ChunkFile{Spec: spec, Path: spec.FileName(), PagesWritten: 10}
	}
	return files
}

func fastConfig(workers, maxTasks int) types.BatchConfig {
	return types.BatchConfig{Workers: workers, MaxTasks: maxTasks, LaunchAttempts: 3, LaunchDelay: time.Millisecond}
}

func TestRunFreshWorkerPerTask(t *testing.T) {
	l := &fakeLauncher{}
	p := New(l, fastConfig(4, 1))

	results, err := p.Run(context.Background(), chunkFiles(10))
	require.NoError(t, err)
	require.Len(t, results, 10)

	stats := p.Stats()
	assert.Equal(t, 10, stats.Launched)
	assert.Equal(t, 10, stats.Retired)
	for _, w := range l.workers {
		assert.Equal(t, int32(1), w.tasks.Load(), w.id)
		assert.True(t, w.closed.Load(), w.id)
	}
}

func TestRunRespectsTaskBudget(t *testing.T) {
	l := &fakeLauncher{}
	p := New(l, fastConfig(2, 3))

	results, err := p.Run(context.Background(), chunkFiles(11))
	require.NoError(t, err)
	assert.Equal(t, 11, Summarize(results).Converted)

	stats := p.Stats()
	assert.Equal(t, stats.Launched, stats.Retired)
	assert.GreaterOrEqual(t, stats.Launched, 4)
	for _, w := range l.workers {
		assert.LessOrEqual(t, w.tasks.Load(), int32(3), w.id)
	}
}

func TestRunOrdersResultsUnderRandomDelays(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	delays := make([]time.Duration, 25)
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(15)) * time.Millisecond
	}
	l := &fakeLauncher{convert: func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
		time.Sleep(delays[f.Spec.Index])
		return converttest.Fragment(f.Path, f.Spec.Pages()), nil
	}}

	results, err := New(l, fastConfig(6, 2)).Run(context.Background(), chunkFiles(25))
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, i, r.Spec.Index)
		assert.True(t, r.OK())
		assert.Equal(t, r.Spec.FileName(), r.Path)
		assert.NotEmpty(t, r.WorkerID)
	}
}

func TestRunIsolatesConversionFailures(t *testing.T) {
	l := &fakeLauncher{convert: func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
		if f.Spec.Index == 2 || f.Spec.Index == 5 {
			return nil, errors.New("engine crashed")
		}
		return converttest.Fragment(f.Path, f.Spec.Pages()), nil
	}}
	p := New(l, fastConfig(3, 5))

	results, err := p.Run(context.Background(), chunkFiles(8))
	require.NoError(t, err)

	sum := Summarize(results)
	assert.Equal(t, 6, sum.Converted)
	assert.Equal(t, []int{2, 5}, sum.Failures)
	assert.True(t, sum.HasFailures())
	assert.Equal(t, 8, sum.Total())

	var ce *types.ConversionError
	require.ErrorAs(t, results[2].Err, &ce)
	assert.Equal(t, 2, ce.Index)
	assert.Contains(t, ce.Error(), "engine crashed")

	stats := p.Stats()
	assert.Equal(t, stats.Launched, stats.Retired)
}

func TestRunRetriesLaunch(t *testing.T) {
	l := &fakeLauncher{failures: 2}
	p := New(l, fastConfig(1, 1))

	results, err := p.Run(context.Background(), chunkFiles(3))
	require.NoError(t, err)
	assert.Equal(t, 3, Summarize(results).Converted)
	assert.Equal(t, 2, p.Stats().LaunchFailures)
	assert.Equal(t, 3, p.Stats().Launched)
}

func TestRunWorkerPoolFailureIsFatal(t *testing.T) {
	l := &fakeLauncher{failures: -1}
	p := New(l, fastConfig(2, 1))

	results, err := p.Run(context.Background(), chunkFiles(6))
	var wpe *types.WorkerPoolError
	require.ErrorAs(t, err, &wpe)
	assert.Contains(t, wpe.Error(), "resource temporarily unavailable")

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, i, r.Spec.Index)
		assert.False(t, r.OK())
		assert.ErrorIs(t, r.Err, ErrCanceled)
	}
	assert.Equal(t, 0, p.Stats().Launched)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	l := &fakeLauncher{convert: func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	done := make(chan struct{})
	var results []types.ConversionResult
	var err error
	go func() {
		results, err = New(l, fastConfig(1, 1)).Run(ctx, chunkFiles(4))
		close(done)
	}()

	<-started
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.False(t, r.OK())
	}
	assert.ErrorIs(t, results[3].Err, ErrCanceled)
}

func TestRunEmpty(t *testing.T) {
	results, err := New(&fakeLauncher{}, fastConfig(2, 1)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInProcessLauncher(t *testing.T) {
	l := InProcessLauncher{Convert: func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
		return converttest.Fragment(f.Path, f.PagesWritten), nil
	}}
	p := New(l, fastConfig(2, 1))

	results, err := p.Run(context.Background(), chunkFiles(3))
	require.NoError(t, err)
	assert.Equal(t, 3, Summarize(results).Converted)
	assert.Len(t, results[0].Fragment.Pages, 10)
}
