// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", DefaultFile))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func testPlan() types.Plan {
	return types.Plan{
		Strategy: types.StrategyFixed,
		Pages:    250,
		Source:   "report.pdf",
		Specs: []types.ChunkSpec{
			{Index: 0, Start: 1, End: 84},
			{Index: 1, Start: 80, End: 167, Overlap: 5},
			{Index: 2, Start: 163, End: 250, Overlap: 5},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.BeginRun(ctx, "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	plan := testPlan()
	if err := s.RecordPlan(ctx, id, plan); err != nil {
		t.Fatal(err)
	}

	files := []types.ChunkFile{
		{Spec: plan.Specs[0], Path: "a.pdf", PagesWritten: 84},
		{Spec: plan.Specs[2], Path: "c.pdf", PagesWritten: 88},
	}
	failed := types.ChunkWriteErrors{{Index: 1, Path: "b.pdf", Err: errors.New("disk full")}}
	if err := s.RecordWrites(ctx, id, files, failed); err != nil {
		t.Fatal(err)
	}

	results := []types.ConversionResult{
		{Spec: plan.Specs[0], Fragment: types.NewFragment("a"), WorkerID: "worker-0.0", Duration: 1500 * time.Millisecond},
		{Spec: plan.Specs[2], Err: &types.ConversionError{Index: 2, Path: "c.pdf", Message: "engine crashed"}, WorkerID: "worker-1.0"},
	}
	if err := s.RecordConversions(ctx, id, results); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishRun(ctx, id, errors.New("1 chunk(s) failed")); err != nil {
		t.Fatal(err)
	}

	run, err := s.Run(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusFailed || run.Error != "1 chunk(s) failed" {
		t.Errorf("run status = %q (%q), want failed", run.Status, run.Error)
	}
	if run.Pages != 250 || run.Chunks != 3 || run.Strategy != "fixed" {
		t.Errorf("run plan = %d pages, %d chunks, %s", run.Pages, run.Chunks, run.Strategy)
	}
	if !run.FinishedAt.After(run.StartedAt) {
		t.Errorf("finished %v not after started %v", run.FinishedAt, run.StartedAt)
	}

	chunks, err := s.Chunks(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	want := []struct {
		write, convert, worker, errMsg string
	}{
		{ChunkOK, ChunkOK, "worker-0.0", ""},
		{ChunkFailed, ChunkPending, "", "disk full"},
		{ChunkOK, ChunkFailed, "worker-1.0", "engine crashed"},
	}
	for i, w := range want {
		c := chunks[i]
		if c.Index != i {
			t.Errorf("chunk %d: index %d", i, c.Index)
		}
		if c.WriteStatus != w.write || c.ConvertStatus != w.convert {
			t.Errorf("chunk %d: status %s/%s, want %s/%s", i, c.WriteStatus, c.ConvertStatus, w.write, w.convert)
		}
		if c.WorkerID != w.worker {
			t.Errorf("chunk %d: worker %q, want %q", i, c.WorkerID, w.worker)
		}
		if c.Error != w.errMsg {
			t.Errorf("chunk %d: error %q, want %q", i, c.Error, w.errMsg)
		}
	}
	if chunks[0].Duration != 1500*time.Millisecond {
		t.Errorf("chunk 0 duration = %v", chunks[0].Duration)
	}
	if chunks[1].Start != 80 || chunks[1].Overlap != 5 {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
}

func TestRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var ids []string
	for _, src := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		id, err := s.BeginRun(ctx, src)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := s.FinishRun(ctx, ids[0], nil); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Runs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Source != "c.pdf" || runs[1].Source != "b.pdf" {
		t.Fatalf("runs = %+v", runs)
	}

	all, err := s.Runs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[2].Status != StatusSucceeded || all[1].Status != StatusRunning {
		t.Errorf("statuses = %s, %s", all[2].Status, all[1].Status)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.BeginRun(ctx, "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Run(ctx, id); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if _, err := s.Run(ctx, "missing"); err == nil {
		t.Error("expected error for unknown run")
	}
	if err := s.FinishRun(ctx, "missing", nil); err == nil {
		t.Error("expected error finishing unknown run")
	}
}
