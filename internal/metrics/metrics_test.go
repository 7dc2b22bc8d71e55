// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

func TestObservations(t *testing.T) {
	m := New()

	m.ObservePlan(types.Plan{Specs: make([]types.ChunkSpec, 4)})
	m.ObserveWrites(3, 1)
	m.ObserveConversions([]types.ConversionResult{
		{Fragment: types.NewFragment("a"), Duration: 2 * time.Second},
		{Fragment: types.NewFragment("b"), Duration: time.Second},
		{Err: &types.ConversionError{Index: 2, Message: "boom"}},
	})
	m.ObserveWorkers(5, 5, 1)
	m.ObservePhase(PhaseWrite, 300*time.Millisecond)
	m.ObserveMerge(250)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.chunksPlanned))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.chunksWritten.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chunksWritten.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conversions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workers.WithLabelValues("launch_failed")))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.pagesMerged))
	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObservePlan(types.Plan{})
	m.ObserveWrites(1, 0)
	m.ObserveConversions(nil)
	m.ObserveWorkers(1, 1, 0)
	m.ObservePhase(PhaseMerge, time.Second)
	m.ObserveMerge(1)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveWrites(2, 0)

	path := filepath.Join(t.TempDir(), "textfile", "pdfsplit.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pdfsplit_chunks_written_total{result="ok"} 2`)
}
