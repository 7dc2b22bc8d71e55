// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := Init(Options{Level: tc.level, Out: &buf})
			require.NoError(t, err)
			assert.Equal(t, tc.want, l.GetLevel())
		})
	}
}

func TestInitWritesJSONAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "pdfsplit.log")

	l, err := Init(Options{Level: "info", Out: &buf, File: file, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info().Int("chunks", 3).Msg("planned")
	l.Debug().Msg("hidden")

	assert.Contains(t, buf.String(), `"chunks":3`)
	assert.NotContains(t, buf.String(), "hidden")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"planned"`)
}
