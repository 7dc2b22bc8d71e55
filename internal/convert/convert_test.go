// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfsplit/internal/convert/converttest"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
	gotInput string
}

func (f *fakeRuntime) Name() string    { return "docker" }
func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) ImageExists(image string) error { return f.imageErr }

func (f *fakeRuntime) Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	data, _ := io.ReadAll(stdin)
	f.gotInput = string(data)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

func fragmentJSON(t *testing.T, pages int) string {
	t.Helper()
	data, err := json.Marshal(converttest.Fragment("chunk.pdf", pages))
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid fragment", raw: ""},
		{name: "empty output", raw: "   ", wantErr: "empty output"},
		{name: "not json", raw: "# Markdown", wantErr: "decoding conversion output"},
		{name: "wrong schema name", raw: `{"schema_name":"Other","body":{"children":[]},"texts":[]}`, wantErr: "does not match schema"},
		{name: "missing body", raw: `{"schema_name":"DoclingDocument","texts":[]}`, wantErr: "does not match schema"},
		{name: "page zero", raw: `{"schema_name":"DoclingDocument","body":{"children":[]},"texts":[{"self_ref":"#/texts/0","prov":[{"page_no":0}]}]}`, wantErr: "does not match schema"},
		{name: "bad reference", raw: `{"schema_name":"DoclingDocument","body":{"children":[{"$ref":"texts/0"}]},"texts":[]}`, wantErr: "does not match schema"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.raw
			if tc.name == "valid fragment" {
				raw = fragmentJSON(t, 6)
			}
			frag, err := Decode([]byte(raw))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.SchemaName, frag.SchemaName)
			assert.Len(t, frag.Pages, 6)
			first, last := frag.PageSpan()
			assert.Equal(t, 1, first)
			assert.Equal(t, 6, last)
		})
	}
}

func TestDecodeWithoutPages(t *testing.T) {
	frag, err := Decode([]byte(`{"schema_name":"DoclingDocument","body":{"children":[]},"texts":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, frag.Pages)
}

func TestContainerConverter(t *testing.T) {
	pdf := writeFile(t, "chunk.pdf", "%PDF-1.4 chunk bytes")

	t.Run("missing image", func(t *testing.T) {
		_, err := NewContainerConverter(&fakeRuntime{imageErr: errors.New("no such image")}, DefaultImage, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not available in docker")
	})

	t.Run("pipes chunk and decodes output", func(t *testing.T) {
		rt := &fakeRuntime{output: fragmentJSON(t, 3)}
		c, err := NewContainerConverter(rt, DefaultImage, nil)
		require.NoError(t, err)

		frag, err := c.Convert(context.Background(), pdf)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 chunk bytes", rt.gotInput)
		assert.Len(t, frag.Texts, 6)
	})

	t.Run("run failure", func(t *testing.T) {
		c, err := NewContainerConverter(&fakeRuntime{runErr: errors.New("exit status 137")}, DefaultImage, nil)
		require.NoError(t, err)
		_, err = c.Convert(context.Background(), pdf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 137")
	})

	t.Run("missing input", func(t *testing.T) {
		c, err := NewContainerConverter(&fakeRuntime{}, DefaultImage, nil)
		require.NoError(t, err)
		_, err = c.Convert(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
		assert.Error(t, err)
	})
}

func TestCommandConverter(t *testing.T) {
	out := writeFile(t, "out.json", fragmentJSON(t, 2))

	t.Run("input token", func(t *testing.T) {
		c, err := NewCommandConverter([]string{"cat", InputToken})
		require.NoError(t, err)
		frag, err := c.Convert(context.Background(), out)
		require.NoError(t, err)
		assert.Len(t, frag.Groups, 2)
	})

	t.Run("stdin", func(t *testing.T) {
		c, err := NewCommandConverter([]string{"cat"})
		require.NoError(t, err)
		frag, err := c.Convert(context.Background(), out)
		require.NoError(t, err)
		assert.Len(t, frag.Pages, 2)
	})

	t.Run("failing command", func(t *testing.T) {
		c, err := NewCommandConverter([]string{"cat", "/nonexistent/" + InputToken})
		require.NoError(t, err)
		_, err = c.Convert(context.Background(), out)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "converting"))
	})

	t.Run("empty template", func(t *testing.T) {
		_, err := NewCommandConverter(nil)
		assert.Error(t, err)
	})

	t.Run("unknown binary", func(t *testing.T) {
		_, err := NewCommandConverter([]string{"pdfsplit-no-such-binary"})
		assert.Error(t, err)
	})
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(types.ConverterConfig{Backend: "grobid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conversion backend")
}

func TestConverterFunc(t *testing.T) {
	var c Converter = ConverterFunc(func(ctx context.Context, p string) (*types.Fragment, error) {
		return converttest.Fragment(p, 1), nil
	})
	frag, err := c.Convert(context.Background(), "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", frag.Name)
}

func TestWithTimeout(t *testing.T) {
	slow := ConverterFunc(func(ctx context.Context, p string) (*types.Fragment, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Convert(context.Background(), "slow.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")

	fast := ConverterFunc(func(ctx context.Context, p string) (*types.Fragment, error) {
		return converttest.Fragment(p, 1), nil
	})
	frag, err := WithTimeout(fast, time.Second).Convert(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", frag.Name)
}
