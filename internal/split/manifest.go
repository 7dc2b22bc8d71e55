// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package split

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// ManifestName is the plan file written next to the chunks.
const ManifestName = "manifest.yaml"

var chunkName = regexp.MustCompile(`^chunk_(\d{4,})_pages_(\d{4,})_(\d{4,})\.pdf$`)

// WriteManifest stores p in dir/manifest.yaml.
func WriteManifest(dir string, p types.Plan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads the plan stored in dir.
func ReadManifest(dir string) (types.Plan, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Plan{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var p types.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Plan{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return p, nil
}

// Load returns the chunks found in dir in index order. The manifest is
// used when present; otherwise specs are rebuilt from the file names, with
// overlap inferred from the previous chunk's last page.
func Load(dir string) ([]types.ChunkFile, error) {
	p, err := ReadManifest(dir)
	if err == nil {
		files := make([]types.ChunkFile, len(p.Specs))
		for i, s := range p.Specs {
			files[i] = types.ChunkFile{Spec: s, Path: filepath.Join(dir, s.FileName()), PagesWritten: s.Pages()}
		}
		return files, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return scan(dir)
}

func scan(dir string) ([]types.ChunkFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading chunk directory %s: %w", dir, err)
	}

	var files []types.ChunkFile
	for _, e := range entries {
		m := chunkName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		start, _ := strconv.Atoi(m[2])
		end, _ := strconv.Atoi(m[3])
		spec := types.ChunkSpec{Index: idx, Start: start, End: end}
		files = append(files, types.ChunkFile{Spec: spec, Path: filepath.Join(dir, e.Name()), PagesWritten: spec.Pages()})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no chunk files in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Spec.Index < files[j].Spec.Index })
	for i := 1; i < len(files); i++ {
		prev := files[i-1].Spec
		cur := &files[i].Spec
		if prev.End >= cur.Start {
			cur.Overlap = min(prev.End-cur.Start+1, cur.End-cur.Start)
		}
	}
	return files, nil
}

// Specs returns the specs of files.
func Specs(files []types.ChunkFile) []types.ChunkSpec {
	specs := make([]types.ChunkSpec, len(files))
	for i, f := range files {
		specs[i] = f.Spec
	}
	return specs
}
