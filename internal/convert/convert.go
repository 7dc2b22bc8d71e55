// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert runs the external document conversion engine on a chunk
// and decodes its output into a Fragment. Backends run the engine in a
// container or as a local command.
// Implements: docs/ARCHITECTURE § Conversion.
package convert

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pdiddy/pdfsplit/internal/container"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

// DefaultImage is the conversion image used by the container backend when
// none is configured.
const DefaultImage = "docling:latest"

// Converter transforms a chunk PDF into a structured Fragment.
type Converter interface {
	// Convert reads the PDF at pdfPath and returns its document tree with
	// page numbers local to the file.
	Convert(ctx context.Context, pdfPath string) (*types.Fragment, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, pdfPath string) (*types.Fragment, error)

func (f ConverterFunc) Convert(ctx context.Context, pdfPath string) (*types.Fragment, error) {
	return f(ctx, pdfPath)
}

// New builds the converter selected by cfg.
func New(cfg types.ConverterConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendContainer, "":
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		image := cfg.Image
		if image == "" {
			image = DefaultImage
		}
		return NewContainerConverter(rt, image, nil)
	case types.BackendCommand:
		return NewCommandConverter(cfg.Command)
	}
	return nil, fmt.Errorf("unknown conversion backend %q: want container or command", cfg.Backend)
}

// WithTimeout bounds every conversion by c to d. A non-positive d returns
// c unchanged.
func WithTimeout(c Converter, d time.Duration) Converter {
	if d <= 0 {
		return c
	}
	return ConverterFunc(func(ctx context.Context, pdfPath string) (*types.Fragment, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		frag, err := c.Convert(ctx, pdfPath)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("converting %s: timed out after %s: %w", pdfPath, d, err)
		}
		return frag, err
	})
}

//go:embed schema/fragment.schema.json
var fragmentSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("fragment.schema.json", bytes.NewReader(fragmentSchema)); err != nil {
			schemaErr = fmt.Errorf("loading fragment schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("fragment.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compiling fragment schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Decode validates raw engine output against the fragment schema and
// decodes it.
func Decode(raw []byte) (*types.Fragment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("conversion produced empty output")
	}

	sch, err := schema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding conversion output: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("conversion output does not match schema: %w", err)
	}

	var frag types.Fragment
	if err := json.Unmarshal(raw, &frag); err != nil {
		return nil, fmt.Errorf("decoding fragment: %w", err)
	}
	if frag.Pages == nil {
		frag.Pages = map[string]types.PageItem{}
	}
	return &frag, nil
}
