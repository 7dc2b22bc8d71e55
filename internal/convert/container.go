// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/pdfsplit/internal/container"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

// ContainerConverter converts PDFs by piping them through a conversion
// image. It depends on a container.Runtime (docker or podman) injected at
// construction time.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
	args    []string
}

// NewContainerConverter creates a converter that runs image on rt with
// args. It verifies that the image exists locally before returning.
func NewContainerConverter(rt container.Runtime, image string, args []string) (*ContainerConverter, error) {
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("conversion image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image, args: args}, nil
}

// Convert pipes the PDF at pdfPath through the container and decodes the
// JSON it writes to stdout.
func (c *ContainerConverter) Convert(ctx context.Context, pdfPath string) (*types.Fragment, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, c.args, f, &out); err != nil {
		return nil, fmt.Errorf("converting %s: %w", pdfPath, err)
	}

	frag, err := Decode(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", pdfPath, err)
	}
	return frag, nil
}
