// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// InputToken is replaced with the chunk path in command templates.
const InputToken = "{input}"

// CommandConverter runs a local command per chunk. When the template has
// no {input} token the chunk is piped on stdin. The command writes the
// fragment JSON to stdout.
type CommandConverter struct {
	argv []string
}

// NewCommandConverter checks the template and resolves its binary.
func NewCommandConverter(argv []string) (*CommandConverter, error) {
	if len(argv) == 0 {
		return nil, errors.New("command backend needs a command template")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("conversion command %s: %w", argv[0], err)
	}
	return &CommandConverter{argv: argv}, nil
}

// Convert runs the command for pdfPath. The process is killed when ctx is
// done.
func (c *CommandConverter) Convert(ctx context.Context, pdfPath string) (*types.Fragment, error) {
	args := make([]string, 0, len(c.argv)-1)
	piped := true
	for _, a := range c.argv[1:] {
		if strings.Contains(a, InputToken) {
			piped = false
			a = strings.ReplaceAll(a, InputToken, pdfPath)
		}
		args = append(args, a)
	}

	var stdin io.Reader
	if piped {
		f, err := os.Open(pdfPath)
		if err != nil {
			return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
		}
		defer f.Close()
		stdin = f
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("converting %s with %s: %w: %s", pdfPath, c.argv[0], err, msg)
		}
		return nil, fmt.Errorf("converting %s with %s: %w", pdfPath, c.argv[0], err)
	}

	frag, err := Decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", pdfPath, err)
	}
	return frag, nil
}
