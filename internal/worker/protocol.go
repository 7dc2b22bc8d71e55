// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker runs conversions in child processes. The coordinator
// launches the pdfsplit binary with the hidden worker subcommand and talks
// to it with newline-delimited JSON over the child's stdin and stdout.
// Implements: docs/ARCHITECTURE § Batch Conversion (worker isolation).
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// hello is the first message a worker writes. A non-empty Error means the
// worker could not start and will exit.
type hello struct {
	Ready bool   `json:"ready"`
	PID   int    `json:"pid"`
	Error string `json:"error,omitempty"`
}

type request struct {
	Seq  int             `json:"seq"`
	File types.ChunkFile `json:"file"`
}

type response struct {
	Seq      int             `json:"seq"`
	Fragment *types.Fragment `json:"fragment,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Converter is the conversion engine a worker drives.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (*types.Fragment, error)
}

// Serve runs the worker side of the protocol: it announces readiness,
// then converts one request at a time until r is exhausted or ctx is done.
// A nil conv with a non-nil setupErr announces the failure and returns it.
func Serve(ctx context.Context, conv Converter, setupErr error, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	if setupErr != nil {
		_ = enc.Encode(hello{Error: setupErr.Error()})
		return setupErr
	}
	if err := enc.Encode(hello{Ready: true, PID: os.Getpid()}); err != nil {
		return fmt.Errorf("announcing worker: %w", err)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}

		resp := response{Seq: req.Seq}
		frag, err := conv.Convert(ctx, req.File.Path)
		if err != nil {
			resp.Error = err.Error()
			log.Debug().Err(err).Int("chunk", req.File.Spec.Index).Msg("worker conversion failed")
		} else {
			resp.Fragment = frag
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return sc.Err()
}
