// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/internal/batch"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

const (
	defaultStartTimeout = 30 * time.Second
	closeGrace          = 5 * time.Second
)

// ProcessLauncher starts workers as child processes running Path with
// Args. The child must speak the worker protocol on stdin and stdout.
type ProcessLauncher struct {
	Path string
	Args []string
	Env  []string

	// StartTimeout bounds the wait for the child's readiness message.
	StartTimeout time.Duration
}

// SelfLauncher returns a launcher that re-executes the running binary with
// args.
func SelfLauncher(args []string) (*ProcessLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return &ProcessLauncher{Path: exe, Args: args}, nil
}

// Launch starts a child and waits until it reports ready.
func (l *ProcessLauncher) Launch(ctx context.Context, id string) (batch.Worker, error) {
	cmd := exec.Command(l.Path, l.Args...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	p := &Process{
		id:     id,
		cmd:    cmd,
		stdin:  stdin,
		dec:    json.NewDecoder(bufio.NewReader(stdout)),
		exited: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	timeout := l.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	if err := p.handshake(ctx, timeout); err != nil {
		p.kill()
		return nil, err
	}
	log.Debug().Str("worker", id).Int("pid", cmd.Process.Pid).Msg("worker process ready")
	return p, nil
}

// Process is a running worker child. It handles one conversion at a time.
type Process struct {
	id    string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	dec   *json.Decoder

	mu      sync.Mutex
	seq     int
	exited  chan struct{}
	waitErr error
}

func (p *Process) ID() string { return p.id }

func (p *Process) handshake(ctx context.Context, timeout time.Duration) error {
	type result struct {
		h   hello
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var h hello
		err := p.dec.Decode(&h)
		ch <- result{h, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		switch {
		case r.err != nil:
			return fmt.Errorf("worker %s did not start: %w", p.id, r.err)
		case r.h.Error != "":
			return fmt.Errorf("worker %s failed to start: %s", p.id, r.h.Error)
		case !r.h.Ready:
			return fmt.Errorf("worker %s sent an invalid greeting", p.id)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("worker %s not ready after %s", p.id, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Convert sends f to the child and waits for the fragment. The child is
// killed when ctx is done before it answers.
func (p *Process) Convert(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	data, err := json.Marshal(request{Seq: p.seq, File: f})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("sending chunk to worker %s: %w", p.id, err)
	}

	ch := make(chan response, 1)
	errCh := make(chan error, 1)
	go func() {
		var resp response
		if err := p.dec.Decode(&resp); err != nil {
			errCh <- err
			return
		}
		ch <- resp
	}()

	select {
	case resp := <-ch:
		if resp.Seq != p.seq {
			return nil, fmt.Errorf("worker %s answered request %d, want %d", p.id, resp.Seq, p.seq)
		}
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		if resp.Fragment == nil {
			return nil, fmt.Errorf("worker %s returned no document", p.id)
		}
		return resp.Fragment, nil
	case err := <-errCh:
		select {
		case <-p.exited:
		case <-time.After(closeGrace):
			p.kill()
		}
		if p.waitErr != nil {
			return nil, fmt.Errorf("worker %s died: %w", p.id, p.waitErr)
		}
		return nil, fmt.Errorf("reading from worker %s: %w", p.id, err)
	case <-ctx.Done():
		p.kill()
		return nil, ctx.Err()
	}
}

// Close ends the child by closing its stdin and waits for it to exit,
// killing it after a grace period.
func (p *Process) Close() error {
	p.stdin.Close()
	select {
	case <-p.exited:
	case <-time.After(closeGrace):
		p.kill()
	}
	var ee *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &ee) {
		return p.waitErr
	}
	return nil
}

func (p *Process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
}
