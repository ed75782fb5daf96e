package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"tcc-slm-backend/pkg/logger"
)

// CommandResult is the outcome of a command that ran to completion. A
// non-zero exit is reported through ExitCode, not as an error.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

func (r *CommandResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Process is a background process started by a Commander.
type Process interface {
	Pid() int
	Stop() error
}

// Commander runs runtime subprocesses. Run returns an error only when the
// command could not run to completion (missing binary, timeout).
type Commander interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*CommandResult, error)
	Start(name string, args ...string) (Process, error)
}

type ExecCommander struct{}

func NewExecCommander() *ExecCommander {
	return &ExecCommander{}
}

func (e *ExecCommander) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*CommandResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, name, timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		logger.Debugf("command %s exited with %d", name, result.ExitCode)
		return result, nil
	}

	return nil, fmt.Errorf("run %s: %w", name, err)
}

func (e *ExecCommander) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	return &execProcess{cmd: cmd, done: done}, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
