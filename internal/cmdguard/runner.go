package cmdguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 300 * time.Second

// Output is what a Runner captured from one process.
type Output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes an approved command. A non-zero exit status is reported
// in Output, not as an error.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) (*Output, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, bin string, args []string) (*Output, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, bin string, args []string) (*Output, error) {
	return f(ctx, bin, args)
}

// ExecutionErrorKind classifies runner failures.
type ExecutionErrorKind string

const (
	ErrKindSpawn    ExecutionErrorKind = "spawn"
	ErrKindTimeout  ExecutionErrorKind = "timeout"
	ErrKindCanceled ExecutionErrorKind = "canceled"
)

// ExecutionError is returned when the process could not be run to
// completion.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Timeout time.Duration
	Err     error
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case ErrKindTimeout:
		return fmt.Sprintf("command timed out after %s", e.Timeout)
	case ErrKindCanceled:
		return fmt.Sprintf("command canceled: %v", e.Err)
	default:
		return fmt.Sprintf("failed to execute command: %v", e.Err)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as local subprocesses.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner. A non-positive timeout means
// DefaultTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run executes bin with args, capturing stdout and stderr. The process is
// killed when the timeout expires or ctx is canceled.
func (r *ExecRunner) Run(ctx context.Context, bin string, args []string) (*Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log := logrus.WithField("bin", bin).WithField("elapsed", time.Since(start).Round(time.Millisecond))

	if err != nil {
		// Deadline/cancel checks come first: a killed process also
		// surfaces as an ExitError.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.Warnf("command timed out after %s", timeout)
			return nil, &ExecutionError{Kind: ErrKindTimeout, Timeout: timeout, Err: runCtx.Err()}
		}
		if ctx.Err() != nil {
			return nil, &ExecutionError{Kind: ErrKindCanceled, Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ExecutionError{Kind: ErrKindSpawn, Err: err}
		}
	}

	exitCode := cmd.ProcessState.ExitCode()
	log.WithField("exit_code", exitCode).Debug("command completed")

	return &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
