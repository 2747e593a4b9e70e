package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// TempFilePattern is the name pattern of files created by RunToTempFile
const TempFilePattern = "openshift*.yaml"

const maxLineSize = 1024 * 1024

// DefaultWaitDelay is how long output is still read after the context is
// done before the pipes are closed
const DefaultWaitDelay = 5 * time.Second

// ErrCommandFailed is matched by every CommandError
var ErrCommandFailed = errors.New("command failed")

// ErrEmptyCommand indicates that no program was given
var ErrEmptyCommand = errors.New("empty command")

// CommandError reports a command that could not be run, whose output could
// not be drained, or that exited with a non-zero status.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("command %q exited with status %d: %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("error executing command %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// Executor runs external commands and streams their output line by line
type Executor struct {
	logger    *slog.Logger
	dir       string
	env       []string
	waitDelay time.Duration
}

// Option configures an Executor
type Option func(*Executor)

// WithDir sets the working directory of executed commands
func WithDir(dir string) Option {
	return func(e *Executor) {
		e.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment
func WithEnv(env ...string) Option {
	return func(e *Executor) {
		e.env = append(e.env, env...)
	}
}

// WithWaitDelay bounds how long a cancelled command may keep its output
// open, e.g. through a child process that outlives it
func WithWaitDelay(d time.Duration) Option {
	return func(e *Executor) {
		e.waitDelay = d
	}
}

// NewExecutor creates an Executor logging to logger
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{logger: logger, waitDelay: DefaultWaitDelay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run splits command on whitespace, executes it and blocks until it exits.
// Stdout and stderr are drained concurrently; consume receives every line
// of both, one call at a time.
func (e *Executor) Run(ctx context.Context, command string, consume func(line string)) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &CommandError{Command: command, Err: ErrEmptyCommand}
	}
	return e.RunArgs(ctx, fields[0], fields[1:], consume)
}

// RunArgs is Run with the program and its arguments given separately
func (e *Executor) RunArgs(ctx context.Context, name string, args []string, consume func(line string)) error {
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if name == "" {
		return &CommandError{Command: command, Err: ErrEmptyCommand}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.dir
	cmd.WaitDelay = e.waitDelay
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &CommandError{Command: command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &CommandError{Command: command, Err: err}
	}

	e.logger.Debug("executing command", "command", command)
	if err := cmd.Start(); err != nil {
		return &CommandError{Command: command, Err: err}
	}

	var mu sync.Mutex
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		consume(line)
	}

	readersDone := make(chan struct{})
	go func() {
		select {
		case <-readersDone:
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(e.waitDelay)
		defer timer.Stop()
		select {
		case <-readersDone:
		case <-timer.C:
			// A descendant still holds the pipes open.
			_ = stdout.Close()
			_ = stderr.Close()
		}
	}()

	var g errgroup.Group
	g.Go(func() error { return readLines(stdout, emit) })
	g.Go(func() error { return readLines(stderr, emit) })
	readErr := g.Wait()
	close(readersDone)

	// Wait closes the pipes, so it must follow the readers.
	waitErr := cmd.Wait()

	if readErr != nil && ctx.Err() != nil && errors.Is(readErr, os.ErrClosed) {
		return &CommandError{Command: command, ExitCode: -1, Err: fmt.Errorf("output still open after cancellation: %w", ctx.Err())}
	}
	if readErr != nil {
		return &CommandError{Command: command, Err: fmt.Errorf("error reading output: %w", readErr)}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &CommandError{Command: command, ExitCode: exitErr.ExitCode(), Err: waitErr}
		}
		return &CommandError{Command: command, Err: waitErr}
	}
	return nil
}

// RunLogged executes command and logs each output line at info level
func (e *Executor) RunLogged(ctx context.Context, command string) error {
	program := command
	if fields := strings.Fields(command); len(fields) > 0 {
		program = fields[0]
	}
	return e.Run(ctx, command, func(line string) {
		e.logger.Info(line, "command", program)
	})
}

// RunToTempFile executes command and writes its output to a new temporary
// file, returning the file path. The caller owns the file.
func (e *Executor) RunToTempFile(ctx context.Context, command string) (string, error) {
	f, err := os.CreateTemp("", TempFilePattern)
	if err != nil {
		return "", fmt.Errorf("error while creating temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	var writeErr error
	runErr := e.Run(ctx, command, func(line string) {
		if writeErr != nil {
			return
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			writeErr = err
		}
	})

	if writeErr == nil {
		writeErr = w.Flush()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if runErr != nil {
		os.Remove(f.Name())
		return "", runErr
	}
	if writeErr != nil {
		os.Remove(f.Name())
		return "", &CommandError{Command: command, Err: fmt.Errorf("error writing %s: %w", f.Name(), writeErr)}
	}
	return f.Name(), nil
}

func readLines(r io.Reader, consume func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		consume(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// Keep the child from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
