// Package executor is responsible for running external provisioning,
// packaging and load-generation tools.
//
// Commands are always specified as explicit argument vectors, never as shell
// strings, so arguments cannot be re-split or interpolated by a shell.
// Failure modes are distinguishable: a command that could not be started
// yields a *SpawnError, a command that ran and exited non-zero yields an
// *ExitError carrying the exit code.
package executor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Command describes one external tool invocation.
type Command struct {
	// Path is the executable to run, looked up in PATH when not absolute.
	Path string
	// Args are the arguments passed to the executable (argv[1:]).
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds additional environment variables layered over the process
	// environment of the orchestrator.
	Env map[string]string
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// SpawnError means the process could not be started at all (binary missing,
// permissions, fork failure).
type SpawnError struct {
	Command Command
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not start %q: %v", e.Command, e.Err)
}

// ExitError means the process ran to completion but exited non-zero.
type ExitError struct {
	Command Command
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with code %d", e.Command, e.Code)
}

// ExitCode extracts the exit code from an *ExitError anywhere in the error
// chain. The second return is false for spawn failures and other errors.
func ExitCode(err error) (int, bool) {
	type causer interface {
		Cause() error
	}
	for err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			return exitErr.Code, true
		}
		cause, ok := err.(causer)
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return 0, false
}

type invocation struct {
	stdout []io.Writer
	stderr []io.Writer
}

// Option customizes a single Run invocation.
type Option func(*invocation)

// WithStdout adds an additional stdout sink.
func WithStdout(w io.Writer) Option {
	return func(i *invocation) { i.stdout = append(i.stdout, w) }
}

// WithStderr adds an additional stderr sink.
func WithStderr(w io.Writer) Option {
	return func(i *invocation) { i.stderr = append(i.stderr, w) }
}

// WithCombinedSink mirrors both stdout and stderr of the child into w,
// in addition to the default console sinks. Used to tee workload output
// into a phase-local log file.
func WithCombinedSink(w io.Writer) Option {
	return func(i *invocation) {
		i.stdout = append(i.stdout, w)
		i.stderr = append(i.stderr, w)
	}
}

func buildCmd(command Command) *exec.Cmd {
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = os.Environ()
	for key, value := range command.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	return cmd
}

// Run executes the command synchronously, streaming its output to the
// console and any additional sinks. It returns nil only for exit code zero.
func Run(command Command, opts ...Option) error {
	inv := &invocation{
		stdout: []io.Writer{os.Stdout},
		stderr: []io.Writer{os.Stderr},
	}
	for _, opt := range opts {
		opt(inv)
	}

	cmd := buildCmd(command)
	cmd.Stdout = io.MultiWriter(inv.stdout...)
	cmd.Stderr = io.MultiWriter(inv.stderr...)

	log.Debugf("Starting %q in %q", command, command.Dir)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return &SpawnError{Command: command, Err: err}
	}

	err := cmd.Wait()
	log.Debugf("Ended %q after %s", command, time.Since(start).Round(time.Millisecond))

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExitError{Command: command, Code: exitErr.ExitCode()}
		}
		return errors.Wrapf(err, "waiting for %q failed", command)
	}

	return nil
}

// Output executes the command synchronously and captures its stdout.
// Stderr is captured as well and included in the returned error on failure.
func Output(command Command) (string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := buildCmd(command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debugf("Starting %q in %q", command, command.Dir)

	if err := cmd.Start(); err != nil {
		return "", &SpawnError{Command: command, Err: err}
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.String(), errors.Wrapf(
				&ExitError{Command: command, Code: exitErr.ExitCode()},
				"stderr: %s", stderr.String())
		}
		return stdout.String(), errors.Wrapf(err, "waiting for %q failed", command)
	}

	return stdout.String(), nil
}
