// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the outcome of a command that was started and ran to
// completion. A non-zero ExitCode is not an error at this layer; the
// caller decides what a failing exit means.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes an external command described by argv (argv[0] is
// the program) and waits for it to finish. Run returns an error only
// when the command could not be started or did not run to completion
// (for example, the context was cancelled and the process was killed).
type Runner interface {
	Run(ctx context.Context, argv []string) (Result, error)
}

// RunnerFunc adapts an ordinary function to the Runner interface.
type RunnerFunc func(ctx context.Context, argv []string) (Result, error)

// Run calls f(ctx, argv).
func (f RunnerFunc) Run(ctx context.Context, argv []string) (Result, error) {
	return f(ctx, argv)
}

// ExecRunner runs commands with os/exec. The zero value is ready to use.
type ExecRunner struct {
	// Env, if non-nil, replaces the child's environment.
	Env []string
}

// Run starts argv[0] with the remaining arguments, captures stdout and
// stderr, and waits for it to exit. If ctx ends first the process is
// killed and the context error is returned.
func (r ExecRunner) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Env != nil {
		cmd.Env = r.Env
	}

	err := cmd.Run()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return result, fmt.Errorf("%s interrupted: %w", argv[0], ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
