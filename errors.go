// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrServerStopped is returned by Server.Compile after Stop.
	ErrServerStopped = errors.New("compile server stopped")

	// ErrWorkerCrashed is returned to pending calls when the worker dies
	// and the server was created with WithFailPendingOnExit(true).
	ErrWorkerCrashed = errors.New("compile worker crashed")

	// ErrNoJobs is returned when a batch has nothing to compile.
	ErrNoJobs = errors.New("none of the listed sources are valid")
)

// ConfigurationError reports a job whose source set does not resolve to
// exactly one file. The compiler is never invoked for such a job.
type ConfigurationError struct {
	Src  []string
	Dest string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("source MUST be a single file, got %d (%s) for %q",
		len(e.Src), strings.Join(e.Src, ", "), e.Dest)
}

// CompileError carries the transpiler's diagnostic for one source.
type CompileError struct {
	Filename   string // Source being compiled, if known
	Diagnostic string // Native transpiler message
	Err        error  // Underlying cause, if any
}

func (e *CompileError) Error() string {
	msg := e.Diagnostic
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Filename != "" {
		return fmt.Sprintf("compile %s: %s", e.Filename, msg)
	}
	return "compile: " + msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// ChannelError is a failure of the worker channel itself rather than of a
// particular compilation.
type ChannelError struct {
	Op  string // "spawn", "send", "receive" or "exit"
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("worker channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// JobError attributes a failure to one src -> dest job.
type JobError struct {
	Src  string
	Dest string
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.Src, e.Dest, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
