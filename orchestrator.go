// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Orchestrator drives a batch of independent jobs to completion. A failing
// job is logged and recorded but never stops the others.
type Orchestrator struct {
	compile     CompileFunc
	server      *Server
	runtime     runtimeLoader
	concurrency int
	logger      *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// NewOrchestrator creates an orchestrator. Either WithCompileFunc or
// WithServer must be given.
func NewOrchestrator(opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.compile == nil {
		return nil, fmt.Errorf("compile function or server must be provided")
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o, nil
}

// WithCompileFunc compiles in-process with fn.
func WithCompileFunc(fn CompileFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.compile = fn
	}
}

// WithServer compiles through a worker server, which is stopped once the
// batch has settled.
func WithServer(server *Server) OrchestratorOption {
	return func(o *Orchestrator) {
		o.server = server
		if server != nil {
			o.compile = server.Compile
		}
	}
}

// WithRuntimeFile sets the preamble prepended when includeRuntime is on.
func WithRuntimeFile(path string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runtime.path = path
	}
}

// WithConcurrency bounds the number of jobs in flight. Zero means no limit.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithOrchestratorLogger sets the logger. A nil logger discards output.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Run processes every job and returns nil only if all of them succeeded.
// Otherwise the returned error combines one *JobError per failed job, in
// job order.
func (o *Orchestrator) Run(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		o.logger.Error(ErrNoJobs.Error())
		o.stopServer()
		return ErrNoJobs
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			errs[i] = o.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	o.stopServer()

	err := multierr.Combine(errs...)
	if err != nil {
		o.logger.Error("Compilation failed",
			"jobs", len(jobs),
			"failed", len(multierr.Errors(err)))
		return err
	}
	o.logger.Info("Compilation succeeded", "jobs", len(jobs))
	return nil
}

func (o *Orchestrator) stopServer() {
	if o.server == nil {
		return
	}
	if err := o.server.Stop(); err != nil {
		o.logger.Warn("Failed to stop compile server", "error", err)
	}
}

// runJob runs one job and converts its failure into a logged *JobError.
func (o *Orchestrator) runJob(ctx context.Context, job *Job) error {
	if err := o.compileJob(ctx, job); err != nil {
		o.logger.Error("Compilation failed",
			"src", job.label(),
			"dest", job.Dest,
			"error", err)
		return &JobError{Src: job.label(), Dest: job.Dest, Err: err}
	}
	return nil
}

func (o *Orchestrator) compileJob(ctx context.Context, job *Job) error {
	if len(job.Src) != 1 {
		return &ConfigurationError{Src: job.Src, Dest: job.Dest}
	}
	src := job.Src[0]

	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	options := job.Options.Clone()
	options[OptFilename] = src
	if options.Bool(OptModuleNames) {
		options[OptModuleName] = job.ModuleName()
	}

	res, err := o.compile(ctx, string(content), options)
	if err != nil {
		return err
	}

	code := res.Code
	if options.Bool(OptIncludeRuntime) {
		preamble, err := o.runtime.load()
		if err != nil {
			return err
		}
		code = string(preamble) + code
	}

	if options.Bool(OptSourceMaps) {
		mapName := job.SourceMapName()
		mapPath := filepath.Join(filepath.Dir(job.Dest), mapName)
		if code != "" && !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		code += "//# sourceMappingURL=" + mapName + "\n"
		if err := writeFile(mapPath, []byte(res.SourceMap)); err != nil {
			return fmt.Errorf("write source map: %w", err)
		}
		o.logger.Debug("SourceMap written", "path", mapPath)
	}

	if err := writeFile(job.Dest, []byte(code)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	o.logger.Info("Compiled", "src", src, "dest", job.Dest)
	return nil
}

// writeFile writes data, creating parent directories as needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
