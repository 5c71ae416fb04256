// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-sourcemap/sourcemap"
)

// DefaultService is the global JavaScript function the transpiler scripts
// must define: compile(content, options) -> [code, map].
const DefaultService = "compile"

// CompileFunc compiles one source text. Both Compiler.Compile and
// Server.Compile satisfy it.
type CompileFunc func(ctx context.Context, content string, options Options) (*Result, error)

// Compiler adapts the transpiler scripts, running inside a pool of
// JavaScript engines, to a CompileFunc. The engines are created and the
// scripts evaluated on the first call only.
type Compiler struct {
	engineFactory JsEngineFactory
	scripts       []*JsScript
	service       string
	executorOpts  []ExecutorOption
	logger        *slog.Logger

	once     sync.Once
	executor *JsExecutor
	startErr error
	nextID   atomic.Uint64
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// NewCompiler creates a compiler. No engine is started until Compile is
// called.
func NewCompiler(opts ...CompilerOption) (*Compiler, error) {
	c := &Compiler{
		service: DefaultService,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engineFactory == nil {
		return nil, fmt.Errorf("JavaScript engine factory must be provided")
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// WithEngine sets the engine the transpiler runs in.
func WithEngine(factory JsEngineFactory) CompilerOption {
	return func(c *Compiler) {
		c.engineFactory = factory
	}
}

// WithTranspilerScripts sets the scripts evaluated into every engine, in
// order. The last one is expected to define the compile service.
func WithTranspilerScripts(scripts ...*JsScript) CompilerOption {
	return func(c *Compiler) {
		c.scripts = append([]*JsScript(nil), scripts...)
	}
}

// WithService overrides the name of the global compile function.
func WithService(name string) CompilerOption {
	return func(c *Compiler) {
		if name != "" {
			c.service = name
		}
	}
}

// WithExecutorOptions passes options through to the engine pool.
func WithExecutorOptions(opts ...ExecutorOption) CompilerOption {
	return func(c *Compiler) {
		c.executorOpts = append(c.executorOpts, opts...)
	}
}

// WithCompilerLogger sets the logger for the compiler and its engine pool.
func WithCompilerLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// start brings up the engine pool exactly once.
func (c *Compiler) start() error {
	c.once.Do(func() {
		opts := []ExecutorOption{
			WithJsEngine(c.engineFactory),
			WithJsScripts(c.scripts...),
			WithExecutorLogger(c.logger),
		}
		executor, err := NewExecutor(append(opts, c.executorOpts...)...)
		if err != nil {
			c.startErr = err
			return
		}
		if err := executor.Start(); err != nil {
			c.startErr = fmt.Errorf("start transpiler: %w", err)
			return
		}
		c.executor = executor
		c.logger.Debug("Transpiler loaded", "scripts", len(c.scripts), "service", c.service)
	})
	return c.startErr
}

// Compile runs the transpiler on content. Orchestrator-only options are
// removed before the transpiler sees them, and the source map is returned
// only when sourceMaps is set. Every failure, including a panic inside an
// engine, is reported as a *CompileError unless ctx ended first.
func (c *Compiler) Compile(ctx context.Context, content string, options Options) (res *Result, err error) {
	filename := options.StringValue(OptFilename)

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &CompileError{Filename: filename, Diagnostic: fmt.Sprint(r)}
		}
	}()

	if err := c.start(); err != nil {
		return nil, &CompileError{Filename: filename, Diagnostic: err.Error(), Err: err}
	}

	req := &JsRequest{
		Id:      strconv.FormatUint(c.nextID.Add(1), 10),
		Service: c.service,
		Args:    []interface{}{content, map[string]any(options.TranspilerOptions())},
	}
	resp, err := c.executor.Execute(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &CompileError{Filename: filename, Diagnostic: err.Error(), Err: err}
	}
	if resp == nil {
		return nil, &CompileError{Filename: filename, Diagnostic: "transpiler returned no response"}
	}

	res, err = resultFromValue(resp.Result)
	if err != nil {
		return nil, &CompileError{Filename: filename, Diagnostic: err.Error(), Err: err}
	}

	if !options.Bool(OptSourceMaps) {
		res.SourceMap = ""
	} else if res.SourceMap != "" {
		if _, err := sourcemap.Parse(filename, []byte(res.SourceMap)); err != nil {
			return nil, &CompileError{
				Filename:   filename,
				Diagnostic: "transpiler produced an invalid source map: " + err.Error(),
				Err:        err,
			}
		}
	}
	return res, nil
}

// Close stops the engine pool if it was ever started.
func (c *Compiler) Close() error {
	// Consume the once so a later Compile cannot start a fresh pool
	c.once.Do(func() { c.startErr = fmt.Errorf("compiler closed") })
	if c.executor == nil {
		return nil
	}
	if err := c.executor.Stop(); err != nil && !errors.Is(err, errPoolNotRunning) {
		return err
	}
	return nil
}
