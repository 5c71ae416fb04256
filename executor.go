// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// executorOptions contains configuration options for the engine host.
type executorOptions struct {
	poolSize       uint32        // Number of engine threads
	queueSize      uint32        // Size of the shared task queue
	executeTimeout time.Duration // Timeout for a single service call (0 = none)
}

// JsExecutor runs service calls on a pool of JavaScript engines that all
// have the same scripts loaded.
type JsExecutor struct {
	options       *executorOptions
	pool          *pool
	engineFactory JsEngineFactory
	scripts       []*JsScript

	logger *slog.Logger
}

// ExecutorOption configures a JsExecutor.
type ExecutorOption func(*JsExecutor)

// NewExecutor creates a new engine host with the given options.
func NewExecutor(opts ...ExecutorOption) (*JsExecutor, error) {
	executor := &JsExecutor{
		logger: slog.Default(),
		options: &executorOptions{
			poolSize:       uint32(runtime.GOMAXPROCS(0)), // Default to CPU count
			queueSize:      256,
			executeTimeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.engineFactory == nil {
		return nil, fmt.Errorf("JavaScript engine factory must be provided")
	}
	if executor.logger == nil {
		executor.logger = slog.New(slog.DiscardHandler)
	}

	executor.pool = newPool(executor)
	return executor, nil
}

// Start creates the engines and loads the scripts into each of them.
func (e *JsExecutor) Start() error {
	if e.pool == nil {
		return fmt.Errorf("engine pool is not initialized")
	}
	return e.pool.start()
}

// Execute runs a service call on the next free engine.
func (e *JsExecutor) Execute(ctx context.Context, request *JsRequest) (*JsResponse, error) {
	if e.pool == nil {
		return nil, fmt.Errorf("engine pool is not initialized")
	}
	if request == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	return e.pool.execute(ctx, newTask(ctx, request))
}

// Stop waits for in-flight calls and closes every engine.
func (e *JsExecutor) Stop() error {
	if e.pool == nil {
		return fmt.Errorf("engine pool is not initialized")
	}
	return e.pool.stop()
}

// WithJsEngine configures the engine factory.
func WithJsEngine(engineFactory JsEngineFactory) ExecutorOption {
	return func(executor *JsExecutor) {
		executor.engineFactory = engineFactory
	}
}

// WithExecutorLogger configures the logger for the executor. A nil logger
// discards output.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(executor *JsExecutor) {
		executor.logger = logger
	}
}

// WithJsScripts configures the scripts loaded into every engine.
func WithJsScripts(scripts ...*JsScript) ExecutorOption {
	return func(executor *JsExecutor) {
		executor.scripts = append([]*JsScript(nil), scripts...)
	}
}

func WithPoolSize(size uint32) ExecutorOption {
	return func(executor *JsExecutor) {
		if size > 0 {
			executor.options.poolSize = size
		}
	}
}

func WithQueueSize(size uint32) ExecutorOption {
	return func(executor *JsExecutor) {
		if size > 0 {
			executor.options.queueSize = size
		}
	}
}

func WithExecuteTimeout(timeout time.Duration) ExecutorOption {
	return func(executor *JsExecutor) {
		if timeout > 0 {
			executor.options.executeTimeout = timeout
		}
	}
}
