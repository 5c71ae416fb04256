// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// thread owns one engine and serves tasks from the shared pool queue.
type thread struct {
	executor *JsExecutor // Reference to the parent executor
	name     string      // Human-readable name for logging

	initCh     chan error    // Signals initialization completion
	executions atomic.Uint64 // Number of tasks executed by this thread

	jsEngine JsEngine // Engine instance, touched only from run
}

// newThread creates a new thread instance.
func newThread(executor *JsExecutor, name string) *thread {
	return &thread{
		executor: executor,
		name:     name,
		initCh:   make(chan error, 1),
	}
}

// initEngine creates the engine and evaluates the transpiler scripts.
func (t *thread) initEngine() error {
	jsEngine, err := t.executor.engineFactory()
	if err != nil {
		return fmt.Errorf("failed to create JS engine: %w", err)
	}
	t.jsEngine = jsEngine

	if err := t.jsEngine.Load(t.executor.scripts); err != nil {
		return fmt.Errorf("failed to load JS scripts: %w", err)
	}
	return nil
}

// run is the thread loop. It returns once the queue is closed and drained.
func (t *thread) run(queue <-chan *task, wg *sync.WaitGroup) {
	// Engines such as QuickJS and V8 must stay on the OS thread that created them
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer wg.Done()

	defer func() {
		if t.jsEngine == nil {
			return
		}
		if err := t.jsEngine.Close(); err != nil {
			t.executor.logger.Error("Failed to close JS engine",
				"thread", t.name,
				"error", err)
		}
	}()

	if err := t.initEngine(); err != nil {
		t.executor.logger.Error("Failed to initialize JS engine",
			"thread", t.name,
			"error", err)
		t.initCh <- err
		return
	}
	t.initCh <- nil

	for task := range queue {
		if err := task.ctx.Err(); err != nil {
			task.resultChan <- &taskResult{err: err}
			continue
		}
		t.executeTask(task)
	}
}

// executeTask runs a single task, converting engine panics into errors.
func (t *thread) executeTask(task *task) {
	defer func() {
		if r := recover(); r != nil {
			task.resultChan <- &taskResult{
				err: fmt.Errorf("panic in thread %s: %v", t.name, r),
			}
			t.executor.logger.Error("Task execution panic",
				"thread", t.name,
				"service", task.request.Service,
				"error", r)
		}
		t.executions.Add(1)
	}()

	response, err := t.jsEngine.Execute(task.request)
	task.resultChan <- &taskResult{
		response: response,
		err:      err,
	}
}
