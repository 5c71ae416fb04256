// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var errPoolNotRunning = errors.New("engine pool is not running")

// pool runs a fixed set of engine threads that share a single task queue.
type pool struct {
	executor *JsExecutor
	queue    chan *task

	mu      sync.RWMutex // Guards running against a concurrent close of queue
	running bool
	threads []*thread
	wg      sync.WaitGroup
}

// newPool creates an idle pool; call start to spin up the threads.
func newPool(e *JsExecutor) *pool {
	return &pool{executor: e}
}

// start creates every thread and waits for their engines to load.
func (p *pool) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("engine pool already started")
	}
	p.queue = make(chan *task, p.executor.options.queueSize)
	p.threads = nil

	for i := uint32(0); i < p.executor.options.poolSize; i++ {
		t := newThread(p.executor, "thread-"+strconv.FormatUint(uint64(i+1), 10))
		p.wg.Add(1)
		go t.run(p.queue, &p.wg)

		if err := <-t.initCh; err != nil {
			// Release the threads that did come up before reporting
			close(p.queue)
			p.wg.Wait()
			return fmt.Errorf("failed to create thread %d: %w", i, err)
		}
		p.threads = append(p.threads, t)
	}
	p.running = true

	p.executor.logger.Debug("Engine pool started",
		"poolSize", p.executor.options.poolSize,
		"queueSize", p.executor.options.queueSize,
		"executeTimeout", p.executor.options.executeTimeout,
	)
	return nil
}

// stop closes the queue and waits for in-flight tasks to finish.
func (p *pool) stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return errPoolNotRunning
	}
	p.running = false
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()

	var executions uint64
	for _, t := range p.threads {
		executions += t.executions.Load()
	}
	p.executor.logger.Debug("Engine pool stopped", "executions", executions)
	return nil
}

// execute enqueues a task and waits for its result.
func (p *pool) execute(ctx context.Context, task *task) (*JsResponse, error) {
	if err := p.enqueue(ctx, task); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if p.executor.options.executeTimeout > 0 {
		timer := time.NewTimer(p.executor.options.executeTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case result := <-task.resultChan:
		if result.err != nil {
			return nil, result.err
		}
		return result.response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, fmt.Errorf("timeout waiting for task result")
	}
}

func (p *pool) enqueue(ctx context.Context, task *task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return errPoolNotRunning
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
