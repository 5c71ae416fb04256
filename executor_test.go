// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockEngine is a scriptable JsEngine for tests.
type mockEngine struct {
	mu          sync.Mutex
	loadCalled  bool
	closeCalled bool
	scripts     []*JsScript
	executed    []*JsRequest

	loadFunc    func(scripts []*JsScript) error
	executeFunc func(req *JsRequest) (*JsResponse, error)
	closeFunc   func() error
}

func (m *mockEngine) Load(scripts []*JsScript) error {
	m.mu.Lock()
	m.loadCalled = true
	m.scripts = scripts
	m.mu.Unlock()
	if m.loadFunc != nil {
		return m.loadFunc(scripts)
	}
	return nil
}

func (m *mockEngine) Execute(req *JsRequest) (*JsResponse, error) {
	m.mu.Lock()
	m.executed = append(m.executed, req)
	m.mu.Unlock()
	if m.executeFunc != nil {
		return m.executeFunc(req)
	}
	return &JsResponse{Id: req.Id, Result: "ok"}, nil
}

func (m *mockEngine) Close() error {
	m.mu.Lock()
	m.closeCalled = true
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

// mockEngineFactory returns a factory of engines that echo "ok".
func mockEngineFactory() JsEngineFactory {
	return func() (JsEngine, error) {
		return &mockEngine{}, nil
	}
}

// recordingFactory hands out engines built by newEngine and remembers them.
type recordingFactory struct {
	mu        sync.Mutex
	engines   []*mockEngine
	newEngine func() *mockEngine
}

func (f *recordingFactory) factory() JsEngineFactory {
	return func() (JsEngine, error) {
		e := &mockEngine{}
		if f.newEngine != nil {
			e = f.newEngine()
		}
		f.mu.Lock()
		f.engines = append(f.engines, e)
		f.mu.Unlock()
		return e, nil
	}
}

func TestJsExecutor_Start_Stop(t *testing.T) {
	executor, err := NewExecutor(WithJsEngine(mockEngineFactory()))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if err := executor.Start(); err != nil {
		t.Fatalf("Failed to start executor: %v", err)
	}
	if err := executor.Stop(); err != nil {
		t.Fatalf("Failed to stop executor: %v", err)
	}
	if err := executor.Stop(); !errors.Is(err, errPoolNotRunning) {
		t.Fatalf("Expected errPoolNotRunning on second stop, got %v", err)
	}
}

func TestJsExecutor_Execute(t *testing.T) {
	executor, err := NewExecutor(WithJsEngine(mockEngineFactory()), WithPoolSize(2))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if err := executor.Start(); err != nil {
		t.Fatalf("Failed to start executor: %v", err)
	}
	defer executor.Stop()

	resp, err := executor.Execute(context.Background(), &JsRequest{Id: "1", Service: "compile"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Id != "1" || resp.Result != "ok" {
		t.Fatalf("Unexpected response: %+v", resp)
	}
}

func TestJsExecutor_Execute_NilRequest(t *testing.T) {
	executor, err := NewExecutor(WithJsEngine(mockEngineFactory()))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if _, err := executor.Execute(context.Background(), nil); err == nil {
		t.Fatalf("Expected error for nil request")
	}
}

func TestJsExecutor_Execute_NotStarted(t *testing.T) {
	executor, err := NewExecutor(WithJsEngine(mockEngineFactory()))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	_, err = executor.Execute(context.Background(), &JsRequest{Id: "1"})
	if !errors.Is(err, errPoolNotRunning) {
		t.Fatalf("Expected errPoolNotRunning, got %v", err)
	}
}

func TestJsExecutor_Execute_EngineError(t *testing.T) {
	wantErr := errors.New("SyntaxError: Unexpected token")
	factory := &recordingFactory{newEngine: func() *mockEngine {
		return &mockEngine{executeFunc: func(req *JsRequest) (*JsResponse, error) {
			return nil, wantErr
		}}
	}}
	executor, err := NewExecutor(WithJsEngine(factory.factory()), WithPoolSize(1))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if err := executor.Start(); err != nil {
		t.Fatalf("Failed to start executor: %v", err)
	}
	defer executor.Stop()

	_, err = executor.Execute(context.Background(), &JsRequest{Id: "1"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected engine error, got %v", err)
	}
}

func TestJsExecutor_ExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	factory := &recordingFactory{newEngine: func() *mockEngine {
		return &mockEngine{executeFunc: func(req *JsRequest) (*JsResponse, error) {
			<-release
			return &JsResponse{Id: req.Id}, nil
		}}
	}}
	executor, err := NewExecutor(
		WithJsEngine(factory.factory()),
		WithPoolSize(1),
		WithExecuteTimeout(20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if err := executor.Start(); err != nil {
		t.Fatalf("Failed to start executor: %v", err)
	}
	defer executor.Stop()
	defer close(release)

	_, err = executor.Execute(context.Background(), &JsRequest{Id: "slow"})
	if err == nil || err.Error() != "timeout waiting for task result" {
		t.Fatalf("Expected timeout error, got %v", err)
	}
}

func TestJsExecutor_Execute_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	factory := &recordingFactory{newEngine: func() *mockEngine {
		return &mockEngine{executeFunc: func(req *JsRequest) (*JsResponse, error) {
			<-release
			return &JsResponse{Id: req.Id}, nil
		}}
	}}
	executor, err := NewExecutor(WithJsEngine(factory.factory()), WithPoolSize(1))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if err := executor.Start(); err != nil {
		t.Fatalf("Failed to start executor: %v", err)
	}
	defer executor.Stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = executor.Execute(ctx, &JsRequest{Id: "1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestNewExecutor_Options(t *testing.T) {
	if _, err := NewExecutor(); err == nil {
		t.Fatalf("Expected error without engine factory")
	}

	script := &JsScript{FileName: "shim.js", Content: "function compile() {}"}
	executor, err := NewExecutor(
		WithJsEngine(mockEngineFactory()),
		WithJsScripts(script),
		WithPoolSize(3),
		WithQueueSize(7),
		WithExecuteTimeout(time.Second),
		WithExecutorLogger(nil),
	)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if executor.options.poolSize != 3 || executor.options.queueSize != 7 {
		t.Fatalf("Unexpected sizes: %+v", executor.options)
	}
	if executor.options.executeTimeout != time.Second {
		t.Fatalf("Unexpected timeout: %v", executor.options.executeTimeout)
	}
	if len(executor.scripts) != 1 || executor.scripts[0] != script {
		t.Fatalf("Scripts not recorded: %v", executor.scripts)
	}
	if executor.logger == nil {
		t.Fatalf("Nil logger should be replaced")
	}

	// Zero values keep the defaults
	executor, err = NewExecutor(
		WithJsEngine(mockEngineFactory()),
		WithPoolSize(0),
		WithQueueSize(0),
		WithExecuteTimeout(0),
		WithExecutorLogger(slog.Default()),
	)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	if executor.options.poolSize == 0 || executor.options.queueSize != 256 {
		t.Fatalf("Defaults not kept: %+v", executor.options)
	}
	if executor.options.executeTimeout != 60*time.Second {
		t.Fatalf("Default timeout not kept: %v", executor.options.executeTimeout)
	}
}

func TestJsExecutor_NilPool(t *testing.T) {
	executor := &JsExecutor{}
	if err := executor.Start(); err == nil {
		t.Fatalf("Expected error starting without a pool")
	}
	if _, err := executor.Execute(context.Background(), &JsRequest{}); err == nil {
		t.Fatalf("Expected error executing without a pool")
	}
	if err := executor.Stop(); err == nil {
		t.Fatalf("Expected error stopping without a pool")
	}
}
