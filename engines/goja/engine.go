// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	_ "embed"
	"fmt"

	jscompiler "github.com/buke/js-compiler"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

//go:embed engine_rpc.js
var rpcScript string

// Engine implements jscompiler.JsEngine on top of Goja. All access to the
// runtime goes through the event loop, which also drives promise jobs.
type Engine struct {
	Loop   *eventloop.EventLoop // The event loop that owns the runtime
	Option *EngineOption        // Engine configuration options

	rpc goja.Callable // Evaluated rpc script, owned by the loop
}

// NewFactory returns a jscompiler.JsEngineFactory for Goja engines
// configured with opts.
func NewFactory(opts ...Option) jscompiler.JsEngineFactory {
	return func() (jscompiler.JsEngine, error) {
		return newEngine(opts...)
	}
}

// newEngine starts an event loop and applies the options on it.
func newEngine(opts ...Option) (*Engine, error) {
	loop := eventloop.NewEventLoop()

	e := &Engine{
		Loop:   loop,
		Option: &EngineOption{},
	}

	loop.Start()

	// JSON tags drive the Go <-> JS field names unless overridden
	if err := WithFieldNameMapper(goja.TagFieldNameMapper("json", true))(e); err != nil {
		loop.Stop()
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			loop.Stop()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return e, nil
}

// Load runs the transpiler scripts on the event loop.
func (e *Engine) Load(scripts []*jscompiler.JsScript) error {
	done := make(chan error, 1)
	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		for _, script := range scripts {
			if _, err := vm.RunScript(script.FileName, script.Content); err != nil {
				done <- fmt.Errorf("failed to execute script %s: %w", script.FileName, err)
				return
			}
		}
		done <- nil
	})
	return <-done
}

// outcome is what a settled rpc promise delivers back to Execute.
type outcome struct {
	resp *jscompiler.JsResponse
	err  error
}

// rpcFunc returns the rpc entry point, evaluating the rpc script on first
// use. It must run on the event loop.
func (e *Engine) rpcFunc(vm *goja.Runtime) (goja.Callable, error) {
	if e.rpc != nil {
		return e.rpc, nil
	}
	value, err := vm.RunScript("engine_rpc.js", rpcScript)
	if err != nil {
		return nil, fmt.Errorf("failed to load rpc script: %w", err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("rpc script did not return a function")
	}
	e.rpc = fn
	return fn, nil
}

// Execute calls the requested service through the rpc function and waits
// for the returned promise to settle on the event loop.
func (e *Engine) Execute(req *jscompiler.JsRequest) (*jscompiler.JsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	settled := make(chan outcome, 1)
	fail := func(err error) { settled <- outcome{err: err} }

	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		rpc, err := e.rpcFunc(vm)
		if err != nil {
			fail(err)
			return
		}

		ret, err := rpc(goja.Undefined(), vm.ToValue(req))
		if err != nil {
			fail(fmt.Errorf("failed to call rpc function: %w", err))
			return
		}
		if goja.IsUndefined(ret) || goja.IsNull(ret) {
			fail(fmt.Errorf("rpc call did not return a promise-like object"))
			return
		}

		promise := ret.ToObject(vm)
		then, ok := goja.AssertFunction(promise.Get("then"))
		if !ok {
			fail(fmt.Errorf("rpc call did not return a promise (missing .then method)"))
			return
		}

		resolve := vm.ToValue(func(value goja.Value) {
			var resp jscompiler.JsResponse
			if err := vm.ExportTo(value, &resp); err != nil {
				fail(fmt.Errorf("failed to export result: %w", err))
				return
			}
			settled <- outcome{resp: &resp}
		})
		reject := vm.ToValue(func(reason goja.Value) {
			fail(fmt.Errorf("js execution error: %s", reason.String()))
		})
		if _, err := then(promise, resolve, reject); err != nil {
			fail(fmt.Errorf("failed to invoke promise.then: %w", err))
		}
	})

	out := <-settled
	return out.resp, out.err
}

// Close stops the event loop and releases the runtime.
func (e *Engine) Close() error {
	if e.Loop != nil {
		e.Loop.Stop()
		e.Loop = nil
		e.rpc = nil
	}
	return nil
}
