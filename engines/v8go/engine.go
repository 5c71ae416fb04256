//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	_ "embed"
	"encoding/json"
	"fmt"

	jscompiler "github.com/buke/js-compiler"
	"github.com/tommie/v8go"
)

var (
	// Swapped out by tests to reach the failure paths.
	v8NewIsolate  = v8go.NewIsolate
	v8NewContext  = v8go.NewContext
	jsonUnmarshal = json.Unmarshal
	v8NewValue    = v8go.NewValue
)

//go:embed engine_rpc.js
var rpcScript string

// Engine implements jscompiler.JsEngine on top of V8.
type Engine struct {
	// Iso is the V8 isolate, a single-threaded VM instance.
	Iso *v8go.Isolate

	// Ctx is the context the transpiler scripts are loaded into.
	Ctx *v8go.Context

	// Option holds the engine-specific configuration.
	Option *EngineOption
}

// NewFactory returns a jscompiler.JsEngineFactory for V8 engines configured
// with opts.
func NewFactory(opts ...Option) jscompiler.JsEngineFactory {
	return func() (jscompiler.JsEngine, error) {
		return newEngine(opts...)
	}
}

func newEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		Option: &EngineOption{RpcScript: rpcScript},
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	iso := v8NewIsolate()
	if iso == nil {
		return nil, fmt.Errorf("failed to create v8 isolate")
	}
	e.Iso = iso

	ctx := v8NewContext(iso)
	if ctx == nil {
		iso.Dispose()
		e.Iso = nil
		return nil, fmt.Errorf("failed to create v8 context")
	}
	e.Ctx = ctx

	return e, nil
}

// Load runs the transpiler scripts in the engine context, in order.
func (e *Engine) Load(scripts []*jscompiler.JsScript) error {
	for _, script := range scripts {
		if _, err := e.Ctx.RunScript(script.Content, script.FileName); err != nil {
			return fmt.Errorf("failed to execute script %s: %w", script.FileName, err)
		}
	}
	return nil
}

// Execute calls the requested service through the RPC script and reads the
// settled promise.
func (e *Engine) Execute(req *jscompiler.JsRequest) (*jscompiler.JsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	rpcVal, err := e.Ctx.RunScript(e.Option.RpcScript, "engine_rpc.js")
	if err != nil {
		return nil, fmt.Errorf("failed to load rpc script: %w", err)
	}
	if !rpcVal.IsFunction() {
		return nil, fmt.Errorf("rpc script did not return a function")
	}

	// NewValue only takes primitives, so structs cross as a JSON string
	// that the RPC script parses.
	jsReq, err := v8NewValue(e.Iso, req)
	if err != nil {
		jsonReq, jsonErr := json.Marshal(req)
		if jsonErr != nil {
			return nil, fmt.Errorf("failed to json marshal request: %w", jsonErr)
		}
		jsReq, err = v8NewValue(e.Iso, string(jsonReq))
		if err != nil {
			return nil, fmt.Errorf("failed to create v8 value from json string: %w", err)
		}
	}

	rpcFn, _ := rpcVal.AsFunction()
	promiseVal, err := rpcFn.Call(e.Ctx.Global(), jsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call rpc function: %w", err)
	}
	promise, err := promiseVal.AsPromise()
	if err != nil {
		return nil, fmt.Errorf("rpc call did not return a promise: %w", err)
	}

	if promise.State() == v8go.Pending {
		e.Ctx.PerformMicrotaskCheckpoint()
	}
	switch promise.State() {
	case v8go.Rejected:
		return nil, fmt.Errorf("js execution error: %s", promise.Result().String())
	case v8go.Pending:
		return nil, fmt.Errorf("rpc promise did not settle")
	}

	// MarshalJSON yields nothing for circular values
	jsonBytes, _ := promise.Result().MarshalJSON()
	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("failed to export result: result is not serializable")
	}

	res := &jscompiler.JsResponse{}
	if err := jsonUnmarshal(jsonBytes, res); err != nil {
		return nil, fmt.Errorf("failed to export result: %w", err)
	}
	return res, nil
}

// Close releases the context and isolate. It is safe to call twice.
func (e *Engine) Close() error {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Iso != nil {
		e.Iso.Dispose()
		e.Iso = nil
	}
	return nil
}
