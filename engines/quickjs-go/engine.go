// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	_ "embed"
	"fmt"

	jscompiler "github.com/buke/js-compiler"
	"github.com/buke/quickjs-go"
)

//go:embed engine_rpc.js
var rpcScript string

// Engine implements jscompiler.JsEngine on top of QuickJS.
type Engine struct {
	Runtime   *quickjs.Runtime // QuickJS runtime instance
	Ctx       *quickjs.Context // QuickJS context instance
	Option    *EngineOption    // Engine configuration options
	RpcScript string           // RPC entry point evaluated on every call
}

// Option configures a QuickJS engine after its runtime has been created.
type Option func(*Engine) error

// NewFactory returns a jscompiler.JsEngineFactory for QuickJS engines
// configured with opts.
func NewFactory(opts ...Option) jscompiler.JsEngineFactory {
	return func() (jscompiler.JsEngine, error) {
		return newEngine(opts...)
	}
}

func newEngine(opts ...Option) (*Engine, error) {
	rt := quickjs.NewRuntime()
	engine := &Engine{
		Runtime: rt,
		Ctx:     rt.NewContext(),
		Option: &EngineOption{
			GCThreshold: -1,
			Strip:       1,
		},
		RpcScript: rpcScript,
	}

	for _, opt := range opts {
		if err := opt(engine); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return engine, nil
}

// Load evaluates the transpiler scripts in order, awaiting any top-level
// promise a script leaves behind.
func (e *Engine) Load(scripts []*jscompiler.JsScript) error {
	for _, script := range scripts {
		result := e.Ctx.Eval(script.Content, quickjs.EvalFileName(script.FileName), quickjs.EvalAwait(true))
		failed := result.IsException()
		result.Free()
		if failed {
			return fmt.Errorf("failed to execute script %s: %w", script.FileName, e.Ctx.Exception())
		}
	}
	return nil
}

// Execute calls the requested service through the RPC script. The returned
// promise is awaited on the calling thread.
func (e *Engine) Execute(req *jscompiler.JsRequest) (*jscompiler.JsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	fn := e.Ctx.Eval(e.RpcScript, quickjs.EvalFileName("engine_rpc.js"))
	defer fn.Free()
	if fn.IsException() {
		return nil, fmt.Errorf("failed to load rpc script: %w", e.Ctx.Exception())
	}
	if !fn.IsFunction() {
		return nil, fmt.Errorf("rpc script did not return a function")
	}

	jsReq, err := e.Ctx.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	defer jsReq.Free()

	jsResp := fn.Execute(e.Ctx.Null(), jsReq).Await()
	defer jsResp.Free()
	if jsResp.IsException() {
		return nil, fmt.Errorf("js execution error: %w", e.Ctx.Exception())
	}

	res := &jscompiler.JsResponse{}
	if err := e.Ctx.Unmarshal(jsResp, res); err != nil {
		return nil, fmt.Errorf("failed to export result: %w", err)
	}
	return res, nil
}

// Close releases the context and runtime. It is safe to call twice.
func (e *Engine) Close() error {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Runtime != nil {
		e.Runtime.Close()
		e.Runtime = nil
	}
	return nil
}
