//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	"fmt"
)

// EngineOption holds V8-specific configuration.
type EngineOption struct {
	RpcScript string // Evaluated on every call to obtain the RPC entry point
}

// Option configures a V8 engine before its isolate is created.
type Option func(*Engine) error

// WithRpcScript replaces the RPC entry point. The script must evaluate to
// a function taking the request and returning a promise of the response.
func WithRpcScript(script string) Option {
	return func(e *Engine) error {
		if script == "" {
			return fmt.Errorf("rpc script cannot be empty")
		}
		e.Option.RpcScript = script
		return nil
	}
}
