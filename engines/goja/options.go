// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// EngineOption holds configuration for a Goja engine instance.
type EngineOption struct {
	MaxCallStackSize int
	EnableConsole    bool
	EnableRequire    bool
	FieldNameMapper  goja.FieldNameMapper
}

// Option configures a Goja engine. Options run after the event loop has
// started and block until applied on it.
type Option func(*Engine) error

// onLoop runs fn on the engine's event loop and waits for it.
func (e *Engine) onLoop(fn func(vm *goja.Runtime)) {
	done := make(chan struct{})
	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		fn(vm)
		close(done)
	})
	<-done
}

// WithMaxCallStackSize sets the maximum call stack size for the runtime.
// A value of 0 or less means no limit.
func WithMaxCallStackSize(size int) Option {
	return func(e *Engine) error {
		e.Option.MaxCallStackSize = size
		e.onLoop(func(vm *goja.Runtime) {
			vm.SetMaxCallStackSize(size)
		})
		return nil
	}
}

// WithEnableConsole exposes console.log and friends to the transpiler.
func WithEnableConsole() Option {
	return func(e *Engine) error {
		e.Option.EnableConsole = true
		e.onLoop(func(vm *goja.Runtime) {
			console.Enable(vm)
		})
		return nil
	}
}

// WithRequire enables require() for transpiler bundles shipped as CommonJS.
func WithRequire() Option {
	return func(e *Engine) error {
		e.Option.EnableRequire = true
		e.onLoop(func(vm *goja.Runtime) {
			new(require.Registry).Enable(vm)
		})
		return nil
	}
}

// WithFieldNameMapper sets how Go struct fields appear in JavaScript.
func WithFieldNameMapper(mapper goja.FieldNameMapper) Option {
	return func(e *Engine) error {
		if mapper == nil {
			return nil
		}
		e.Option.FieldNameMapper = mapper
		e.onLoop(func(vm *goja.Runtime) {
			vm.SetFieldNameMapper(mapper)
		})
		return nil
	}
}
