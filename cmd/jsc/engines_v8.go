//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	jscompiler "github.com/buke/js-compiler"
	v8engine "github.com/buke/js-compiler/engines/v8go"
)

func init() {
	engines["v8"] = func() jscompiler.JsEngineFactory {
		return v8engine.NewFactory()
	}
}
