// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"sort"

	jscompiler "github.com/buke/js-compiler"
	gojaengine "github.com/buke/js-compiler/engines/goja"
	quickjsengine "github.com/buke/js-compiler/engines/quickjs-go"
)

// engines maps the task file's engine names to factories.
var engines = map[string]func() jscompiler.JsEngineFactory{
	"goja": func() jscompiler.JsEngineFactory {
		return gojaengine.NewFactory(gojaengine.WithRequire())
	},
	"quickjs": func() jscompiler.JsEngineFactory {
		return quickjsengine.NewFactory(
			quickjsengine.WithCanBlock(true),
			quickjsengine.WithEnableModuleImport(true),
		)
	},
}

func engineFactory(name string) (jscompiler.JsEngineFactory, error) {
	newFactory, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %v)", name, engineNames())
	}
	return newFactory(), nil
}

func engineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newCompiler builds an in-process compiler hosting the transpiler scripts
// in the named engine.
func newCompiler(engine, service string, transpiler []string, logger *slog.Logger) (*jscompiler.Compiler, error) {
	factory, err := engineFactory(engine)
	if err != nil {
		return nil, err
	}
	if len(transpiler) == 0 {
		return nil, fmt.Errorf("no transpiler scripts configured")
	}
	scripts, err := jscompiler.LoadScripts(transpiler)
	if err != nil {
		return nil, err
	}
	return jscompiler.NewCompiler(
		jscompiler.WithEngine(factory),
		jscompiler.WithTranspilerScripts(scripts...),
		jscompiler.WithService(service),
		jscompiler.WithCompilerLogger(logger),
	)
}
