// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler_test

import (
	"context"
	"fmt"

	jscompiler "github.com/buke/js-compiler"
	gojaengine "github.com/buke/js-compiler/engines/goja"
)

func Example() {
	// A stand-in transpiler: a real task loads the transpiler bundle first
	// and a shim defining compile(content, options) after it.
	shim := &jscompiler.JsScript{
		FileName: "compile-shim.js",
		Content: `function compile(content, options) {
			return ['/* ' + options.moduleName + ' */ ' + content.replace(/\blet\b/g, 'var'), ''];
		}`,
	}

	compiler, err := jscompiler.NewCompiler(
		jscompiler.WithEngine(gojaengine.NewFactory()),
		jscompiler.WithTranspilerScripts(shim),
		jscompiler.WithCompilerLogger(nil), // Use nil for no logging
	)
	if err != nil {
		fmt.Printf("Failed to create compiler: %v\n", err)
		return
	}
	defer compiler.Close()

	res, err := compiler.Compile(context.Background(), "let answer = 42;", jscompiler.Options{
		"filename":   "src/answer.js",
		"moduleName": "build/answer",
	})
	if err != nil {
		fmt.Printf("Compile error: %v\n", err)
		return
	}
	fmt.Println(res.Code)

	// Output:
	// /* build/answer */ var answer = 42;
}
