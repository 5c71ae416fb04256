// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"context"
	"testing"

	jscompiler "github.com/buke/js-compiler"
	"github.com/stretchr/testify/require"
)

// TestIntegration_QuickJSCompiler compiles through a QuickJS engine pool.
func TestIntegration_QuickJSCompiler(t *testing.T) {
	shim := &jscompiler.JsScript{
		FileName: "arrow.js",
		Content: `
			function compile(content, options) {
				var code = content.replace(/\(\) => (\w+)/g, 'function () { return $1; }');
				return [code, options.sourceMaps
					? JSON.stringify({ version: 3, sources: [options.filename], names: [], mappings: 'AAAA' })
					: ''];
			}
		`,
	}

	compiler, err := jscompiler.NewCompiler(
		jscompiler.WithEngine(NewFactory(
			WithMemoryLimit(64<<20),
			WithCanBlock(true),
		)),
		jscompiler.WithTranspilerScripts(shim),
		jscompiler.WithExecutorOptions(jscompiler.WithPoolSize(2)),
	)
	require.NoError(t, err)
	defer compiler.Close()

	res, err := compiler.Compile(context.Background(), "var f = () => x;", jscompiler.Options{
		"filename":   "arrow.js",
		"sourceMaps": true,
	})
	require.NoError(t, err)
	require.Equal(t, "var f = function () { return x; };", res.Code)
	require.Contains(t, res.SourceMap, `"sources":["arrow.js"]`)

	res, err = compiler.Compile(context.Background(), "var g = () => y;", jscompiler.Options{"filename": "g.js"})
	require.NoError(t, err)
	require.Empty(t, res.SourceMap)
}
