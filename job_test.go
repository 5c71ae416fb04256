// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJob_Names(t *testing.T) {
	job := &Job{Src: []string{"src/a.js"}, Dest: filepath.Join("build", "js", "a.js")}
	require.Equal(t, filepath.Join("build", "js")+string(filepath.Separator)+"a", job.ModuleName())
	require.Equal(t, "a.js.map", job.SourceMapName())
	require.Equal(t, "src/a.js", job.label())

	bare := &Job{Dest: "main"}
	require.Equal(t, "."+string(filepath.Separator)+"main", bare.ModuleName())
	require.Equal(t, "main.map", bare.SourceMapName())

	multi := &Job{Src: []string{"a.js", "b.js"}}
	require.Equal(t, "[a.js, b.js]", multi.label())
	require.Equal(t, "[]", (&Job{}).label())
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Src: []string{"a.js", "b.js"}, Dest: "out.js"}
	require.Equal(t, `source MUST be a single file, got 2 (a.js, b.js) for "out.js"`, err.Error())
}
