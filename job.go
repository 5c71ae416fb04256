// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"path/filepath"
	"strings"
)

// Job compiles one source file to one destination.
type Job struct {
	Src     []string // Resolved sources; must hold exactly one file
	Dest    string   // Output path
	Options Options  // Task options merged with per-file options
}

// ModuleName derives a module identifier from the destination: its
// directory and base name without extension.
func (j *Job) ModuleName() string {
	base := filepath.Base(j.Dest)
	return filepath.Dir(j.Dest) + string(filepath.Separator) + strings.TrimSuffix(base, filepath.Ext(base))
}

// SourceMapName is the file name of the map written next to Dest.
func (j *Job) SourceMapName() string {
	return filepath.Base(j.Dest) + ".map"
}

// label is used in log lines and errors.
func (j *Job) label() string {
	if len(j.Src) == 1 {
		return j.Src[0]
	}
	return "[" + strings.Join(j.Src, ", ") + "]"
}
