// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

// Option keys understood by the orchestrator. Everything else is passed
// through to the transpiler untouched.
const (
	OptIncludeRuntime = "includeRuntime" // Prepend the runtime preamble to the output
	OptModuleNames    = "moduleNames"    // Derive moduleName from the destination path
	OptSourceMaps     = "sourceMaps"     // Emit a source map next to the output
	OptSpawn          = "spawn"          // Compile in a worker subprocess

	OptFilename   = "filename"   // Set by the orchestrator to the source path
	OptModuleName = "moduleName" // Set by the orchestrator when moduleNames is on
)

// orchestratorOnly lists keys the transpiler must never see.
var orchestratorOnly = []string{OptIncludeRuntime, OptModuleNames, OptSpawn}

// Options is the merged task and per-file configuration of a compilation.
type Options map[string]any

// Bool reports whether key holds a true boolean.
func (o Options) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// StringValue returns the string stored under key, or "".
func (o Options) StringValue(key string) string {
	v, _ := o[key].(string)
	return v
}

// Clone returns a shallow copy that is safe to mutate.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge returns a copy of o overlaid with other.
func (o Options) Merge(other Options) Options {
	out := o.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// TranspilerOptions returns a copy without the orchestrator-only keys.
func (o Options) TranspilerOptions() Options {
	out := o.Clone()
	for _, key := range orchestratorOnly {
		delete(out, key)
	}
	return out
}
