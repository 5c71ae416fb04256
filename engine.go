// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

// JsRequest represents a call into a global JavaScript service function.
type JsRequest struct {
	Id      string        `json:"id"`      // Unique identifier for the request
	Service string        `json:"service"` // Global function name to call
	Args    []interface{} `json:"args"`    // Arguments to pass to the function
}

// JsResponse represents the result of a JavaScript service call.
type JsResponse struct {
	Id     string      `json:"id"`     // Request ID that this response corresponds to
	Result interface{} `json:"result"` // Value returned by the service function
}

// JsScript is a script evaluated into every engine before it serves calls,
// typically the transpiler bundle followed by a small compile shim.
type JsScript struct {
	Content  string // Script content
	FileName string // Script file name for diagnostics
}

// JsEngine hosts a JavaScript runtime with the transpiler loaded.
// An engine is only ever used from the thread that created it.
type JsEngine interface {
	// Load evaluates the given scripts in order.
	Load(scripts []*JsScript) error

	// Execute calls the requested service and returns its result.
	Execute(req *JsRequest) (*JsResponse, error)

	// Close releases the runtime.
	Close() error
}

// JsEngineFactory creates a new engine instance.
type JsEngineFactory func() (JsEngine, error)
