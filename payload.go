// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// encodeErrorPayload renders err as the error field of a reply:
// {"message": "...", "filename": "..."}.
func encodeErrorPayload(err error, filename string) json.RawMessage {
	message := err.Error()
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		if compileErr.Diagnostic != "" {
			message = compileErr.Diagnostic
		}
		if compileErr.Filename != "" {
			filename = compileErr.Filename
		}
	}

	payload, setErr := sjson.SetBytes([]byte(`{}`), "message", message)
	if setErr != nil {
		return json.RawMessage(strconv.Quote(message))
	}
	if filename != "" {
		if withFile, setErr := sjson.SetBytes(payload, "filename", filename); setErr == nil {
			payload = withFile
		}
	}
	return payload
}

// decodeErrorPayload turns a reply's error field into a *CompileError.
// Workers may send a bare string, an object with a message field, or any
// other JSON value, which is kept verbatim as the diagnostic.
func decodeErrorPayload(raw json.RawMessage, filename string) *CompileError {
	value := gjson.ParseBytes(raw)
	switch {
	case value.Type == gjson.String:
		return &CompileError{Filename: filename, Diagnostic: value.String()}
	case value.IsObject():
		if f := value.Get("filename"); f.Exists() && f.String() != "" {
			filename = f.String()
		}
		if msg := value.Get("message"); msg.Exists() {
			return &CompileError{Filename: filename, Diagnostic: msg.String()}
		}
	}
	return &CompileError{Filename: filename, Diagnostic: value.Raw}
}

// hasErrorPayload reports whether raw carries an error. Falsy JSON values
// (null, false, "" and 0) count as absent.
func hasErrorPayload(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	value := gjson.ParseBytes(raw)
	switch value.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return value.Str != ""
	case gjson.Number:
		return value.Num != 0
	}
	return true
}
