// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"encoding/json"
	"fmt"
)

// Result is the output of one compilation.
type Result struct {
	Code      string // Compiled ES5 source
	SourceMap string // Raw source map JSON, empty when source maps are off
}

// MarshalJSON encodes the result as the [code, map] tuple used on the wire.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Code, r.SourceMap})
}

// UnmarshalJSON decodes a [code] or [code, map] tuple.
func (r *Result) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode result tuple: %w", err)
	}
	if len(parts) == 0 || len(parts) > 2 {
		return fmt.Errorf("result tuple has %d elements", len(parts))
	}
	r.Code = parts[0]
	r.SourceMap = ""
	if len(parts) == 2 {
		r.SourceMap = parts[1]
	}
	return nil
}

// resultFromValue converts a value returned by the transpiler service.
// Accepted shapes are [code, map], {code, map} and a bare code string.
func resultFromValue(v any) (*Result, error) {
	switch value := v.(type) {
	case string:
		return &Result{Code: value}, nil
	case []any:
		if len(value) == 0 || len(value) > 2 {
			return nil, fmt.Errorf("compile returned %d elements, want 1 or 2", len(value))
		}
		code, ok := value[0].(string)
		if !ok {
			return nil, fmt.Errorf("compile returned %T for code, want string", value[0])
		}
		res := &Result{Code: code}
		if len(value) == 2 {
			sourceMap, err := sourceMapText(value[1])
			if err != nil {
				return nil, err
			}
			res.SourceMap = sourceMap
		}
		return res, nil
	case map[string]any:
		code, ok := value["code"].(string)
		if !ok {
			return nil, fmt.Errorf("compile returned an object without a string code field")
		}
		sourceMap, err := sourceMapText(value["map"])
		if err != nil {
			return nil, err
		}
		return &Result{Code: code, SourceMap: sourceMap}, nil
	default:
		return nil, fmt.Errorf("compile returned unsupported type %T", v)
	}
}

// sourceMapText accepts either serialized JSON or a map object.
func sourceMapText(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encode source map: %w", err)
		}
		return string(data), nil
	}
}
