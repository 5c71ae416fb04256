// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult_JSONTuple(t *testing.T) {
	data, err := json.Marshal(Result{Code: "var a;", SourceMap: validMap})
	require.NoError(t, err)
	require.JSONEq(t, `["var a;", `+string(mustQuote(validMap))+`]`, string(data))

	var res Result
	require.NoError(t, json.Unmarshal([]byte(`["var b;"]`), &res))
	require.Equal(t, Result{Code: "var b;"}, res)

	require.Error(t, json.Unmarshal([]byte(`[]`), &res))
	require.Error(t, json.Unmarshal([]byte(`["a","b","c"]`), &res))
	require.Error(t, json.Unmarshal([]byte(`{"code":"a"}`), &res))
}

func TestResultFromValue(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    *Result
		wantErr string
	}{
		{name: "tuple", value: []any{"a;", "{}"}, want: &Result{Code: "a;", SourceMap: "{}"}},
		{name: "code only", value: []any{"a;"}, want: &Result{Code: "a;"}},
		{name: "bare string", value: "a;", want: &Result{Code: "a;"}},
		{name: "null map", value: []any{"a;", nil}, want: &Result{Code: "a;"}},
		{
			name:  "object map",
			value: map[string]any{"code": "a;", "map": map[string]any{"version": 3}},
			want:  &Result{Code: "a;", SourceMap: `{"version":3}`},
		},
		{name: "empty tuple", value: []any{}, wantErr: "compile returned 0 elements"},
		{name: "code not string", value: []any{1.0}, wantErr: "want string"},
		{name: "object without code", value: map[string]any{"map": ""}, wantErr: "without a string code"},
		{name: "number", value: 1.0, wantErr: "unsupported type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resultFromValue(tt.value)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func mustQuote(s string) []byte {
	data, _ := json.Marshal(s)
	return data
}
