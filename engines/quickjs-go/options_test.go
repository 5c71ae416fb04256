// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEngine_Defaults(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, int64(-1), engine.Option.GCThreshold)
	require.Equal(t, 1, engine.Option.Strip)
	require.Equal(t, rpcScript, engine.RpcScript)
}

func TestRuntimeLimits(t *testing.T) {
	engine, err := newEngine(
		WithMemoryLimit(64<<20),
		WithMaxStackSize(1<<20),
		WithTimeout(30),
		WithGCThreshold(1024),
	)
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, uint64(64<<20), engine.Option.MemoryLimit)
	require.Equal(t, uint64(1<<20), engine.Option.MaxStackSize)
	require.Equal(t, uint64(30), engine.Option.Timeout)
	require.Equal(t, int64(1024), engine.Option.GCThreshold)

	// Zero values restore the unlimited defaults
	require.NoError(t, WithMemoryLimit(0)(engine))
	require.NoError(t, WithTimeout(0)(engine))
	require.NoError(t, WithMaxStackSize(0)(engine))
	require.Zero(t, engine.Option.MemoryLimit)
	require.Zero(t, engine.Option.Timeout)
	require.Zero(t, engine.Option.MaxStackSize)
}

func TestWithGCThreshold_Invalid(t *testing.T) {
	_, err := newEngine(WithGCThreshold(-2))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid GC threshold: -2")
}

func TestRuntimeFlags(t *testing.T) {
	engine, err := newEngine(WithCanBlock(true), WithEnableModuleImport(true))
	require.NoError(t, err)
	defer engine.Close()

	require.True(t, engine.Option.CanBlock)
	require.True(t, engine.Option.EnableModuleImport)

	require.NoError(t, WithCanBlock(false)(engine))
	require.NoError(t, WithEnableModuleImport(false)(engine))
	require.False(t, engine.Option.CanBlock)
	require.False(t, engine.Option.EnableModuleImport)
}

func TestWithStrip(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	for _, level := range []int{0, 1, 2} {
		require.NoError(t, WithStrip(level)(engine))
		require.Equal(t, level, engine.Option.Strip)
	}
	for _, level := range []int{-1, 3} {
		if err := WithStrip(level)(engine); err == nil {
			t.Fatalf("strip level %d should be rejected", level)
		}
	}
}

func TestWithRpcScript(t *testing.T) {
	engine, err := newEngine(WithRpcScript("(req) => Promise.resolve(req)"))
	require.NoError(t, err)
	defer engine.Close()
	require.Equal(t, "(req) => Promise.resolve(req)", engine.RpcScript)

	_, err = newEngine(WithRpcScript(""))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc script cannot be empty")
}
