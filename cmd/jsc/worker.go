// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	jscompiler "github.com/buke/js-compiler"
)

// runWorker serves compile requests on stdin/stdout until the build
// process disconnects. Logs go to stderr, which the build forwards.
func runWorker(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	engine := fs.String("engine", jscompiler.DefaultEngine, "JavaScript engine: "+strings.Join(engineNames(), ", "))
	service := fs.String("service", jscompiler.DefaultService, "global compile function name")
	verbose := fs.Bool("v", false, "debug logging")
	var transpiler stringList
	fs.Var(&transpiler, "transpiler", "transpiler script, repeatable, loaded in order")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(stderr, *verbose).With("component", "worker", "pid", os.Getpid())

	compiler, err := newCompiler(*engine, *service, transpiler, logger)
	if err != nil {
		logger.Error("Failed to create compiler", "error", err)
		return 1
	}
	defer compiler.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("Compile worker ready", "engine", *engine, "transpiler", transpiler.String())
	if err := jscompiler.Serve(ctx, stdin, stdout, compiler.Compile, logger); err != nil {
		logger.Error("Compile worker failed", "error", err)
		return 1
	}
	return 0
}
