// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	jscompiler "github.com/buke/js-compiler"
)

// runBuild runs every job of a task file. It exits 0 only if all of them
// compiled.
func runBuild(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "jsc.yaml", "task file")
	spawn := fs.Bool("spawn", false, "compile in a worker process regardless of the task file")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(stderr, *verbose)

	cfg, err := jscompiler.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load task file", "error", err)
		return 1
	}
	if *spawn {
		cfg.Options[jscompiler.OptSpawn] = true
	}

	jobs, err := cfg.Jobs()
	if err != nil {
		logger.Error("Failed to resolve files", "error", err)
		return 1
	}
	logger.Debug("Task loaded",
		"config", *configPath,
		"engine", cfg.Engine,
		"jobs", len(jobs),
		"spawn", cfg.Spawn())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []jscompiler.OrchestratorOption{
		jscompiler.WithRuntimeFile(cfg.Runtime),
		jscompiler.WithConcurrency(cfg.Concurrency),
		jscompiler.WithOrchestratorLogger(logger),
	}

	if cfg.Spawn() {
		server, err := startWorker(ctx, cfg, *verbose, logger)
		if err != nil {
			logger.Error("Failed to start compile worker", "error", err)
			return 1
		}
		defer server.Stop()
		opts = append(opts, jscompiler.WithServer(server))
	} else {
		compiler, err := newCompiler(cfg.Engine, cfg.Service, cfg.Transpiler, logger)
		if err != nil {
			logger.Error("Failed to create compiler", "error", err)
			return 1
		}
		defer compiler.Close()
		opts = append(opts, jscompiler.WithCompileFunc(compiler.Compile))
	}

	orchestrator, err := jscompiler.NewOrchestrator(opts...)
	if err != nil {
		logger.Error("Failed to create orchestrator", "error", err)
		return 1
	}

	if err := orchestrator.Run(ctx, jobs); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Build interrupted")
		}
		return 1
	}
	return 0
}

// startWorker re-executes this binary as a compile worker.
func startWorker(ctx context.Context, cfg *jscompiler.TaskConfig, verbose bool, logger *slog.Logger) (*jscompiler.Server, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if _, err := engineFactory(cfg.Engine); err != nil {
		return nil, err
	}

	args := workerArgs(cfg, verbose)
	logger.Debug("Starting compile worker", "command", exe, "args", strings.Join(args, " "))
	return jscompiler.NewServer(ctx,
		jscompiler.WithWorkerCommand(exe, args...),
		jscompiler.WithWorkerStderr(os.Stderr),
		jscompiler.WithFailPendingOnExit(true),
		jscompiler.WithServerLogger(logger),
	)
}

func workerArgs(cfg *jscompiler.TaskConfig, verbose bool) []string {
	args := []string{"worker", "-engine", cfg.Engine, "-service", cfg.Service}
	for _, script := range cfg.Transpiler {
		args = append(args, "-transpiler", script)
	}
	args = append(args, "-v="+strconv.FormatBool(verbose))
	return args
}
