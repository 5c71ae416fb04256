// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Command jsc compiles ES6+ sources to ES5 as described by a YAML task file.
//
//	jsc build -config jsc.yaml [-spawn] [-v]
//	jsc worker -engine goja -transpiler traceur.js [-transpiler shim.js] [-service compile]
//	jsc version
//
// With spawn enabled, build re-executes itself as "jsc worker" and sends
// every source to that single process over its stdin and stdout.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:], stderr)
	case "worker":
		return runWorker(args[1:], stdin, stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "jsc %s (%s)\n", version, commit)
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  jsc build -config jsc.yaml [-spawn] [-v]")
	fmt.Fprintln(w, "  jsc worker -engine NAME -transpiler FILE [-transpiler FILE]... [-service NAME] [-v]")
	fmt.Fprintln(w, "  jsc version")
}

// newLogger writes text logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
