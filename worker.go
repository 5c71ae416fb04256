// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Serve is the worker side of the compile channel. It reads requests from
// r, compiles each one concurrently and writes replies to w as they
// complete, so replies are not ordered. Serve returns nil once r reaches
// EOF (the server disconnected) and every in-flight compilation replied.
func Serve(ctx context.Context, r io.Reader, w io.Writer, compile CompileFunc, logger *slog.Logger) error {
	if compile == nil {
		return fmt.Errorf("compile function must be provided")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := newTransport(r, w, nil)
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := t.receive()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				logger.Debug("Compile server disconnected")
				return nil
			}
			return &ChannelError{Op: "receive", Err: err}

		case line := <-lines:
			var req CompileRequest
			if err := json.Unmarshal(line, &req); err != nil {
				logger.Error("Dropping malformed compile request", "error", err)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				reply := handleRequest(ctx, compile, &req, logger)
				if err := t.send(reply); err != nil {
					logger.Error("Failed to send compile reply", "id", req.ID, "error", err)
				}
			}()
		}
	}
}

// handleRequest compiles one request and builds its reply.
func handleRequest(ctx context.Context, compile CompileFunc, req *CompileRequest, logger *slog.Logger) (reply *CompileReply) {
	filename := req.Options.StringValue(OptFilename)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Compile panic", "id", req.ID, "filename", filename, "error", r)
			reply = &CompileReply{
				ID:    req.ID,
				Error: encodeErrorPayload(fmt.Errorf("panic: %v", r), filename),
			}
		}
	}()

	res, err := compile(ctx, req.Content, req.Options)
	if err != nil {
		logger.Debug("Compile failed", "id", req.ID, "filename", filename, "error", err)
		return &CompileReply{ID: req.ID, Error: encodeErrorPayload(err, filename)}
	}
	if res == nil {
		res = &Result{}
	}
	return &CompileReply{ID: req.ID, Result: res}
}
