// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import "context"

// taskResult represents the result of task execution.
type taskResult struct {
	response *JsResponse // Service response (nil if error occurred)
	err      error       // Error that occurred during execution (nil if successful)
}

// task is one service call waiting for an engine thread.
type task struct {
	ctx        context.Context  // Caller context, checked before the engine is entered
	request    *JsRequest       // Service call to execute
	resultChan chan *taskResult // Receives exactly one result
}

// newTask creates a new task instance for the given request.
func newTask(ctx context.Context, request *JsRequest) *task {
	return &task{
		ctx:        ctx,
		request:    request,
		resultChan: make(chan *taskResult, 1), // Buffered so a thread never blocks on an abandoned caller
	}
}
