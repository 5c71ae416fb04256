// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// CompileRequest is sent from the server to the worker.
type CompileRequest struct {
	ID      int64   `json:"id"`
	Content string  `json:"content"`
	Options Options `json:"options"`
}

// CompileReply is sent from the worker back to the server. Exactly one of
// Result and Error is normally set; Error is an untyped JSON payload.
type CompileReply struct {
	ID     int64           `json:"id"`
	Result *Result         `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	failure error // Set locally when the server rejects a call, never sent
}

// transport frames messages as one JSON document per line. Writes are
// serialized; reads must come from a single goroutine.
type transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu sync.Mutex
}

func newTransport(r io.Reader, w io.Writer, c io.Closer) *transport {
	return &transport{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
		closer: c,
	}
}

// encodeMessage frames msg as a single line.
func encodeMessage(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return append(data, '\n'), nil
}

// send writes msg followed by a newline.
func (t *transport) send(msg any) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	return t.write(data)
}

// write sends one already framed message.
func (t *transport) write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// receive reads the next non-empty line. It returns io.EOF when the peer
// has closed its end.
func (t *transport) receive() ([]byte, error) {
	for {
		line, err := t.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			// A final unterminated line is still a message
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// close releases the underlying writer, signalling EOF to the peer.
func (t *transport) close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
