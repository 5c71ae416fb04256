// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"fmt"
	"os"
	"sync"
)

// runtimeLoader reads the runtime preamble file at most once.
type runtimeLoader struct {
	path string

	once sync.Once
	data []byte
	err  error
}

func (l *runtimeLoader) load() ([]byte, error) {
	l.once.Do(func() {
		if l.path == "" {
			l.err = fmt.Errorf("%s is set but no runtime file is configured", OptIncludeRuntime)
			return
		}
		data, err := os.ReadFile(l.path)
		if err != nil {
			l.err = fmt.Errorf("read runtime: %w", err)
			return
		}
		l.data = data
	})
	return l.data, l.err
}
