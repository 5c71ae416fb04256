// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEngine is used when a task file does not name one.
const DefaultEngine = "goja"

// TaskConfig is the YAML task file.
type TaskConfig struct {
	Engine      string        `yaml:"engine"`      // goja, quickjs or v8
	Transpiler  []string      `yaml:"transpiler"`  // Scripts loaded into each engine, in order
	Runtime     string        `yaml:"runtime"`     // Preamble used by includeRuntime
	Service     string        `yaml:"service"`     // Global compile function name
	Concurrency int           `yaml:"concurrency"` // Jobs in flight, 0 = unlimited
	Options     Options       `yaml:"options"`     // Task-level options
	Files       []FileMapping `yaml:"files"`       // Source to destination mappings
}

// FileMapping maps source patterns to a destination. With Expand set,
// every file matched under Cwd becomes its own job, placed under Dest at
// the same relative path with its extension replaced by Ext.
type FileMapping struct {
	Src     []string `yaml:"src"`
	Dest    string   `yaml:"dest"`
	Options Options  `yaml:"options"`
	Expand  bool     `yaml:"expand"`
	Cwd     string   `yaml:"cwd"`
	Ext     string   `yaml:"ext"`
}

// ParseConfig decodes a YAML task file and fills in defaults.
func ParseConfig(data []byte) (*TaskConfig, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse task config: %w", err)
	}

	if config.Engine == "" {
		config.Engine = DefaultEngine
	}
	if config.Service == "" {
		config.Service = DefaultService
	}
	if config.Options == nil {
		config.Options = Options{}
	}
	if _, ok := config.Options[OptModuleNames]; !ok {
		config.Options[OptModuleNames] = true
	}
	for i, mapping := range config.Files {
		if mapping.Dest == "" {
			return nil, fmt.Errorf("files[%d]: dest is required", i)
		}
	}
	return &config, nil
}

// LoadConfig reads and parses a task file.
func LoadConfig(path string) (*TaskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task config: %w", err)
	}
	return ParseConfig(data)
}

// Spawn reports whether compilation should run in a worker process.
func (c *TaskConfig) Spawn() bool {
	return c.Options.Bool(OptSpawn)
}

// Jobs resolves every mapping into jobs. A plain mapping becomes one job
// holding all of its matches, so a pattern that matches several files
// yields a job that fails validation rather than silently picking one.
func (c *TaskConfig) Jobs() ([]*Job, error) {
	var jobs []*Job
	for i, mapping := range c.Files {
		options := c.Options.Merge(mapping.Options)

		if !mapping.Expand {
			matches, err := globFiles("", mapping.Src)
			if err != nil {
				return nil, fmt.Errorf("files[%d]: %w", i, err)
			}
			jobs = append(jobs, &Job{Src: matches, Dest: mapping.Dest, Options: options})
			continue
		}

		matches, err := globFiles(mapping.Cwd, mapping.Src)
		if err != nil {
			return nil, fmt.Errorf("files[%d]: %w", i, err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(filepath.Clean(mapping.Cwd), match)
			if err != nil {
				return nil, fmt.Errorf("files[%d]: %w", i, err)
			}
			if mapping.Ext != "" {
				rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + mapping.Ext
			}
			jobs = append(jobs, &Job{
				Src:     []string{match},
				Dest:    filepath.Join(mapping.Dest, rel),
				Options: options,
			})
		}
	}
	return jobs, nil
}

// globFiles expands patterns relative to cwd, keeping regular files only,
// in pattern order and without duplicates.
func globFiles(cwd string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(cwd, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			info, err := os.Stat(match)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[match] = true
			files = append(files, match)
		}
	}
	return files, nil
}

// LoadScripts reads transpiler scripts from disk.
func LoadScripts(paths []string) ([]*JsScript, error) {
	scripts := make([]*JsScript, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read transpiler script: %w", err)
		}
		scripts = append(scripts, &JsScript{Content: string(content), FileName: path})
	}
	return scripts, nil
}
