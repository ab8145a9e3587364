// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package javasrc

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/archgraph/services/arch/model"
)

// defaultScanWorkers bounds concurrent file parses during a project scan.
const defaultScanWorkers = 8

// skippedDirs are directory names never descended into during a scan.
var skippedDirs = map[string]struct{}{
	".git": {}, ".idea": {}, "target": {}, "build": {}, "out": {}, "node_modules": {},
}

// ProjectResult is the outcome of scanning one source tree.
type ProjectResult struct {
	// Root is the scanned project root.
	Root string

	// Descriptors are the extracted class descriptors, sorted by name.
	Descriptors []model.ClassInput

	// FilesParsed is the number of Java files successfully parsed.
	FilesParsed int

	// FileErrors maps relative file paths to the problem that made them
	// unparseable. Files listed here contribute no descriptors.
	FileErrors map[string]string
}

// LoadProject scans a directory tree for Java sources and extracts class
// descriptors from every file.
//
// Description:
//
//	Walks root recursively, skipping hidden and build directories, and
//	parses each .java file concurrently. Per-file failures (unreadable,
//	oversized, invalid content) are collected in FileErrors rather than
//	aborting the scan; only walk failures and context cancellation are
//	fatal.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	root - Project root directory.
//	parser - Parser to use. Must not be nil.
//	logger - Structured logger. Falls back to slog.Default when nil.
//
// Outputs:
//
//	*ProjectResult - Extracted descriptors, sorted by class name.
//	error - Walk or context failure.
func LoadProject(ctx context.Context, root string, parser *Parser, logger *slog.Logger) (*ProjectResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root {
				if _, skip := skippedDirs[name]; skip || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(name, ".java") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking project root %q: %w", root, err)
	}

	result := &ProjectResult{
		Root:       root,
		FileErrors: make(map[string]string),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultScanWorkers)
	for _, path := range files {
		g.Go(func() error {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				mu.Lock()
				result.FileErrors[rel] = readErr.Error()
				mu.Unlock()
				return nil
			}
			parsed, parseErr := parser.Parse(gctx, content, rel)
			if parseErr != nil {
				if gctx.Err() != nil {
					return parseErr
				}
				mu.Lock()
				result.FileErrors[rel] = parseErr.Error()
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Descriptors = append(result.Descriptors, parsed.Classes...)
			result.FilesParsed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	sort.Slice(result.Descriptors, func(i, j int) bool {
		if result.Descriptors[i].Name != result.Descriptors[j].Name {
			return result.Descriptors[i].Name < result.Descriptors[j].Name
		}
		return result.Descriptors[i].ID < result.Descriptors[j].ID
	})

	logger.Info("project scan complete",
		"root", root,
		"files_parsed", result.FilesParsed,
		"file_errors", len(result.FileErrors),
		"classes", len(result.Descriptors))
	return result, nil
}
