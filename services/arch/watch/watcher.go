// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch keeps an imported universe in sync with the source tree.
// It watches a project root for Java file changes and triggers a debounced
// rebuild, so bursts of saves collapse into a single re-import.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the default quiet period before a rebuild fires.
const DefaultDebounce = 500 * time.Millisecond

// skippedDirs are directory names never watched.
var skippedDirs = map[string]struct{}{
	".git": {}, ".idea": {}, "target": {}, "build": {}, "out": {}, "node_modules": {},
}

// RebuildFunc is invoked after the debounce window with the project root
// whose sources changed.
type RebuildFunc func(ctx context.Context, projectRoot string) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period between the last change and the
// rebuild.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher triggers debounced rebuilds when Java sources under a project
// root change.
//
// Thread Safety: Run must be called at most once; Close may be called from
// any goroutine.
type Watcher struct {
	root     string
	rebuild  RebuildFunc
	debounce time.Duration
	logger   *slog.Logger

	fsw *fsnotify.Watcher
}

// New creates a Watcher over the given project root.
//
// Description:
//
//	Registers the root and all its non-skipped subdirectories with
//	fsnotify. Directories created while running are added on the fly.
//
// Inputs:
//
//	root - Project root directory to watch.
//	rebuild - Callback fired after the debounce window. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Watcher - Ready to Run.
//	error - Root walk or fsnotify setup failure.
func New(root string, rebuild RebuildFunc, opts ...Option) (*Watcher, error) {
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild callback is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		rebuild:  rebuild,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes file events until the context is canceled or the watcher
// is closed. When triggered it fires the rebuild callback once per quiet
// period; rebuild failures are logged, not fatal.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			// New directories need to be registered before their
			// contents produce events.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							"path", event.Name, "error", err)
					}
					continue
				}
			}
			w.logger.Debug("source change", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.rebuild(ctx, w.root); err != nil {
				w.logger.Error("rebuild failed", "root", w.root, "error", err)
			} else {
				w.logger.Info("rebuild complete", "root", w.root)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant reports whether an event should contribute to a rebuild:
// directory creations (to extend the watch set) and Java file changes.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return true
		}
	}
	if !strings.HasSuffix(event.Name, ".java") {
		return false
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

// addRecursive registers dir and every non-skipped subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir {
			if _, skip := skippedDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %q: %w", path, err)
		}
		return nil
	})
}
