// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command archgraph is the architecture graph toolkit.
//
// It scans Java source trees into a class universe — classes, members,
// hierarchy and access-level dependencies — and serves queries over it.
//
// Usage:
//
//	archgraph import /path/to/project
//	archgraph deps /path/to/project --origin com.acme.Order
//	archgraph classes /path/to/project --under com.acme
//	archgraph serve --port 8080 --watch /path/to/project
//	archgraph snapshots list
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "archgraph",
		Short: "Architecture graph toolkit for Java projects",
		Long: "archgraph scans Java source trees into a class universe " +
			"(classes, members, hierarchy, access-level dependencies) and " +
			"serves queries over it via CLI or HTTP API.",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newImportCommand())
	root.AddCommand(newDepsCommand())
	root.AddCommand(newClassesCommand())
	root.AddCommand(newSnapshotsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultDataDir returns the snapshot database directory, honoring
// ARCHGRAPH_DATA_DIR.
func defaultDataDir() string {
	if dir := os.Getenv("ARCHGRAPH_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".archgraph"
	}
	return filepath.Join(home, ".archgraph", "snapshots")
}

// openSnapshotDB opens the BadgerDB holding snapshots. The caller owns the
// returned handle.
func openSnapshotDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database at %q: %w", dir, err)
	}
	return db, nil
}

// setupLogging configures the process-wide slog handler.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
