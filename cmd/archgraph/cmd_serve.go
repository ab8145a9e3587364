// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/archgraph/services/arch"
	"github.com/AleutianAI/archgraph/services/arch/snapshot"
	"github.com/AleutianAI/archgraph/services/arch/watch"
)

// serve flags.
var (
	servePort    int
	serveDebug   bool
	serveDataDir string
	serveWatch   []string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the archgraph HTTP API server",
		Long: "Starts the /v1/arch API. With --watch, the given project " +
			"roots are imported at startup and re-imported automatically " +
			"when their Java sources change.",
		RunE: runServeCommand,
	}
	cmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")
	cmd.Flags().StringVar(&serveDataDir, "data-dir", defaultDataDir(), "Snapshot database directory")
	cmd.Flags().StringSliceVar(&serveWatch, "watch", nil, "Project roots to import and keep in sync")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	setupLogging(serveDebug)
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Trace context flows in from W3C TraceContext headers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := arch.DefaultServiceConfig()
	var snapDB *badger.DB
	db, err := openSnapshotDB(serveDataDir)
	if err != nil {
		slog.Warn("snapshot persistence disabled", "error", err)
	} else {
		store, storeErr := snapshot.NewStore(db, slog.Default())
		if storeErr != nil {
			slog.Warn("snapshot persistence disabled", "error", storeErr)
			_ = db.Close()
		} else {
			snapDB = db
			cfg.Snapshots = store
		}
	}
	svc := arch.NewService(cfg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("archgraph"))
	if serveDebug {
		router.Use(gin.Logger())
	}
	v1 := router.Group("/v1")
	arch.RegisterRoutes(v1, arch.NewHandlers(svc))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	for _, root := range serveWatch {
		if err := startWatchedImport(ctx, svc, root); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down archgraph server")
		shutdown(cancel, snapDB)
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", servePort)
	slog.Info("starting archgraph server", "address", addr, "watched_roots", len(serveWatch))
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// shutdown releases server-held resources before process exit. The snapshot
// database must close cleanly or its value log replays on the next open and
// the most recent writes can be lost.
func shutdown(cancel context.CancelFunc, db *badger.DB) {
	cancel()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Warn("failed to close snapshot database", "error", err)
	}
}

// startWatchedImport imports a project root and keeps it in sync with
// source changes until ctx is canceled.
func startWatchedImport(ctx context.Context, svc *arch.Service, root string) error {
	id, cached, err := svc.ImportProject(ctx, root)
	if err != nil {
		return fmt.Errorf("initial import of %q: %w", root, err)
	}
	slog.Info("watched project imported",
		"universe_id", id,
		"root", root,
		"classes", cached.Stats.ClassesBuilt)

	watcher, err := watch.New(root, func(ctx context.Context, projectRoot string) error {
		_, _, err := svc.ImportProject(ctx, projectRoot)
		return err
	})
	if err != nil {
		return fmt.Errorf("watching %q: %w", root, err)
	}
	go func() {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("watcher stopped", "root", root, "error", err)
		}
	}()
	return nil
}
