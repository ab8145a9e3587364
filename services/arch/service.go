// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package arch exposes the architecture graph over HTTP. A Service scans a
// Java project, runs the two-phase import and caches the resulting class
// universe in memory; Handlers serve lookups, hierarchy walks and dependency
// queries against the cached universes.
package arch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/archgraph/services/arch/frontend/javasrc"
	"github.com/AleutianAI/archgraph/services/arch/importer"
	"github.com/AleutianAI/archgraph/services/arch/model"
	"github.com/AleutianAI/archgraph/services/arch/snapshot"
)

// Service errors.
var (
	// ErrUniverseNotInitialized indicates no universe has been imported yet.
	ErrUniverseNotInitialized = errors.New("universe not initialized")

	// ErrUniverseNotFound indicates the requested universe ID is not cached.
	ErrUniverseNotFound = errors.New("universe not found")
)

// CachedUniverse is one imported class universe held in memory.
type CachedUniverse struct {
	// Universe is the completed class universe.
	Universe *model.Classes

	// ProjectRoot is the scanned project root.
	ProjectRoot string

	// Stats are the import statistics.
	Stats importer.Stats

	// FileErrors maps source files that failed to parse to the reason.
	FileErrors map[string]string

	// ImportedAt is when the import finished.
	ImportedAt time.Time
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Parser extracts descriptors from Java sources. Defaults to
	// javasrc.NewParser() when nil.
	Parser *javasrc.Parser

	// ImporterOptions configure the two-phase importer.
	ImporterOptions []importer.Option

	// Snapshots is the persistent snapshot store. Optional; snapshot
	// endpoints return 503 when nil.
	Snapshots *snapshot.Store

	// Logger is the structured logger. Defaults to slog.Default when nil.
	Logger *slog.Logger
}

// DefaultServiceConfig returns a config with a default parser and no
// snapshot persistence.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{Parser: javasrc.NewParser()}
}

// Service owns the cached universes and the import pipeline.
//
// Thread Safety: All methods are safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	universes map[string]*CachedUniverse

	parser       *javasrc.Parser
	importerOpts []importer.Option
	snapshots    *snapshot.Store
	logger       *slog.Logger
}

// NewService creates a Service from the given config.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Parser == nil {
		cfg.Parser = javasrc.NewParser()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		universes:    make(map[string]*CachedUniverse),
		parser:       cfg.Parser,
		importerOpts: cfg.ImporterOptions,
		snapshots:    cfg.Snapshots,
		logger:       cfg.Logger,
	}
}

// ImportProject scans a project root and imports it into a cached universe.
//
// Description:
//
//	Runs the full pipeline: tree-sitter scan, two-phase import, cache.
//	Re-importing the same root replaces the cached universe under the
//	same universe ID.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	projectRoot - Directory to scan.
//
// Outputs:
//
//	string - The universe ID (deterministic per project root).
//	*CachedUniverse - The cached result.
//	error - Scan or import failure.
func (s *Service) ImportProject(ctx context.Context, projectRoot string) (string, *CachedUniverse, error) {
	scan, err := javasrc.LoadProject(ctx, projectRoot, s.parser, s.logger)
	if err != nil {
		return "", nil, fmt.Errorf("scanning %q: %w", projectRoot, err)
	}
	return s.ImportDescriptors(ctx, projectRoot, scan.Descriptors, scan.FileErrors)
}

// ImportDescriptors imports pre-extracted descriptors into a cached
// universe. Used directly by snapshot restore and file-watch rebuilds.
func (s *Service) ImportDescriptors(ctx context.Context, projectRoot string, descriptors []model.ClassInput, fileErrors map[string]string) (string, *CachedUniverse, error) {
	imp := importer.New(s.importerOpts...)
	result, err := imp.Import(ctx, descriptors)
	if err != nil {
		return "", nil, fmt.Errorf("importing %q: %w", projectRoot, err)
	}

	cached := &CachedUniverse{
		Universe:    result.Classes,
		ProjectRoot: projectRoot,
		Stats:       result.Stats,
		FileErrors:  fileErrors,
		ImportedAt:  time.Now(),
	}
	id := s.UniverseID(projectRoot)

	s.mu.Lock()
	s.universes[id] = cached
	s.mu.Unlock()

	s.logger.Info("universe imported",
		"universe_id", id,
		"project_root", projectRoot,
		"classes", result.Stats.ClassesBuilt,
		"duration_ms", result.Stats.DurationMilli)
	return id, cached, nil
}

// cacheUniverse stores an already-completed universe (e.g. restored from a
// snapshot) under the project's universe ID and returns that ID.
func (s *Service) cacheUniverse(projectRoot string, universe *model.Classes) string {
	id := s.UniverseID(projectRoot)
	s.mu.Lock()
	s.universes[id] = &CachedUniverse{
		Universe:    universe,
		ProjectRoot: projectRoot,
		ImportedAt:  time.Now(),
	}
	s.mu.Unlock()
	return id
}

// UniverseID derives the deterministic universe ID for a project root.
func (s *Service) UniverseID(projectRoot string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("archgraph:"+projectRoot)).String()
}

// GetUniverse returns the cached universe with the given ID.
func (s *Service) GetUniverse(id string) (*CachedUniverse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.universes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUniverseNotFound, id)
	}
	return cached, nil
}

// getFirstUniverse returns an arbitrary cached universe, nil when none.
func (s *Service) getFirstUniverse() *CachedUniverse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cached := range s.universes {
		return cached
	}
	return nil
}

// UniverseCount returns the number of cached universes.
func (s *Service) UniverseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.universes)
}

// SnapshotStore returns the configured snapshot store, nil when persistence
// is disabled.
func (s *Service) SnapshotStore() *snapshot.Store {
	return s.snapshots
}
