// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package importer turns raw class descriptors from an introspection
// front-end into a completed, query-ready model universe.
//
// The import runs in two strict phases. Phase 1 builds every class in
// isolation; phase 2 resolves all cross-references through the universe
// built in phase 1. All of phase 1 finishes before any phase-2 work starts,
// so forward references between descriptors always resolve.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/archgraph/services/arch/model"
)

// Default importer configuration values.
const (
	// DefaultWorkerCount is the default number of parallel completion
	// workers. Set to 0 to use runtime.NumCPU().
	DefaultWorkerCount = 0
)

// Phase indicates which import phase is in progress.
type Phase int

const (
	// PhaseBuild indicates classes are being built from descriptors.
	PhaseBuild Phase = iota

	// PhaseComplete indicates cross-references are being resolved.
	PhaseComplete
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseBuild:
		return "build"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ProgressFunc is a callback for import progress updates. May be invoked
// from multiple goroutines during the completion phase, but calls are
// serialized and done increases by one per call within each phase.
type ProgressFunc func(phase Phase, done, total int)

// Options configures Importer behavior.
type Options struct {
	// WorkerCount is the number of parallel workers for phase-2
	// completion. Default: runtime.NumCPU().
	WorkerCount int

	// Listener observes phase-1 construction. May be nil.
	Listener model.AnalysisListener

	// Progress is called with progress updates. May be nil.
	Progress ProgressFunc
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		WorkerCount: runtime.NumCPU(),
	}
}

// Option is a functional option for configuring Importer.
type Option func(*Options)

// WithWorkerCount sets the number of parallel completion workers.
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		o.WorkerCount = n
	}
}

// WithListener sets the phase-1 analysis listener.
func WithListener(l model.AnalysisListener) Option {
	return func(o *Options) {
		o.Listener = l
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}

// Stats contains statistics about one import.
type Stats struct {
	// ClassesBuilt is the number of classes built in phase 1.
	ClassesBuilt int

	// CodeUnits is the total number of code units across all classes.
	CodeUnits int

	// AccessesResolved is the number of accesses whose targets resolved
	// inside the universe.
	AccessesResolved int

	// ExternalReferences is the number of accesses whose targets lie
	// outside the universe.
	ExternalReferences int

	// DurationMilli is the wall time of the import in milliseconds.
	DurationMilli int64
}

// Result contains the completed universe and import statistics.
type Result struct {
	// Classes is the completed universe. Nil when the import failed.
	Classes *model.Classes

	// Stats contains import statistics.
	Stats Stats
}

// Importer drives the two-phase construction of a model universe.
//
// The importer is stateless and can be reused across imports. Each Import
// call operates on its own state.
//
// Thread Safety: Importer is safe for concurrent use.
type Importer struct {
	options Options
}

// New creates a new Importer with the given options.
//
// Example:
//
//	imp := importer.New(importer.WithWorkerCount(4))
func New(opts ...Option) *Importer {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	return &Importer{options: options}
}

// Import builds and completes a universe from raw class descriptors.
//
// Description:
//
//	Phase 1 builds one class per descriptor using only locally available
//	data, invoking the analysis listener for each discovered method and
//	constructor. Once every class is built, phase 2 resolves superclass,
//	enclosing-class and access references through the universe, in
//	parallel across classes. Unresolvable references are recorded as
//	external, never as failures.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked between descriptors and
//	      between completions.
//	descriptors - Raw per-class descriptors. Identities must be unique.
//
// Outputs:
//
//	*Result - The completed universe plus statistics.
//	error - Non-nil for malformed descriptors (a front-end bug) or
//	        context cancellation. There are no transient failures and no
//	        retry semantics.
func (i *Importer) Import(ctx context.Context, descriptors []model.ClassInput) (*Result, error) {
	ctx, span := startImportSpan(ctx, len(descriptors))
	defer span.End()
	start := time.Now()

	classes, err := i.buildPhase(ctx, descriptors)
	if err != nil {
		recordImport(time.Since(start), 0, false)
		return nil, err
	}

	universe, err := model.NewClasses(classes)
	if err != nil {
		recordImport(time.Since(start), 0, false)
		return nil, fmt.Errorf("collect universe: %w", err)
	}

	if err := i.completePhase(ctx, universe); err != nil {
		recordImport(time.Since(start), len(classes), false)
		return nil, err
	}

	if err := universe.VerifyHierarchy(); err != nil {
		recordImport(time.Since(start), len(classes), false)
		return nil, fmt.Errorf("verify hierarchy: %w", err)
	}

	result := &Result{Classes: universe}
	result.Stats = collectStats(universe)
	result.Stats.DurationMilli = time.Since(start).Milliseconds()

	setImportSpanResult(span, result.Stats)
	recordImport(time.Since(start), result.Stats.ClassesBuilt, true)

	slog.Debug("import complete",
		"classes", result.Stats.ClassesBuilt,
		"code_units", result.Stats.CodeUnits,
		"accesses", result.Stats.AccessesResolved,
		"external_refs", result.Stats.ExternalReferences,
		"duration_ms", result.Stats.DurationMilli,
	)
	return result, nil
}

// buildPhase runs phase 1: one class per descriptor, no cross-references.
func (i *Importer) buildPhase(ctx context.Context, descriptors []model.ClassInput) ([]*model.Class, error) {
	classes := make([]*model.Class, 0, len(descriptors))
	for n, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := model.NewClass(desc, i.options.Listener)
		if err != nil {
			return nil, fmt.Errorf("build descriptor %d: %w", n, err)
		}
		classes = append(classes, c)
		i.reportProgress(PhaseBuild, n+1, len(descriptors))
	}
	return classes, nil
}

// completePhase runs phase 2 across all classes of the universe.
//
// Hierarchy linking and member completion only read phase-1 data plus the
// shared read-only universe, so classes complete independently. The one
// shared write, the superclass subclass set, is serialized inside the model.
func (i *Importer) completePhase(ctx context.Context, universe *model.Classes) error {
	all := universe.All()
	total := len(all)

	// done counts finished completions; the callback runs under the same
	// lock so reported values are monotonic even across workers.
	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.options.WorkerCount)
	for _, c := range all {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.CompleteFrom(universe)
			mu.Lock()
			done++
			i.reportProgress(PhaseComplete, done, total)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (i *Importer) reportProgress(phase Phase, done, total int) {
	if i.options.Progress != nil {
		i.options.Progress(phase, done, total)
	}
}

// collectStats walks the completed universe once and aggregates counters.
func collectStats(universe *model.Classes) Stats {
	stats := Stats{ClassesBuilt: universe.Len()}
	for _, c := range universe.All() {
		stats.CodeUnits += len(c.CodeUnits())
		stats.AccessesResolved += len(c.Accesses())
		stats.ExternalReferences += len(c.ExternalReferences())
	}
	return stats
}
