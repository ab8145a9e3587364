// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package importer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName identifies importer spans.
const tracerName = "github.com/AleutianAI/archgraph/services/arch/importer"

// Prometheus metrics for import observability.
var (
	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "archgraph",
		Subsystem: "importer",
		Name:      "import_duration_seconds",
		Help:      "Wall time of a full two-phase import.",
		Buckets:   prometheus.DefBuckets,
	})

	importClassesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "archgraph",
		Subsystem: "importer",
		Name:      "classes_built_total",
		Help:      "Classes built across all imports.",
	})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archgraph",
		Subsystem: "importer",
		Name:      "imports_total",
		Help:      "Completed imports by outcome.",
	}, []string{"outcome"})
)

// startImportSpan starts the span covering one full import.
func startImportSpan(ctx context.Context, descriptorCount int) (context.Context, oteltrace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "importer.Import",
		oteltrace.WithAttributes(
			attribute.Int("arch.descriptor_count", descriptorCount),
		),
	)
}

// setImportSpanResult records the import outcome on the span.
func setImportSpanResult(span oteltrace.Span, stats Stats) {
	span.SetAttributes(
		attribute.Int("arch.classes_built", stats.ClassesBuilt),
		attribute.Int("arch.code_units", stats.CodeUnits),
		attribute.Int("arch.accesses_resolved", stats.AccessesResolved),
		attribute.Int("arch.external_references", stats.ExternalReferences),
	)
}

// recordImport records the prometheus metrics for one import attempt.
func recordImport(duration time.Duration, classesBuilt int, ok bool) {
	importDuration.Observe(duration.Seconds())
	importClassesBuilt.Add(float64(classesBuilt))
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	importsTotal.WithLabelValues(outcome).Inc()
}
