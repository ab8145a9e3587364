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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName identifies Java front-end spans.
const tracerName = "github.com/AleutianAI/archgraph/services/arch/frontend/javasrc"

// Prometheus metrics for parse observability.
var (
	parseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "archgraph",
		Subsystem: "javasrc",
		Name:      "parse_duration_seconds",
		Help:      "Wall time of a single file parse.",
		Buckets:   prometheus.DefBuckets,
	})

	parsedClasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "archgraph",
		Subsystem: "javasrc",
		Name:      "classes_extracted_total",
		Help:      "Class descriptors extracted across all parses.",
	})

	parsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archgraph",
		Subsystem: "javasrc",
		Name:      "parses_total",
		Help:      "Completed parses by outcome.",
	}, []string{"outcome"})
)

// startParseSpan starts the span covering one file parse.
func startParseSpan(ctx context.Context, filePath string, size int) (context.Context, oteltrace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "javasrc.Parse",
		oteltrace.WithAttributes(
			attribute.String("arch.file_path", filePath),
			attribute.Int("arch.file_size", size),
		),
	)
}

// setParseSpanResult records the parse outcome on the span.
func setParseSpanResult(span oteltrace.Span, classes, errs int) {
	span.SetAttributes(
		attribute.Int("arch.classes_extracted", classes),
		attribute.Int("arch.parse_errors", errs),
	)
}

// recordParse records the prometheus metrics for one parse attempt.
func recordParse(duration time.Duration, classes int, ok bool) {
	parseDuration.Observe(duration.Seconds())
	parsedClasses.Add(float64(classes))
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	parsesTotal.WithLabelValues(outcome).Inc()
}
