// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kbsc

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for knowledge constructions.
var (
	tracer = otel.Tracer("aleutian.epistemic.kbsc")
	meter  = otel.Meter("aleutian.epistemic.kbsc")
)

var (
	expansionLatency   metric.Float64Histogram
	expansionTotal     metric.Int64Counter
	expansionLocations metric.Int64Histogram
	expansionEdges     metric.Int64Histogram
	cacheLookups       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		expansionLatency, err = meter.Float64Histogram(
			"mkbsc_expansion_duration_seconds",
			metric.WithDescription("Duration of MKBSC expansions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionTotal, err = meter.Int64Counter(
			"mkbsc_expansion_total",
			metric.WithDescription("Total number of MKBSC expansions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionLocations, err = meter.Int64Histogram(
			"mkbsc_expansion_locations",
			metric.WithDescription("Locations of each expanded game"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionEdges, err = meter.Int64Histogram(
			"mkbsc_expansion_edges",
			metric.WithDescription("Edges of each expanded game"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheLookups, err = meter.Int64Counter(
			"mkbsc_cache_lookups_total",
			metric.WithDescription("Iterate cache lookups by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExpansionMetrics records metrics for one MKBSC expansion.
func recordExpansionMetrics(ctx context.Context, duration time.Duration, locs, edges int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	expansionLatency.Record(ctx, duration.Seconds(), attrs)
	expansionTotal.Add(ctx, 1, attrs)

	if success {
		expansionLocations.Record(ctx, int64(locs))
		expansionEdges.Record(ctx, int64(edges))
	}
}

// recordCacheLookup records one iterate cache lookup.
func recordCacheLookup(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
