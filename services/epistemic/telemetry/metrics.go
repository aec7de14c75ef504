// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pipeline-level instruments of mkbsc.
//
// Description:
//
//	Counters and histograms for transform runs, fixed-point checks and
//	strategy searches. All metrics use the "mkbsc_" prefix. Per-expansion
//	metrics live with the kbsc package.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// TransformsTotal counts transform runs by status.
	TransformsTotal metric.Int64Counter

	// TransformDuration records transform run duration in seconds.
	TransformDuration metric.Float64Histogram

	// LevelLocations records the location count of every iterate produced.
	LevelLocations metric.Int64Histogram

	// IsomorphismChecks counts fixed-point checks by verdict.
	IsomorphismChecks metric.Int64Counter

	// SearchesTotal counts strategy searches by outcome.
	SearchesTotal metric.Int64Counter

	// SearchDuration records strategy search duration in seconds.
	SearchDuration metric.Float64Histogram
}

// NewMetrics registers every instrument with meter.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance.
//	error - Non-nil if metric registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TransformsTotal, err = meter.Int64Counter(
		"mkbsc_transforms_total",
		metric.WithDescription("Total transform runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_transforms_total: %w", err)
	}

	m.TransformDuration, err = meter.Float64Histogram(
		"mkbsc_transform_duration_seconds",
		metric.WithDescription("Transform run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_transform_duration_seconds: %w", err)
	}

	m.LevelLocations, err = meter.Int64Histogram(
		"mkbsc_level_locations",
		metric.WithDescription("Locations per iterate"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_level_locations: %w", err)
	}

	m.IsomorphismChecks, err = meter.Int64Counter(
		"mkbsc_isomorphism_checks_total",
		metric.WithDescription("Fixed-point isomorphism checks"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_isomorphism_checks_total: %w", err)
	}

	m.SearchesTotal, err = meter.Int64Counter(
		"mkbsc_strategy_searches_total",
		metric.WithDescription("Strategy searches"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_strategy_searches_total: %w", err)
	}

	m.SearchDuration, err = meter.Float64Histogram(
		"mkbsc_strategy_search_duration_seconds",
		metric.WithDescription("Strategy search duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mkbsc_strategy_search_duration_seconds: %w", err)
	}

	return m, nil
}

// RecordTransform records one transform run.
func (m *Metrics) RecordTransform(ctx context.Context, mode string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.TransformsTotal.Add(ctx, 1, attrs)
	m.TransformDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLevel records the size of one iterate.
func (m *Metrics) RecordLevel(ctx context.Context, level, locations int) {
	m.LevelLocations.Record(ctx, int64(locations), metric.WithAttributes(attribute.Int("level", level)))
}

// RecordIsomorphismCheck records one fixed-point check.
func (m *Metrics) RecordIsomorphismCheck(ctx context.Context, isomorphic bool) {
	m.IsomorphismChecks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("isomorphic", isomorphic)))
}

// RecordSearch records one strategy search.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, profiles int, complete bool) {
	attrs := metric.WithAttributes(
		attribute.Bool("found", profiles > 0),
		attribute.Bool("complete", complete),
	)
	m.SearchesTotal.Add(ctx, 1, attrs)
	m.SearchDuration.Record(ctx, duration.Seconds(), attrs)
}
