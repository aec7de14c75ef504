// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/strategy"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/telemetry"
)

// SynthesisOptions configures Synthesize.
type SynthesisOptions struct {
	// MaxLevels is the highest iterate searched. Level 0 is the base game.
	MaxLevels int

	// SearchBudget caps the partial profiles verified per level; 0 is
	// unlimited.
	SearchBudget int

	// FindAll collects every winning profile of the first winning level.
	FindAll bool

	// Translate maps the first profile found back to the base game as
	// finite-memory transducers.
	Translate bool
}

// LevelReport summarizes the search at one level.
type LevelReport struct {
	Level      int
	Locations  int
	Edges      int
	Profiles   int
	Iterations int
	Complete   bool
}

// SynthesisResult is the outcome of Synthesize.
type SynthesisResult struct {
	// Stack holds the base game and every iterate searched.
	Stack *kbsc.Stack

	// Level is the first level with a winning profile, or -1.
	Level int

	// Profiles are the winning profiles found at Level.
	Profiles []strategy.Profile

	// Levels has one report per level searched.
	Levels []LevelReport

	// Fixpoint is true when the iteration stopped because an iterate was
	// isomorphic to its predecessor, so higher levels cannot differ.
	Fixpoint bool

	// Transducers play Profiles[0] in the base game, one per agent. Only
	// set when translation was requested and a profile was found.
	Transducers []*strategy.Transducer

	// Duration is the wall-clock run time.
	Duration time.Duration

	// TraceID identifies the run's trace; empty when tracing is off.
	TraceID string
}

// Found reports whether a winning profile exists at some level searched.
func (r *SynthesisResult) Found() bool { return r.Level >= 0 }

// Synthesize looks for a memoryless winning profile in base or one of its
// MKBSC iterates.
//
// Description:
//
//	Levels 0, 1, ... are searched in order, pushing one iterate per level,
//	until a level has a winning profile, opts.MaxLevels is exceeded or the
//	iterates reach a fixed point (observations included). With
//	opts.Translate the first profile is lifted back to the base game,
//	verified there and compiled into transducers.
//
// Outputs:
//
//	*SynthesisResult - Levels searched and profiles found.
//	error - Non-nil on cancellation, or if a translated profile fails to
//	        win in the base game.
func (r *Runner) Synthesize(ctx context.Context, base *game.Game, opts SynthesisOptions) (result *SynthesisResult, err error) {
	if opts.MaxLevels < 0 {
		return nil, ErrNegativeIterations
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Synthesize",
		trace.WithAttributes(
			attribute.Int("pipeline.max_levels", opts.MaxLevels),
			attribute.Bool("pipeline.find_all", opts.FindAll),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if r.metrics != nil {
			r.metrics.RecordTransform(ctx, "synthesize", time.Since(start), err == nil)
		}
	}()

	search := strategy.NewSearch(&strategy.SearchConfig{
		FindAll:       opts.FindAll,
		MaxIterations: opts.SearchBudget,
	}, r.logger)

	logger := telemetry.LoggerWithTrace(ctx, r.logger)
	stack := r.newStack(base)
	result = &SynthesisResult{Stack: stack, Level: -1, TraceID: telemetry.TraceID(ctx)}
	for level := 0; level <= opts.MaxLevels; level++ {
		if level > 0 {
			g, err := stack.Push(ctx)
			if err != nil {
				return nil, err
			}
			r.recordLevel(ctx, logger, level, g)
			if stack.Fixpoint(true) {
				if r.metrics != nil {
					r.metrics.RecordIsomorphismCheck(ctx, true)
				}
				result.Fixpoint = true
				logger.InfoContext(ctx, "fixed point reached without a winning profile",
					slog.Int("level", level),
				)
				break
			}
			if r.metrics != nil {
				r.metrics.RecordIsomorphismCheck(ctx, false)
			}
		}

		g := stack.Get(level)
		res, err := search.Run(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("search level %d: %w", level, err)
		}
		if r.metrics != nil {
			r.metrics.RecordSearch(ctx, res.Duration, len(res.Profiles), res.Complete)
		}
		result.Levels = append(result.Levels, LevelReport{
			Level:      level,
			Locations:  g.NumLocs(),
			Edges:      g.NumEdges(),
			Profiles:   len(res.Profiles),
			Iterations: res.Iterations,
			Complete:   res.Complete,
		})
		if len(res.Profiles) > 0 {
			result.Level = level
			result.Profiles = res.Profiles
			break
		}
	}

	if result.Found() && opts.Translate {
		lifted := strategy.Translate(stack, result.Level, result.Profiles[0])
		if err := strategy.Verify(base, lifted); err != nil {
			return nil, fmt.Errorf("translated profile from level %d: %w", result.Level, err)
		}
		result.Transducers = strategy.Compile(base, lifted)
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("pipeline.level", result.Level),
		attribute.Int("pipeline.profiles", len(result.Profiles)),
	)
	return result, nil
}
