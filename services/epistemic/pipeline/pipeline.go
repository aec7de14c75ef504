// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the two end-to-end modes of mkbsc.
//
// Transform iterates the multi-agent knowledge-based subset construction a
// fixed number of times or until a fixed point, optionally finishing with a
// single-agent step. Synthesize iterates until a memoryless winning profile
// exists in some iterate and maps it back to the original game.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/telemetry"
)

var tracer = otel.Tracer("aleutian.epistemic.pipeline")

// Errors returned for invalid options.
var (
	// ErrUnknownFinish indicates a finishing step other than kbsc or project.
	ErrUnknownFinish = errors.New("unknown finishing step")

	// ErrAgentOutOfRange indicates a finishing agent the game does not have.
	ErrAgentOutOfRange = errors.New("agent out of range")

	// ErrNegativeIterations indicates a negative iteration count.
	ErrNegativeIterations = errors.New("iterations must not be negative")
)

// Finishing steps applied to the last iterate.
const (
	FinishNone    = ""
	FinishProject = "project"
	FinishKBSC    = "kbsc"
)

// Runner executes pipelines. The zero configuration builds every iterate
// from scratch and records no metrics.
//
// Thread Safety: Safe for concurrent use; each run owns its stack.
type Runner struct {
	store   kbsc.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore caches iterates in store.
func WithStore(store kbsc.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithMetrics records run metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(slog.String("component", "pipeline"))
	return r
}

func (r *Runner) newStack(base *game.Game) *kbsc.Stack {
	opts := []kbsc.StackOption{kbsc.WithStackLogger(r.logger)}
	if r.store != nil {
		opts = append(opts, kbsc.WithStore(r.store))
	}
	return kbsc.NewStack(base, opts...)
}

// -----------------------------------------------------------------------------
// Transform
// -----------------------------------------------------------------------------

// TransformOptions configures Transform.
type TransformOptions struct {
	// Iterations is the maximum number of MKBSC applications.
	Iterations int

	// StopOnFixpoint stops as soon as an iterate is isomorphic to the
	// previous one.
	StopOnFixpoint bool

	// CheckObservations makes the fixed-point check compare observation
	// partitions as well as the graph.
	CheckObservations bool

	// Finish is FinishNone, FinishProject or FinishKBSC.
	Finish string

	// FinishAgent is the agent the finishing step keeps.
	FinishAgent int
}

// TransformResult is the outcome of Transform.
type TransformResult struct {
	// Stack holds the base game and every iterate produced.
	Stack *kbsc.Stack

	// Game is the final output: the last iterate, or its finished form.
	Game *game.Game

	// Iterations is the number of MKBSC applications performed.
	Iterations int

	// Fixpoint is true when the run stopped at a fixed point.
	Fixpoint bool

	// Beliefs maps every location of Game to base locations of the last
	// iterate. Only set for FinishKBSC.
	Beliefs []game.LocSet

	// Duration is the wall-clock run time.
	Duration time.Duration

	// TraceID identifies the run's trace; empty when tracing is off.
	TraceID string
}

// Transform applies MKBSC to base up to opts.Iterations times.
//
// Description:
//
//	After each push the new iterate is compared with the previous one when
//	opts.StopOnFixpoint is set; an isomorphic pair ends the loop early. The
//	last iterate is then optionally projected onto opts.FinishAgent, and
//	for FinishKBSC the single-agent KBSC of that projection is built.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	base - The game to transform.
//	opts - Iteration and finishing options.
//
// Outputs:
//
//	*TransformResult - The stack and final game.
//	error - Non-nil for invalid options or cancellation.
func (r *Runner) Transform(ctx context.Context, base *game.Game, opts TransformOptions) (result *TransformResult, err error) {
	if err := checkTransformOptions(base, opts); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Transform",
		trace.WithAttributes(
			attribute.Int("pipeline.iterations", opts.Iterations),
			attribute.Bool("pipeline.stop_on_fixpoint", opts.StopOnFixpoint),
			attribute.String("pipeline.finish", opts.Finish),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if r.metrics != nil {
			r.metrics.RecordTransform(ctx, "transform", time.Since(start), err == nil)
		}
	}()

	logger := telemetry.LoggerWithTrace(ctx, r.logger)
	stack := r.newStack(base)
	result = &TransformResult{Stack: stack, TraceID: telemetry.TraceID(ctx)}
	for i := 0; i < opts.Iterations; i++ {
		g, err := stack.Push(ctx)
		if err != nil {
			return nil, err
		}
		result.Iterations++
		r.recordLevel(ctx, logger, stack.Len()-1, g)

		if opts.StopOnFixpoint {
			iso := stack.Fixpoint(opts.CheckObservations)
			if r.metrics != nil {
				r.metrics.RecordIsomorphismCheck(ctx, iso)
			}
			if iso {
				result.Fixpoint = true
				logger.InfoContext(ctx, "fixed point reached",
					slog.Int("level", stack.Len()-1),
					slog.Int("locations", g.NumLocs()),
				)
				break
			}
		}
	}

	top := stack.Len() - 1
	switch opts.Finish {
	case FinishNone:
		result.Game = stack.Top()
	case FinishProject:
		result.Game = stack.Projection(top, opts.FinishAgent)
	case FinishKBSC:
		k := kbsc.NewKBSC(stack.Projection(top, opts.FinishAgent))
		result.Game = k.Build()
		result.Beliefs = k.Beliefs()
	}
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("pipeline.levels", result.Iterations),
		attribute.Bool("pipeline.fixpoint", result.Fixpoint),
		attribute.Int("pipeline.locations", result.Game.NumLocs()),
	)
	return result, nil
}

func checkTransformOptions(base *game.Game, opts TransformOptions) error {
	if opts.Iterations < 0 {
		return ErrNegativeIterations
	}
	switch opts.Finish {
	case FinishNone:
		return nil
	case FinishProject, FinishKBSC:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFinish, opts.Finish)
	}
	if opts.FinishAgent < 0 || opts.FinishAgent >= base.Agents() {
		return fmt.Errorf("%w: agent %d of %d", ErrAgentOutOfRange, opts.FinishAgent, base.Agents())
	}
	return nil
}

func (r *Runner) recordLevel(ctx context.Context, logger *slog.Logger, level int, g *game.Game) {
	logger.DebugContext(ctx, "iterate built",
		slog.Int("level", level),
		slog.Int("locations", g.NumLocs()),
		slog.Int("edges", g.NumEdges()),
	)
	if r.metrics != nil {
		r.metrics.RecordLevel(ctx, level, g.NumLocs())
	}
}
