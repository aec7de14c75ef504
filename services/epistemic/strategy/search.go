// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

var tracer = otel.Tracer("aleutian.epistemic.strategy")

// ErrInvalidGame indicates a game that cannot be searched.
var ErrInvalidGame = errors.New("game has no locations")

// -----------------------------------------------------------------------------
// Profile search
// -----------------------------------------------------------------------------

// SearchConfig configures the profile search.
type SearchConfig struct {
	// FindAll continues after the first winning profile.
	FindAll bool

	// MaxIterations caps the number of partial profiles verified.
	// Zero means unlimited.
	MaxIterations int
}

// DefaultSearchConfig returns the default configuration.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		FindAll:       false,
		MaxIterations: 100000,
	}
}

// SearchResult is the outcome of a profile search.
type SearchResult struct {
	// Profiles are the distinct winning profiles found, in discovery order.
	Profiles []Profile

	// Iterations is the number of partial profiles verified.
	Iterations int

	// Complete is false when the search stopped at MaxIterations or on
	// cancellation before exhausting the space.
	Complete bool

	// Duration is the wall-clock search time.
	Duration time.Duration
}

// Search finds memoryless winning strategy profiles.
//
// Thread Safety: Safe for concurrent use; all state is per Run.
type Search struct {
	config *SearchConfig
	logger *slog.Logger
}

// NewSearch creates a search. A nil config uses DefaultSearchConfig.
func NewSearch(config *SearchConfig, logger *slog.Logger) *Search {
	if config == nil {
		config = DefaultSearchConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		config: config,
		logger: logger.With(slog.String("component", "strategy_search")),
	}
}

// Run searches g for winning profiles.
//
// Description:
//
//	Starts from the empty profile and verifies it. An IncompleteError at
//	location l branches over the joint actions available at l that agree
//	with the actions already fixed for the agents' observations at l and
//	whose outcome under the backward analysis is not Lose; the branch
//	fixes every agent's action at its observation. Better outcomes are
//	explored first. A LosingError abandons the branch. A profile that
//	verifies is recorded; the search stops there unless FindAll is set.
//	Partial profiles are deduplicated.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	g - The game to search.
//
// Outputs:
//
//	*SearchResult - Profiles found and statistics.
//	error - ErrInvalidGame for an empty game, or ctx's error on
//	        cancellation (the partial result is still returned).
func (s *Search) Run(ctx context.Context, g *game.Game) (*SearchResult, error) {
	ctx, span := tracer.Start(ctx, "strategy.Search.Run",
		trace.WithAttributes(
			attribute.Int("strategy.locations", g.NumLocs()),
			attribute.Bool("strategy.find_all", s.config.FindAll),
		),
	)
	defer span.End()

	if g.NumLocs() == 0 {
		span.SetStatus(codes.Error, ErrInvalidGame.Error())
		return nil, fmt.Errorf("strategy search: %w", ErrInvalidGame)
	}

	start := time.Now()
	analysis := Analyze(g)
	result := &SearchResult{Complete: true}

	stack := []Profile{NewProfile(g)}
	seen := map[string]bool{stack[0].Key(): true}
	found := map[string]bool{}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			result.Complete = false
			result.Duration = time.Since(start)
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return result, fmt.Errorf("strategy search: %w", err)
		}
		if s.config.MaxIterations > 0 && result.Iterations >= s.config.MaxIterations {
			result.Complete = false
			s.logger.WarnContext(ctx, "strategy search hit iteration limit",
				slog.Int("max_iterations", s.config.MaxIterations),
			)
			break
		}
		result.Iterations++

		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var incomplete *IncompleteError
		var losing *LosingError
		err := Verify(g, p.Strategies())
		switch {
		case err == nil:
			if k := p.Key(); !found[k] {
				found[k] = true
				result.Profiles = append(result.Profiles, p)
			}
			if !s.config.FindAll {
				stack = nil
			}
		case errors.As(err, &incomplete):
			children := branch(g, analysis, p, incomplete.Loc)
			for i := len(children) - 1; i >= 0; i-- {
				if k := children[i].Key(); !seen[k] {
					seen[k] = true
					stack = append(stack, children[i])
				}
			}
		case errors.As(err, &losing):
		default:
			return nil, fmt.Errorf("strategy search: %w", err)
		}
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("strategy.iterations", result.Iterations),
		attribute.Int("strategy.profiles", len(result.Profiles)),
		attribute.Bool("strategy.complete", result.Complete),
	)
	s.logger.DebugContext(ctx, "strategy search finished",
		slog.Int("locations", g.NumLocs()),
		slog.Int("iterations", result.Iterations),
		slog.Int("profiles", len(result.Profiles)),
		slog.Bool("complete", result.Complete),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// branch returns the extensions of p fixing a joint action at l, best
// outcome first.
func branch(g *game.Game, analysis *Analysis, p Profile, l game.Loc) []Profile {
	var out []Profile
	for _, ao := range analysis.Ranked(l) {
		if ao.Outcome.Kind == Lose || !consistent(g, p, l, ao.Act) {
			continue
		}
		child := p.Clone()
		for agent, a := range ao.Act {
			child.Set(agent, g.ObsOf(l, agent), a)
		}
		out = append(out, child)
	}
	return out
}

// consistent reports whether act agrees with every action p already fixes
// for the agents' observations at l.
func consistent(g *game.Game, p Profile, l game.Loc, act game.JointAction) bool {
	for agent, a := range act {
		if fixed, ok := p.Action(agent, g.ObsOf(l, agent)); ok && fixed != a {
			return false
		}
	}
	return true
}

// FindStrategyProfiles searches g with an unlimited iteration budget and
// returns the winning profiles found: the first one, or all of them when
// findAll is set.
func FindStrategyProfiles(g *game.Game, findAll bool) []Profile {
	res, err := NewSearch(&SearchConfig{FindAll: findAll}, nil).Run(context.Background(), g)
	if err != nil {
		return nil
	}
	return res.Profiles
}
