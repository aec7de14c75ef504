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
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/isomorph"
)

// Store persists expansions keyed by the fingerprint of the game they expand.
//
// Load returns ErrCacheMiss when nothing is stored under key.
type Store interface {
	Load(ctx context.Context, key string) (*ExpansionRecord, error)
	Save(ctx context.Context, key string, rec *ExpansionRecord) error
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithStore enables the persistent iterate cache.
func WithStore(store Store) StackOption {
	return func(s *Stack) { s.store = store }
}

// WithStackLogger sets the logger used by the stack and its expansions.
func WithStackLogger(logger *slog.Logger) StackOption {
	return func(s *Stack) {
		if logger != nil {
			s.logger = logger.With(slog.String("component", "stack"))
		}
	}
}

// Stack holds the iterates G^(0), G^(1K), G^(2K), ...
//
// Description:
//
//	Level 0 is the base game. Push appends MKBSC(top). Projections of any
//	level onto any agent are computed on first request and cached until
//	Reset. When a Store is configured, Push first looks the expansion up
//	by the fingerprint of the top game.
//
// Thread Safety: Not safe for concurrent use.
type Stack struct {
	levels      []*game.Game
	expansions  []*Expansion
	projections []map[int]*game.Game

	store  Store
	logger *slog.Logger
}

// NewStack returns a stack whose only level is base.
func NewStack(base *game.Game, opts ...StackOption) *Stack {
	s := &Stack{
		levels:      []*game.Game{base},
		projections: []map[int]*game.Game{{}},
		logger:      slog.Default().With(slog.String("component", "stack")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of levels, including the base game.
func (s *Stack) Len() int { return len(s.levels) }

// Get returns level i. Panics if i is out of range.
func (s *Stack) Get(i int) *game.Game {
	if i < 0 || i >= len(s.levels) {
		panic(fmt.Sprintf("kbsc: stack level %d out of range [0, %d)", i, len(s.levels)))
	}
	return s.levels[i]
}

// Top returns the most recent level.
func (s *Stack) Top() *game.Game { return s.levels[len(s.levels)-1] }

// Expansion returns the MKBSC expansion that produced level i (i >= 1).
func (s *Stack) Expansion(i int) *Expansion {
	if i < 1 || i >= len(s.levels) {
		panic(fmt.Sprintf("kbsc: no expansion produced level %d", i))
	}
	return s.expansions[i-1]
}

// Reset drops every level above the base game and clears cached projections.
func (s *Stack) Reset() {
	s.levels = s.levels[:1]
	s.expansions = s.expansions[:0]
	s.projections = []map[int]*game.Game{{}}
}

// Projection returns Project(Get(level), agent), computed once per level.
func (s *Stack) Projection(level, agent int) *game.Game {
	g := s.Get(level)
	if p, ok := s.projections[level][agent]; ok {
		return p
	}
	p := game.Project(g, agent)
	s.projections[level][agent] = p
	return p
}

// Fixpoint reports whether the top level is isomorphic to the level below
// it. With checkObs the observation partitions must correspond as well.
// False for a stack holding only the base game.
func (s *Stack) Fixpoint(checkObs bool) bool {
	n := len(s.levels)
	if n < 2 {
		return false
	}
	return isomorph.IsIsomorphic(s.levels[n-2], s.levels[n-1], checkObs)
}

// Push expands the top game and appends the result.
//
// Description:
//
//	With a Store configured the expansion is loaded by fingerprint when
//	present and saved after building otherwise. Cache failures are logged
//	and never fail the push.
//
// Outputs:
//
//	*game.Game - The new top level.
//	error - Non-nil if ctx was cancelled.
func (s *Stack) Push(ctx context.Context) (*game.Game, error) {
	top := s.Top()
	ctx, span := tracer.Start(ctx, "kbsc.Stack.Push",
		trace.WithAttributes(attribute.Int("stack.level", len(s.levels))),
	)
	defer span.End()

	key := ""
	if s.store != nil {
		if exp := s.lookup(ctx, top, &key); exp != nil {
			span.SetAttributes(attribute.Bool("stack.cache_hit", true))
			s.append(exp)
			return exp.Game, nil
		}
	}

	exp, err := NewMKBSC(top).WithLogger(s.logger).Build(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("push level %d: %w", len(s.levels), err)
	}
	s.append(exp)

	if s.store != nil && key != "" {
		if err := s.store.Save(ctx, key, exp.Record()); err != nil {
			s.logger.WarnContext(ctx, "failed to cache expansion",
				slog.Int("level", len(s.levels)-1),
				slog.String("error", err.Error()),
			)
		}
	}
	return exp.Game, nil
}

func (s *Stack) lookup(ctx context.Context, top *game.Game, key *string) *Expansion {
	fp, err := Fingerprint(top)
	if err != nil {
		s.logger.WarnContext(ctx, "cannot fingerprint game", slog.String("error", err.Error()))
		return nil
	}
	*key = fp

	rec, err := s.store.Load(ctx, fp)
	if err != nil {
		recordCacheLookup(ctx, false)
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WarnContext(ctx, "expansion cache lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	exp, err := rec.Restore(top)
	if err != nil {
		recordCacheLookup(ctx, false)
		s.logger.WarnContext(ctx, "discarding cached expansion", slog.String("error", err.Error()))
		return nil
	}
	recordCacheLookup(ctx, true)
	s.logger.DebugContext(ctx, "expansion loaded from cache",
		slog.String("key", fp),
		slog.Int("locations", exp.Game.NumLocs()),
	)
	return exp
}

func (s *Stack) append(exp *Expansion) {
	s.levels = append(s.levels, exp.Game)
	s.expansions = append(s.expansions, exp)
	s.projections = append(s.projections, map[int]*game.Game{})
}
