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
	"encoding/binary"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/telemetry"
)

// -----------------------------------------------------------------------------
// Expansion
// -----------------------------------------------------------------------------

// Expansion is the materialized result of one MKBSC step.
//
// Description:
//
//	Game is the expanded game. Every location of Game is a tuple holding,
//	for each agent, a location of that agent's knowledge game Parts[agent].
//	Beliefs[agent][k] is the set of base-game locations that knowledge
//	location k represents.
//
// Thread Safety: Immutable after construction.
type Expansion struct {
	Game    *game.Game
	Tuples  [][]game.Loc
	Parts   []*game.Game
	Beliefs [][]game.LocSet
}

// Knowledge returns the knowledge-game location of agent in expanded
// location l.
func (e *Expansion) Knowledge(l game.Loc, agent int) game.Loc {
	return e.Tuples[l][agent]
}

// Belief returns the base-game locations agent considers possible at l.
func (e *Expansion) Belief(l game.Loc, agent int) game.LocSet {
	return e.Beliefs[agent][e.Tuples[l][agent]]
}

// Consistent returns the base-game locations compatible with every agent's
// belief at l. It is never empty for locations produced by MKBSC.
func (e *Expansion) Consistent(l game.Loc) game.LocSet {
	out := e.Belief(l, 0).Clone()
	for agent := 1; agent < len(e.Parts); agent++ {
		out.IntersectWith(e.Belief(l, agent))
	}
	return out
}

// -----------------------------------------------------------------------------
// MKBSC
// -----------------------------------------------------------------------------

// MKBSC is the multi-agent knowledge-based subset construction.
//
// Description:
//
//	For each agent i the construction applies KBSC to Project(G, i). A
//	location of the result is a tuple s of knowledge locations, one per
//	agent. The successors of s under joint action a are the tuples s' with
//	s[i] -a[i]-> s'[i] in every knowledge game such that the beliefs of s'
//	share a location with post_G = ∪ Post_G(l, a) for l ∈ ∩ belief(s[i]).
//	Candidate tuples are enumerated agent by agent with a running
//	intersection so that empty partial intersections prune early.
//
//	Agent i observes s[i]. A tuple is winning iff any of its component
//	beliefs is winning.
//
// Thread Safety: Not safe for concurrent use.
type MKBSC struct {
	base   *game.Game
	logger *slog.Logger

	parts   []*game.Game
	beliefs [][]game.LocSet

	tuples map[string][]game.Loc
}

// NewMKBSC prepares the construction for base.
//
// Panics if base has no locations.
func NewMKBSC(base *game.Game) *MKBSC {
	if base.NumLocs() == 0 {
		panic("kbsc: MKBSC of an empty game")
	}
	return &MKBSC{
		base:   base,
		logger: slog.Default().With(slog.String("component", "mkbsc")),
		tuples: make(map[string][]game.Loc),
	}
}

// WithLogger replaces the construction's logger.
func (m *MKBSC) WithLogger(logger *slog.Logger) *MKBSC {
	if logger != nil {
		m.logger = logger.With(slog.String("component", "mkbsc"))
	}
	return m
}

// Build materializes the expanded game.
//
// Description:
//
//	The per-agent knowledge games are built concurrently; they only read
//	the shared base game and each owns its scratch state. The expanded
//	game is then explored breadth-first.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation between phases.
//
// Outputs:
//
//	*Expansion - The expanded game with its tuple mapping.
//	error - Non-nil only if ctx was cancelled.
func (m *MKBSC) Build(ctx context.Context) (*Expansion, error) {
	ctx, span := tracer.Start(ctx, "kbsc.MKBSC.Build",
		trace.WithAttributes(
			attribute.Int("mkbsc.base_locations", m.base.NumLocs()),
			attribute.Int("mkbsc.agents", m.base.Agents()),
		),
	)
	defer span.End()
	start := time.Now()

	if err := m.buildParts(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "knowledge games failed")
		recordExpansionMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		recordExpansionMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, fmt.Errorf("mkbsc build: %w", err)
	}

	g, keys := game.Build[string, game.Loc](m)
	tuples := make([][]game.Loc, len(keys))
	for i, key := range keys {
		tuples[i] = m.tuples[key]
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("mkbsc.locations", g.NumLocs()),
		attribute.Int("mkbsc.edges", g.NumEdges()),
	)
	recordExpansionMetrics(ctx, elapsed, g.NumLocs(), g.NumEdges(), true)
	telemetry.LoggerWithTrace(ctx, m.logger).DebugContext(ctx, "expansion built",
		slog.Int("base_locations", m.base.NumLocs()),
		slog.Int("locations", g.NumLocs()),
		slog.Int("edges", g.NumEdges()),
		slog.Duration("duration", elapsed),
	)

	return &Expansion{
		Game:    g,
		Tuples:  tuples,
		Parts:   m.parts,
		Beliefs: m.beliefs,
	}, nil
}

func (m *MKBSC) buildParts(ctx context.Context) error {
	agents := m.base.Agents()
	parts := make([]*game.Game, agents)
	beliefs := make([][]game.LocSet, agents)

	grp, gctx := errgroup.WithContext(ctx)
	for agent := 0; agent < agents; agent++ {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("knowledge game of agent %d: %w", agent, err)
			}
			k := NewKBSC(game.Project(m.base, agent))
			parts[agent] = k.Build()
			beliefs[agent] = k.Beliefs()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	m.parts = parts
	m.beliefs = beliefs
	return nil
}

// Agents implements game.AbstractGame.
func (m *MKBSC) Agents() int { return m.base.Agents() }

// Actions implements game.AbstractGame.
func (m *MKBSC) Actions(agent int) int { return m.base.Actions(agent) }

// Initial implements game.AbstractGame.
func (m *MKBSC) Initial() string {
	m.mustParts()
	init := make([]game.Loc, len(m.parts))
	for i, p := range m.parts {
		init[i] = p.Initial()
	}
	return m.intern(init)
}

// Successors implements game.AbstractGame.
func (m *MKBSC) Successors(key string) iter.Seq2[game.JointAction, string] {
	s := m.mustTuple(key)
	agents := len(s)

	pre := m.beliefs[0][s[0]].Clone()
	for i := 1; i < agents; i++ {
		pre.IntersectWith(m.beliefs[i][s[i]])
	}

	return func(yield func(game.JointAction, string) bool) {
		for _, a := range m.availableActions(pre) {
			postG := game.NewLocSet(m.base.NumLocs())
			for l := range pre.All() {
				for _, e := range m.base.PostEdges(l, a) {
					postG.Add(e.Loc)
				}
			}

			cands := make([][]game.Loc, agents)
			for i := 0; i < agents; i++ {
				cands[i] = m.parts[i].Post(s[i], game.JointAction{a[i]})
			}

			next := make([]game.Loc, agents)
			stopped := false
			var walk func(agent int, common game.LocSet)
			walk = func(agent int, common game.LocSet) {
				if stopped {
					return
				}
				if agent == agents {
					if !yield(a, m.intern(next)) {
						stopped = true
					}
					return
				}
				for _, c := range cands[agent] {
					narrowed := common.Intersect(m.beliefs[agent][c])
					if narrowed.Empty() {
						continue
					}
					next[agent] = c
					walk(agent+1, narrowed)
					if stopped {
						return
					}
				}
			}
			walk(0, postG)
			if stopped {
				return
			}
		}
	}
}

// availableActions returns the distinct joint actions labelling edges that
// leave any location of pre, in ascending order.
func (m *MKBSC) availableActions(pre game.LocSet) []game.JointAction {
	seen := make(map[string]bool)
	var out []game.JointAction
	for l := range pre.All() {
		for _, a := range m.base.ActionsAt(l) {
			k := a.String()
			if !seen[k] {
				seen[k] = true
				out = append(out, a)
			}
		}
	}
	slices.SortFunc(out, game.JointAction.Compare)
	return out
}

// Observe implements game.AbstractGame. Agent i observes its own knowledge
// location.
func (m *MKBSC) Observe(key string, agent int) game.Loc {
	return m.mustTuple(key)[agent]
}

// IsWinning implements game.AbstractGame.
func (m *MKBSC) IsWinning(key string) bool {
	for i, k := range m.mustTuple(key) {
		if m.parts[i].IsWinning(k) {
			return true
		}
	}
	return false
}

// Describe implements game.AbstractGame.
func (m *MKBSC) Describe(key string) string {
	s := m.mustTuple(key)
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = m.parts[i].Label(k)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (m *MKBSC) intern(t []game.Loc) string {
	buf := make([]byte, 0, 4*len(t))
	for _, l := range t {
		buf = binary.AppendUvarint(buf, uint64(l))
	}
	key := string(buf)
	if _, ok := m.tuples[key]; !ok {
		m.tuples[key] = append([]game.Loc(nil), t...)
	}
	return key
}

func (m *MKBSC) mustTuple(key string) []game.Loc {
	t, ok := m.tuples[key]
	if !ok {
		panic("kbsc: unknown knowledge tuple")
	}
	return t
}

func (m *MKBSC) mustParts() {
	if m.parts == nil {
		panic("kbsc: MKBSC explored before its knowledge games were built")
	}
}
