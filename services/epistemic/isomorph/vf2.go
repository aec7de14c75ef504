// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package isomorph decides whether two games are the same up to renaming of
// locations, optionally also requiring the observation partitions of every
// agent to correspond.
package isomorph

import (
	"fmt"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// -----------------------------------------------------------------------------
// Constrained VF2
// -----------------------------------------------------------------------------

// Result is the outcome of one isomorphism check.
type Result struct {
	// Isomorphic is true if a bijection was found.
	Isomorphic bool

	// Mapping sends every location of the first game to its image in the
	// second. Nil unless Isomorphic.
	Mapping []game.Loc

	// States is the number of partial mappings visited.
	States int

	// Pruned is the number of candidate pairs rejected by feasibility.
	Pruned int
}

// IsIsomorphic reports whether g0 and g1 are isomorphic.
//
// Description:
//
//	A location bijection must preserve winning flags and every edge
//	together with its exact joint-action label. When checkObs is set it
//	must also send each observation class of every agent onto a single
//	observation class of the same agent in the other game. The initial
//	locations need not correspond.
//
// Inputs:
//
//	g0, g1 - Games with the same number of agents.
//	checkObs - Whether observation partitions must correspond.
//
// Outputs:
//
//	bool - True if an isomorphism exists.
//
// Limitations:
//
//	Panics if the agent counts differ.
func IsIsomorphic(g0, g1 *game.Game, checkObs bool) bool {
	return Match(g0, g1, checkObs).Isomorphic
}

// Match runs the check and returns the mapping and search statistics.
//
// Description:
//
//	VF2 over labelled directed graphs. The search keeps, for each game,
//	the core mapping and the depth at which every location entered the
//	in- and out-frontier. Candidate pairs come from the out-frontiers if
//	both are non-empty, else from the in-frontiers, else from all unmapped
//	locations; the smallest unmapped location of g0 in the chosen set is
//	paired with every location of the matching set in g1. A frontier that
//	is empty on one side only kills the branch.
//
//	Feasibility of a pair (n, m):
//	  - equal winning flags and equal self-loop labels
//	  - every edge between n and a mapped location has a counterpart with
//	    the same label, in both directions and both games
//	  - equal counts of edges into each frontier category (in, out, both,
//	    neither), for successors and predecessors
//	  - with checkObs, the observation classes of n and m are either
//	    already matched to each other or both unmatched and equally sized
//
//	Observation class correspondences are created lazily and counted per
//	mapped pair so that backtracking releases them.
//
// Thread Safety: Safe for concurrent use; all state is per call.
func Match(g0, g1 *game.Game, checkObs bool) Result {
	if g0.Agents() != g1.Agents() {
		panic(fmt.Sprintf("isomorph: comparing games with %d and %d agents", g0.Agents(), g1.Agents()))
	}
	if !compatible(g0, g1, checkObs) {
		return Result{}
	}

	s := newState(g0, g1, checkObs)
	found := s.match()
	res := Result{Isomorphic: found, States: s.states, Pruned: s.pruned}
	if found {
		res.Mapping = append([]game.Loc(nil), s.core[0]...)
	}
	return res
}

// compatible checks global invariants that any isomorphism preserves.
func compatible(g0, g1 *game.Game, checkObs bool) bool {
	if g0.NumLocs() != g1.NumLocs() || g0.NumEdges() != g1.NumEdges() {
		return false
	}
	for agent := 0; agent < g0.Agents(); agent++ {
		if g0.Actions(agent) != g1.Actions(agent) {
			return false
		}
		if checkObs && g0.NumObs(agent) != g1.NumObs(agent) {
			return false
		}
	}
	return winningCount(g0) == winningCount(g1)
}

func winningCount(g *game.Game) int {
	n := 0
	for l := game.Loc(0); int(l) < g.NumLocs(); l++ {
		if g.IsWinning(l) {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// Search state
// -----------------------------------------------------------------------------

const unmapped = game.Loc(-1)

type state struct {
	g        [2]*game.Game
	checkObs bool
	depth    int

	core [2][]game.Loc
	in   [2][]int
	out  [2][]int

	// obsMap[side][agent][obs] is the matched class on the other side or -1.
	// obsRef[agent][obs] counts mapped pairs relying on the match of g0's
	// class obs.
	obsMap [2][][]game.Obs
	obsRef [][]int

	states int
	pruned int
}

func newState(g0, g1 *game.Game, checkObs bool) *state {
	n := g0.NumLocs()
	s := &state{g: [2]*game.Game{g0, g1}, checkObs: checkObs}
	for side := 0; side < 2; side++ {
		s.core[side] = make([]game.Loc, n)
		for i := range s.core[side] {
			s.core[side][i] = unmapped
		}
		s.in[side] = make([]int, n)
		s.out[side] = make([]int, n)
	}
	if checkObs {
		agents := g0.Agents()
		s.obsRef = make([][]int, agents)
		for side := 0; side < 2; side++ {
			s.obsMap[side] = make([][]game.Obs, agents)
			for agent := 0; agent < agents; agent++ {
				m := make([]game.Obs, s.g[side].NumObs(agent))
				for i := range m {
					m[i] = -1
				}
				s.obsMap[side][agent] = m
			}
		}
		for agent := 0; agent < agents; agent++ {
			s.obsRef[agent] = make([]int, g0.NumObs(agent))
		}
	}
	return s
}

func (s *state) match() bool {
	s.states++
	if s.depth == len(s.core[0]) {
		return true
	}

	n, targets := s.candidates()
	if n == unmapped {
		return false
	}
	for _, m := range targets {
		if !s.feasible(n, m) {
			s.pruned++
			continue
		}
		s.push(n, m)
		if s.match() {
			return true
		}
		s.pop(n, m)
	}
	return false
}

// candidates returns the location of g0 to extend the mapping with and the
// locations of g1 it may be paired with.
func (s *state) candidates() (game.Loc, []game.Loc) {
	out0, out1 := s.frontier(0, s.out[0]), s.frontier(1, s.out[1])
	if len(out0) > 0 && len(out1) > 0 {
		return out0[0], out1
	}
	if len(out0) > 0 || len(out1) > 0 {
		return unmapped, nil
	}

	in0, in1 := s.frontier(0, s.in[0]), s.frontier(1, s.in[1])
	if len(in0) > 0 && len(in1) > 0 {
		return in0[0], in1
	}
	if len(in0) > 0 || len(in1) > 0 {
		return unmapped, nil
	}

	free0, free1 := s.free(0), s.free(1)
	if len(free0) == 0 || len(free1) == 0 {
		return unmapped, nil
	}
	return free0[0], free1
}

func (s *state) frontier(side int, depths []int) []game.Loc {
	var out []game.Loc
	for l, d := range depths {
		if d > 0 && s.core[side][l] == unmapped {
			out = append(out, game.Loc(l))
		}
	}
	return out
}

func (s *state) free(side int) []game.Loc {
	var out []game.Loc
	for l, c := range s.core[side] {
		if c == unmapped {
			out = append(out, game.Loc(l))
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Feasibility
// -----------------------------------------------------------------------------

func (s *state) feasible(n, m game.Loc) bool {
	g0, g1 := s.g[0], s.g[1]
	if g0.IsWinning(n) != g1.IsWinning(m) {
		return false
	}
	if !sameSelfLoops(g0, n, g1, m) {
		return false
	}
	if !s.mappedEdgesAgree(n, m, (*game.Game).Successors, (*game.Game).PostEdges) {
		return false
	}
	if !s.mappedEdgesAgree(n, m, (*game.Game).Predecessors, (*game.Game).PreEdges) {
		return false
	}
	if s.lookahead(0, n, g0.Successors(n)) != s.lookahead(1, m, g1.Successors(m)) {
		return false
	}
	if s.lookahead(0, n, g0.Predecessors(n)) != s.lookahead(1, m, g1.Predecessors(m)) {
		return false
	}
	if s.checkObs && !s.observationsAgree(n, m) {
		return false
	}
	return true
}

func sameSelfLoops(g0 *game.Game, n game.Loc, g1 *game.Game, m game.Loc) bool {
	loops0 := selfLoops(g0.Successors(n), n)
	loops1 := selfLoops(g1.Successors(m), m)
	if len(loops0) != len(loops1) {
		return false
	}
	for i := range loops0 {
		if !loops0[i].Equal(loops1[i]) {
			return false
		}
	}
	return true
}

// selfLoops returns the labels of edges from l to itself, in sorted order.
func selfLoops(edges []game.Edge, l game.Loc) []game.JointAction {
	var out []game.JointAction
	for _, e := range edges {
		if e.Loc == l {
			out = append(out, e.Act)
		}
	}
	return out
}

// mappedEdgesAgree checks that the edges joining n to mapped locations in g0
// correspond exactly to the edges joining m to mapped locations in g1.
func (s *state) mappedEdgesAgree(
	n, m game.Loc,
	edges func(*game.Game, game.Loc) []game.Edge,
	byAction func(*game.Game, game.Loc, game.JointAction) []game.Edge,
) bool {
	count0 := 0
	for _, e := range edges(s.g[0], n) {
		if e.Loc == n || s.core[0][e.Loc] == unmapped {
			continue
		}
		count0++
		if !hasEdge(byAction(s.g[1], m, e.Act), s.core[0][e.Loc]) {
			return false
		}
	}
	count1 := 0
	for _, e := range edges(s.g[1], m) {
		if e.Loc == m || s.core[1][e.Loc] == unmapped {
			continue
		}
		count1++
	}
	return count0 == count1
}

func hasEdge(edges []game.Edge, to game.Loc) bool {
	for _, e := range edges {
		if e.Loc == to {
			return true
		}
	}
	return false
}

// lookahead counts edges from l into unmapped locations of each frontier
// category: index 0 neither, 1 in only, 2 out only, 3 both.
func (s *state) lookahead(side int, l game.Loc, edges []game.Edge) [4]int {
	var counts [4]int
	for _, e := range edges {
		t := e.Loc
		if t == l || s.core[side][t] != unmapped {
			continue
		}
		cat := 0
		if s.in[side][t] > 0 {
			cat |= 1
		}
		if s.out[side][t] > 0 {
			cat |= 2
		}
		counts[cat]++
	}
	return counts
}

func (s *state) observationsAgree(n, m game.Loc) bool {
	g0, g1 := s.g[0], s.g[1]
	for agent := 0; agent < g0.Agents(); agent++ {
		o0, o1 := g0.ObsOf(n, agent), g1.ObsOf(m, agent)
		img, pre := s.obsMap[0][agent][o0], s.obsMap[1][agent][o1]
		switch {
		case img == -1 && pre == -1:
			if len(g0.ObsSet(agent, o0)) != len(g1.ObsSet(agent, o1)) {
				return false
			}
		case img != o1 || pre != o0:
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Push / pop
// -----------------------------------------------------------------------------

func (s *state) push(n, m game.Loc) {
	s.depth++
	d := s.depth
	pair := [2]game.Loc{n, m}
	s.core[0][n] = m
	s.core[1][m] = n

	for side := 0; side < 2; side++ {
		l := pair[side]
		g := s.g[side]
		if s.in[side][l] == 0 {
			s.in[side][l] = d
		}
		if s.out[side][l] == 0 {
			s.out[side][l] = d
		}
		for _, e := range g.Predecessors(l) {
			if s.in[side][e.Loc] == 0 {
				s.in[side][e.Loc] = d
			}
		}
		for _, e := range g.Successors(l) {
			if s.out[side][e.Loc] == 0 {
				s.out[side][e.Loc] = d
			}
		}
	}

	if s.checkObs {
		for agent := 0; agent < s.g[0].Agents(); agent++ {
			o0, o1 := s.g[0].ObsOf(n, agent), s.g[1].ObsOf(m, agent)
			s.obsMap[0][agent][o0] = o1
			s.obsMap[1][agent][o1] = o0
			s.obsRef[agent][o0]++
		}
	}
}

func (s *state) pop(n, m game.Loc) {
	d := s.depth
	s.core[0][n] = unmapped
	s.core[1][m] = unmapped
	for side := 0; side < 2; side++ {
		for l := range s.in[side] {
			if s.in[side][l] == d {
				s.in[side][l] = 0
			}
			if s.out[side][l] == d {
				s.out[side][l] = 0
			}
		}
	}

	if s.checkObs {
		for agent := 0; agent < s.g[0].Agents(); agent++ {
			o0, o1 := s.g[0].ObsOf(n, agent), s.g[1].ObsOf(m, agent)
			s.obsRef[agent][o0]--
			if s.obsRef[agent][o0] == 0 {
				s.obsMap[0][agent][o0] = -1
				s.obsMap[1][agent][o1] = -1
			}
		}
	}
	s.depth--
}
