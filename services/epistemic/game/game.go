// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package game

import (
	"fmt"
	"slices"
	"sort"
)

// -----------------------------------------------------------------------------
// Game
// -----------------------------------------------------------------------------

// Game is an immutable multi-agent game with imperfect information.
//
// Description:
//
//	Locations are indexed densely from 0. For every location the game stores
//	the winning flag, one observation index per agent, the successor edges
//	sorted by (joint action, target) and the predecessor edges sorted the
//	same way. For every agent it stores the number of actions and the
//	observation partition.
//
//	The transition relation may be partial: a joint action without an edge
//	at a location is simply unavailable there.
//
// Thread Safety: Safe for concurrent use. A Game is never mutated after
// construction.
type Game struct {
	agents  int
	actions []int
	locs    []location

	// classes[agent][obs] lists the locations of that class in ascending order.
	classes [][][]Loc
}

type location struct {
	label   string
	winning bool
	obs     []Obs
	offset  []int
	succ    []Edge
	pred    []Edge
}

// NumLocs returns the number of locations.
func (g *Game) NumLocs() int { return len(g.locs) }

// Agents returns the number of agents.
func (g *Game) Agents() int { return g.agents }

// Actions returns the number of actions available to an agent.
func (g *Game) Actions(agent int) int { return g.actions[agent] }

// Initial returns the initial location.
//
// Panics if the game has no locations.
func (g *Game) Initial() Loc {
	if len(g.locs) == 0 {
		panic("game: initial location of an empty game")
	}
	return 0
}

// Label returns the display label of a location.
func (g *Game) Label(l Loc) string { return g.locs[l].label }

// IsWinning reports whether l is a winning location.
func (g *Game) IsWinning(l Loc) bool { return g.locs[l].winning }

// Observe returns the observation of every agent at l.
//
// The returned slice is shared with the game and must not be modified.
func (g *Game) Observe(l Loc) []Obs { return g.locs[l].obs }

// ObsOf returns the observation of one agent at l.
func (g *Game) ObsOf(l Loc, agent int) Obs { return g.locs[l].obs[agent] }

// Offset returns the position of l inside its observation class for agent.
func (g *Game) Offset(l Loc, agent int) int { return g.locs[l].offset[agent] }

// NumObs returns the number of observation classes of an agent.
func (g *Game) NumObs(agent int) int { return len(g.classes[agent]) }

// ObsSet returns the locations of one observation class in ascending order.
//
// The returned slice is shared with the game and must not be modified.
func (g *Game) ObsSet(agent int, obs Obs) []Loc { return g.classes[agent][obs] }

// Successors returns the outgoing edges of l sorted by joint action and target.
//
// The returned slice is shared with the game and must not be modified.
func (g *Game) Successors(l Loc) []Edge { return g.locs[l].succ }

// Predecessors returns the incoming edges of l sorted by joint action and source.
//
// The returned slice is shared with the game and must not be modified.
func (g *Game) Predecessors(l Loc) []Edge { return g.locs[l].pred }

// PostEdges returns the successor edges of l labelled with a.
//
// Description:
//
//	Binary search over the sorted successor list, O(log deg). The result is
//	a sub-slice of the game's storage and must not be modified.
func (g *Game) PostEdges(l Loc, a JointAction) []Edge {
	return actionRange(g.locs[l].succ, a)
}

// PreEdges returns the predecessor edges of l labelled with a.
func (g *Game) PreEdges(l Loc, a JointAction) []Edge {
	return actionRange(g.locs[l].pred, a)
}

// Post returns the targets of the edges leaving l under a.
func (g *Game) Post(l Loc, a JointAction) []Loc {
	return edgeLocs(g.PostEdges(l, a))
}

// Pre returns the sources of the edges entering l under a.
func (g *Game) Pre(l Loc, a JointAction) []Loc {
	return edgeLocs(g.PreEdges(l, a))
}

// ActionsAt returns the distinct joint actions labelling edges leaving l,
// in ascending order.
func (g *Game) ActionsAt(l Loc) []JointAction {
	succ := g.locs[l].succ
	var out []JointAction
	for i, e := range succ {
		if i == 0 || !succ[i-1].Act.Equal(e.Act) {
			out = append(out, e.Act)
		}
	}
	return out
}

// NumEdges returns the total number of edges.
func (g *Game) NumEdges() int {
	n := 0
	for i := range g.locs {
		n += len(g.locs[i].succ)
	}
	return n
}

func actionRange(edges []Edge, a JointAction) []Edge {
	lo := sort.Search(len(edges), func(i int) bool { return edges[i].Act.Compare(a) >= 0 })
	hi := lo
	for hi < len(edges) && edges[hi].Act.Equal(a) {
		hi++
	}
	return edges[lo:hi]
}

func edgeLocs(edges []Edge) []Loc {
	if len(edges) == 0 {
		return nil
	}
	out := make([]Loc, len(edges))
	for i, e := range edges {
		out[i] = e.Loc
	}
	return out
}

// -----------------------------------------------------------------------------
// Assembly
// -----------------------------------------------------------------------------

// Spec is the explicit description of a game.
//
// Description:
//
//	Spec is the input of Assemble and the output of Game.Spec. It is also the
//	serialized form used by the iterate cache. Locations are listed by index;
//	location 0 is the initial location. Unlike Build, Assemble does not
//	require locations to be reachable.
type Spec struct {
	Agents    int       `json:"agents"`
	Actions   []int     `json:"actions"`
	Locations []LocSpec `json:"locations"`
}

// LocSpec describes one location of a Spec.
type LocSpec struct {
	Label   string `json:"label,omitempty"`
	Winning bool   `json:"winning,omitempty"`
	Obs     []Obs  `json:"obs"`
	Succ    []Edge `json:"succ,omitempty"`
}

// Assemble builds a Game from an explicit Spec.
//
// Description:
//
//	Successor edges are copied, sorted and deduplicated; predecessor lists
//	and observation partitions are derived. Observation indices of every
//	agent must be dense: each index in [0, max] must be used by at least
//	one location.
//
// Inputs:
//
//	s - The game description. Not retained.
//
// Outputs:
//
//	*Game - The assembled game.
//
// Limitations:
//
//	Panics on malformed input (wrong arity, out-of-range indices, sparse
//	observation indices). Malformed specs are programming errors; user
//	input is validated by the parser before it reaches this point.
func Assemble(s Spec) *Game {
	if s.Agents < 1 {
		panic(fmt.Sprintf("game: agent count must be positive, got %d", s.Agents))
	}
	if len(s.Actions) != s.Agents {
		panic(fmt.Sprintf("game: %d action counts for %d agents", len(s.Actions), s.Agents))
	}

	g := &Game{
		agents:  s.Agents,
		actions: slices.Clone(s.Actions),
		locs:    make([]location, len(s.Locations)),
		classes: make([][][]Loc, s.Agents),
	}

	for i, ls := range s.Locations {
		if len(ls.Obs) != s.Agents {
			panic(fmt.Sprintf("game: location %d has %d observations for %d agents", i, len(ls.Obs), s.Agents))
		}
		succ := make([]Edge, 0, len(ls.Succ))
		for _, e := range ls.Succ {
			g.checkEdge(Loc(i), e)
			succ = append(succ, Edge{Act: slices.Clone(e.Act), Loc: e.Loc})
		}
		slices.SortFunc(succ, compareEdges)
		succ = slices.CompactFunc(succ, func(a, b Edge) bool { return compareEdges(a, b) == 0 })

		g.locs[i] = location{
			label:   ls.Label,
			winning: ls.Winning,
			obs:     slices.Clone(ls.Obs),
			offset:  make([]int, s.Agents),
			succ:    succ,
		}
	}

	for i := range g.locs {
		for _, e := range g.locs[i].succ {
			t := &g.locs[e.Loc]
			t.pred = append(t.pred, Edge{Act: e.Act, Loc: Loc(i)})
		}
	}
	for i := range g.locs {
		slices.SortFunc(g.locs[i].pred, compareEdges)
	}

	for agent := 0; agent < s.Agents; agent++ {
		var classes [][]Loc
		for i := range g.locs {
			o := g.locs[i].obs[agent]
			if o < 0 {
				panic(fmt.Sprintf("game: negative observation %d at location %d", o, i))
			}
			for int(o) >= len(classes) {
				classes = append(classes, nil)
			}
			g.locs[i].offset[agent] = len(classes[o])
			classes[o] = append(classes[o], Loc(i))
		}
		for o, c := range classes {
			if len(c) == 0 {
				panic(fmt.Sprintf("game: agent %d observation %d is empty", agent, o))
			}
		}
		g.classes[agent] = classes
	}
	return g
}

func (g *Game) checkEdge(from Loc, e Edge) {
	if len(e.Act) != g.agents {
		panic(fmt.Sprintf("game: edge from %d has %d actions for %d agents", from, len(e.Act), g.agents))
	}
	for agent, a := range e.Act {
		if a < 0 || int(a) >= g.actions[agent] {
			panic(fmt.Sprintf("game: edge from %d uses action %d of agent %d (has %d)", from, a, agent, g.actions[agent]))
		}
	}
	if e.Loc < 0 || int(e.Loc) >= len(g.locs) {
		panic(fmt.Sprintf("game: edge from %d targets unknown location %d", from, e.Loc))
	}
}

// Spec returns an explicit description of the game.
//
// Assemble(g.Spec()) yields a game structurally identical to g.
func (g *Game) Spec() Spec {
	s := Spec{
		Agents:    g.agents,
		Actions:   slices.Clone(g.actions),
		Locations: make([]LocSpec, len(g.locs)),
	}
	for i, l := range g.locs {
		succ := make([]Edge, len(l.succ))
		for j, e := range l.succ {
			succ[j] = Edge{Act: slices.Clone(e.Act), Loc: e.Loc}
		}
		s.Locations[i] = LocSpec{
			Label:   l.label,
			Winning: l.winning,
			Obs:     slices.Clone(l.obs),
			Succ:    succ,
		}
	}
	return s
}
