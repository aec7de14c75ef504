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
	"iter"
	"slices"
)

// AbstractGame is a game described by its locations instead of indices.
//
// Description:
//
//	L identifies a location and O identifies an observation; both need only
//	be comparable. Successors may yield the same (action, target) pair more
//	than once; Build collapses duplicates. Successors may reuse the yielded
//	JointAction slice between iterations.
//
//	Only locations reachable from Initial are materialized by Build.
type AbstractGame[L comparable, O comparable] interface {
	// Agents returns the number of agents.
	Agents() int

	// Actions returns the number of actions of an agent.
	Actions(agent int) int

	// Initial returns the initial location.
	Initial() L

	// Successors yields every (joint action, target) edge leaving l.
	Successors(l L) iter.Seq2[JointAction, L]

	// Observe returns what agent perceives at l.
	Observe(l L, agent int) O

	// IsWinning reports whether l is winning.
	IsWinning(l L) bool

	// Describe returns a display label for l.
	Describe(l L) string
}

// Build materializes the reachable part of an abstract game.
//
// Description:
//
//	Breadth-first exploration from Initial. A location receives its index
//	when first discovered, so the initial location gets index 0. At
//	discovery it is classified into one observation bucket per agent,
//	creating the bucket on first use. After exploration the edge lists are
//	sorted and deduplicated by Assemble.
//
// Inputs:
//
//	ag - The abstract game. Must have at least one agent.
//
// Outputs:
//
//	*Game - The concrete game.
//	[]L - The abstract location of every index.
//
// Example:
//
//	g, keys := game.Build[string, string](k)
func Build[L comparable, O comparable](ag AbstractGame[L, O]) (*Game, []L) {
	agents := ag.Agents()
	spec := Spec{
		Agents:  agents,
		Actions: make([]int, agents),
	}
	for i := range spec.Actions {
		spec.Actions[i] = ag.Actions(i)
	}

	index := make(map[L]Loc)
	buckets := make([]map[O]Obs, agents)
	for i := range buckets {
		buckets[i] = make(map[O]Obs)
	}
	var order []L

	discover := func(l L) Loc {
		idx := Loc(len(order))
		index[l] = idx
		order = append(order, l)

		obs := make([]Obs, agents)
		for agent := 0; agent < agents; agent++ {
			o := ag.Observe(l, agent)
			id, ok := buckets[agent][o]
			if !ok {
				id = Obs(len(buckets[agent]))
				buckets[agent][o] = id
			}
			obs[agent] = id
		}
		spec.Locations = append(spec.Locations, LocSpec{
			Label:   ag.Describe(l),
			Winning: ag.IsWinning(l),
			Obs:     obs,
		})
		return idx
	}

	discover(ag.Initial())
	for next := 0; next < len(order); next++ {
		from := order[next]
		var succ []Edge
		for a, to := range ag.Successors(from) {
			t, ok := index[to]
			if !ok {
				t = discover(to)
			}
			succ = append(succ, Edge{Act: slices.Clone(a), Loc: t})
		}
		spec.Locations[next].Succ = succ
	}

	return Assemble(spec), order
}

// -----------------------------------------------------------------------------
// Projection
// -----------------------------------------------------------------------------

// Project restricts a game to a single agent.
//
// Description:
//
//	The projection keeps the location indices, winning flags and labels of
//	g. Each edge keeps only the agent's own action; parallel edges that
//	become identical collapse. The observation partition is the agent's.
//	Projecting a one-agent game yields a structurally identical game.
//
// Inputs:
//
//	g - The game to project.
//	agent - Agent index in [0, g.Agents()).
//
// Outputs:
//
//	*Game - A one-agent game over the same location indices.
func Project(g *Game, agent int) *Game {
	if agent < 0 || agent >= g.agents {
		panic("game: projection onto unknown agent")
	}
	spec := Spec{
		Agents:    1,
		Actions:   []int{g.actions[agent]},
		Locations: make([]LocSpec, len(g.locs)),
	}
	for i, l := range g.locs {
		succ := make([]Edge, len(l.succ))
		for j, e := range l.succ {
			succ[j] = Edge{Act: JointAction{e.Act[agent]}, Loc: e.Loc}
		}
		spec.Locations[i] = LocSpec{
			Label:   l.label,
			Winning: l.winning,
			Obs:     []Obs{l.obs[agent]},
			Succ:    succ,
		}
	}
	return Assemble(spec)
}
