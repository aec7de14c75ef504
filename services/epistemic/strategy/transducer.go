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
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// Transition is one entry of a transducer table.
type Transition struct {
	Act  game.Act
	Next Memory
}

type transducerKey struct {
	state Memory
	obs   game.Obs
}

// Transducer is a finite-memory strategy given as an explicit table from
// (state, observation) to (action, next state). State 0 is initial.
type Transducer struct {
	states int
	table  map[transducerKey]Transition
}

// Start implements Strategy.
func (t *Transducer) Start() Memory { return 0 }

// Step implements Strategy.
func (t *Transducer) Step(mem Memory, obs game.Obs) (game.Act, Memory, bool) {
	tr, ok := t.table[transducerKey{mem, obs}]
	return tr.Act, tr.Next, ok
}

// States returns the number of memory states.
func (t *Transducer) States() int { return t.states }

// Len returns the number of table entries.
func (t *Transducer) Len() int { return len(t.table) }

// String renders the table as "state obs -> act state" lines, sorted.
func (t *Transducer) String() string {
	keys := make([]transducerKey, 0, len(t.table))
	for k := range t.table {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b transducerKey) int {
		if a.state != b.state {
			return int(a.state) - int(b.state)
		}
		return int(a.obs) - int(b.obs)
	})
	var b strings.Builder
	for _, k := range keys {
		tr := t.table[k]
		fmt.Fprintf(&b, "q%d o%d -> a%d q%d\n", k.state, k.obs, tr.Act, tr.Next)
	}
	return b.String()
}

// Compile turns strategies into explicit transducers over g.
//
// Description:
//
//	Forward exploration of the plays of g consistent with the strategies.
//	Every (agent, memory) pair reached is renumbered densely in discovery
//	order and every (memory, observation) step taken is tabulated. Only
//	steps that occur in some consistent play are kept, so the transducers
//	behave like the inputs on g. Plays stop at winning locations and at
//	steps where a strategy has no action.
func Compile(g *game.Game, strategies []Strategy) []*Transducer {
	agents := len(strategies)
	out := make([]*Transducer, agents)
	ids := make([]map[Memory]Memory, agents)
	for i := range out {
		out[i] = &Transducer{table: make(map[transducerKey]Transition)}
		ids[i] = make(map[Memory]Memory)
	}
	rename := func(agent int, m Memory) Memory {
		id, ok := ids[agent][m]
		if !ok {
			id = Memory(len(ids[agent]))
			ids[agent][m] = id
			out[agent].states++
		}
		return id
	}

	type node struct {
		loc  game.Loc
		mems []Memory
	}
	start := node{loc: g.Initial(), mems: make([]Memory, agents)}
	for i, s := range strategies {
		start.mems[i] = s.Start()
		rename(i, start.mems[i])
	}

	seen := map[string]bool{stateKey(start.loc, start.mems): true}
	queue := []node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if g.IsWinning(n.loc) {
			continue
		}

		act := make(game.JointAction, agents)
		next := make([]Memory, agents)
		complete := true
		for i, s := range strategies {
			a, m, ok := s.Step(n.mems[i], g.ObsOf(n.loc, i))
			if !ok {
				complete = false
				continue
			}
			act[i], next[i] = a, m
			out[i].table[transducerKey{rename(i, n.mems[i]), g.ObsOf(n.loc, i)}] = Transition{
				Act:  a,
				Next: rename(i, m),
			}
		}
		if !complete {
			continue
		}
		for _, e := range g.PostEdges(n.loc, act) {
			k := stateKey(e.Loc, next)
			if seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, node{loc: e.Loc, mems: next})
		}
	}
	return out
}
