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

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
)

// -----------------------------------------------------------------------------
// Translation through the knowledge stack
// -----------------------------------------------------------------------------

// lifted plays a strategy of MKBSC(G) in G.
//
// The agent tracks its own location in its knowledge game: after playing a
// and observing o in G the next knowledge location is the unique a-successor
// whose belief lies in class o. The inner strategy receives the expanded
// game's observation for that knowledge location.
type lifted struct {
	inner Strategy
	part  *game.Game
	// kObs[k] is the base observation of knowledge location k; hObs[k] its
	// observation in the expanded game, -1 if no expanded location uses it.
	kObs []game.Obs
	hObs []game.Obs

	mems  []liftedMemory
	index map[liftedMemory]Memory
}

type liftedMemory struct {
	k     game.Loc
	inner Memory
	last  game.Act
}

// Lift turns a strategy of agent in exp.Game into a strategy in base, where
// exp is the MKBSC expansion of base.
//
// Description:
//
//	Memory is the triple (knowledge location, inner memory, last action).
//	Memories are numbered on first use, so a lifted strategy is not safe
//	for concurrent use.
func Lift(exp *kbsc.Expansion, base *game.Game, agent int, inner Strategy) Strategy {
	part := exp.Parts[agent]
	l := &lifted{
		inner: inner,
		part:  part,
		kObs:  make([]game.Obs, part.NumLocs()),
		hObs:  make([]game.Obs, part.NumLocs()),
		index: make(map[liftedMemory]Memory),
	}
	for k := range l.kObs {
		belief := exp.Beliefs[agent][k]
		l.kObs[k] = base.ObsOf(belief.Slice()[0], agent)
		l.hObs[k] = -1
	}
	for h := game.Loc(0); int(h) < exp.Game.NumLocs(); h++ {
		l.hObs[exp.Knowledge(h, agent)] = exp.Game.ObsOf(h, agent)
	}
	return l
}

func (l *lifted) intern(m liftedMemory) Memory {
	if id, ok := l.index[m]; ok {
		return id
	}
	id := Memory(len(l.mems))
	l.mems = append(l.mems, m)
	l.index[m] = id
	return id
}

// Start implements Strategy.
func (l *lifted) Start() Memory {
	return l.intern(liftedMemory{k: l.part.Initial(), inner: l.inner.Start(), last: undefined})
}

// Step implements Strategy.
func (l *lifted) Step(mem Memory, obs game.Obs) (game.Act, Memory, bool) {
	m := l.mems[mem]
	k := m.k
	if m.last != undefined {
		found := false
		for _, e := range l.part.PostEdges(m.k, game.JointAction{m.last}) {
			if l.kObs[e.Loc] == obs {
				k, found = e.Loc, true
				break
			}
		}
		if !found {
			return 0, mem, false
		}
	}
	h := l.hObs[k]
	if h < 0 {
		return 0, mem, false
	}
	a, innerNext, ok := l.inner.Step(m.inner, h)
	if !ok {
		return 0, mem, false
	}
	return a, l.intern(liftedMemory{k: k, inner: innerNext, last: a}), true
}

// Translate maps a profile found at a level of the stack down to the base
// game.
//
// Description:
//
//	The memoryless strategies of profile at stack level `level` are lifted
//	through the expansions level, level-1, ..., 1. The result plays in
//	stack.Get(0), one strategy per agent.
func Translate(stack *kbsc.Stack, level int, profile Profile) []Strategy {
	if level < 0 || level >= stack.Len() {
		panic(fmt.Sprintf("strategy: cannot translate from level %d of a %d-level stack", level, stack.Len()))
	}
	strategies := profile.Strategies()
	for j := level; j >= 1; j-- {
		exp := stack.Expansion(j)
		base := stack.Get(j - 1)
		next := make([]Strategy, len(strategies))
		for agent, s := range strategies {
			next[agent] = Lift(exp, base, agent, s)
		}
		strategies = next
	}
	return strategies
}
