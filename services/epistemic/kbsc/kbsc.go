// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kbsc implements the knowledge-based subset construction for one
// agent (KBSC), its multi-agent generalization (MKBSC) and the stack of
// iterated expansions G, G^1K, G^2K, ...
//
// # Knowledge games
//
// The KBSC of a one-agent game G has one location per belief: a non-empty
// set of G-locations the agent cannot distinguish after some history. The
// resulting game has perfect information. MKBSC applies KBSC to the
// projection of G onto each agent and keeps the tuples of beliefs that are
// jointly consistent with the real play.
//
// # Thread Safety
//
// Constructions hold per-instance scratch state and are not safe for
// concurrent use. The games they produce are immutable.
package kbsc

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// -----------------------------------------------------------------------------
// KBSC
// -----------------------------------------------------------------------------

// KBSC is the knowledge-based subset construction of a one-agent game.
//
// Description:
//
//	Belief states are subsets of a single observation class of the base
//	game. The initial belief is {initial location}. The successor of a
//	belief B under action a is computed by taking the union of Post(l, a)
//	for l in B and splitting it by observation; every non-empty part is
//	one successor. A belief is winning iff all its members are winning.
//
//	KBSC implements game.AbstractGame over belief keys; Build materializes
//	it. Beliefs are identified structurally.
//
// Thread Safety: Not safe for concurrent use.
type KBSC struct {
	base    *game.Game
	beliefs map[string]game.ObsSubset

	// scratch[obs] collects successors observed as obs during one
	// Successors step; touched lists the non-empty entries.
	scratch []game.ObsSubset
	touched []game.Obs

	built  *game.Game
	keys   []string
	locSet []game.LocSet
}

// NewKBSC prepares the construction for a one-agent game.
//
// Panics if base does not have exactly one agent or has no locations.
func NewKBSC(base *game.Game) *KBSC {
	if base.Agents() != 1 {
		panic(fmt.Sprintf("kbsc: KBSC needs a one-agent game, got %d agents", base.Agents()))
	}
	if base.NumLocs() == 0 {
		panic("kbsc: KBSC of an empty game")
	}
	k := &KBSC{
		base:    base,
		beliefs: make(map[string]game.ObsSubset),
		scratch: make([]game.ObsSubset, base.NumObs(0)),
	}
	for o := range k.scratch {
		k.scratch[o] = game.NewObsSubset(base, 0, game.Obs(o))
	}
	return k
}

// Base returns the game the construction was applied to.
func (k *KBSC) Base() *game.Game { return k.base }

// Agents implements game.AbstractGame.
func (k *KBSC) Agents() int { return 1 }

// Actions implements game.AbstractGame.
func (k *KBSC) Actions(int) int { return k.base.Actions(0) }

// Initial implements game.AbstractGame.
func (k *KBSC) Initial() string {
	l0 := k.base.Initial()
	s := game.NewObsSubset(k.base, 0, k.base.ObsOf(l0, 0))
	s.Insert(k.base, 0, l0)
	return k.intern(s)
}

// Successors implements game.AbstractGame.
func (k *KBSC) Successors(key string) iter.Seq2[game.JointAction, string] {
	belief := k.mustBelief(key)
	return func(yield func(game.JointAction, string) bool) {
		for a := 0; a < k.base.Actions(0); a++ {
			act := game.JointAction{game.Act(a)}
			for _, next := range k.step(belief, act) {
				if !yield(act, next) {
					return
				}
			}
		}
	}
}

// step returns the keys of the successors of belief under act, ordered by
// observation index.
func (k *KBSC) step(belief game.ObsSubset, act game.JointAction) []string {
	for _, o := range k.touched {
		k.scratch[o].Clear()
	}
	k.touched = k.touched[:0]

	for l := range belief.Members(k.base, 0) {
		for _, e := range k.base.PostEdges(l, act) {
			o := k.base.ObsOf(e.Loc, 0)
			if k.scratch[o].Empty() {
				k.touched = append(k.touched, o)
			}
			k.scratch[o].Insert(k.base, 0, e.Loc)
		}
	}
	slices.Sort(k.touched)

	out := make([]string, 0, len(k.touched))
	for _, o := range k.touched {
		out = append(out, k.intern(k.scratch[o].Clone()))
	}
	return out
}

// Observe implements game.AbstractGame. The agent observes its own belief.
func (k *KBSC) Observe(key string, _ int) string { return key }

// IsWinning implements game.AbstractGame.
func (k *KBSC) IsWinning(key string) bool {
	for l := range k.mustBelief(key).Members(k.base, 0) {
		if !k.base.IsWinning(l) {
			return false
		}
	}
	return true
}

// Describe implements game.AbstractGame.
func (k *KBSC) Describe(key string) string {
	var labels []string
	for l := range k.mustBelief(key).Members(k.base, 0) {
		labels = append(labels, k.base.Label(l))
	}
	return "{" + strings.Join(labels, " ") + "}"
}

func (k *KBSC) intern(s game.ObsSubset) string {
	key := s.Key()
	if _, ok := k.beliefs[key]; !ok {
		k.beliefs[key] = s
	}
	return key
}

func (k *KBSC) mustBelief(key string) game.ObsSubset {
	s, ok := k.beliefs[key]
	if !ok {
		panic("kbsc: unknown belief state")
	}
	return s
}

// Build materializes the construction. Repeated calls return the same game.
func (k *KBSC) Build() *game.Game {
	if k.built != nil {
		return k.built
	}
	g, keys := game.Build[string, string](k)
	k.built = g
	k.keys = keys
	k.locSet = make([]game.LocSet, len(keys))
	for i, key := range keys {
		k.locSet[i] = k.beliefs[key].LocSet(k.base, 0)
	}
	return g
}

// Belief returns the base locations represented by location l of the built
// game.
//
// Panics if Build has not been called.
func (k *KBSC) Belief(l game.Loc) game.LocSet {
	if k.built == nil {
		panic("kbsc: Belief before Build")
	}
	return k.locSet[l]
}

// Beliefs returns the belief of every location of the built game, indexed
// by location.
func (k *KBSC) Beliefs() []game.LocSet {
	if k.built == nil {
		panic("kbsc: Beliefs before Build")
	}
	return k.locSet
}
