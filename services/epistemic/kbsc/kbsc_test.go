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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
)

// forkGame: l0 -> {l1, l2} (indistinguishable), l1 -> w, l2 -> l2.
func forkGame() *game.Game {
	a := game.JointAction{0}
	return game.Assemble(game.Spec{
		Agents:  1,
		Actions: []int{1},
		Locations: []game.LocSpec{
			{Label: "l0", Obs: []game.Obs{0}, Succ: []game.Edge{{Act: a, Loc: 1}, {Act: a, Loc: 2}}},
			{Label: "l1", Obs: []game.Obs{1}, Succ: []game.Edge{{Act: a, Loc: 3}}},
			{Label: "l2", Obs: []game.Obs{1}, Succ: []game.Edge{{Act: a, Loc: 2}}},
			{Label: "w", Winning: true, Obs: []game.Obs{2}, Succ: []game.Edge{{Act: a, Loc: 3}}},
		},
	})
}

func TestKBSC_ForkGame(t *testing.T) {
	base := forkGame()
	k := NewKBSC(base)
	g := k.Build()

	require.Equal(t, 4, g.NumLocs())
	assert.Equal(t, []game.Loc{0}, k.Belief(0).Slice())
	assert.Equal(t, []game.Loc{1, 2}, k.Belief(1).Slice())
	assert.Equal(t, []game.Loc{2}, k.Belief(2).Slice())
	assert.Equal(t, []game.Loc{3}, k.Belief(3).Slice())
	assert.Equal(t, "{l1 l2}", g.Label(1))

	assert.Equal(t, []game.Loc{2, 3}, g.Post(1, game.JointAction{0}))
	assert.Same(t, g, k.Build(), "Build must be idempotent")
}

func TestKBSC_Soundness(t *testing.T) {
	bases := map[string]*game.Game{
		"fork":         forkGame(),
		"cup agent 0":  game.Project(fixtures.CupGame(), 0),
		"cup agent 1":  game.Project(fixtures.CupGame(), 1),
		"merged chain": fixtures.Chain([]game.Obs{0, 1, 1, 0, 2}),
	}
	for name, base := range bases {
		t.Run(name, func(t *testing.T) {
			k := NewKBSC(base)
			g := k.Build()
			for l := game.Loc(0); int(l) < g.NumLocs(); l++ {
				belief := k.Belief(l)
				require.False(t, belief.Empty())

				obs := base.ObsOf(belief.Slice()[0], 0)
				allWinning := true
				for m := range belief.All() {
					assert.Equal(t, obs, base.ObsOf(m, 0), "belief spans two observation classes")
					allWinning = allWinning && base.IsWinning(m)
				}
				assert.Equal(t, allWinning, g.IsWinning(l))
				assert.Equal(t, int(l), int(g.ObsOf(l, 0)), "knowledge game has perfect information")
			}
		})
	}
}

func TestKBSC_PerfectInformationKeepsSize(t *testing.T) {
	base := game.Project(fixtures.CupGame(), 0)
	g := NewKBSC(base).Build()
	assert.Equal(t, base.NumLocs(), g.NumLocs())
	assert.Equal(t, base.NumEdges(), g.NumEdges())
}

func TestKBSC_PanicsOnMultiAgentGame(t *testing.T) {
	assert.Panics(t, func() { NewKBSC(fixtures.CupGame()) })
}

func TestKBSC_BeliefBeforeBuildPanics(t *testing.T) {
	k := NewKBSC(forkGame())
	assert.Panics(t, func() { k.Belief(0) })
}
