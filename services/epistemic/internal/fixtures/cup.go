// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixtures holds reference games shared by the epistemic tests.
package fixtures

import "github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"

// Cup game actions.
const (
	Wait game.Act = 0
	Grab game.Act = 1
)

// Cup game locations.
const (
	Start game.Loc = iota
	Bad
	Good
	Lose
	Win
)

// CupGameText is CupGame in the declarative input format.
const CupGameText = `# two agents, one of which cannot tell the cups apart
AGENTS one two
ACTIONS w g
LOCATIONS start bad good lose win
INIT start
WIN win
OBS two: bad good
TRANSITIONS
start (w w) [bad good]
start (w g) lose
start ([g] [w g]) lose
bad (w w) win
bad (w g) lose
bad (g [w g]) lose
good (w w) good
good (g g) win
good (w g) lose
good (g w) lose
lose ([w g] [w g]) lose
win ([w g] [w g]) win
`

// CupGame returns the two-agent cup game.
//
// From start, waiting together leads nondeterministically to bad or good;
// any other joint action loses. At bad the agents must wait together. At
// good waiting together stays put and grabbing together wins. Agent one
// sees every location, agent two cannot distinguish bad from good.
//
// The game has no winning strategy profile. Its second MKBSC iterate has
// exactly one, and the third iterate is isomorphic to the second.
func CupGame() *game.Game {
	all := func(to game.Loc) []game.Edge {
		var out []game.Edge
		for a := game.Act(0); a < 2; a++ {
			for b := game.Act(0); b < 2; b++ {
				out = append(out, game.Edge{Act: game.JointAction{a, b}, Loc: to})
			}
		}
		return out
	}
	edge := func(a, b game.Act, to game.Loc) game.Edge {
		return game.Edge{Act: game.JointAction{a, b}, Loc: to}
	}

	return game.Assemble(game.Spec{
		Agents:  2,
		Actions: []int{2, 2},
		Locations: []game.LocSpec{
			Start: {Label: "start", Obs: []game.Obs{0, 0}, Succ: []game.Edge{
				edge(Wait, Wait, Bad), edge(Wait, Wait, Good),
				edge(Wait, Grab, Lose), edge(Grab, Wait, Lose), edge(Grab, Grab, Lose),
			}},
			Bad: {Label: "bad", Obs: []game.Obs{1, 1}, Succ: []game.Edge{
				edge(Wait, Wait, Win),
				edge(Wait, Grab, Lose), edge(Grab, Wait, Lose), edge(Grab, Grab, Lose),
			}},
			Good: {Label: "good", Obs: []game.Obs{2, 1}, Succ: []game.Edge{
				edge(Wait, Wait, Good), edge(Grab, Grab, Win),
				edge(Wait, Grab, Lose), edge(Grab, Wait, Lose),
			}},
			Lose: {Label: "lose", Obs: []game.Obs{3, 2}, Succ: all(Lose)},
			Win:  {Label: "win", Winning: true, Obs: []game.Obs{4, 3}, Succ: all(Win)},
		},
	})
}

// Chain returns a one-agent game l0 -> l1 -> ... -> l(n-1) with a single
// action, where only the last location is winning and observations are
// given by obs (one entry per location).
func Chain(obs []game.Obs) *game.Game {
	n := len(obs)
	spec := game.Spec{Agents: 1, Actions: []int{1}, Locations: make([]game.LocSpec, n)}
	for i := 0; i < n; i++ {
		next := game.Loc(i + 1)
		if i == n-1 {
			next = game.Loc(i)
		}
		spec.Locations[i] = game.LocSpec{
			Label:   string(rune('a' + i)),
			Winning: i == n-1,
			Obs:     []game.Obs{obs[i]},
			Succ:    []game.Edge{{Act: game.JointAction{0}, Loc: next}},
		}
	}
	return game.Assemble(spec)
}
