// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"iter"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// Description is a validated game as written in the text format.
//
// Locations are numbered in declaration order and observations per agent
// in group order followed by the singleton classes. Description implements
// game.AbstractGame[game.Loc, game.Obs]; Build materializes its reachable
// part.
type Description struct {
	agents    []string
	actions   []string
	locations []string
	init      game.Loc
	winning   []bool
	obs       [][]game.Obs
	succ      [][]game.Edge
}

var _ game.AbstractGame[game.Loc, game.Obs] = (*Description)(nil)

// Agents implements game.AbstractGame.
func (d *Description) Agents() int { return len(d.agents) }

// Actions implements game.AbstractGame. Every agent shares the declared
// action list.
func (d *Description) Actions(int) int { return len(d.actions) }

// Initial implements game.AbstractGame.
func (d *Description) Initial() game.Loc { return d.init }

// Successors implements game.AbstractGame. Edges come sorted by joint
// action, then by declaration order of the target.
func (d *Description) Successors(l game.Loc) iter.Seq2[game.JointAction, game.Loc] {
	return func(yield func(game.JointAction, game.Loc) bool) {
		for _, e := range d.succ[l] {
			if !yield(e.Act, e.Loc) {
				return
			}
		}
	}
}

// Observe implements game.AbstractGame.
func (d *Description) Observe(l game.Loc, agent int) game.Obs { return d.obs[agent][l] }

// IsWinning implements game.AbstractGame.
func (d *Description) IsWinning(l game.Loc) bool { return d.winning[l] }

// Describe implements game.AbstractGame and returns the location name.
func (d *Description) Describe(l game.Loc) string { return d.locations[l] }

// AgentNames returns the declared agent names.
func (d *Description) AgentNames() []string { return d.agents }

// ActionNames returns the declared action names; action i is ActionNames()[i].
func (d *Description) ActionNames() []string { return d.actions }

// LocationNames returns the declared location names, reachable or not.
func (d *Description) LocationNames() []string { return d.locations }

// Build returns the reachable part of the description as a game. Location
// 0 is the initial location and labels are the declared names.
func (d *Description) Build() *game.Game {
	g, _ := game.Build[game.Loc, game.Obs](d)
	return g
}
