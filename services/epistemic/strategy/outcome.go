// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy synthesizes and verifies coordinated strategy profiles
// for multi-agent games with imperfect information.
//
// A profile assigns each agent an action per observation. Synthesis is a
// backtracking search over partial profiles, guided by a backward analysis
// of the game under perfect information and driven by the failures reported
// by Verify.
package strategy

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// -----------------------------------------------------------------------------
// Outcome lattice
// -----------------------------------------------------------------------------

// Kind classifies what the agents can achieve from a location.
type Kind uint8

const (
	// Win means the environment cannot prevent reaching a winning location.
	Win Kind = iota

	// Either means a winning location is reachable for some environment
	// choices but not all.
	Either

	// Lose means no winning location is reachable.
	Lose
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Win:
		return "win"
	case Either:
		return "either"
	case Lose:
		return "lose"
	default:
		return "unknown"
	}
}

// Outcome is a value of the outcome lattice.
//
// For Win, Depth bounds the number of steps to a winning location. For
// Either, Depth is the best such bound the environment can grant and Reach
// the fewest steps along which a winning location can be reached. Lose
// carries no depth.
type Outcome struct {
	Kind  Kind
	Depth int
	Reach int
}

// WinIn returns Win(d).
func WinIn(d int) Outcome { return Outcome{Kind: Win, Depth: d, Reach: d} }

// EitherIn returns Either(depth, reach).
func EitherIn(depth, reach int) Outcome { return Outcome{Kind: Either, Depth: depth, Reach: reach} }

// Lost returns Lose.
func Lost() Outcome { return Outcome{Kind: Lose} }

// String renders the outcome as "win(2)", "either(1,3)" or "lose".
func (o Outcome) String() string {
	switch o.Kind {
	case Win:
		return fmt.Sprintf("win(%d)", o.Depth)
	case Either:
		return fmt.Sprintf("either(%d,%d)", o.Depth, o.Reach)
	default:
		return "lose"
	}
}

// Compare orders outcomes from best to worst: Win < Either < Lose, Win by
// depth, Either by depth then reach.
func (o Outcome) Compare(p Outcome) int {
	if o.Kind != p.Kind {
		return int(o.Kind) - int(p.Kind)
	}
	switch o.Kind {
	case Win:
		return o.Depth - p.Depth
	case Either:
		if o.Depth != p.Depth {
			return o.Depth - p.Depth
		}
		return o.Reach - p.Reach
	default:
		return 0
	}
}

// Less reports whether o is strictly better than p.
func (o Outcome) Less(p Outcome) bool { return o.Compare(p) < 0 }

// Step adds one transition to the depths.
func (o Outcome) Step() Outcome {
	if o.Kind == Lose {
		return o
	}
	return Outcome{Kind: o.Kind, Depth: o.Depth + 1, Reach: o.Reach + 1}
}

// Meet combines the outcomes of all successors under one joint action,
// where the environment picks the successor.
//
// All Win yields Win(max depth). Otherwise any Win or Either yields
// Either(min depth, min reach). Otherwise, including the empty case, Lose.
func Meet(outcomes ...Outcome) Outcome {
	if len(outcomes) == 0 {
		return Lost()
	}
	allWin := true
	maxWin := 0
	hope := false
	minDepth, minReach := 0, 0
	for _, o := range outcomes {
		switch o.Kind {
		case Win:
			maxWin = max(maxWin, o.Depth)
		default:
			allWin = false
		}
		if o.Kind == Lose {
			continue
		}
		if !hope || o.Depth < minDepth {
			minDepth = o.Depth
		}
		if !hope || o.Reach < minReach {
			minReach = o.Reach
		}
		hope = true
	}
	switch {
	case allWin:
		return WinIn(maxWin)
	case hope:
		return EitherIn(minDepth, minReach)
	default:
		return Lost()
	}
}

// Join combines the outcomes of alternative joint actions, where the
// agents pick the best one.
func Join(outcomes ...Outcome) Outcome {
	best := Lost()
	for _, o := range outcomes {
		if o.Less(best) {
			best = o
		}
	}
	return best
}

// -----------------------------------------------------------------------------
// Backward analysis
// -----------------------------------------------------------------------------

// ActionOutcome pairs a joint action with its outcome at a location.
type ActionOutcome struct {
	Act     game.JointAction
	Outcome Outcome
}

// Analysis holds the outcome of every location and every available joint
// action of a game, assuming the agents see everything.
type Analysis struct {
	g       *game.Game
	loc     []Outcome
	actions [][]ActionOutcome
}

// Analyze computes the greatest fixed point of the outcome equations.
//
// Description:
//
//	Every location starts at Lose, winning locations at Win(0). A worklist
//	recomputes Join over available joint actions of Step(Meet(successor
//	outcomes)) for each location whose successor improved, until nothing
//	changes. Outcomes only ever improve, so the iteration terminates.
//
// Outputs:
//
//	*Analysis - Per-location and per-action outcomes.
func Analyze(g *game.Game) *Analysis {
	n := g.NumLocs()
	a := &Analysis{
		g:       g,
		loc:     make([]Outcome, n),
		actions: make([][]ActionOutcome, n),
	}

	queued := make([]bool, n)
	var work []game.Loc
	for l := game.Loc(0); int(l) < n; l++ {
		if g.IsWinning(l) {
			a.loc[l] = WinIn(0)
			for _, e := range g.Predecessors(l) {
				if !queued[e.Loc] {
					queued[e.Loc] = true
					work = append(work, e.Loc)
				}
			}
		} else {
			a.loc[l] = Lost()
		}
	}

	for len(work) > 0 {
		l := work[0]
		work = work[1:]
		queued[l] = false
		if g.IsWinning(l) {
			continue
		}
		next := Join(a.evaluate(l)...)
		if !next.Less(a.loc[l]) {
			continue
		}
		a.loc[l] = next
		for _, e := range g.Predecessors(l) {
			if !queued[e.Loc] {
				queued[e.Loc] = true
				work = append(work, e.Loc)
			}
		}
	}

	for l := game.Loc(0); int(l) < n; l++ {
		acts := g.ActionsAt(l)
		outs := a.evaluate(l)
		ranked := make([]ActionOutcome, len(acts))
		for i := range acts {
			ranked[i] = ActionOutcome{Act: acts[i], Outcome: outs[i]}
		}
		slices.SortStableFunc(ranked, func(x, y ActionOutcome) int {
			return x.Outcome.Compare(y.Outcome)
		})
		a.actions[l] = ranked
	}
	return a
}

// evaluate returns Step(Meet(...)) for every available joint action at l,
// in joint action order.
func (a *Analysis) evaluate(l game.Loc) []Outcome {
	acts := a.g.ActionsAt(l)
	out := make([]Outcome, len(acts))
	for i, act := range acts {
		edges := a.g.PostEdges(l, act)
		succ := make([]Outcome, len(edges))
		for j, e := range edges {
			succ[j] = a.loc[e.Loc]
		}
		out[i] = Meet(succ...).Step()
	}
	return out
}

// Location returns the outcome of l.
func (a *Analysis) Location(l game.Loc) Outcome { return a.loc[l] }

// Action returns the outcome of playing act at l; Lose if act is unavailable.
func (a *Analysis) Action(l game.Loc, act game.JointAction) Outcome {
	for _, ao := range a.actions[l] {
		if ao.Act.Equal(act) {
			return ao.Outcome
		}
	}
	return Lost()
}

// Ranked returns the available joint actions at l from best to worst
// outcome, ties in joint action order.
func (a *Analysis) Ranked(l game.Loc) []ActionOutcome { return a.actions[l] }

// Best returns the joint actions achieving the best action outcome at l.
// A single entry means the choice is forced; several mean it is free. Nil
// when every action loses.
func (a *Analysis) Best(l game.Loc) []game.JointAction {
	ranked := a.actions[l]
	if len(ranked) == 0 || ranked[0].Outcome.Kind == Lose {
		return nil
	}
	var out []game.JointAction
	for _, ao := range ranked {
		if ao.Outcome.Compare(ranked[0].Outcome) != 0 {
			break
		}
		out = append(out, ao.Act)
	}
	return out
}
