// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format renders games as plain text, Graphviz DOT and TikZ.
//
// Every renderer builds the whole document in memory and writes it with a
// single call.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// Options controls how actions are named in every format.
type Options struct {
	// ActionNames names action i of every agent. Numbers are used when nil
	// or too short.
	ActionNames []string
}

// JointAction renders a joint action as "(w g)" or "(0 1)".
func (o Options) JointAction(a game.JointAction) string {
	parts := make([]string, len(a))
	for i, act := range a {
		if int(act) < len(o.ActionNames) {
			parts[i] = o.ActionNames[act]
		} else {
			parts[i] = fmt.Sprint(int(act))
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Text writes a readable dump of g.
//
// Description:
//
//	One block per location listing its flags, observations and successors
//	grouped by joint action, followed by the observation partition of
//	every agent.
//
// Example output:
//
//	game: 1 agents, 2 locations, 2 edges
//	actions: 1
//	location 0 "a" initial
//	  obs: 0
//	  (0) -> 1
//	location 1 "b" winning
//	  ...
func Text(w io.Writer, g *game.Game, opts Options) error {
	var b strings.Builder
	fmt.Fprintf(&b, "game: %d agents, %d locations, %d edges\n", g.Agents(), g.NumLocs(), g.NumEdges())
	b.WriteString("actions:")
	for agent := 0; agent < g.Agents(); agent++ {
		fmt.Fprintf(&b, " %d", g.Actions(agent))
	}
	b.WriteByte('\n')

	for l := game.Loc(0); int(l) < g.NumLocs(); l++ {
		fmt.Fprintf(&b, "location %d %q", l, g.Label(l))
		if l == 0 {
			b.WriteString(" initial")
		}
		if g.IsWinning(l) {
			b.WriteString(" winning")
		}
		b.WriteString("\n  obs:")
		for _, o := range g.Observe(l) {
			fmt.Fprintf(&b, " %d", o)
		}
		b.WriteByte('\n')
		for _, a := range g.ActionsAt(l) {
			fmt.Fprintf(&b, "  %s ->", opts.JointAction(a))
			for _, to := range g.Post(l, a) {
				fmt.Fprintf(&b, " %d", to)
			}
			b.WriteByte('\n')
		}
	}

	for agent := 0; agent < g.Agents(); agent++ {
		fmt.Fprintf(&b, "agent %d observations:\n", agent)
		for o := 0; o < g.NumObs(agent); o++ {
			fmt.Fprintf(&b, "  %d: %s\n", o, strings.Join(labels(g, g.ObsSet(agent, game.Obs(o))), " "))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func labels(g *game.Game, locs []game.Loc) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = g.Label(l)
	}
	return out
}
