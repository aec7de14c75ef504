// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package format

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// obsColors colour the observation edges of successive agents.
var obsColors = []string{"red", "blue", "darkgreen", "orange", "purple", "brown"}

// DotOptions configures Dot.
type DotOptions struct {
	Options

	// RankDir is the Graphviz rankdir attribute. Empty means "LR".
	RankDir string

	// HideObservations omits the observation class edges.
	HideObservations bool
}

// Dot writes g as a Graphviz digraph.
//
// Description:
//
//	Winning locations are double circles and an invisible point marks the
//	initial location. Parallel edges between two locations are merged
//	into one edge labelled with all their joint actions, joined by ",".
//	Locations one agent cannot tell apart are linked by dashed undirected
//	edges, one colour per agent.
func Dot(w io.Writer, g *game.Game, opts DotOptions) error {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "LR"
	}

	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", rankdir)
	b.WriteString("  node [shape=circle];\n")
	if g.NumLocs() > 0 {
		b.WriteString("  init [shape=point, style=invis];\n")
		b.WriteString("  init -> n0;\n")
	}

	for l := game.Loc(0); int(l) < g.NumLocs(); l++ {
		shape := "circle"
		if g.IsWinning(l) {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "  n%d [label=%s, shape=%s];\n", l, quote(g.Label(l)), shape)
	}

	for l := game.Loc(0); int(l) < g.NumLocs(); l++ {
		for _, group := range groupByTarget(g.Successors(l)) {
			acts := make([]string, len(group.acts))
			for i, a := range group.acts {
				acts[i] = opts.JointAction(a)
			}
			fmt.Fprintf(&b, "  n%d -> n%d [label=%s];\n", l, group.to, quote(strings.Join(acts, ",")))
		}
	}

	if !opts.HideObservations {
		for agent := 0; agent < g.Agents(); agent++ {
			color := obsColors[agent%len(obsColors)]
			for o := 0; o < g.NumObs(agent); o++ {
				class := g.ObsSet(agent, game.Obs(o))
				for i := 1; i < len(class); i++ {
					fmt.Fprintf(&b, "  n%d -> n%d [dir=none, style=dashed, color=%s, constraint=false, label=\"%d\"];\n",
						class[i-1], class[i], color, agent)
				}
			}
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type targetGroup struct {
	to   game.Loc
	acts []game.JointAction
}

// groupByTarget merges edges by target, targets in increasing order and
// actions in edge order.
func groupByTarget(edges []game.Edge) []targetGroup {
	var out []targetGroup
	index := make(map[game.Loc]int)
	for _, e := range edges {
		i, ok := index[e.Loc]
		if !ok {
			i = len(out)
			index[e.Loc] = i
			out = append(out, targetGroup{to: e.Loc})
		}
		out[i].acts = append(out[i].acts, e.Act)
	}
	slices.SortFunc(out, func(a, b targetGroup) int { return int(a.to) - int(b.to) })
	return out
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
