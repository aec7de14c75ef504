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
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// TikzOptions configures Tikz.
type TikzOptions struct {
	Options

	// Radius of the circle the locations are placed on, in cm. Zero means
	// a radius growing with the number of locations.
	Radius float64

	// Standalone wraps the picture in a compilable document.
	Standalone bool
}

// Tikz writes g as a tikzpicture using the automata library.
//
// Locations sit on a circle in index order, starting at the top. Winning
// locations are accepting states and location 0 is the initial state.
// Observation classes are drawn as dashed lines like in Dot.
func Tikz(w io.Writer, g *game.Game, opts TikzOptions) error {
	n := g.NumLocs()
	radius := opts.Radius
	if radius <= 0 {
		radius = 1.5 + 0.4*float64(n)
	}

	var b strings.Builder
	if opts.Standalone {
		b.WriteString("\\documentclass{standalone}\n\\usepackage{tikz}\n\\usetikzlibrary{automata,arrows.meta}\n\\begin{document}\n")
	}
	b.WriteString("\\begin{tikzpicture}[>=Stealth, auto, every state/.style={minimum size=8mm}]\n")

	for l := game.Loc(0); int(l) < n; l++ {
		var style []string
		style = append(style, "state")
		if l == 0 {
			style = append(style, "initial")
		}
		if g.IsWinning(l) {
			style = append(style, "accepting")
		}
		angle := 90 - 360*float64(l)/float64(n)
		fmt.Fprintf(&b, "  \\node[%s] (n%d) at (%.1f:%.2fcm) {%s};\n",
			strings.Join(style, ","), l, angle, radius, texEscape(g.Label(l)))
	}

	if n > 0 {
		b.WriteString("  \\path[->]\n")
		for l := game.Loc(0); int(l) < n; l++ {
			for _, group := range groupByTarget(g.Successors(l)) {
				acts := make([]string, len(group.acts))
				for i, a := range group.acts {
					acts[i] = opts.JointAction(a)
				}
				label := texEscape(strings.Join(acts, ","))
				if group.to == l {
					fmt.Fprintf(&b, "    (n%d) edge[loop above] node{\\scriptsize %s} ()\n", l, label)
				} else {
					fmt.Fprintf(&b, "    (n%d) edge node{\\scriptsize %s} (n%d)\n", l, label, group.to)
				}
			}
		}
		b.WriteString("  ;\n")
	}

	for agent := 0; agent < g.Agents(); agent++ {
		color := obsColors[agent%len(obsColors)]
		for o := 0; o < g.NumObs(agent); o++ {
			class := g.ObsSet(agent, game.Obs(o))
			for i := 1; i < len(class); i++ {
				fmt.Fprintf(&b, "  \\draw[dashed, %s] (n%d) -- (n%d);\n", color, class[i-1], class[i])
			}
		}
	}

	b.WriteString("\\end{tikzpicture}\n")
	if opts.Standalone {
		b.WriteString("\\end{document}\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func texEscape(s string) string {
	return strings.NewReplacer(
		`\`, `\textbackslash{}`,
		`{`, `\{`,
		`}`, `\}`,
		`_`, `\_`,
		`&`, `\&`,
		`%`, `\%`,
		`#`, `\#`,
		`$`, `\$`,
	).Replace(s)
}
