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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
)

var cupActions = Options{ActionNames: []string{"w", "g"}}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestText_Chain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixtures.Chain([]game.Obs{0, 0}), Options{}))

	want := `game: 1 agents, 2 locations, 2 edges
actions: 1
location 0 "a" initial
  obs: 0
  (0) -> 1
location 1 "b" winning
  obs: 0
  (0) -> 1
agent 0 observations:
  0: a b
`
	assert.Equal(t, want, buf.String())
}

func TestText_CupUsesActionNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixtures.CupGame(), cupActions))
	out := buf.String()

	assert.Contains(t, out, "game: 2 agents, 5 locations, 21 edges\n")
	assert.Contains(t, out, "  (w w) -> 1 2\n")
	assert.Contains(t, out, "  (g g) -> 4\n")
	assert.Contains(t, out, "agent 1 observations:\n  0: start\n  1: bad good\n")
}

func TestDot_Chain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dot(&buf, fixtures.Chain([]game.Obs{0, 0}), DotOptions{}))

	want := `digraph G {
  rankdir=LR;
  node [shape=circle];
  init [shape=point, style=invis];
  init -> n0;
  n0 [label="a", shape=circle];
  n1 [label="b", shape=doublecircle];
  n0 -> n1 [label="(0)"];
  n1 -> n1 [label="(0)"];
  n0 -> n1 [dir=none, style=dashed, color=red, constraint=false, label="0"];
}
`
	assert.Equal(t, want, buf.String())
}

func TestDot_CupMergesParallelEdges(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dot(&buf, fixtures.CupGame(), DotOptions{Options: cupActions, RankDir: "TB"}))
	out := buf.String()

	assert.Contains(t, out, "rankdir=TB;")
	assert.Contains(t, out, `n0 -> n3 [label="(w g),(g w),(g g)"];`)
	assert.Contains(t, out, `n4 [label="win", shape=doublecircle];`)
	assert.Contains(t, out, `n1 -> n2 [dir=none, style=dashed, color=blue, constraint=false, label="1"];`)

	buf.Reset()
	require.NoError(t, Dot(&buf, fixtures.CupGame(), DotOptions{HideObservations: true}))
	assert.NotContains(t, buf.String(), "dashed")
}

func TestDot_QuotesLabels(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, quote(`say "hi" \ bye`))
}

func TestTikz_Cup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tikz(&buf, fixtures.CupGame(), TikzOptions{Options: cupActions}))
	out := buf.String()

	assert.Contains(t, out, `\node[state,initial] (n0) at (90.0:3.50cm) {start};`)
	assert.Contains(t, out, `\node[state,accepting] (n4)`)
	assert.Contains(t, out, `(n4) edge[loop above] node{\scriptsize (w w),(w g),(g w),(g g)} ()`)
	assert.Contains(t, out, `\draw[dashed, blue] (n1) -- (n2);`)
	assert.NotContains(t, out, `\documentclass`)

	buf.Reset()
	require.NoError(t, Tikz(&buf, fixtures.CupGame(), TikzOptions{Standalone: true, Radius: 2}))
	assert.Contains(t, buf.String(), `\documentclass{standalone}`)
	assert.Contains(t, buf.String(), `(90.0:2.00cm)`)
	assert.Contains(t, buf.String(), "\\end{document}\n")
}

func TestTikz_EscapesLabels(t *testing.T) {
	assert.Equal(t, `(\{a\}, \{b\_1\})`, texEscape("({a}, {b_1})"))
}

func TestRenderers_PropagateWriteErrors(t *testing.T) {
	g := fixtures.CupGame()
	assert.Error(t, Text(failingWriter{}, g, Options{}))
	assert.Error(t, Dot(failingWriter{}, g, DotOptions{}))
	assert.Error(t, Tikz(failingWriter{}, g, TikzOptions{}))
}
