// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package game provides the immutable multi-agent game model used by every
// epistemic transformation.
//
// A Game is a finite directed graph whose edges are labelled by joint actions
// (one action per agent). Every location carries a winning flag and, for each
// agent, the index of the observation class the agent perceives there. The
// observation classes of one agent partition the locations.
//
// Games are built either from an AbstractGame by breadth-first exploration
// (Build) or from explicit location records (Assemble). Once built a Game is
// never mutated and can be shared freely between goroutines.
package game

import (
	"slices"
	"strconv"
	"strings"
)

// Loc is the index of a location inside one Game.
//
// Index 0 is the initial location of every non-empty game. Indices are only
// meaningful relative to the Game that produced them.
type Loc int

// Obs is the index of an observation class of a single agent.
type Obs int

// Act is the index of an action of a single agent.
type Act int

// JointAction holds one action per agent, ordered by agent index.
type JointAction []Act

// Compare orders joint actions lexicographically.
//
// Returns a negative number when a < b, zero when equal and a positive
// number when a > b.
func (a JointAction) Compare(b JointAction) int {
	return slices.Compare(a, b)
}

// Equal reports whether both joint actions pick the same action for every agent.
func (a JointAction) Equal(b JointAction) bool {
	return slices.Equal(a, b)
}

// String renders the joint action as "(0 1)".
func (a JointAction) String() string {
	parts := make([]string, len(a))
	for i, act := range a {
		parts[i] = strconv.Itoa(int(act))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Edge is a labelled transition. In a successor list Loc is the target, in a
// predecessor list it is the source.
type Edge struct {
	Act JointAction `json:"act"`
	Loc Loc         `json:"loc"`
}

// compareEdges orders edges by joint action, then by location.
func compareEdges(a, b Edge) int {
	if c := a.Act.Compare(b.Act); c != 0 {
		return c
	}
	return int(a.Loc) - int(b.Loc)
}
