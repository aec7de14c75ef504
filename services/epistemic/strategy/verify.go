// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"encoding/binary"
	"fmt"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// Memory is the internal state of a strategy between steps.
type Memory int

// Strategy is one agent's observation-based strategy.
//
// Step consumes the agent's current observation and returns the action to
// play and the memory for the next step. ok is false when the strategy has
// no action for this memory and observation.
type Strategy interface {
	Start() Memory
	Step(mem Memory, obs game.Obs) (act game.Act, next Memory, ok bool)
}

// LosingError reports a play consistent with the strategies that never
// reaches a winning location.
type LosingError struct {
	Loc    game.Loc
	Reason string
}

func (e *LosingError) Error() string {
	return fmt.Sprintf("losing play at location %d: %s", e.Loc, e.Reason)
}

// IncompleteError reports a reachable location where some agent's strategy
// has no action.
type IncompleteError struct {
	Loc    game.Loc
	Agent  int
	Memory Memory
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("agent %d has no action at location %d (memory %d)", e.Agent, e.Loc, e.Memory)
}

const (
	white = iota
	gray
	black
)

// Verify checks that strategies win g from the initial location.
//
// Description:
//
//	Depth-first search over pairs (location, memories of all agents),
//	starting at the initial location. Winning locations end a play. A
//	state reached again while still on the search path closes a cycle
//	that avoids winning locations, so the profile loses. A non-winning
//	location where the chosen joint action has no successor also loses.
//
// Inputs:
//
//	g - The game. Must have at least one location.
//	strategies - One strategy per agent.
//
// Outputs:
//
//	error - nil if every consistent play is winning, *IncompleteError if
//	        a reachable state lacks an action, *LosingError otherwise.
func Verify(g *game.Game, strategies []Strategy) error {
	if len(strategies) != g.Agents() {
		panic(fmt.Sprintf("strategy: %d strategies for %d agents", len(strategies), g.Agents()))
	}
	v := &verifier{g: g, strategies: strategies, color: make(map[string]int)}
	mems := make([]Memory, len(strategies))
	for i, s := range strategies {
		mems[i] = s.Start()
	}
	return v.visit(g.Initial(), mems)
}

type verifier struct {
	g          *game.Game
	strategies []Strategy
	color      map[string]int
}

func (v *verifier) visit(l game.Loc, mems []Memory) error {
	if v.g.IsWinning(l) {
		return nil
	}
	key := stateKey(l, mems)
	switch v.color[key] {
	case gray:
		return &LosingError{Loc: l, Reason: "cycle avoiding winning locations"}
	case black:
		return nil
	}
	v.color[key] = gray

	act := make(game.JointAction, len(v.strategies))
	next := make([]Memory, len(v.strategies))
	for i, s := range v.strategies {
		a, m, ok := s.Step(mems[i], v.g.ObsOf(l, i))
		if !ok {
			return &IncompleteError{Loc: l, Agent: i, Memory: mems[i]}
		}
		act[i] = a
		next[i] = m
	}

	edges := v.g.PostEdges(l, act)
	if len(edges) == 0 {
		return &LosingError{Loc: l, Reason: fmt.Sprintf("joint action %s has no successor", act)}
	}
	for _, e := range edges {
		if err := v.visit(e.Loc, next); err != nil {
			return err
		}
	}
	v.color[key] = black
	return nil
}

func stateKey(l game.Loc, mems []Memory) string {
	buf := binary.AppendUvarint(nil, uint64(l))
	for _, m := range mems {
		buf = binary.AppendVarint(buf, int64(m))
	}
	return string(buf)
}
