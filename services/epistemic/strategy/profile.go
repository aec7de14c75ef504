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
	"strings"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

const undefined = game.Act(-1)

// Profile is a partial memoryless strategy profile: for every agent, an
// action per observation class, possibly undefined.
type Profile struct {
	acts [][]game.Act
}

// NewProfile returns the empty profile for g.
func NewProfile(g *game.Game) Profile {
	p := Profile{acts: make([][]game.Act, g.Agents())}
	for agent := range p.acts {
		row := make([]game.Act, g.NumObs(agent))
		for i := range row {
			row[i] = undefined
		}
		p.acts[agent] = row
	}
	return p
}

// Agents returns the number of agents.
func (p Profile) Agents() int { return len(p.acts) }

// Action returns the action of agent at obs, if defined.
func (p Profile) Action(agent int, obs game.Obs) (game.Act, bool) {
	a := p.acts[agent][obs]
	return a, a != undefined
}

// Set defines the action of agent at obs.
func (p Profile) Set(agent int, obs game.Obs, act game.Act) {
	p.acts[agent][obs] = act
}

// Defined returns the number of observations with an action for agent.
func (p Profile) Defined(agent int) int {
	n := 0
	for _, a := range p.acts[agent] {
		if a != undefined {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (p Profile) Clone() Profile {
	c := Profile{acts: make([][]game.Act, len(p.acts))}
	for i, row := range p.acts {
		c.acts[i] = append([]game.Act(nil), row...)
	}
	return c
}

// Key returns a structural identity usable as a map key.
func (p Profile) Key() string {
	var buf []byte
	for _, row := range p.acts {
		buf = binary.AppendUvarint(buf, uint64(len(row)))
		for _, a := range row {
			buf = binary.AppendUvarint(buf, uint64(a+1))
		}
	}
	return string(buf)
}

// Strategies returns one memoryless strategy per agent.
func (p Profile) Strategies() []Strategy {
	out := make([]Strategy, len(p.acts))
	for agent := range p.acts {
		out[agent] = Memoryless{profile: p, agent: agent}
	}
	return out
}

// Format renders the defined entries using the game's labels, one agent per
// line: "agent 0: {start}=0 {bad good}=1".
func (p Profile) Format(g *game.Game) string {
	var b strings.Builder
	for agent, row := range p.acts {
		fmt.Fprintf(&b, "agent %d:", agent)
		for obs, a := range row {
			if a == undefined {
				continue
			}
			var labels []string
			for _, l := range g.ObsSet(agent, game.Obs(obs)) {
				labels = append(labels, g.Label(l))
			}
			fmt.Fprintf(&b, " {%s}=%d", strings.Join(labels, " "), a)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Memoryless plays one agent's part of a profile.
type Memoryless struct {
	profile Profile
	agent   int
}

// Start implements Strategy.
func (m Memoryless) Start() Memory { return 0 }

// Step implements Strategy.
func (m Memoryless) Step(mem Memory, obs game.Obs) (game.Act, Memory, bool) {
	a, ok := m.profile.Action(m.agent, obs)
	return a, mem, ok
}
