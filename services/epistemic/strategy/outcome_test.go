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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
)

func TestOutcome_Compare(t *testing.T) {
	ordered := []Outcome{WinIn(0), WinIn(3), EitherIn(1, 1), EitherIn(1, 4), EitherIn(2, 0), Lost()}
	for i := range ordered {
		for j := range ordered {
			got := ordered[i].Compare(ordered[j])
			switch {
			case i < j:
				assert.Negative(t, got, "%s vs %s", ordered[i], ordered[j])
			case i > j:
				assert.Positive(t, got, "%s vs %s", ordered[i], ordered[j])
			default:
				assert.Zero(t, got)
			}
		}
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "win(2)", WinIn(2).String())
	assert.Equal(t, "either(1,3)", EitherIn(1, 3).String())
	assert.Equal(t, "lose", Lost().String())
	assert.Equal(t, "either", Either.String())
}

func TestOutcome_Step(t *testing.T) {
	assert.Equal(t, WinIn(1), WinIn(0).Step())
	assert.Equal(t, EitherIn(3, 2), EitherIn(2, 1).Step())
	assert.Equal(t, Lost(), Lost().Step())
}

func TestMeet(t *testing.T) {
	tests := []struct {
		name string
		in   []Outcome
		want Outcome
	}{
		{"empty", nil, Lost()},
		{"all win takes max", []Outcome{WinIn(1), WinIn(4), WinIn(2)}, WinIn(4)},
		{"win and lose", []Outcome{WinIn(2), Lost()}, EitherIn(2, 2)},
		{"either takes min", []Outcome{EitherIn(3, 5), WinIn(1), Lost()}, EitherIn(1, 1)},
		{"all lose", []Outcome{Lost(), Lost()}, Lost()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Meet(tt.in...))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, Lost(), Join())
	assert.Equal(t, WinIn(3), Join(Lost(), EitherIn(0, 0), WinIn(3)))
	assert.Equal(t, EitherIn(1, 2), Join(EitherIn(1, 2), EitherIn(1, 5), Lost()))
}

func TestAnalyze_Cup(t *testing.T) {
	g := fixtures.CupGame()
	a := Analyze(g)

	assert.Equal(t, WinIn(2), a.Location(fixtures.Start))
	assert.Equal(t, WinIn(1), a.Location(fixtures.Bad))
	assert.Equal(t, WinIn(1), a.Location(fixtures.Good))
	assert.Equal(t, Lost(), a.Location(fixtures.Lose))
	assert.Equal(t, WinIn(0), a.Location(fixtures.Win))

	wait := game.JointAction{fixtures.Wait, fixtures.Wait}
	grab := game.JointAction{fixtures.Grab, fixtures.Grab}

	assert.Equal(t, []game.JointAction{wait}, a.Best(fixtures.Start))
	assert.Equal(t, []game.JointAction{grab}, a.Best(fixtures.Good))
	assert.Nil(t, a.Best(fixtures.Lose))

	ranked := a.Ranked(fixtures.Good)
	assert.Len(t, ranked, 4)
	assert.Equal(t, grab, ranked[0].Act)
	assert.Equal(t, WinIn(1), ranked[0].Outcome)
	assert.Equal(t, wait, ranked[1].Act)
	assert.Equal(t, WinIn(2), ranked[1].Outcome)
	assert.Equal(t, Lose, ranked[2].Outcome.Kind)

	assert.Equal(t, WinIn(2), a.Action(fixtures.Good, wait))
	assert.Equal(t, Lost(), a.Action(fixtures.Good, game.JointAction{fixtures.Grab, fixtures.Wait}))
}

func TestAnalyze_EnvironmentChoice(t *testing.T) {
	// 0 -a0-> {1 winning, 2 dead end}, 0 -a1-> 1 after a detour through 3.
	g := game.Assemble(game.Spec{
		Agents:  1,
		Actions: []int{2},
		Locations: []game.LocSpec{
			{Label: "s", Obs: []game.Obs{0}, Succ: []game.Edge{
				{Act: game.JointAction{0}, Loc: 1},
				{Act: game.JointAction{0}, Loc: 2},
				{Act: game.JointAction{1}, Loc: 3},
			}},
			{Label: "w", Winning: true, Obs: []game.Obs{1}},
			{Label: "d", Obs: []game.Obs{2}},
			{Label: "m", Obs: []game.Obs{3}, Succ: []game.Edge{{Act: game.JointAction{0}, Loc: 1}}},
		},
	})
	a := Analyze(g)

	assert.Equal(t, EitherIn(1, 1), a.Action(0, game.JointAction{0}))
	assert.Equal(t, WinIn(2), a.Action(0, game.JointAction{1}))
	assert.Equal(t, WinIn(2), a.Location(0))
	assert.Equal(t, []game.JointAction{{1}}, a.Best(0))
	assert.Equal(t, Lost(), a.Location(2))
}
