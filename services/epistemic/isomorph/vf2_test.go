// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package isomorph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/isomorph"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// permutations returns every permutation of 0..n-1 (Heap's algorithm).
func permutations(n int) [][]int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	out := [][]int{append([]int(nil), p...)}
	c := make([]int, n)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				p[0], p[i] = p[i], p[0]
			} else {
				p[c[i]], p[i] = p[i], p[c[i]]
			}
			out = append(out, append([]int(nil), p...))
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
	return out
}

// codeGame builds a one-agent game with n locations whose edges are given by
// code: for each ordered pair (i, j), labels bits of code select the actions
// labelling i -> j.
func codeGame(n, labels int, code uint64, winning []bool) *game.Game {
	spec := game.Spec{Agents: 1, Actions: []int{labels}, Locations: make([]game.LocSpec, n)}
	bit := 0
	for i := 0; i < n; i++ {
		spec.Locations[i].Obs = []game.Obs{0}
		if winning != nil {
			spec.Locations[i].Winning = winning[i]
		}
		for j := 0; j < n; j++ {
			for a := 0; a < labels; a++ {
				if code&(1<<bit) != 0 {
					spec.Locations[i].Succ = append(spec.Locations[i].Succ,
						game.Edge{Act: game.JointAction{game.Act(a)}, Loc: game.Loc(j)})
				}
				bit++
			}
		}
	}
	return game.Assemble(spec)
}

// permuteCode renames location i to p[i].
func permuteCode(n, labels int, code uint64, p []int) uint64 {
	var out uint64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for a := 0; a < labels; a++ {
				if code&(1<<((i*n+j)*labels+a)) != 0 {
					out |= 1 << ((p[i]*n+p[j])*labels + a)
				}
			}
		}
	}
	return out
}

type unionFind []int

func newUnionFind(n int) unionFind {
	u := make(unionFind, n)
	for i := range u {
		u[i] = i
	}
	return u
}

func (u unionFind) find(x int) int {
	for u[x] != x {
		u[x] = u[u[x]]
		x = u[x]
	}
	return x
}

func (u unionFind) union(a, b int) { u[u.find(a)] = u.find(b) }

// assertMapping checks that mapping is a label-preserving isomorphism.
func assertMapping(t *testing.T, g0, g1 *game.Game, mapping []game.Loc) {
	t.Helper()
	require.Len(t, mapping, g0.NumLocs())
	seen := map[game.Loc]bool{}
	for l := game.Loc(0); int(l) < g0.NumLocs(); l++ {
		m := mapping[l]
		require.False(t, seen[m], "mapping is not injective")
		seen[m] = true
		assert.Equal(t, g0.IsWinning(l), g1.IsWinning(m))
		for _, e := range g0.Successors(l) {
			assert.Contains(t, g1.Post(m, e.Act), mapping[e.Loc])
		}
	}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestIsIsomorphic_ExhaustiveUnlabelled(t *testing.T) {
	for n := 0; n <= 3; n++ {
		codes := 1 << (n * n)
		uf := newUnionFind(codes)
		perms := permutations(n)
		for c := 0; c < codes; c++ {
			for _, p := range perms {
				uf.union(c, int(permuteCode(n, 1, uint64(c), p)))
			}
		}

		reps := map[int]int{}
		for c := 0; c < codes; c++ {
			if _, ok := reps[uf.find(c)]; !ok {
				reps[uf.find(c)] = c
			}
		}

		games := make([]*game.Game, codes)
		for c := range games {
			games[c] = codeGame(n, 1, uint64(c), nil)
		}
		for c := 0; c < codes; c++ {
			for root, r := range reps {
				want := uf.find(c) == root
				res := isomorph.Match(games[c], games[r], false)
				if res.Isomorphic != want {
					t.Fatalf("n=%d code=%b rep=%b: got %v, want %v", n, c, r, res.Isomorphic, want)
				}
				if res.Isomorphic {
					assertMapping(t, games[c], games[r], res.Mapping)
				}
			}
		}
	}
}

func TestIsIsomorphic_ExhaustiveLabelled(t *testing.T) {
	const n, labels = 2, 2
	codes := 1 << (n * n * labels)
	uf := newUnionFind(codes)
	for c := 0; c < codes; c++ {
		for _, p := range permutations(n) {
			uf.union(c, int(permuteCode(n, labels, uint64(c), p)))
		}
	}
	winning := []bool{true, false}
	for a := 0; a < codes; a++ {
		for b := 0; b < codes; b++ {
			want := uf.find(a) == uf.find(b)
			got := isomorph.IsIsomorphic(codeGame(n, labels, uint64(a), nil), codeGame(n, labels, uint64(b), nil), false)
			if got != want {
				t.Fatalf("a=%b b=%b: got %v, want %v", a, b, got, want)
			}

			// Only the identity keeps the single winning location in place.
			gotWin := isomorph.IsIsomorphic(codeGame(n, labels, uint64(a), winning), codeGame(n, labels, uint64(b), winning), false)
			if gotWin != (a == b) {
				t.Fatalf("a=%b b=%b with winning flags: got %v, want %v", a, b, gotWin, a == b)
			}
		}
	}
}

func TestIsIsomorphic_ReflexiveAndSymmetric(t *testing.T) {
	s := kbsc.NewStack(fixtures.CupGame())
	for i := 0; i < 2; i++ {
		_, err := s.Push(context.Background())
		require.NoError(t, err)
	}
	for i := 0; i < s.Len(); i++ {
		for _, checkObs := range []bool{false, true} {
			assert.True(t, isomorph.IsIsomorphic(s.Get(i), s.Get(i), checkObs), "level %d obs=%v", i, checkObs)
			for j := 0; j < s.Len(); j++ {
				assert.Equal(t,
					isomorph.IsIsomorphic(s.Get(i), s.Get(j), checkObs),
					isomorph.IsIsomorphic(s.Get(j), s.Get(i), checkObs),
					"levels %d, %d obs=%v", i, j, checkObs)
			}
		}
	}
}

func TestIsIsomorphic_CupGameFixpoint(t *testing.T) {
	s := kbsc.NewStack(fixtures.CupGame())
	for i := 0; i < 3; i++ {
		_, err := s.Push(context.Background())
		require.NoError(t, err)
	}

	assert.False(t, isomorph.IsIsomorphic(s.Get(1), s.Get(0), false), "first push must change the game")
	assert.False(t, isomorph.IsIsomorphic(s.Get(2), s.Get(1), true), "second push refines agent one")
	assert.True(t, isomorph.IsIsomorphic(s.Get(2), s.Get(1), false), "graphs agree without observations")
	assert.True(t, isomorph.IsIsomorphic(s.Get(3), s.Get(2), true), "third push is a fixed point")

	res := isomorph.Match(s.Get(3), s.Get(2), true)
	require.True(t, res.Isomorphic)
	assertMapping(t, s.Get(3), s.Get(2), res.Mapping)
	assert.Positive(t, res.States)
}

func TestIsIsomorphic_ObservationStrength(t *testing.T) {
	// Same chain, different partitions.
	a := fixtures.Chain([]game.Obs{0, 1, 1, 2})
	b := fixtures.Chain([]game.Obs{0, 0, 1, 2})
	assert.True(t, isomorph.IsIsomorphic(a, b, false))
	assert.False(t, isomorph.IsIsomorphic(a, b, true))

	// Same class counts and sizes, different grouping along the path.
	d := fixtures.Chain([]game.Obs{0, 1, 0, 1})
	e := fixtures.Chain([]game.Obs{0, 0, 1, 1})
	assert.True(t, isomorph.IsIsomorphic(d, e, false))
	assert.False(t, isomorph.IsIsomorphic(d, e, true))
}

// obsGame is codeGame with the single agent observing obs[i] at location i.
func obsGame(n, labels int, code uint64, obs []game.Obs) *game.Game {
	g := codeGame(n, labels, code, nil)
	spec := g.Spec()
	for i := range spec.Locations {
		spec.Locations[i].Obs = []game.Obs{obs[i]}
	}
	return game.Assemble(spec)
}

// bruteIsomorphic tries every renaming of locations.
func bruteIsomorphic(n, labels int, a uint64, oa []game.Obs, b uint64, ob []game.Obs, checkObs bool) bool {
	for _, p := range permutations(n) {
		if permuteCode(n, labels, a, p) != b {
			continue
		}
		if !checkObs {
			return true
		}
		same := true
		for i := 0; i < n && same; i++ {
			for j := 0; j < n; j++ {
				if (oa[i] == oa[j]) != (ob[p[i]] == ob[p[j]]) {
					same = false
					break
				}
			}
		}
		if same {
			return true
		}
	}
	return false
}

func TestIsIsomorphic_ObservationsExhaustive(t *testing.T) {
	const n, labels = 2, 2
	partitions := [][]game.Obs{{0, 0}, {0, 1}, {1, 0}}

	type entry struct {
		code uint64
		obs  []game.Obs
		g    *game.Game
	}
	var games []entry
	for c := uint64(0); c < 1<<(n*n*labels); c++ {
		for _, obs := range partitions {
			games = append(games, entry{c, obs, obsGame(n, labels, c, obs)})
		}
	}

	for _, x := range games {
		for _, y := range games {
			plain := isomorph.IsIsomorphic(x.g, y.g, false)
			withObs := isomorph.IsIsomorphic(x.g, y.g, true)
			if withObs && !plain {
				t.Fatalf("%b%v vs %b%v: isomorphic with observations but not without", x.code, x.obs, y.code, y.obs)
			}
			if want := bruteIsomorphic(n, labels, x.code, x.obs, y.code, y.obs, true); withObs != want {
				t.Fatalf("%b%v vs %b%v: got %v, want %v", x.code, x.obs, y.code, y.obs, withObs, want)
			}
		}
	}
}

func TestIsIsomorphic_ObservationsUnderRenaming(t *testing.T) {
	const n = 3
	partitions := [][]game.Obs{{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1}, {0, 1, 2}}
	perms := permutations(n)
	for c := uint64(0); c < 1<<(n*n); c++ {
		for _, obs := range partitions {
			g := obsGame(n, 1, c, obs)
			for _, p := range perms {
				img := permuteCode(n, 1, c, p)
				for _, other := range partitions {
					h := obsGame(n, 1, img, other)
					withObs := isomorph.IsIsomorphic(g, h, true)
					if withObs && !isomorph.IsIsomorphic(g, h, false) {
						t.Fatalf("code=%b obs=%v other=%v: strength ordering violated", c, obs, other)
					}
					if want := bruteIsomorphic(n, 1, c, obs, img, other, true); withObs != want {
						t.Fatalf("code=%b obs=%v perm=%v other=%v: got %v, want %v", c, obs, p, other, withObs, want)
					}
				}
			}
		}
	}
}

func TestIsIsomorphic_ObservationsStrongerOnStack(t *testing.T) {
	s := kbsc.NewStack(fixtures.CupGame())
	for i := 0; i < 3; i++ {
		_, err := s.Push(context.Background())
		require.NoError(t, err)
	}
	for i := 0; i < s.Len(); i++ {
		for j := 0; j < s.Len(); j++ {
			if isomorph.IsIsomorphic(s.Get(i), s.Get(j), true) {
				assert.True(t, isomorph.IsIsomorphic(s.Get(i), s.Get(j), false), "levels %d, %d", i, j)
			}
		}
	}
}

func TestIsIsomorphic_SelfLoopLabels(t *testing.T) {
	loop := func(label game.Act) *game.Game {
		return game.Assemble(game.Spec{
			Agents:  1,
			Actions: []int{2},
			Locations: []game.LocSpec{
				{Obs: []game.Obs{0}, Succ: []game.Edge{{Act: game.JointAction{0}, Loc: 1}}},
				{Obs: []game.Obs{0}, Succ: []game.Edge{{Act: game.JointAction{label}, Loc: 1}}},
			},
		})
	}
	assert.True(t, isomorph.IsIsomorphic(loop(0), loop(0), false))
	assert.False(t, isomorph.IsIsomorphic(loop(0), loop(1), false))
}

func TestIsIsomorphic_InitialLocationNotPinned(t *testing.T) {
	// The same edge a -> b with the locations listed in opposite orders.
	g0 := game.Assemble(game.Spec{Agents: 1, Actions: []int{1}, Locations: []game.LocSpec{
		{Obs: []game.Obs{0}, Succ: []game.Edge{{Act: game.JointAction{0}, Loc: 1}}},
		{Obs: []game.Obs{1}},
	}})
	g1 := game.Assemble(game.Spec{Agents: 1, Actions: []int{1}, Locations: []game.LocSpec{
		{Obs: []game.Obs{0}},
		{Obs: []game.Obs{1}, Succ: []game.Edge{{Act: game.JointAction{0}, Loc: 0}}},
	}})
	res := isomorph.Match(g0, g1, true)
	require.True(t, res.Isomorphic)
	assert.Equal(t, []game.Loc{1, 0}, res.Mapping)
}

func TestIsIsomorphic_Prerequisites(t *testing.T) {
	cup := fixtures.CupGame()
	one := fixtures.Chain([]game.Obs{0, 1, 2, 3, 4})
	assert.Panics(t, func() { isomorph.IsIsomorphic(cup, one, false) })

	assert.False(t, isomorph.IsIsomorphic(fixtures.Chain([]game.Obs{0, 1}), fixtures.Chain([]game.Obs{0, 1, 2}), false))

	empty := game.Assemble(game.Spec{Agents: 1, Actions: []int{1}})
	assert.True(t, isomorph.IsIsomorphic(empty, empty, true))
}
