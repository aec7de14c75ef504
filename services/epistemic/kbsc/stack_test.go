// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kbsc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
)

type memoryStore struct {
	records map[string]*ExpansionRecord
	loads   int
	hits    int
	saves   int
	failOn  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*ExpansionRecord)}
}

func (m *memoryStore) Load(_ context.Context, key string) (*ExpansionRecord, error) {
	m.loads++
	if m.failOn != nil {
		return nil, m.failOn
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	m.hits++
	return rec, nil
}

func (m *memoryStore) Save(_ context.Context, key string, rec *ExpansionRecord) error {
	m.saves++
	m.records[key] = rec
	return nil
}

func TestStack_PushGetReset(t *testing.T) {
	base := fixtures.CupGame()
	s := NewStack(base)
	ctx := context.Background()

	assert.Equal(t, 1, s.Len())
	assert.Same(t, base, s.Get(0))
	assert.Same(t, base, s.Top())

	g1, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Same(t, g1, s.Get(1))
	assert.Same(t, g1, s.Expansion(1).Game)

	assert.Panics(t, func() { s.Get(2) })
	assert.Panics(t, func() { s.Expansion(0) })

	s.Reset()
	assert.Equal(t, 1, s.Len())
	assert.Same(t, base, s.Top())
	assert.Panics(t, func() { s.Get(1) })
}

func TestStack_FixpointOnCup(t *testing.T) {
	s := NewStack(fixtures.CupGame())
	ctx := context.Background()
	assert.False(t, s.Fixpoint(true))

	for !s.Fixpoint(true) && s.Len() < 6 {
		_, err := s.Push(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, s.Len(), "first fixed point is G^3 ~ G^2")
}

func TestStack_ProjectionIsCached(t *testing.T) {
	s := NewStack(fixtures.CupGame())
	_, err := s.Push(context.Background())
	require.NoError(t, err)

	p := s.Projection(1, 1)
	assert.Same(t, p, s.Projection(1, 1))
	assert.Equal(t, 1, p.Agents())
	assert.Equal(t, s.Get(1).NumLocs(), p.NumLocs())
	assert.NotSame(t, p, s.Projection(1, 0))

	s.Reset()
	assert.Panics(t, func() { s.Projection(1, 1) })
}

func TestStack_UsesStore(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	first := NewStack(fixtures.CupGame(), WithStore(store))
	for i := 0; i < 2; i++ {
		_, err := first.Push(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, 0, store.hits)

	second := NewStack(fixtures.CupGame(), WithStore(store))
	for i := 0; i < 2; i++ {
		_, err := second.Push(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.hits)
	assert.Equal(t, 2, store.saves, "cache hits must not be saved again")

	for level := 1; level < 3; level++ {
		a, b := first.Get(level), second.Get(level)
		assert.Equal(t, a.Spec(), b.Spec())
		assert.Equal(t, first.Expansion(level).Tuples, second.Expansion(level).Tuples)
		for agent := 0; agent < 2; agent++ {
			for l := game.Loc(0); int(l) < a.NumLocs(); l++ {
				assert.True(t, first.Expansion(level).Belief(l, agent).Equal(second.Expansion(level).Belief(l, agent)))
			}
		}
	}
}

func TestStack_StoreFailureFallsBackToBuild(t *testing.T) {
	store := newMemoryStore()
	store.failOn = errors.New("disk on fire")

	s := NewStack(fixtures.CupGame(), WithStore(store))
	g, err := s.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, g.NumLocs())
	assert.Equal(t, 1, store.saves)
}

func TestExpansionRecord_RestoreRejectsCorruption(t *testing.T) {
	base := fixtures.CupGame()
	exp, err := NewMKBSC(base).Build(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(r *ExpansionRecord)
	}{
		{"agent count", func(r *ExpansionRecord) { r.Parts = r.Parts[:1] }},
		{"tuple count", func(r *ExpansionRecord) { r.Tuples = r.Tuples[:2] }},
		{"tuple range", func(r *ExpansionRecord) { r.Tuples[0] = []game.Loc{99, 0} }},
		{"belief range", func(r *ExpansionRecord) { r.Beliefs[0][0] = []game.Loc{42} }},
		{"malformed game", func(r *ExpansionRecord) { r.Game.Locations[0].Obs = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := exp.Record()
			rec.Tuples = cloneTuples(rec.Tuples)
			tt.mutate(rec)
			_, err := rec.Restore(base)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	a, err := Fingerprint(fixtures.CupGame())
	require.NoError(t, err)
	b, err := Fingerprint(fixtures.CupGame())
	require.NoError(t, err)
	c, err := Fingerprint(fixtures.Chain([]game.Obs{0, 1}))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func cloneTuples(in [][]game.Loc) [][]game.Loc {
	out := make([][]game.Loc, len(in))
	for i, t := range in {
		out[i] = append([]game.Loc(nil), t...)
	}
	return out
}
