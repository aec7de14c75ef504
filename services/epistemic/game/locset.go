// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package game

import (
	"encoding/binary"
	"iter"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// -----------------------------------------------------------------------------
// LocSet
// -----------------------------------------------------------------------------

// LocSet is a set of locations of one game backed by a bitset.
//
// The zero value is an empty set; Add allocates on demand.
type LocSet struct {
	bits *bitset.BitSet
}

// NewLocSet returns an empty set sized for a game with n locations.
func NewLocSet(n int) LocSet {
	return LocSet{bits: bitset.New(uint(n))}
}

// LocSetOf returns the set containing locs.
func LocSetOf(n int, locs ...Loc) LocSet {
	s := NewLocSet(n)
	for _, l := range locs {
		s.bits.Set(uint(l))
	}
	return s
}

// Add inserts l into the set.
func (s *LocSet) Add(l Loc) {
	if s.bits == nil {
		s.bits = bitset.New(uint(l) + 1)
	}
	s.bits.Set(uint(l))
}

// Has reports whether l is in the set.
func (s LocSet) Has(l Loc) bool {
	return s.bits != nil && s.bits.Test(uint(l))
}

// Len returns the number of locations in the set.
func (s LocSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Empty reports whether the set has no elements.
func (s LocSet) Empty() bool {
	return s.bits == nil || s.bits.None()
}

// All yields the locations in ascending order.
func (s LocSet) All() iter.Seq[Loc] {
	return func(yield func(Loc) bool) {
		if s.bits == nil {
			return
		}
		for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
			if !yield(Loc(i)) {
				return
			}
		}
	}
}

// Slice returns the locations in ascending order.
func (s LocSet) Slice() []Loc {
	out := make([]Loc, 0, s.Len())
	for l := range s.All() {
		out = append(out, l)
	}
	return out
}

// Clone returns an independent copy.
func (s LocSet) Clone() LocSet {
	if s.bits == nil {
		return LocSet{}
	}
	return LocSet{bits: s.bits.Clone()}
}

// Intersect returns s ∩ o as a new set.
func (s LocSet) Intersect(o LocSet) LocSet {
	if s.bits == nil || o.bits == nil {
		return LocSet{}
	}
	return LocSet{bits: s.bits.Intersection(o.bits)}
}

// IntersectWith replaces s by s ∩ o.
func (s *LocSet) IntersectWith(o LocSet) {
	if s.bits == nil {
		return
	}
	if o.bits == nil {
		s.bits.ClearAll()
		return
	}
	s.bits.InPlaceIntersection(o.bits)
}

// UnionWith replaces s by s ∪ o.
func (s *LocSet) UnionWith(o LocSet) {
	if o.bits == nil {
		return
	}
	if s.bits == nil {
		s.bits = o.bits.Clone()
		return
	}
	s.bits.InPlaceUnion(o.bits)
}

// Intersects reports whether s and o share a location.
func (s LocSet) Intersects(o LocSet) bool {
	if s.bits == nil || o.bits == nil {
		return false
	}
	return s.bits.IntersectionCardinality(o.bits) > 0
}

// SubsetOf reports whether every location of s is in o.
func (s LocSet) SubsetOf(o LocSet) bool {
	if s.Empty() {
		return true
	}
	if o.bits == nil {
		return false
	}
	return s.bits.DifferenceCardinality(o.bits) == 0
}

// Equal reports whether both sets hold the same locations.
func (s LocSet) Equal(o LocSet) bool {
	return s.Key() == o.Key()
}

// Key returns a structural identity usable as a map key.
//
// Sets with the same elements have the same key regardless of the capacity
// they were allocated with.
func (s LocSet) Key() string {
	if s.bits == nil {
		return ""
	}
	words := s.bits.Bytes()
	end := len(words)
	for end > 0 && words[end-1] == 0 {
		end--
	}
	buf := make([]byte, 8*end)
	for i := 0; i < end; i++ {
		binary.LittleEndian.PutUint64(buf[8*i:], words[i])
	}
	return string(buf)
}

// String renders the set as "{0 2 5}".
func (s LocSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for l := range s.All() {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(strconv.Itoa(int(l)))
	}
	b.WriteByte('}')
	return b.String()
}

// -----------------------------------------------------------------------------
// ObsSubset
// -----------------------------------------------------------------------------

// ObsSubset is a subset of one observation class of one agent.
//
// Description:
//
//	Members are stored as offsets inside the class (see Game.Offset), so a
//	subset of a small class stays small however large the game is. Two
//	subsets are equal when they name the same class and the same offsets;
//	Key provides that identity for hashing.
type ObsSubset struct {
	Obs  Obs
	bits *bitset.BitSet
}

// NewObsSubset returns an empty subset of class obs of agent in g.
func NewObsSubset(g *Game, agent int, obs Obs) ObsSubset {
	return ObsSubset{Obs: obs, bits: bitset.New(uint(len(g.ObsSet(agent, obs))))}
}

// Insert adds l, which must belong to the subset's class.
func (s ObsSubset) Insert(g *Game, agent int, l Loc) {
	if g.ObsOf(l, agent) != s.Obs {
		panic("game: location inserted into a foreign observation class")
	}
	s.bits.Set(uint(g.Offset(l, agent)))
}

// Len returns the number of members.
func (s ObsSubset) Len() int { return int(s.bits.Count()) }

// Empty reports whether the subset has no members.
func (s ObsSubset) Empty() bool { return s.bits.None() }

// Clear removes every member.
func (s ObsSubset) Clear() { s.bits.ClearAll() }

// Clone returns an independent copy.
func (s ObsSubset) Clone() ObsSubset {
	return ObsSubset{Obs: s.Obs, bits: s.bits.Clone()}
}

// Members yields the member locations in ascending order.
func (s ObsSubset) Members(g *Game, agent int) iter.Seq[Loc] {
	class := g.ObsSet(agent, s.Obs)
	return func(yield func(Loc) bool) {
		for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
			if !yield(class[i]) {
				return
			}
		}
	}
}

// LocSet converts the subset to a set over all locations of g.
func (s ObsSubset) LocSet(g *Game, agent int) LocSet {
	out := NewLocSet(g.NumLocs())
	for l := range s.Members(g, agent) {
		out.Add(l)
	}
	return out
}

// Key returns a structural identity usable as a map key.
func (s ObsSubset) Key() string {
	return strconv.Itoa(int(s.Obs)) + ":" + LocSet{bits: s.bits}.Key()
}
