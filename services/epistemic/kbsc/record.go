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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
)

// Errors returned when persisting or restoring expansions.
var (
	// ErrCacheMiss indicates that no expansion is stored under a key.
	ErrCacheMiss = errors.New("expansion not cached")

	// ErrCorruptRecord indicates that a stored expansion is inconsistent.
	ErrCorruptRecord = errors.New("corrupt expansion record")
)

// ExpansionRecord is the serialized form of an Expansion.
type ExpansionRecord struct {
	Game    game.Spec      `json:"game"`
	Tuples  [][]game.Loc   `json:"tuples"`
	Parts   []game.Spec    `json:"parts"`
	Beliefs [][][]game.Loc `json:"beliefs"`
}

// Record returns the serializable form of e.
func (e *Expansion) Record() *ExpansionRecord {
	rec := &ExpansionRecord{
		Game:    e.Game.Spec(),
		Tuples:  e.Tuples,
		Parts:   make([]game.Spec, len(e.Parts)),
		Beliefs: make([][][]game.Loc, len(e.Beliefs)),
	}
	for i, p := range e.Parts {
		rec.Parts[i] = p.Spec()
	}
	for i, bs := range e.Beliefs {
		rec.Beliefs[i] = make([][]game.Loc, len(bs))
		for k, b := range bs {
			rec.Beliefs[i][k] = b.Slice()
		}
	}
	return rec
}

// Restore rebuilds the expansion of base from a record.
//
// Description:
//
//	The record is checked against base before any game is assembled:
//	agent counts, tuple arity, tuple ranges and belief ranges must agree.
//	Any inconsistency yields ErrCorruptRecord.
func (r *ExpansionRecord) Restore(base *game.Game) (exp *Expansion, err error) {
	agents := base.Agents()
	if r.Game.Agents != agents || len(r.Parts) != agents || len(r.Beliefs) != agents {
		return nil, fmt.Errorf("%w: agent count mismatch", ErrCorruptRecord)
	}
	if len(r.Tuples) != len(r.Game.Locations) {
		return nil, fmt.Errorf("%w: %d tuples for %d locations", ErrCorruptRecord, len(r.Tuples), len(r.Game.Locations))
	}

	defer func() {
		if p := recover(); p != nil {
			exp, err = nil, fmt.Errorf("%w: %v", ErrCorruptRecord, p)
		}
	}()

	exp = &Expansion{
		Game:    game.Assemble(r.Game),
		Tuples:  r.Tuples,
		Parts:   make([]*game.Game, agents),
		Beliefs: make([][]game.LocSet, agents),
	}
	for i, spec := range r.Parts {
		exp.Parts[i] = game.Assemble(spec)
		if len(r.Beliefs[i]) != exp.Parts[i].NumLocs() {
			return nil, fmt.Errorf("%w: agent %d has %d beliefs for %d locations",
				ErrCorruptRecord, i, len(r.Beliefs[i]), exp.Parts[i].NumLocs())
		}
		exp.Beliefs[i] = make([]game.LocSet, len(r.Beliefs[i]))
		for k, locs := range r.Beliefs[i] {
			for _, l := range locs {
				if l < 0 || int(l) >= base.NumLocs() {
					return nil, fmt.Errorf("%w: belief location %d out of range", ErrCorruptRecord, l)
				}
			}
			exp.Beliefs[i][k] = game.LocSetOf(base.NumLocs(), locs...)
		}
	}
	for l, t := range r.Tuples {
		if len(t) != agents {
			return nil, fmt.Errorf("%w: tuple %d has arity %d", ErrCorruptRecord, l, len(t))
		}
		for i, k := range t {
			if k < 0 || int(k) >= exp.Parts[i].NumLocs() {
				return nil, fmt.Errorf("%w: tuple %d references unknown knowledge location", ErrCorruptRecord, l)
			}
		}
	}
	return exp, nil
}

// Fingerprint returns a content hash of g usable as a cache key.
func Fingerprint(g *game.Game) (string, error) {
	data, err := json.Marshal(g.Spec())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
