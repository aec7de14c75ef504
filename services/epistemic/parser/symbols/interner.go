// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbols interns the names used in game descriptions.
package symbols

import (
	"fmt"
	"sync"
)

// Symbol is a small comparable handle for an interned name.
type Symbol uint32

// Interner maps names to symbols and back.
//
// Description:
//
//	Symbols are assigned densely in first-use order. An Interner is an
//	ordinary value with no process-wide state; create one per run (or per
//	test) and pass it to whoever needs it.
//
// Thread Safety: Safe for concurrent use.
type Interner struct {
	mu    sync.RWMutex
	ids   map[string]Symbol
	names []string
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[string]Symbol)}
}

// Intern returns the symbol for name, assigning one on first use.
func (in *Interner) Intern(name string) Symbol {
	in.mu.RLock()
	s, ok := in.ids[name]
	in.mu.RUnlock()
	if ok {
		return s
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if s, ok := in.ids[name]; ok {
		return s
	}
	s = Symbol(len(in.names))
	in.ids[name] = s
	in.names = append(in.names, name)
	return s
}

// Lookup returns the symbol for name if it has been interned.
func (in *Interner) Lookup(name string) (Symbol, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	s, ok := in.ids[name]
	return s, ok
}

// Name returns the name of s. Panics if s was not issued by this interner.
func (in *Interner) Name(s Symbol) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(s) >= len(in.names) {
		panic(fmt.Sprintf("symbols: unknown symbol %d", s))
	}
	return in.names[s]
}

// Len returns the number of interned names.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.names)
}
