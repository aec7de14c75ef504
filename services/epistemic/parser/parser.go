// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parser reads games written in the declarative text format.
//
// # Format
//
//	# comment
//	AGENTS a b
//	ACTIONS w g
//	LOCATIONS start bad good lose win
//	INIT start
//	WIN win
//	OBS b: bad good | lose
//	TRANSITIONS
//	start (w w) [bad good]
//	start ([w g] g) lose
//
// Every agent has the actions listed under ACTIONS. OBS groups locations
// an agent cannot tell apart; groups are separated by "|" and locations
// not listed form singleton classes. A bracket group may stand for the
// source, any action or the target of a transition; the line expands to
// every combination.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/parser/symbols"
)

// Error is a validation or syntax error in a game description.
//
// Line is 1-based; zero means the error concerns the description as a
// whole (for example a missing INIT).
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

const (
	kwAgents      = "AGENTS"
	kwActions     = "ACTIONS"
	kwLocations   = "LOCATIONS"
	kwInit        = "INIT"
	kwWin         = "WIN"
	kwObs         = "OBS"
	kwTransitions = "TRANSITIONS"
)

// namespace is one kind of declared name: agents, actions or locations.
type namespace struct {
	kind  string
	names []string
	index map[symbols.Symbol]int
}

func newNamespace(kind string) *namespace {
	return &namespace{kind: kind, index: make(map[symbols.Symbol]int)}
}

func (ns *namespace) declared() bool { return ns.names != nil }

// Parser turns game descriptions into Descriptions.
//
// Thread Safety: Safe for concurrent use if the interner is; each Parse
// call keeps its own state.
type Parser struct {
	symbols *symbols.Interner
}

// New returns a parser interning names into in. A nil in gets a fresh
// interner.
func New(in *symbols.Interner) *Parser {
	if in == nil {
		in = symbols.NewInterner()
	}
	return &Parser{symbols: in}
}

// Symbols returns the parser's interner.
func (p *Parser) Symbols() *symbols.Interner { return p.symbols }

// ParseFile parses the description stored at path.
func (p *Parser) ParseFile(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open game description: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// ParseString parses a description held in memory.
func (p *Parser) ParseString(src string) (*Description, error) {
	return p.Parse(strings.NewReader(src))
}

// Parse reads a game description.
//
// Description:
//
//	Reads line by line. Declarations may come in any order as long as
//	names are declared before they are used; transitions follow the
//	TRANSITIONS keyword. All checks happen here, so a returned
//	Description is always a well-formed game.
//
// Inputs:
//
//	r - The description text.
//
// Outputs:
//
//	*Description - The parsed game.
//	error - *Error on invalid input, or a read error.
func (p *Parser) Parse(r io.Reader) (*Description, error) {
	st := &parseState{
		syms:      p.symbols,
		agents:    newNamespace("agent"),
		actions:   newNamespace("action"),
		locations: newNamespace("location"),
		init:      -1,
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		toks := tokenize(text)
		if len(toks) == 0 {
			continue
		}
		if err := st.line(line, toks); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read game description: %w", err)
	}
	return st.finish()
}

// tokenize splits a line into names and the punctuation ( ) [ ] | :.
func tokenize(line string) []string {
	var toks []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			toks = append(toks, line[start:end])
			start = -1
		}
	}
	for i, r := range line {
		switch {
		case isPunct(r):
			flush(i)
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(line))
	return toks
}

func isPunct(r rune) bool { return strings.ContainsRune("()[]|:", r) }

func isName(tok string) bool {
	return len(tok) > 0 && !(len(tok) == 1 && isPunct(rune(tok[0])))
}

// -----------------------------------------------------------------------------
// Parse state
// -----------------------------------------------------------------------------

type parseState struct {
	syms *symbols.Interner

	agents    *namespace
	actions   *namespace
	locations *namespace

	init       game.Loc
	winSeen    bool
	winning    []bool
	obsGroups  map[int][][]int // agent -> groups of location indices
	obsLine    map[int]int
	inTransits bool
	succ       [][]game.Edge
}

func (st *parseState) errorf(line int, format string, args ...any) error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (st *parseState) line(line int, toks []string) error {
	switch toks[0] {
	case kwAgents:
		return st.declare(line, st.agents, toks[1:])
	case kwActions:
		return st.declare(line, st.actions, toks[1:])
	case kwLocations:
		if err := st.declare(line, st.locations, toks[1:]); err != nil {
			return err
		}
		st.winning = make([]bool, len(st.locations.names))
		st.succ = make([][]game.Edge, len(st.locations.names))
		return nil
	case kwInit:
		return st.parseInit(line, toks[1:])
	case kwWin:
		return st.parseWin(line, toks[1:])
	case kwObs:
		return st.parseObs(line, toks[1:])
	case kwTransitions:
		return st.parseTransitionsHeader(line, toks[1:])
	}
	if st.inTransits {
		return st.parseTransition(line, toks)
	}
	return st.errorf(line, "unknown keyword %q", toks[0])
}

func (st *parseState) declare(line int, ns *namespace, names []string) error {
	if ns.declared() {
		return st.errorf(line, "duplicate %s declaration", strings.ToUpper(ns.kind)+"S")
	}
	if len(names) == 0 {
		return st.errorf(line, "no %ss declared", ns.kind)
	}
	ns.names = make([]string, 0, len(names))
	for _, name := range names {
		if !isName(name) {
			return st.errorf(line, "unexpected %q in %s list", name, ns.kind)
		}
		s := st.syms.Intern(name)
		if _, dup := ns.index[s]; dup {
			return st.errorf(line, "duplicate %s %q", ns.kind, name)
		}
		ns.index[s] = len(ns.names)
		ns.names = append(ns.names, name)
	}
	return nil
}

func (st *parseState) resolve(line int, ns *namespace, name string) (int, error) {
	if !ns.declared() {
		return 0, st.errorf(line, "%s %q used before %sS is declared", ns.kind, name, strings.ToUpper(ns.kind))
	}
	if !isName(name) {
		return 0, st.errorf(line, "expected %s name, found %q", ns.kind, name)
	}
	if s, ok := st.syms.Lookup(name); ok {
		if i, ok := ns.index[s]; ok {
			return i, nil
		}
	}
	return 0, st.errorf(line, "undefined %s %q", ns.kind, name)
}

func (st *parseState) parseInit(line int, args []string) error {
	if st.init >= 0 {
		return st.errorf(line, "duplicate INIT declaration")
	}
	if len(args) != 1 {
		return st.errorf(line, "INIT takes exactly one location")
	}
	l, err := st.resolve(line, st.locations, args[0])
	if err != nil {
		return err
	}
	st.init = game.Loc(l)
	return nil
}

func (st *parseState) parseWin(line int, args []string) error {
	if st.winSeen {
		return st.errorf(line, "duplicate WIN declaration")
	}
	if !st.locations.declared() {
		return st.errorf(line, "WIN before LOCATIONS")
	}
	st.winSeen = true
	for _, name := range args {
		l, err := st.resolve(line, st.locations, name)
		if err != nil {
			return err
		}
		st.winning[l] = true
	}
	return nil
}

func (st *parseState) parseObs(line int, args []string) error {
	if len(args) < 2 || args[1] != ":" {
		return st.errorf(line, "expected OBS agent: groups")
	}
	agent, err := st.resolve(line, st.agents, args[0])
	if err != nil {
		return err
	}
	if st.obsGroups == nil {
		st.obsGroups = make(map[int][][]int)
		st.obsLine = make(map[int]int)
	}
	if prev, dup := st.obsLine[agent]; dup {
		return st.errorf(line, "duplicate OBS declaration for agent %q (first on line %d)", args[0], prev)
	}
	st.obsLine[agent] = line

	seen := make(map[int]bool)
	var groups [][]int
	var group []int
	closeGroup := func() error {
		if len(group) == 0 {
			return st.errorf(line, "empty observation group")
		}
		groups = append(groups, group)
		group = nil
		return nil
	}
	for _, tok := range args[2:] {
		if tok == "|" {
			if err := closeGroup(); err != nil {
				return err
			}
			continue
		}
		l, err := st.resolve(line, st.locations, tok)
		if err != nil {
			return err
		}
		if seen[l] {
			return st.errorf(line, "location %q appears in two observation classes", tok)
		}
		seen[l] = true
		group = append(group, l)
	}
	if err := closeGroup(); err != nil {
		return err
	}
	st.obsGroups[agent] = groups
	return nil
}

func (st *parseState) parseTransitionsHeader(line int, args []string) error {
	if st.inTransits {
		return st.errorf(line, "duplicate TRANSITIONS section")
	}
	if len(args) != 0 {
		return st.errorf(line, "unexpected %q after TRANSITIONS", args[0])
	}
	for _, ns := range []*namespace{st.agents, st.actions, st.locations} {
		if !ns.declared() {
			return st.errorf(line, "TRANSITIONS before %sS", strings.ToUpper(ns.kind))
		}
	}
	st.inTransits = true
	return nil
}

// parseTransition reads "src (a1 ... an) dst" where every term is a name or
// a bracket group of names.
func (st *parseState) parseTransition(line int, toks []string) error {
	c := &cursor{toks: toks}

	srcs, err := st.term(line, c, st.locations)
	if err != nil {
		return err
	}
	if c.next() != "(" {
		return st.errorf(line, "expected '(' after source location")
	}
	var acts [][]int
	for c.peek() != ")" {
		if c.done() {
			return st.errorf(line, "missing ')'")
		}
		alts, err := st.term(line, c, st.actions)
		if err != nil {
			return err
		}
		acts = append(acts, alts)
	}
	c.next()
	if len(acts) != len(st.agents.names) {
		return st.errorf(line, "joint action has %d entries, want one per agent (%d)", len(acts), len(st.agents.names))
	}
	dsts, err := st.term(line, c, st.locations)
	if err != nil {
		return err
	}
	if !c.done() {
		return st.errorf(line, "unexpected %q after target", c.peek())
	}

	joint := product(acts)
	for _, src := range srcs {
		for _, a := range joint {
			for _, dst := range dsts {
				st.succ[src] = append(st.succ[src], game.Edge{Act: a, Loc: game.Loc(dst)})
			}
		}
	}
	return nil
}

// term reads a name or a bracket group and resolves it in ns.
func (st *parseState) term(line int, c *cursor, ns *namespace) ([]int, error) {
	if c.done() {
		return nil, st.errorf(line, "expected %s, found end of line", ns.kind)
	}
	if c.peek() != "[" {
		i, err := st.resolve(line, ns, c.next())
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	}
	c.next()
	var out []int
	for c.peek() != "]" {
		if c.done() {
			return nil, st.errorf(line, "missing ']'")
		}
		i, err := st.resolve(line, ns, c.next())
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	c.next()
	if len(out) == 0 {
		return nil, st.errorf(line, "empty bracket group")
	}
	return out, nil
}

// product expands per-agent alternatives into every joint action.
func product(alts [][]int) []game.JointAction {
	out := []game.JointAction{{}}
	for _, choices := range alts {
		next := make([]game.JointAction, 0, len(out)*len(choices))
		for _, prefix := range out {
			for _, a := range choices {
				ja := make(game.JointAction, len(prefix), len(prefix)+1)
				copy(ja, prefix)
				next = append(next, append(ja, game.Act(a)))
			}
		}
		out = next
	}
	return out
}

func (st *parseState) finish() (*Description, error) {
	for _, ns := range []*namespace{st.agents, st.actions, st.locations} {
		if !ns.declared() {
			return nil, &Error{Msg: fmt.Sprintf("missing %sS declaration", strings.ToUpper(ns.kind))}
		}
	}
	if st.init < 0 {
		return nil, &Error{Msg: "missing INIT declaration"}
	}

	n := len(st.locations.names)
	obs := make([][]game.Obs, len(st.agents.names))
	for agent := range obs {
		row := make([]game.Obs, n)
		for l := range row {
			row[l] = -1
		}
		next := game.Obs(0)
		for _, group := range st.obsGroups[agent] {
			for _, l := range group {
				row[l] = next
			}
			next++
		}
		for l := range row {
			if row[l] < 0 {
				row[l] = next
				next++
			}
		}
		obs[agent] = row
	}

	for l, edges := range st.succ {
		slices.SortFunc(edges, func(a, b game.Edge) int {
			if c := a.Act.Compare(b.Act); c != 0 {
				return c
			}
			return int(a.Loc) - int(b.Loc)
		})
		st.succ[l] = slices.CompactFunc(edges, func(a, b game.Edge) bool {
			return a.Loc == b.Loc && a.Act.Equal(b.Act)
		})
	}

	return &Description{
		agents:    st.agents.names,
		actions:   st.actions.names,
		locations: st.locations.names,
		init:      st.init,
		winning:   st.winning,
		obs:       obs,
		succ:      st.succ,
	}, nil
}

type cursor struct {
	toks []string
	pos  int
}

func (c *cursor) done() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() string {
	if c.done() {
		return ""
	}
	return c.toks[c.pos]
}

func (c *cursor) next() string {
	t := c.peek()
	if !c.done() {
		c.pos++
	}
	return t
}
