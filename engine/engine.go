// Package engine implements the protocol-engine substrate shared by the RX parser and the
// TX emitter (spec.md §4.2): a rule-driven finite state machine that consumes or emits
// exactly one word of wordSize symbols per tick, chaining wordSize rule applications
// within a single tick.
//
// The chain-enumeration technique (elaborate all length-wordSize rule tuples reachable
// from each state, ahead of time, deduplicated as a set) is adapted from the teacher's
// proto/ooo/ooo.go: where ooo.go builds a 32x32 dependency matrix once per cycle and then
// priority-selects among ready operations with a bitmap + leading-zero scan, this engine
// builds a per-state table of candidate rule chains once at construction and priority-
// selects among them (first matching chain wins) on every tick.
package engine

import "fmt"

// Rule is a tuple (name, cond, succ, action) as in spec.md §3: a predicate over one
// symbol, a successor state, and an effect on registers.
//
// Cond must be a pure read of regs; only Action may mutate regs. Regs is passed by value
// to Cond (read-only) and by pointer to Action (so "memory cell" writes are visible to the
// rest of the chain in the same tick, per spec.md §4.2).
type Rule[S any] struct {
	Name   string
	Cond   func(sym uint16, regs S) bool
	Succ   string
	Action func(sym uint16, regs *S, tick uint64) []Edge[S]
}

// Edge is a deferred register write ("NextValue" in spec.md §4.3): committed at the next
// tick boundary, never visible to the rule chain that scheduled it.
type Edge[S any] func(regs *S)

// Grammar maps a state name to its ordered, non-empty list of candidate rules
// (spec.md §3: "a grammar is a mapping from state name to an ordered sequence of rules").
type Grammar[S any] map[string][]Rule[S]

// chain is one elaborated length-wordSize rule tuple.
type chain[S any] []Rule[S]

// Engine is the tick-stepped state machine described in spec.md §4.2.
type Engine[S any] struct {
	grammar   Grammar[S]
	wordSize  int
	resetRule string

	chains map[string][]chain[S] // elaborated at construction time, see elaborate()

	state   string
	live    S
	pending []Edge[S]
	tick    uint64
}

// New elaborates grammar for the given word size and builds an Engine starting (and
// resetting to) resetRule. It returns an error only for malformed construction inputs —
// never for runtime protocol conditions, which are reported per-tick via Result.Error
// (spec.md §7: protocol errors are pulsed, not fatal).
func New[S any](grammar Grammar[S], resetRule string, wordSize int) (*Engine[S], error) {
	if wordSize < 1 {
		return nil, fmt.Errorf("engine: word size must be >= 1, got %d", wordSize)
	}
	if _, ok := grammar[resetRule]; !ok {
		return nil, fmt.Errorf("engine: reset rule state %q not present in grammar", resetRule)
	}
	e := &Engine[S]{
		grammar:   grammar,
		wordSize:  wordSize,
		resetRule: resetRule,
		chains:    make(map[string][]chain[S]),
		state:     resetRule,
	}
	seen := make(map[string]struct{})
	for state := range grammar {
		e.chains[state] = elaborate(grammar, state, wordSize, seen)
		clear(seen)
	}
	return e, nil
}

// elaborate enumerates the set of length-wordSize rule chains reachable from state,
// deduplicated by the sequence of rule names (spec.md §9: "enumerated as a set ... to
// avoid exponential blow-up on shared prefixes").
func elaborate[S any](g Grammar[S], state string, wordSize int, seen map[string]struct{}) []chain[S] {
	var out []chain[S]
	var walk func(cur string, acc chain[S])
	walk = func(cur string, acc chain[S]) {
		if len(acc) == wordSize {
			sig := chainSignature(acc)
			if _, dup := seen[sig]; dup {
				return
			}
			seen[sig] = struct{}{}
			full := make(chain[S], len(acc))
			copy(full, acc)
			out = append(out, full)
			return
		}
		for _, r := range g[cur] {
			walk(r.Succ, append(acc, r))
		}
	}
	walk(state, nil)
	return out
}

func chainSignature[S any](c chain[S]) string {
	s := ""
	for _, r := range c {
		s += r.Name + "/"
	}
	return s
}

// Result is the per-tick observation of the engine: the register values visible by the
// end of this tick (after all memory-cell writes in the chain, before any edge commit),
// the state reached, and whether any chain matched.
type Result[S any] struct {
	Regs  S
	State string
	// Rules names the wordSize rules that composed the matched chain this tick, in
	// positional order. Callers use this to derive combinational, non-registered strobes
	// (e.g. the RX parser's comma/invert pulses) without needing S to carry ephemeral
	// fields that would otherwise have to be explicitly cleared every tick.
	Rules []string
	Error bool // no chain matched in the current state (spec.md §4.2, §7)
}

// Fired reports whether the named rule was part of the chain that matched this tick.
func (r Result[S]) Fired(name string) bool {
	for _, n := range r.Rules {
		if n == name {
			return true
		}
	}
	return false
}

// State returns the engine's current state name.
func (e *Engine[S]) State() string { return e.state }

// Regs returns the engine's committed register state.
func (e *Engine[S]) Regs() S { return e.live }

// Poke lets an external, single-writer collaborator (e.g. the LTSSM driving tx.ts and
// tx.e_idle, spec.md §5) update registers outside the rule chain. Unlike Action's
// same-tick mem writes, a Poke is visible immediately, including to the very next Step's
// chain evaluation — it models a sideband register with its own dedicated writer, not a
// rule effect.
func (e *Engine[S]) Poke(fn func(*S)) { fn(&e.live) }

// Reset returns the engine to resetRule and clears all registers and queued edge writes,
// matching "the engine resets to reset_rule on error or external reset" (spec.md §4.2).
func (e *Engine[S]) Reset() {
	var zero S
	e.state = e.resetRule
	e.live = zero
	e.pending = nil
}

// Step consumes exactly wordSize symbols for one tick: it first commits edge writes
// queued by the previous tick (spec.md §5: "Register updates (NextValue) take effect at
// the next tick boundary"), then attempts each elaborated chain for the current state in
// order, applying each rule's Cond/Action positionally against word[0..wordSize-1]. The
// first chain whose every Cond succeeds commits its memory-cell writes and advances state;
// if none succeeds, Step pulses Result.Error and resets to resetRule.
func (e *Engine[S]) Step(word []uint16) Result[S] {
	if len(word) != e.wordSize {
		panic(fmt.Sprintf("engine: Step got %d symbols, want %d", len(word), e.wordSize))
	}
	for _, edge := range e.pending {
		edge(&e.live)
	}
	e.pending = nil
	e.tick++

	for _, c := range e.chains[e.state] {
		if regs, edges, succ, ok := tryChain(c, word, e.live, e.tick); ok {
			e.live = regs
			e.pending = edges
			e.state = succ
			names := make([]string, len(c))
			for i, r := range c {
				names[i] = r.Name
			}
			return Result[S]{Regs: e.live, State: e.state, Rules: names}
		}
	}

	var zero S
	e.live = zero
	e.state = e.resetRule
	e.pending = nil
	return Result[S]{Regs: e.live, State: e.state, Error: true}
}

// tryChain evaluates one candidate chain against word, starting from a scratch copy of
// regs so a failing chain never leaks partial memory-cell writes into the committed state
// (spec.md §8, property 3: a single corrupted symbol must never yield a half-correct
// result).
func tryChain[S any](c chain[S], word []uint16, regs S, tick uint64) (S, []Edge[S], string, bool) {
	scratch := regs
	var edges []Edge[S]
	succ := ""
	for i, r := range c {
		if !r.Cond(word[i], scratch) {
			return regs, nil, "", false
		}
		edges = append(edges, r.Action(word[i], &scratch, tick)...)
		succ = r.Succ
	}
	return scratch, edges, succ, true
}

// Tick returns the number of ticks Step has been called, for use as the generation stamp
// passed to Cell.Write by rule Actions (spec.md §4.2 memory cells).
func (e *Engine[S]) Tick() uint64 { return e.tick }
