// Package tx implements the TX emitter (spec.md §4.4): it produces exactly one TS, or one
// Electrical-Idle symbol group, per 16-symbol cycle, wrapping back to IDLE.
//
// The emitter reuses the engine substrate as a generator rather than a recogniser: its
// rules are unconditional on any input symbol (there is nothing to parse, only registers
// to read), so its own Engine is always elaborated at wordSize=1 — one rule application
// produces exactly one output symbol — and Emitter.Step loops that engine `ratio` times to
// assemble one gearbox-wide tick's worth of output. This differs from the RX parser, whose
// engine elaborates at wordSize=ratio to get same-tick memory-cell bypass across input
// symbols; TX has no input symbols to bypass between, so the simplification costs nothing.
package tx

import (
	"fmt"

	"github.com/openlane/gen1link/engine"
	"github.com/openlane/gen1link/symbol"
	"github.com/openlane/gen1link/ts"
)

type regs struct {
	Ext     ts.Record // exogenous: tx.ts, written by the LTSSM every tick
	EIdleIn bool       // exogenous: tx.e_idle, written by the LTSSM every tick
	Cur     ts.Record  // latched at the leading comma, drives the rest of the 16-symbol body

	Out      symbol.Symbol
	SetDisp  bool
	Disp     bool // requested disparity when SetDisp; false selects negative (spec.md §4.4)
	EIdleOut bool
}

const (
	stateIdle = "IDLE"
	stateLink = "LINK"
	stateLane = "LANE"
	stateFTS  = "FTS"
	stateRate = "RATE"
	stateCtrl = "CTRL"
)

func idState(k int) string {
	return [...]string{"ID0", "ID1", "ID2", "ID3", "ID4", "ID5", "ID6", "ID7", "ID8", "ID9"}[k]
}

func encodeRate(r ts.Rate) uint8 {
	b := r.Reserved &^ 0x02
	if r.Gen1 {
		b |= 0x02
	}
	return b
}

func encodeCtrl(c ts.Ctrl) uint8 {
	var b uint8
	if c.Reset {
		b |= 0x1
	}
	if c.Disable {
		b |= 0x2
	}
	if c.Loopback {
		b |= 0x4
	}
	if c.Unscramble {
		b |= 0x8
	}
	return b
}

func idSymbol(id ts.ID) symbol.Symbol {
	if id == ts.TS2 {
		return symbol.D5_2
	}
	return symbol.D10_2
}

func grammar() engine.Grammar[regs] {
	unconditional := func(cond func(regs) bool) func(uint16, regs) bool {
		return func(_ uint16, r regs) bool { return cond(r) }
	}
	always := unconditional(func(regs) bool { return true })

	g := engine.Grammar[regs]{
		stateIdle: {
			{
				Name: "IDLE-eidle",
				Cond: unconditional(func(r regs) bool { return r.EIdleIn }),
				Succ: stateIdle,
				Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
					r.EIdleOut = true
					r.SetDisp = false
					r.Out = 0
					return nil
				},
			},
			{
				Name: "IDLE-start",
				Cond: unconditional(func(r regs) bool { return !r.EIdleIn && r.Ext.Valid }),
				Succ: stateLink,
				Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
					r.Cur = r.Ext
					r.Out = symbol.Comma
					r.SetDisp = true
					r.Disp = false // forced negative, spec.md §4.4
					r.EIdleOut = false
					return nil
				},
			},
			{
				Name: "IDLE-park",
				Cond: always,
				Succ: stateIdle,
				Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
					r.EIdleOut = true
					r.SetDisp = false
					r.Out = 0
					return nil
				},
			},
		},
		stateLink: {{
			Name: "LINK",
			Cond: always,
			Succ: stateLane,
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				r.SetDisp, r.EIdleOut = false, false
				if r.Cur.Link.Valid {
					r.Out = symbol.Symbol(r.Cur.Link.Number)
				} else {
					r.Out = symbol.Pad
				}
				return nil
			},
		}},
		stateLane: {{
			Name: "LANE",
			Cond: always,
			Succ: stateFTS,
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				if r.Cur.Lane.Valid {
					r.Out = symbol.Symbol(r.Cur.Lane.Number)
				} else {
					r.Out = symbol.Pad
				}
				return nil
			},
		}},
		stateFTS: {{
			Name: "FTS",
			Cond: always,
			Succ: stateRate,
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				r.Out = symbol.Symbol(r.Cur.NFTS)
				return nil
			},
		}},
		stateRate: {{
			Name: "RATE",
			Cond: always,
			Succ: stateCtrl,
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				r.Out = symbol.Symbol(encodeRate(r.Cur.Rate))
				return nil
			},
		}},
		stateCtrl: {{
			Name: "CTRL",
			Cond: always,
			Succ: idState(0),
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				r.Out = symbol.Symbol(encodeCtrl(r.Cur.Ctrl))
				return nil
			},
		}},
	}

	for k := 0; k <= 9; k++ {
		succ := stateIdle
		if k < 9 {
			succ = idState(k + 1)
		}
		g[idState(k)] = []engine.Rule[regs]{{
			Name: idState(k),
			Cond: always,
			Succ: succ,
			Action: func(_ uint16, r *regs, _ uint64) []engine.Edge[regs] {
				r.Out = idSymbol(r.Cur.TSID)
				return nil
			},
		}}
	}

	return g
}

// Symbol is one emitted symbol together with its disparity-control and electrical-idle
// sidebands (spec.md §3, §6).
type Symbol struct {
	Value    symbol.Symbol
	SetDisp  bool
	Disp     bool
	EIdle    bool
}

// Emitter drives the outbound ordered-set stream for a ratio-wide lane.
type Emitter struct {
	eng   *engine.Engine[regs]
	ratio int
	comma bool
}

// New builds an Emitter for the given gearbox ratio.
func New(ratio int) (*Emitter, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("tx: ratio must be >= 1, got %d", ratio)
	}
	eng, err := engine.New(grammar(), stateIdle, 1)
	if err != nil {
		return nil, err
	}
	return &Emitter{eng: eng, ratio: ratio}, nil
}

// Step requests `ratio` symbols for one tick, given the current TS the LTSSM wants
// transmitted and whether electrical idle is asserted. It returns the last comma strobe
// state for LTSSM tx_ts_count pacing (spec.md §4.5) via Comma().
func (e *Emitter) Step(wantTS ts.Record, eIdle bool) []Symbol {
	out := make([]Symbol, e.ratio)
	e.comma = false
	for i := 0; i < e.ratio; i++ {
		// The exogenous latches (tx.ts, tx.e_idle) are refreshed before every internal
		// engine step: the LTSSM is the sole writer of these fields (spec.md §5) and this
		// models it driving them combinationally, not through the rule chain.
		e.eng.Poke(func(r *regs) {
			r.Ext, r.EIdleIn = wantTS, eIdle
		})
		res := e.eng.Step([]uint16{0})
		out[i] = Symbol{Value: res.Regs.Out, SetDisp: res.Regs.SetDisp, Disp: res.Regs.Disp, EIdle: res.Regs.EIdleOut}
		if res.Fired("IDLE-start") {
			e.comma = true
		}
	}
	return out
}

// Comma reports whether the most recent Step emitted the leading K28.5 of a new TS body.
func (e *Emitter) Comma() bool { return e.comma }
