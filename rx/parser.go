// Package rx implements the RX parser (spec.md §4.3): it consumes the decoded symbol
// stream and recognises COMMA · TS-body · 10xID ordered sets, publishing a decoded TS
// record only once two consecutive TSes have been observed with identical payloads.
package rx

import (
	"github.com/golang/glog"

	"github.com/openlane/gen1link/engine"
	"github.com/openlane/gen1link/symbol"
	"github.com/openlane/gen1link/ts"
)

// regs is the parser's register file: Z is the TS currently being accumulated, Y is the
// previously completed TS, Out is the published record, Memo is the same-tick bypass cell
// learning the ID body symbol (spec.md §4.2 rationale), Inv is the polarity-invert latch.
type regs struct {
	Z    ts.Record
	Y    ts.Record
	Out  ts.Record
	Memo engine.Cell[symbol.Symbol]
	Inv  bool
}

const (
	stateComma    = "COMMA"
	stateLinkSkp0 = "TSn-LINK/SKP-0"
	stateSkp1     = "SKP-1"
	stateSkp2     = "SKP-2"
	stateLane     = "TSn-LANE"
	stateFTS      = "TSn-FTS"
	stateRate     = "TSn-RATE"
	stateCtrl     = "TSn-CTRL"
	stateID0      = "TSn-ID0"
)

func idState(k int) string {
	return [...]string{"TSn-ID0", "TSn-ID1", "TSn-ID2", "TSn-ID3", "TSn-ID4",
		"TSn-ID5", "TSn-ID6", "TSn-ID7", "TSn-ID8", "TSn-ID9"}[k]
}

func isD(sym uint16) bool { return symbol.Symbol(sym).IsD() }

func decodeRate(b uint8) ts.Rate {
	return ts.Rate{Gen1: b&0x02 != 0, Reserved: b &^ 0x02}
}

func decodeCtrl(b uint8) ts.Ctrl {
	return ts.Ctrl{
		Reset:      b&0x1 != 0,
		Disable:    b&0x2 != 0,
		Loopback:   b&0x4 != 0,
		Unscramble: b&0x8 != 0,
	}
}

// grammar builds the RX grammar described by the table in spec.md §4.3.
func grammar() engine.Grammar[regs] {
	noop := func(uint16, *regs, uint64) []engine.Edge[regs] { return nil }

	g := engine.Grammar[regs]{
		stateComma: {{
			Name: "COMMA",
			Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Comma },
			Succ: stateLinkSkp0,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Y = r.Z
				r.Z = ts.Record{Valid: true}
				return nil
			},
		}},
		stateLinkSkp0: {
			{
				Name: "LINK/SKP-0-skip",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Skip },
				Succ: stateSkp1,
				Action: noop,
			},
			{
				Name: "LINK/SKP-0-pad",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Pad },
				Succ: stateLane,
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Z.Link = ts.Field{Valid: false}
					return nil
				},
			},
			{
				Name: "LINK/SKP-0-data",
				Cond: isD,
				Succ: stateLane,
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Z.Link = ts.Field{Valid: true, Number: symbol.Symbol(sym).Byte()}
					return nil
				},
			},
		},
		stateSkp1: {{
			Name: "SKP-1",
			Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Skip },
			Succ: stateSkp2,
			Action: noop,
		}},
		stateSkp2: {{
			Name: "SKP-2",
			Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Skip },
			Succ: stateComma,
			Action: noop,
		}},
		stateLane: {
			{
				Name: "LANE-pad",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.Pad },
				Succ: stateFTS,
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Z.Lane = ts.Field{Valid: false}
					return nil
				},
			},
			{
				Name: "LANE-data",
				Cond: isD,
				Succ: stateFTS,
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Z.Lane = ts.Field{Valid: true, Number: symbol.Symbol(sym).Byte()}
					return nil
				},
			},
		},
		stateFTS: {{
			Name: "FTS",
			Cond: isD,
			Succ: stateRate,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Z.NFTS = symbol.Symbol(sym).Byte()
				return nil
			},
		}},
		stateRate: {{
			Name: "RATE",
			Cond: isD,
			Succ: stateCtrl,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Z.Rate = decodeRate(symbol.Symbol(sym).Byte())
				return nil
			},
		}},
		stateCtrl: {{
			Name: "CTRL",
			Cond: isD,
			Succ: stateID0,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Z.Ctrl = decodeCtrl(symbol.Symbol(sym).Byte())
				return nil
			},
		}},
		stateID0: {
			{
				Name: "ID0-ts1",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.D10_2 },
				Succ: idState(1),
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Memo.Write(symbol.Symbol(sym), tick)
					r.Inv = false
					r.Z.TSID = ts.TS1
					return nil
				},
			},
			{
				Name: "ID0-ts2",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.D5_2 },
				Succ: idState(1),
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Memo.Write(symbol.Symbol(sym), tick)
					r.Inv = false
					r.Z.TSID = ts.TS2
					return nil
				},
			},
			{
				Name: "ID0-inv-ts1",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.D21_5 },
				Succ: idState(1),
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Memo.Write(symbol.Symbol(sym), tick)
					r.Inv = true
					return nil
				},
			},
			{
				Name: "ID0-inv-ts2",
				Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == symbol.D26_5 },
				Succ: idState(1),
				Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
					r.Memo.Write(symbol.Symbol(sym), tick)
					r.Inv = true
					return nil
				},
			},
		},
	}

	for k := 1; k <= 8; k++ {
		g[idState(k)] = []engine.Rule[regs]{{
			Name: idState(k),
			Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == r.Memo.Read() },
			Succ: idState(k + 1),
			Action: noop,
		}}
	}

	g[idState(9)] = []engine.Rule[regs]{
		{
			Name: "ID9-inv",
			Cond: func(sym uint16, r regs) bool { return symbol.Symbol(sym) == r.Memo.Read() && r.Inv },
			Succ: stateComma,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Z.Valid = false
				return nil
			},
		},
		{
			Name: "ID9-pub",
			Cond: func(sym uint16, r regs) bool {
				return symbol.Symbol(sym) == r.Memo.Read() && !r.Inv && ts.SamePayload(r.Z, r.Y)
			},
			Succ: stateComma,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Out = r.Y
				r.Out.Valid = true
				return nil
			},
		},
		{
			Name: "ID9-clear",
			Cond: func(sym uint16, r regs) bool {
				return symbol.Symbol(sym) == r.Memo.Read() && !r.Inv && !ts.SamePayload(r.Z, r.Y)
			},
			Succ: stateComma,
			Action: func(sym uint16, r *regs, tick uint64) []engine.Edge[regs] {
				r.Out.Valid = false
				return nil
			},
		},
	}

	return g
}

// Observation is the per-tick output of the parser (spec.md §4.3).
type Observation struct {
	TS        ts.Record
	Comma     bool // comma strobe: a K28.5 was just recognised
	Error     bool // no rule matched (protocol error)
	Inverted  bool // polarity-invert toggle requested this tick
}

// Parser recognises TS1/TS2 ordered sets from a ratio-wide symbol stream.
type Parser struct {
	eng   *engine.Engine[regs]
	ratio int
}

// New builds a Parser for the given gearbox ratio (1 or 2 symbols per tick).
func New(ratio int) (*Parser, error) {
	eng, err := engine.New(grammar(), stateComma, ratio)
	if err != nil {
		return nil, err
	}
	return &Parser{eng: eng, ratio: ratio}, nil
}

// Step consumes one tick's worth of ratio symbols. valid[i]==false marks a coding error
// (spec.md §7): the tick is ignored and the parser resets, rather than parsing garbage.
func (p *Parser) Step(syms []symbol.Symbol, valid []bool) Observation {
	for _, v := range valid {
		if !v {
			glog.V(2).Infof("rx: coding error (rx_valid=0), resetting to %s", stateComma)
			p.eng.Reset()
			return Observation{}
		}
	}
	word := make([]uint16, len(syms))
	for i, s := range syms {
		word[i] = uint16(s)
	}
	res := p.eng.Step(word)
	if res.Error {
		glog.V(2).Infof("rx: protocol error, resetting to %s", stateComma)
		return Observation{Error: true}
	}
	return Observation{
		TS:       res.Regs.Out,
		Comma:    res.Fired("COMMA"),
		Inverted: res.Fired("ID9-inv"),
	}
}

// Reset forces the parser back to comma-search, matching a loss of rx_locked/rx_aligned
// (spec.md supplemented feature: §SPEC_FULL.md "ts.valid latch semantics across Electrical
// Idle").
func (p *Parser) Reset() { p.eng.Reset() }
