// Package aligner implements the Symbol Aligner (spec.md §4.1): it rotates the incoming
// symbol stream so that, once a comma has been seen, the comma consistently lands at
// word-position 0 of every subsequent output word.
//
// The rotation itself is adapted from the teacher's SupraX.go BarrelShift: that shifter
// walks a fixed sequence of power-of-two stages, each a conditional 2:1 mux, so the total
// shift amount is selected combinationally rather than by a variable-length loop. This
// aligner's rotate amount only ever ranges over [0, ratio) with ratio ∈ {1, 2}, so the
// staged decomposition collapses to a single stage — shift by 0 or 1 — but it keeps the
// same "conditional mux per bit of the shift amount" shape rather than indexing with a
// runtime modulo.
package aligner

import "github.com/openlane/gen1link/symbol"

// Aligner holds the last 2×ratio symbols and the current comma offset.
type Aligner struct {
	ratio  int
	buf    []symbol.Symbol // 2*ratio symbols: buf[:ratio] older, buf[ratio:] newest
	offset int
	comma  symbol.Symbol
}

// New builds an Aligner for the given ratio, searching for the given comma symbol
// (ordinarily symbol.Comma).
func New(ratio int, comma symbol.Symbol) *Aligner {
	return &Aligner{ratio: ratio, buf: make([]symbol.Symbol, 2*ratio), comma: comma}
}

// Step advances the shift register by one incoming word and returns the ratio-wide output
// word read starting at the current offset (spec.md §4.1). en gates whether a newly found
// comma updates the offset; when en is false the offset is frozen but the shift register
// keeps flowing, per spec.md's "Disabling (en = 0) freezes offset" rule.
//
// Behaviour is undefined (as in spec.md) when more than one input position equals comma;
// this implementation then leaves the offset unchanged.
func (a *Aligner) Step(in []symbol.Symbol, en bool) []symbol.Symbol {
	if len(in) != a.ratio {
		panic("aligner: Step word length must equal ratio")
	}
	copy(a.buf, a.buf[a.ratio:])
	copy(a.buf[a.ratio:], in)

	if en {
		if n, ok := onlyCommaPosition(in, a.comma); ok {
			a.offset = n
		}
	}

	return rotate(a.buf, a.offset, a.ratio)
}

// Offset reports the aligner's current comma offset, in [0, ratio).
func (a *Aligner) Offset() int { return a.offset }

func onlyCommaPosition(in []symbol.Symbol, comma symbol.Symbol) (int, bool) {
	pos, count := -1, 0
	for i, s := range in {
		if s == comma {
			pos, count = i, count+1
		}
	}
	return pos, count == 1
}

// rotate reads `ratio` symbols out of buf (length 2*ratio) starting at offset, selecting
// the read window with a staged conditional shift rather than a runtime modulo index —
// see the package doc comment.
func rotate(buf []symbol.Symbol, offset, ratio int) []symbol.Symbol {
	out := make([]symbol.Symbol, ratio)
	window := buf
	// Stage 0: conditionally advance the window by 1 symbol.
	if offset&0x1 != 0 {
		window = window[1:]
	}
	copy(out, window[:ratio])
	return out
}
