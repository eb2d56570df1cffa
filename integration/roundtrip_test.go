// Package integration exercises spec.md §8's round-trip property across package
// boundaries: "Feeding the TX Emitter's output directly into the RX Parser (same ratio)
// yields ts.valid=1 with ts equal to tx.ts, within two TS periods." Nothing in rx or tx's
// own package tests drives them together, since each owns only its half of the wire.
package integration

import (
	"testing"

	"github.com/openlane/gen1link/rx"
	"github.com/openlane/gen1link/symbol"
	"github.com/openlane/gen1link/ts"
	"github.com/openlane/gen1link/tx"
)

func roundTrip(t *testing.T, ratio int) {
	t.Helper()
	e, err := tx.New(ratio)
	if err != nil {
		t.Fatal(err)
	}
	p, err := rx.New(ratio)
	if err != nil {
		t.Fatal(err)
	}

	want := ts.Record{
		Valid: true,
		Link:  ts.Field{Valid: true, Number: 0xAA},
		Lane:  ts.Field{Valid: true, Number: 0x1A},
		NFTS:  0xFF,
		Rate:  ts.Rate{Gen1: true},
		TSID:  ts.TS1,
	}

	// Two TS periods (32 symbols), the bound spec.md §8 names: the first TS fills the
	// parser's Y register, the second matches it and is published.
	ticks := 2 * 16 / ratio
	var last rx.Observation
	for i := 0; i < ticks; i++ {
		symsOut := e.Step(want, false)
		syms := make([]symbol.Symbol, len(symsOut))
		valid := make([]bool, len(symsOut))
		for j, s := range symsOut {
			syms[j] = s.Value
			valid[j] = true
		}
		last = p.Step(syms, valid)
	}

	if !last.TS.Valid {
		t.Fatalf("ratio=%d: expected ts.valid=1 after round trip, got %+v", ratio, last.TS)
	}
	if last.TS.Raw() != want.Raw() {
		t.Fatalf("ratio=%d: round-tripped record %+v does not match sent %+v", ratio, last.TS, want)
	}
}

func TestEmitterToParserRoundTripRatio1(t *testing.T) { roundTrip(t, 1) }
func TestEmitterToParserRoundTripRatio2(t *testing.T) { roundTrip(t, 2) }
