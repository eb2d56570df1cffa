package tx

import (
	"testing"

	"github.com/openlane/gen1link/symbol"
	"github.com/openlane/gen1link/ts"
)

func TestElectricalIdleNeverDrivesKOrD(t *testing.T) {
	e, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	out := e.Step(ts.Record{}, true)
	if !out[0].EIdle {
		t.Fatal("expected electrical idle to be asserted")
	}
}

func TestTSBodyIsSixteenSymbolsStartingWithForcedDisparityComma(t *testing.T) {
	e, _ := New(1)
	body := ts.Record{
		Valid: true,
		Link:  ts.Field{Valid: true, Number: 0xAA},
		Lane:  ts.Field{Valid: true, Number: 0x1A},
		NFTS:  0xFF,
		Rate:  ts.Rate{Gen1: true},
		TSID:  ts.TS1,
	}
	var syms []Symbol
	commaAfterFirst := false
	for i := 0; i < 16; i++ {
		out := e.Step(body, false)
		if i == 0 {
			commaAfterFirst = e.Comma()
		}
		syms = append(syms, out[0])
	}
	if syms[0].Value != symbol.Comma {
		t.Fatalf("first symbol must be K28.5, got %s", syms[0].Value)
	}
	if !syms[0].SetDisp || syms[0].Disp {
		t.Fatal("leading comma must be emitted with set_disp=1, disp=0 (forced negative)")
	}
	if !commaAfterFirst {
		t.Fatal("Comma() must report true right after emitting the leading K28.5")
	}
	if syms[1].Value != symbol.Symbol(0xAA) {
		t.Errorf("expected link byte 0xAA at position 1, got %s", syms[1].Value)
	}
	if syms[2].Value != symbol.Symbol(0x1A) {
		t.Errorf("expected lane byte 0x1A at position 2, got %s", syms[2].Value)
	}
	for i := 6; i < 16; i++ {
		if syms[i].Value != symbol.D10_2 {
			t.Errorf("expected D10.2 at ID position %d, got %s", i-6, syms[i].Value)
		}
	}
}

func TestPADWhenLinkLaneInvalid(t *testing.T) {
	e, _ := New(1)
	body := ts.Record{Valid: true, TSID: ts.TS1}
	out0 := e.Step(body, false)
	out1 := e.Step(body, false)
	out2 := e.Step(body, false)
	if out0[0].Value != symbol.Comma {
		t.Fatal("expected leading comma")
	}
	if out1[0].Value != symbol.Pad {
		t.Errorf("expected PAD for invalid link, got %s", out1[0].Value)
	}
	if out2[0].Value != symbol.Pad {
		t.Errorf("expected PAD for invalid lane, got %s", out2[0].Value)
	}
}
