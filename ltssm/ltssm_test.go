package ltssm

import (
	"testing"

	"github.com/openlane/gen1link/ts"
)

func TestDetectQuietAdvancesOnRXPresent(t *testing.T) {
	l := New(Config{MsCyc: 10}, nil)
	out := l.Step(Input{RXPresent: true})
	if l.State() != DetectActive {
		t.Fatalf("expected Detect.Active, got %s", l.State())
	}
	if !out.EIdle {
		t.Fatal("Detect.Quiet must assert tx_e_idle on its exit tick")
	}
}

func TestDetectQuietAdvancesOnTimeoutEvenWithoutPresence(t *testing.T) {
	l := New(Config{MsCyc: 1}, nil)
	for i := 0; i < 12; i++ {
		l.Step(Input{})
	}
	if l.State() != DetectActive {
		t.Fatalf("expected timeout to advance to Detect.Active after 12ms, got %s", l.State())
	}
}

func TestDetectActiveFollowsDetStatus(t *testing.T) {
	l := New(Config{MsCyc: 10}, nil)
	l.Step(Input{RXPresent: true})
	out := l.Step(Input{DetValid: true, DetStatus: true})
	if l.State() != PollingActive {
		t.Fatalf("expected Polling.Active on det_status=1, got %s", l.State())
	}
	if !out.DetEnable {
		t.Fatal("Detect.Active must assert det_enable")
	}

	l2 := New(Config{MsCyc: 10}, nil)
	l2.Step(Input{RXPresent: true})
	l2.Step(Input{DetValid: true, DetStatus: false})
	if l2.State() != DetectQuiet {
		t.Fatalf("expected fall-back to Detect.Quiet on det_status=0, got %s", l2.State())
	}
}

// S6: Polling.Active must fall back to Detect.Quiet after its timer expires with no
// accepted TS, re-asserting tx_e_idle.
func TestPollingActiveTimesOutToDetectQuiet(t *testing.T) {
	l := New(Config{MsCyc: 1}, nil)
	l.Step(Input{RXPresent: true})
	l.Step(Input{DetValid: true, DetStatus: true})
	if l.State() != PollingActive {
		t.Fatalf("setup: expected Polling.Active, got %s", l.State())
	}
	var out Output
	for i := 0; i < 24; i++ {
		out = l.Step(Input{})
	}
	if l.State() != DetectQuiet {
		t.Fatalf("expected Detect.Quiet after 24ms with no accepted TS, got %s", l.State())
	}
	if !out.EIdle {
		t.Fatal("expected tx_e_idle reasserted on fall-back")
	}
}

// S5-shaped walk: Polling.Active requires 8 consecutive accepted TS1 PAD/PAD AND 1024
// transmitted TS1s before advancing to Polling.Configuration.
func TestPollingActiveAdvancesAfter8AcceptedAnd1024Transmitted(t *testing.T) {
	l := New(Config{MsCyc: 50}, nil) // timer = 1200 ticks, comfortably above the 1024 we drive
	l.Step(Input{RXPresent: true})
	l.Step(Input{DetValid: true, DetStatus: true})

	padPad1 := ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true}}
	for i := 0; i < 1023; i++ {
		l.Step(Input{RX: padPad1, TXComma: true})
		if l.State() != PollingActive {
			t.Fatalf("tick %d: expected still Polling.Active, got %s", i, l.State())
		}
	}
	l.Step(Input{RX: padPad1, TXComma: true})
	if l.State() != PollingConfiguration {
		t.Fatalf("expected Polling.Configuration after 8 accepted + 1024 transmitted, got %s", l.State())
	}
}

// spec.md §4.5's Polling.Active acceptance row also admits TS2 Link=PAD Lane=PAD, not just
// TS1 PAD/PAD.
func TestPollingActiveAcceptsTS2PadPad(t *testing.T) {
	l := New(Config{MsCyc: 50}, nil)
	l.Step(Input{RXPresent: true})
	l.Step(Input{DetValid: true, DetStatus: true})

	padPad2 := ts.Record{Valid: true, TSID: ts.TS2, Rate: ts.Rate{Gen1: true}}
	for i := 0; i < 1024; i++ {
		l.Step(Input{RX: padPad2, TXComma: true})
	}
	if l.State() != PollingConfiguration {
		t.Fatalf("expected Polling.Configuration after 8 accepted TS2 PAD/PAD + 1024 transmitted, got %s", l.State())
	}
}

func TestMismatchedTSResetsRXTSCount(t *testing.T) {
	l := New(Config{MsCyc: 50}, nil)
	l.Step(Input{RXPresent: true})
	l.Step(Input{DetValid: true, DetStatus: true})

	padPad1 := ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true}}
	other := ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true}, Link: ts.Field{Valid: true, Number: 1}}
	for i := 0; i < 5; i++ {
		l.Step(Input{RX: padPad1, TXComma: true})
	}
	if l.Snapshot().RXTSCount != 5 {
		t.Fatalf("expected rx_ts_count=5, got %d", l.Snapshot().RXTSCount)
	}
	l.Step(Input{RX: other, TXComma: true})
	if l.Snapshot().RXTSCount != 0 {
		t.Fatalf("expected a differing accepted TS to reset rx_ts_count, got %d", l.Snapshot().RXTSCount)
	}
}

func TestLinkUpLatchesAtConfigurationIdle(t *testing.T) {
	l := New(Config{MsCyc: 1}, nil)
	l.state = ConfigurationIdle // exercising the terminal state directly; test-internal access
	out := l.Step(Input{})
	if !out.LinkUp || !l.Snapshot().LinkUp {
		t.Fatal("expected link_up asserted in Configuration.Idle")
	}
	if l.State() != ConfigurationIdle {
		t.Fatal("Configuration.Idle must be terminal")
	}
}
