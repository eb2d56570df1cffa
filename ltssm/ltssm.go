// Package ltssm implements the Link Training and Status State Machine (spec.md §4.5):
// the sub-state sequencer that drives RX/TX ordered-set exchange from Detect.Quiet through
// Configuration.Idle (L0).
//
// Sub-state dispatch is structured the way the teacher's proto/ooo/ooo.go structures its
// two-cycle pipeline: a fixed enumerated stage (there, Dependency-Check then Issue-Select;
// here, one of ten named LTSSM sub-states) selects a single per-stage handler, evaluated
// once per tick, that reads the current snapshot and returns the next stage plus the
// side effects committed for that tick. ooo.go's handlers never mutate cross-cycle state
// except through its explicit pipeline registers; this package's handlers likewise only
// mutate the LTSSM's own counters/timers and the tx.ts/tx.e_idle/det_enable fields it has
// exclusive write access to (spec.md §5).
package ltssm

import (
	"github.com/golang/glog"

	"github.com/openlane/gen1link/rx"
	"github.com/openlane/gen1link/ts"
)

// State names a sub-state (spec.md §4.5). Kept as strings (not iota) so glog transition
// logging and Snapshot need no separate stringer.
type State string

const (
	DetectQuiet                  State = "Detect.Quiet"
	DetectActive                 State = "Detect.Active"
	PollingActive                State = "Polling.Active"
	PollingConfiguration         State = "Polling.Configuration"
	ConfigurationLinkwidthStart  State = "Configuration.Linkwidth.Start"
	ConfigurationLinkwidthAccept State = "Configuration.Linkwidth.Accept"
	ConfigurationLanenumWait     State = "Configuration.Lanenum.Wait"
	ConfigurationLanenumAccept   State = "Configuration.Lanenum.Accept"
	ConfigurationComplete        State = "Configuration.Complete"
	ConfigurationIdle            State = "Configuration.Idle"
)

// Config parameterises timers on the link clock (spec.md §4.5).
type Config struct {
	MsCyc int // link clock ticks per millisecond
}

func (c Config) ms(n int) int { return n * c.MsCyc }

// Input is the per-tick snapshot the LTSSM observes (spec.md §5: "the LTSSM observes both
// [RX and TX] via snapshot reads").
type Input struct {
	RX        ts.Record
	RXPresent bool
	DetValid  bool
	DetStatus bool
	TXComma   bool // tx.comma strobe from the emitter, for tx_ts_count pacing
}

// Output is the per-tick LTSSM-owned side effects (spec.md §5: tx.ts, tx.e_idle,
// lane.det_enable are the LTSSM's exclusive writes).
type Output struct {
	WantTS    ts.Record
	EIdle     bool
	DetEnable bool
	LinkUp    bool
}

// LTSSM is the link training sequencer.
type LTSSM struct {
	cfg   Config
	state State

	timer int // decrementing; <= 0 means expired
	rxTS  int // rx_ts_count: consecutive accepted matching TSes this sub-state
	txTS  int // tx_ts_count: TSes transmitted since entry, gated on first RX acceptance, clamped at 16
	txAll int // ungated TS transmit count since entry, clamped at 1024 (Polling.Active's own threshold)
	seenFirstRX bool

	adoptedLink uint8
	adoptedLane uint8
	linkUp      bool

	// parser is the RX Parser this LTSSM drives. The LTSSM has no write access to its
	// registers (spec.md §5 reserves those to the RX Parser itself) but it does own the
	// decision to re-arm the parser's comma search: whenever a sub-state that depended on
	// RX framing is abandoned, its half-accumulated TS state is no longer meaningful
	// (SPEC_FULL.md supplemented feature 1). May be nil in tests that don't exercise this.
	parser *rx.Parser
}

// New builds an LTSSM at Detect.Quiet, driving the given RX Parser's Reset() whenever it
// falls back out of a sub-state that depended on RX framing. parser may be nil.
func New(cfg Config, parser *rx.Parser) *LTSSM {
	l := &LTSSM{cfg: cfg, parser: parser}
	l.enter(DetectQuiet)
	return l
}

// State returns the current sub-state.
func (l *LTSSM) State() State { return l.state }

// Snapshot is a diagnostic dump for test harnesses and cmd/linksim (SPEC_FULL.md
// supplemented feature: a read-only view, never used by the LTSSM's own logic).
type Snapshot struct {
	State       State
	TimerLeft   int
	RXTSCount   int
	TXTSCount   int
	AdoptedLink uint8
	AdoptedLane uint8
	LinkUp      bool
}

func (l *LTSSM) Snapshot() Snapshot {
	return Snapshot{
		State:       l.state,
		TimerLeft:   l.timer,
		RXTSCount:   l.rxTS,
		TXTSCount:   l.txTS,
		AdoptedLink: l.adoptedLink,
		AdoptedLane: l.adoptedLane,
		LinkUp:      l.linkUp,
	}
}

func isTS1PadPad(r ts.Record) bool {
	return r.Valid && r.TSID == ts.TS1 && !r.Link.Valid && !r.Lane.Valid
}

func isTS2PadPad(r ts.Record) bool {
	return r.Valid && r.TSID == ts.TS2 && !r.Link.Valid && !r.Lane.Valid
}

// Step advances the LTSSM by one tick (spec.md §4.5).
func (l *LTSSM) Step(in Input) Output {
	if l.timer > 0 {
		l.timer--
	}
	// tx_ts_count only starts counting once the current sub-state has accepted its first
	// matching RX TS (spec.md "TS2 transmitted pacing"); until then it stays pinned at 0.
	if l.seenFirstRX && in.TXComma {
		l.bumpTX()
	}
	if in.TXComma && l.txAll < 1024 {
		l.txAll++
	}

	switch l.state {
	case DetectQuiet:
		return l.stepDetectQuiet(in)
	case DetectActive:
		return l.stepDetectActive(in)
	case PollingActive:
		return l.stepPollingActive(in)
	case PollingConfiguration:
		return l.stepPollingConfiguration(in)
	case ConfigurationLinkwidthStart:
		return l.stepConfigurationLinkwidthStart(in)
	case ConfigurationLinkwidthAccept:
		return l.stepConfigurationLinkwidthAccept(in)
	case ConfigurationLanenumWait:
		return l.stepConfigurationLanenumWait(in)
	case ConfigurationLanenumAccept:
		return l.stepConfigurationLanenumAccept(in)
	case ConfigurationComplete:
		return l.stepConfigurationComplete(in)
	case ConfigurationIdle:
		return l.stepConfigurationIdle(in)
	default:
		glog.Errorf("ltssm: unknown state %q, forcing Detect.Quiet", l.state)
		l.enter(DetectQuiet)
		return l.stepDetectQuiet(in)
	}
}

// bumpTX increments tx_ts_count, clamped at 16 per spec.md §9's exact-equality semantics:
// counters must never be incremented past the literal limits the sub-states compare
// against, so pacing gates that test `== 16` are not defeated by unbounded growth.
func (l *LTSSM) bumpTX() {
	if l.txTS < 16 {
		l.txTS++
	}
}

// bumpRX records an accepted matching TS, clamped at 8 for the same reason as bumpTX.
func (l *LTSSM) bumpRX() {
	if l.rxTS < 8 {
		l.rxTS++
	}
}

// enter resets the per-sub-state bookkeeping on a transition (spec.md §4.5 "Entry action").
// Per spec.md §9's design note, a sub-state's timer is loaded only here, on entry — an
// accepted TS mid-sub-state never reloads it.
func (l *LTSSM) enter(s State) {
	if s != l.state {
		glog.V(1).Infof("ltssm: %s -> %s", l.state, s)
	}
	l.state = s
	l.rxTS = 0
	l.txTS = 0
	l.txAll = 0
	l.seenFirstRX = false
	switch s {
	case DetectQuiet:
		l.timer = l.cfg.ms(12)
		l.linkUp = false
		l.adoptedLink, l.adoptedLane = 0, 0
		if l.parser != nil {
			l.parser.Reset()
		}
	case PollingActive:
		l.timer = l.cfg.ms(24)
	case PollingConfiguration:
		l.timer = l.cfg.ms(48)
	case ConfigurationLinkwidthStart:
		l.timer = l.cfg.ms(24)
	case ConfigurationLinkwidthAccept:
		l.timer = l.cfg.ms(2)
	case ConfigurationLanenumWait:
		l.timer = l.cfg.ms(2)
	case ConfigurationComplete:
		l.timer = l.cfg.ms(2)
	}
}

func (l *LTSSM) fallback(reason string) Output {
	glog.V(1).Infof("ltssm: falling back to Detect.Quiet from %s: %s", l.state, reason)
	l.enter(DetectQuiet)
	return Output{EIdle: true}
}

func (l *LTSSM) timedOut() bool { return l.timer <= 0 }

func (l *LTSSM) stepDetectQuiet(in Input) Output {
	if in.RXPresent || l.timedOut() {
		l.enter(DetectActive)
	}
	return Output{EIdle: true}
}

func (l *LTSSM) stepDetectActive(in Input) Output {
	if in.DetValid {
		if in.DetStatus {
			l.enter(PollingActive)
		} else {
			l.enter(DetectQuiet)
		}
		return Output{DetEnable: true}
	}
	return Output{DetEnable: true}
}

func padPadTS1() ts.Record {
	return ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true}}
}

func padPadTS2() ts.Record {
	return ts.Record{Valid: true, TSID: ts.TS2, Rate: ts.Rate{Gen1: true}}
}

func (l *LTSSM) stepPollingActive(in Input) Output {
	if l.timedOut() {
		return l.fallback("24ms polling.active timeout")
	}
	// Acceptance is TS1 PAD/PAD (compliance and loopback-pattern detection are out of this
	// core's scope; spec.md §4.5 lists them as alternative acceptance conditions this
	// implementation does not distinguish from the baseline PAD/PAD case) or TS2 PAD/PAD.
	if isTS1PadPad(in.RX) || isTS2PadPad(in.RX) {
		if !l.seenFirstRX {
			l.seenFirstRX = true
		}
		l.bumpRX()
	} else if in.RX.Valid {
		l.rxTS = 0
	}
	// Progress requires 8 consecutive accepted TSes, and only after 1024 TS1s have been
	// transmitted (spec.md §4.5 table); txAll is the ungated transmit counter for this
	// threshold, distinct from the seenFirstRX-gated txTS used by later sub-states.
	if l.rxTS == 8 && l.txAll == 1024 {
		l.enter(PollingConfiguration)
	}
	return Output{WantTS: padPadTS1()}
}

func (l *LTSSM) stepPollingConfiguration(in Input) Output {
	if l.timedOut() {
		return l.fallback("48ms polling.configuration timeout")
	}
	if isTS2PadPad(in.RX) {
		if !l.seenFirstRX {
			l.seenFirstRX = true
		}
		l.bumpRX()
	} else if in.RX.Valid {
		l.rxTS = 0
	}
	if l.rxTS == 8 && l.txTS == 16 {
		l.enter(ConfigurationLinkwidthStart)
	}
	return Output{WantTS: padPadTS2()}
}

func (l *LTSSM) stepConfigurationLinkwidthStart(in Input) Output {
	if l.timedOut() {
		return l.fallback("24ms configuration.linkwidth.start timeout")
	}
	if in.RX.Valid && in.RX.TSID == ts.TS1 && in.RX.Link.Valid && !in.RX.Lane.Valid {
		l.adoptedLink = in.RX.Link.Number
		l.enter(ConfigurationLinkwidthAccept)
	}
	return Output{WantTS: padPadTS1()}
}

func (l *LTSSM) stepConfigurationLinkwidthAccept(in Input) Output {
	if l.timedOut() {
		return l.fallback("2ms configuration.linkwidth.accept timeout")
	}
	if isTS1PadPad(in.RX) {
		return l.fallback("link dropped to PAD/PAD during linkwidth.accept")
	}
	if in.RX.Valid && in.RX.TSID == ts.TS1 && in.RX.Link.Valid && in.RX.Link.Number == l.adoptedLink &&
		in.RX.Lane.Valid && in.RX.Lane.Number == 0 {
		l.adoptedLane = in.RX.Lane.Number
		l.enter(ConfigurationLanenumWait)
	}
	want := ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true}, Link: ts.Field{Valid: true, Number: l.adoptedLink}}
	return Output{WantTS: want}
}

func (l *LTSSM) stepConfigurationLanenumWait(in Input) Output {
	if l.timedOut() {
		return l.fallback("2ms configuration.lanenum.wait timeout")
	}
	if isTS1PadPad(in.RX) {
		return l.fallback("link dropped to PAD/PAD during lanenum.wait")
	}
	if in.RX.Valid && ((in.RX.TSID == ts.TS1 && in.RX.Lane.Valid && in.RX.Lane.Number != l.adoptedLane) || in.RX.TSID == ts.TS2) {
		l.enter(ConfigurationLanenumAccept)
	}
	want := ts.Record{Valid: true, TSID: ts.TS1, Rate: ts.Rate{Gen1: true},
		Link: ts.Field{Valid: true, Number: l.adoptedLink}, Lane: ts.Field{Valid: true, Number: l.adoptedLane}}
	return Output{WantTS: want}
}

func (l *LTSSM) stepConfigurationLanenumAccept(in Input) Output {
	if in.RX.Valid && in.RX.TSID == ts.TS2 && in.RX.Link.Valid && in.RX.Link.Number == l.adoptedLink &&
		in.RX.Lane.Valid && in.RX.Lane.Number == l.adoptedLane {
		l.enter(ConfigurationComplete)
	} else if isTS1PadPad(in.RX) {
		return l.fallback("link dropped to PAD/PAD during lanenum.accept")
	} else if in.RX.Valid && in.RX.TSID == ts.TS2 {
		return l.fallback("TS2 link/lane mismatch during lanenum.accept")
	}
	want := ts.Record{Valid: true, TSID: ts.TS2, Rate: ts.Rate{Gen1: true},
		Link: ts.Field{Valid: true, Number: l.adoptedLink}, Lane: ts.Field{Valid: true, Number: l.adoptedLane}}
	return Output{WantTS: want}
}

func (l *LTSSM) stepConfigurationComplete(in Input) Output {
	if l.timedOut() {
		return l.fallback("2ms configuration.complete timeout")
	}
	match := in.RX.Valid && in.RX.TSID == ts.TS2 && in.RX.Link.Valid && in.RX.Link.Number == l.adoptedLink &&
		in.RX.Lane.Valid && in.RX.Lane.Number == l.adoptedLane
	if match {
		if !l.seenFirstRX {
			l.seenFirstRX = true
		}
		l.bumpRX()
	} else if in.RX.Valid {
		l.rxTS = 0
	}
	if l.rxTS == 8 && l.txTS == 16 {
		l.enter(ConfigurationIdle)
	}
	want := ts.Record{Valid: true, TSID: ts.TS2, Rate: ts.Rate{Gen1: true}, NFTS: 0xFF,
		Link: ts.Field{Valid: true, Number: l.adoptedLink}, Lane: ts.Field{Valid: true, Number: l.adoptedLane}}
	return Output{WantTS: want}
}

func (l *LTSSM) stepConfigurationIdle(in Input) Output {
	l.linkUp = true
	want := ts.Record{Valid: true, TSID: ts.TS2, Rate: ts.Rate{Gen1: true}, NFTS: 0xFF,
		Link: ts.Field{Valid: true, Number: l.adoptedLink}, Lane: ts.Field{Valid: true, Number: l.adoptedLane}}
	return Output{WantTS: want, LinkUp: true}
}
