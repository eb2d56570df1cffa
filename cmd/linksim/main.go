// command linksim drives the Symbol Aligner, RX parser, TX emitter, and LTSSM through a
// tick loop, looping the emitter's own output back in as the wire this core's receive side
// observes (spec.md §2's SERDES → Symbol Aligner → RX Parser data flow, minus the SERDES
// itself), for interactive experimentation with link training (spec.md §8's round-trip
// scenario).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/openlane/gen1link/aligner"
	"github.com/openlane/gen1link/lane"
	"github.com/openlane/gen1link/ltssm"
	"github.com/openlane/gen1link/rx"
	"github.com/openlane/gen1link/symbol"
	"github.com/openlane/gen1link/ts"
	"github.com/openlane/gen1link/tx"
)

var (
	ratio  = flag.Int("ratio", 1, "gearbox ratio, 1 or 2 symbols per tick")
	msCyc  = flag.Int("ms_cyc", 8000, "link clock ticks per millisecond")
	ticks  = flag.Int("ticks", 20000, "ticks to simulate before giving up")
	rxLoss = flag.Bool("inject_rx_present", true, "assert rx_present from tick 0 (no SERDES present-detect wired)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *ratio != 1 && *ratio != 2 {
		return fmt.Errorf("ratio must be 1 or 2, got %d", *ratio)
	}
	r := lane.Ratio(*ratio)

	parser, err := rx.New(*ratio)
	if err != nil {
		return err
	}
	emitter, err := tx.New(*ratio)
	if err != nil {
		return err
	}
	align := aligner.New(*ratio, symbol.Comma)
	sm := ltssm.New(ltssm.Config{MsCyc: *msCyc}, parser)

	var wantTS ts.Record
	eIdle := true

	for tick := 0; tick < *ticks; tick++ {
		txSyms := emitter.Step(wantTS, eIdle)

		txOut := lane.NewTX(r)
		for i, s := range txSyms {
			txOut.Symbol[i] = s.Value
			txOut.SetDisp[i] = s.SetDisp
			txOut.Disp[i] = s.Disp
			txOut.EIdle[i] = s.EIdle
		}

		// Loopback wire: this harness has no SERDES, so the emitter's own output is what
		// its RX side observes, with no coding errors to inject.
		rxIn := lane.NewRX(r)
		copy(rxIn.Symbol, txOut.Symbol)
		for i := range rxIn.Valid {
			rxIn.Valid[i] = true
		}

		aligned := align.Step(rxIn.Symbol, true)
		obs := parser.Step(aligned, rxIn.Valid)

		out := sm.Step(ltssm.Input{
			RX:        obs.TS,
			RXPresent: *rxLoss,
			DetValid:  true,
			DetStatus: true,
			TXComma:   emitter.Comma(),
		})
		wantTS, eIdle = out.WantTS, out.EIdle

		if out.LinkUp {
			glog.Infof("linksim: link_up at tick %d (%+v)", tick, sm.Snapshot())
			fmt.Printf("link up after %d ticks: %+v\n", tick, sm.Snapshot())
			return nil
		}
	}
	return fmt.Errorf("link did not train within %d ticks, last state %s", *ticks, sm.State())
}
