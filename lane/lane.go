// Package lane defines the collaborator contract between this core and its SERDES
// (spec.md §3 "Lane state", §6 "External interfaces"): a value type per tick carrying the
// ratio-wide symbol vectors and the handshake/control scalars, with no behaviour of its
// own. cmd/linksim assembles these snapshots around the RX parser, TX emitter, symbol
// aligner and LTSSM; their Step methods take plain symbol slices or their own input types,
// not lane values.
package lane

import "github.com/openlane/gen1link/symbol"

// Ratio is the lane's symbols-per-tick gearbox width: 1 or 2 (spec.md §6).
type Ratio int

const (
	Ratio1 Ratio = 1
	Ratio2 Ratio = 2
)

// Valid reports whether r is one of the two widths this core supports.
func (r Ratio) Valid() bool { return r == Ratio1 || r == Ratio2 }

// RX is the snapshot the SERDES presents to this core each tick (spec.md §3, §6).
type RX struct {
	Symbol  []symbol.Symbol // length == ratio; ignore Symbol[i] where Valid[i] == false
	Valid   []bool          // length == ratio; coding-error sideband per symbol
	Present bool            // det/receiver-detect: a partner is electrically present
	Locked  bool            // SERDES has bit/symbol lock
	Aligned bool            // symbol aligner reports offset is stable

	DetValid  bool // receiver-detect cycle has completed
	DetStatus bool // receiver-detect result: true == partner present
}

// TX is the snapshot this core presents to the SERDES each tick (spec.md §3, §6).
type TX struct {
	Symbol  []symbol.Symbol // length == ratio
	SetDisp []bool          // length == ratio
	Disp    []bool          // length == ratio; meaningful only where SetDisp[i] == true
	EIdle   []bool          // length == ratio

	Invert    bool // request SERDES polarity invert (rx.invert, owned by the RX parser)
	Align     bool // request SERDES re-run the aligner's comma search
	DetEnable bool // drive receiver-detect (owned by the LTSSM)
}

// NewRX allocates a zero-valued RX snapshot sized for ratio.
func NewRX(ratio Ratio) RX {
	return RX{Symbol: make([]symbol.Symbol, ratio), Valid: make([]bool, ratio)}
}

// NewTX allocates a zero-valued TX snapshot sized for ratio.
func NewTX(ratio Ratio) TX {
	return TX{
		Symbol:  make([]symbol.Symbol, ratio),
		SetDisp: make([]bool, ratio),
		Disp:    make([]bool, ratio),
		EIdle:   make([]bool, ratio),
	}
}
