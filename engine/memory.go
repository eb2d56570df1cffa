// Memory cells: registers that default to their previously-committed value but, while an
// enclosing rule's Action writes them, are visible to every later rule Cond in the same
// tick's chain (spec.md §4.2, "NextMemory").
//
// The teacher's TAGE branch predictor (proto/tage/tage.go) avoids clearing its per-table
// valid bitmap every prediction by tagging each entry and comparing the tag on lookup
// instead of resetting ValidBitmapWords words of state every cycle. Cell borrows only the
// stamp: each Cell records the engine's tick generation when written (see WrittenAt), but
// Read never compares it. No per-tick clear is needed, because a written value persists
// as the registered value and writes from a failing chain are dropped together with that
// chain's scratch copy (tryChain in engine.go).
package engine

// Cell is a memory cell as described in spec.md §4.2: combinational bypass of a same-tick
// write, registered (sticky) otherwise.
type Cell[T any] struct {
	value T
	gen   uint64
}

// Read returns the cell's current value: a write made earlier in the same tick's chain is
// already visible (the "bypass mux" output); otherwise it is the last value written in an
// earlier tick.
func (c Cell[T]) Read() T { return c.value }

// Write commits v as this cell's value, visible immediately (same-tick bypass) to any
// later Cond in the chain, and persists as the registered value into subsequent ticks
// until overwritten again. gen is advisory bookkeeping only (mirrors TAGE's tag stamp);
// Cell does not need it to behave correctly, since the engine's scratch-copy-per-chain
// discipline (tryChain in engine.go) already discards writes from chains that fail later
// in the same tick.
func (c *Cell[T]) Write(v T, gen uint64) {
	c.value = v
	c.gen = gen
}

// WrittenAt reports the generation this cell was last written, for diagnostics.
func (c Cell[T]) WrittenAt() uint64 { return c.gen }
