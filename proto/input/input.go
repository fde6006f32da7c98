// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Perceptron Predictor Input Synchronizer - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// The predictor core runs on one internal clock. Branch samples (address + ground-truth
// direction) arrive from outside the chip on a narrow channel that may run on its own,
// slower clock. This package turns each external transaction into exactly one
// single-cycle "sample ready" event in the internal clock domain.
//
// Two channel variants share one acquisition contract (Source):
//
//   Strobe: parallel address/direction pins qualified by a "valid" strobe.
//           Rising edge of the strobe → one sample, one core cycle later.
//
//   Serial: chip-select (active low), serial clock, serial data.
//           ADDR_BITS address bits MSB-first, then chip-select high, then the
//           direction bit on the next serial clock edge.
//
// CLOCK DOMAINS:
// ──────────────
//   External domain: methods named Drive/Edge (called by the host model).
//   Internal domain: Tick/Poll/Pulse (called once per core clock by the Core).
//
// SystemVerilog mapping:
//   Edge()  → always_ff @(posedge spi_clk)
//   Tick()  → always_ff @(posedge clk)
//   Poll()  → pending-slot dequeue (rd_en from the core FSM)
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package input

// Sample is one branch observation handed from the synchronizer to the engine.
// Address and Outcome are always latched together.
type Sample struct {
	Address uint32
	Outcome bool
}

// Stats counts transactions seen by a synchronizer. Debug only, not synthesized.
type Stats struct {
	Accepted  uint64 // Samples placed into the pending slot
	Discarded uint64 // Malformed transactions (bit count, chip-select glitch)
	Dropped   uint64 // Well-formed transactions lost because the pending slot was held
}

// Source is the acquisition contract shared by both channel variants.
//
// The pending slot is one entry deep. A sample stays there until Poll removes it,
// so the engine only dequeues when it is idle.
type Source interface {
	// Tick advances the synchronizer by one internal clock cycle.
	Tick()

	// Poll removes and returns the pending sample, if any.
	Poll() (Sample, bool)

	// Pulse reports the single-cycle "input complete" strobe for the current cycle.
	Pulse() bool

	// Pending reports whether a sample waits in the slot.
	Pending() bool

	// Ready reports whether the host may begin a new transaction.
	Ready() bool

	// Reset clears all synchronizer state in both domains.
	Reset()

	Stats() Stats
}

// addressMask returns the mask for an n-bit address (n in 1..32).
func addressMask(n int) uint32 {
	if n >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << n) - 1
}
