package perceptron

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HISTORY REGISTER
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Fixed-length FIFO of the last H outcomes, oldest first.
//
// PACKING:
//   Entry i (0 = oldest) lives at bit H-1-i, so the register reads MSB = oldest,
//   LSB = newest. Commit shifts left and inserts the new outcome at bit 0, which
//   pops the oldest entry off the top.
//
//   H=7, entries [o1 o2 o3 o4 o5 o6 o7] → value = o1 o2 o3 o4 o5 o6 o7 (binary)
//
// WRITERS:
//   Only the engine, once per sample, after the last training write commits.
//
// SystemVerilog equivalent:
//   always_ff @(posedge clk or negedge rst_n) begin
//     if (!rst_n)           history <= '0;
//     else if (commit_en)   history <= {history[H-2:0], outcome};
//   end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// History is the global branch history register.
type History struct {
	length int
	mask   uint64
	bits   uint64
}

// NewHistory returns an all-not-taken register of the given length (1..64).
func NewHistory(length int) *History {
	if length < 1 || length > MaxHistoryLength {
		panic("perceptron: history length out of range")
	}
	mask := ^uint64(0)
	if length < 64 {
		mask = (uint64(1) << length) - 1
	}
	return &History{length: length, mask: mask}
}

// Len is H.
func (h *History) Len() int { return h.length }

// At returns entry i, 0 being the oldest.
func (h *History) At(i int) bool {
	return (h.bits>>(h.length-1-i))&1 == 1
}

// Bits returns the entries oldest first.
func (h *History) Bits() []bool {
	out := make([]bool, h.length)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Value returns the packed register, oldest entry at the MSB.
func (h *History) Value() uint64 { return h.bits }

// Commit pops the oldest outcome and appends the newest.
func (h *History) Commit(outcome bool) {
	h.bits = ((h.bits << 1) | uint64(b2i(outcome))) & h.mask
}

// Reset clears every entry to not taken.
func (h *History) Reset() { h.bits = 0 }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
