package perceptron

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GOLDEN REFERENCE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Zero-latency functional model of the same predictor. It keeps weights as plain
// signed integers per perceptron instead of encoded words behind a memory port, so
// a bug in the engine's sequencing or word encoding shows up as a mismatch.
//
// Step(address, outcome) = Predict + Train + history commit, and returns the record
// the trace-replay tool prints.
//
// NOT synthesized - verification only.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Stats counts predictions. Debug only.
type Stats struct {
	Branches uint64
	Correct  uint64
}

// Accuracy is Correct / Branches (0 when nothing ran).
func (s Stats) Accuracy() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Branches)
}

// Reference is the functional perceptron predictor.
type Reference struct {
	cfg         Config
	perceptrons [][]int
	history     []bool
	stats       Stats
}

// NewReference returns a cold (all-zero) reference model.
func NewReference(cfg Config) (*Reference, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Reference{cfg: cfg}
	r.perceptrons = make([][]int, cfg.NumPerceptrons())
	for i := range r.perceptrons {
		r.perceptrons[i] = make([]int, cfg.WeightsPerPerceptron())
	}
	r.history = make([]bool, cfg.HistoryLength)
	return r, nil
}

// Predict computes (prediction, y, index) without changing state. Only the low
// AddrBits of address reach the predictor, as on the pins.
func (r *Reference) Predict(address uint32) (bool, int, int) {
	idx := r.cfg.Index(r.cfg.Latch(address))
	w := r.perceptrons[idx]
	H := r.cfg.HistoryLength

	y := w[H]
	for i := 0; i < H; i++ {
		if r.history[i] {
			y += w[i]
		} else {
			y -= w[i]
		}
	}
	return y >= 0, y, idx
}

// Train applies the learning rule for address and commits the outcome to history.
func (r *Reference) Train(address uint32, outcome bool) {
	w := r.perceptrons[r.cfg.Index(r.cfg.Latch(address))]
	H := r.cfg.HistoryLength

	for i := 0; i < H; i++ {
		w[i] = r.cfg.Saturate(w[i] + trainDelta(false, r.history[i], outcome))
	}
	w[H] = r.cfg.Saturate(w[H] + trainDelta(true, false, outcome))

	copy(r.history, r.history[1:])
	r.history[H-1] = outcome
}

// Step predicts, trains and returns the observable record.
func (r *Reference) Step(address uint32, outcome bool) Record {
	pred, y, idx := r.Predict(address)
	r.Train(address, outcome)

	r.stats.Branches++
	if pred == outcome {
		r.stats.Correct++
	}

	return Record{
		Address:      r.cfg.Latch(address),
		HashIndex:    idx,
		StartAddress: r.cfg.Base(idx),
		Taken:        outcome,
		Prediction:   pred,
		Y:            y,
		Weights:      r.Weights(idx),
	}
}

// Weights returns a copy of perceptron idx.
func (r *Reference) Weights(idx int) []int {
	out := make([]int, len(r.perceptrons[idx]))
	copy(out, r.perceptrons[idx])
	return out
}

// History returns the outcomes oldest first.
func (r *Reference) History() []bool {
	out := make([]bool, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Reference) Stats() Stats { return r.stats }

// Reset clears weights, history and statistics.
func (r *Reference) Reset() {
	for _, w := range r.perceptrons {
		for i := range w {
			w[i] = 0
		}
	}
	for i := range r.history {
		r.history[i] = false
	}
	r.stats = Stats{}
}
