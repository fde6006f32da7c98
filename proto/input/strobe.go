package input

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PARALLEL STROBE SYNCHRONIZER
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// The host presents address and direction on parallel pins and raises sample_valid.
// A one-cycle-delayed copy of sample_valid (validQ) detects the rising edge, so a
// strobe held high for many cycles still produces exactly one sample.
//
// TIMING:
//   cycle t   : valid=1, validQ=0 → rising edge, pins latched into the stage register
//   cycle t+1 : stage → pending slot, sample_ready pulses for this cycle only
//
// SystemVerilog equivalent:
//   always_ff @(posedge clk) begin
//     sample_ready <= 1'b0;
//     if (staged_valid) begin
//       staged_valid <= 1'b0;
//       if (!pending_valid) begin
//         pending       <= staged;
//         pending_valid <= 1'b1;
//         sample_ready  <= 1'b1;
//       end
//     end
//     valid_q <= sample_valid;
//     if (sample_valid && !valid_q) begin
//       staged       <= '{address, outcome};
//       staged_valid <= 1'b1;
//     end
//   end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Strobe is the parallel-strobe variant of Source.
type Strobe struct {
	mask uint32

	// Pins (driven by the host)
	address uint32
	outcome bool
	valid   bool

	// Internal clock domain
	validQ      bool
	staged      Sample
	stagedValid bool
	pending     Sample
	hasPending  bool
	pulse       bool

	stats Stats
}

// NewStrobe returns a strobe synchronizer latching addrBits address bits.
func NewStrobe(addrBits int) *Strobe {
	return &Strobe{mask: addressMask(addrBits)}
}

// Drive sets the pin levels seen by the next Tick.
func (s *Strobe) Drive(address uint32, outcome, valid bool) {
	s.address = address
	s.outcome = outcome
	s.valid = valid
}

func (s *Strobe) Tick() {
	s.pulse = false

	// Stage → pending slot (one cycle after the edge)
	if s.stagedValid {
		s.stagedValid = false
		if s.hasPending {
			s.stats.Dropped++
		} else {
			s.pending = s.staged
			s.hasPending = true
			s.pulse = true
			s.stats.Accepted++
		}
	}

	// Rising-edge detect
	rise := s.valid && !s.validQ
	s.validQ = s.valid
	if rise {
		s.staged = Sample{Address: s.address & s.mask, Outcome: s.outcome}
		s.stagedValid = true
	}
}

func (s *Strobe) Poll() (Sample, bool) {
	if !s.hasPending {
		return Sample{}, false
	}
	s.hasPending = false
	return s.pending, true
}

func (s *Strobe) Pulse() bool   { return s.pulse }
func (s *Strobe) Pending() bool { return s.hasPending || s.stagedValid }

// Ready is true once the previous strobe has been seen low and nothing is in flight.
func (s *Strobe) Ready() bool {
	return !s.valid && !s.validQ && !s.stagedValid && !s.hasPending
}

func (s *Strobe) Reset() {
	*s = Strobe{mask: s.mask}
}

func (s *Strobe) Stats() Stats { return s.stats }
