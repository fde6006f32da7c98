package input

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SERIAL SHIFT SYNCHRONIZER
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// WIRE PROTOCOL (sampled on serial clock rising edges):
//
//   edge  0 .. N-1 : cs_n=0, data=address[N-1-k]     (MSB first, N = ADDR_BITS)
//   edge  N        : cs_n=1                          (chip-select returns high)
//   edge  N+1      : cs_n=1, data=direction          (transaction commits here)
//
// Malformed transactions are discarded without touching the committed sample:
//   - chip-select high after fewer or more than N shifted bits
//   - chip-select low again while waiting for the direction bit
//
// CLOCK-DOMAIN CROSSING:
// ──────────────────────
// The serial side commits into shadow registers (latchAddr, latchDir) and flips a
// request toggle. The core side passes the toggle through a 2-flop synchronizer,
// copies the shadow registers when the synchronized toggle differs from its
// acknowledge toggle, and flips the acknowledge. The acknowledge crosses back
// through another 2-flop synchronizer.
//
// The shadow registers only change while req == ack (seen from the serial side), so
// the core never reads them mid-update. Exactly one pulse fires per toggle flip,
// whatever the ratio or phase of the two clocks.
//
// A transaction that commits while the previous one is still unacknowledged is
// dropped. The core withholds the acknowledge while its pending slot is occupied,
// which is how a busy engine stalls the channel.
//
// SystemVerilog equivalent:
//   always_ff @(posedge spi_clk) begin
//     ack_sync <= {ack_sync[0], ack};
//     case (phase)
//       IDLE:  if (!cs_n) begin shift <= data; count <= 1; phase <= SHIFT; end
//       SHIFT: if (!cs_n) begin shift <= {shift, data}; count <= count + 1; end
//              else phase <= (count == N) ? DIR : IDLE;
//       DIR:   begin
//                if (cs_n && req == ack_sync[1]) begin
//                  latch_addr <= shift; latch_dir <= data; req <= ~req;
//                end
//                phase <= IDLE;
//              end
//     endcase
//   end
//
//   always_ff @(posedge clk) begin
//     input_complete <= 1'b0;
//     req_sync <= {req_sync[0], req};
//     if (req_sync[1] != ack && !pending_valid) begin
//       pending <= '{latch_addr, latch_dir}; pending_valid <= 1'b1;
//       ack <= req_sync[1]; input_complete <= 1'b1;
//     end
//   end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type serialPhase uint8

const (
	serialIdle serialPhase = iota
	serialShift
	serialDirection
)

// Serial is the bit-serial variant of Source.
type Serial struct {
	bits int
	mask uint32

	// Serial clock domain
	phase     serialPhase
	shift     uint32
	count     int
	latchAddr uint32
	latchDir  bool
	req       bool
	ackSync   [2]bool

	// Internal clock domain
	reqSync    [2]bool
	ack        bool
	pending    Sample
	hasPending bool
	pulse      bool

	stats Stats
}

// NewSerial returns a serial synchronizer shifting in addrBits address bits.
func NewSerial(addrBits int) *Serial {
	return &Serial{bits: addrBits, mask: addressMask(addrBits)}
}

// Edge applies one serial clock rising edge with the given pin levels.
// csN is the active-low chip-select.
func (s *Serial) Edge(csN, data bool) {
	s.ackSync[1] = s.ackSync[0]
	s.ackSync[0] = s.ack

	switch s.phase {
	case serialIdle:
		if !csN {
			s.shift = b2u(data)
			s.count = 1
			s.phase = serialShift
		}

	case serialShift:
		if !csN {
			s.shift = (s.shift << 1) | b2u(data)
			s.count++
			return
		}
		if s.count != s.bits {
			s.stats.Discarded++
			s.phase = serialIdle
			return
		}
		s.phase = serialDirection

	case serialDirection:
		s.phase = serialIdle
		if !csN {
			// chip-select glitch before the direction bit
			s.stats.Discarded++
			return
		}
		if s.req != s.ackSync[1] {
			s.stats.Dropped++
			return
		}
		s.latchAddr = s.shift & s.mask
		s.latchDir = data
		s.req = !s.req
	}
}

func (s *Serial) Tick() {
	s.pulse = false
	s.reqSync[1] = s.reqSync[0]
	s.reqSync[0] = s.req

	if s.reqSync[1] != s.ack && !s.hasPending {
		s.pending = Sample{Address: s.latchAddr, Outcome: s.latchDir}
		s.hasPending = true
		s.ack = s.reqSync[1]
		s.pulse = true
		s.stats.Accepted++
	}
}

func (s *Serial) Poll() (Sample, bool) {
	if !s.hasPending {
		return Sample{}, false
	}
	s.hasPending = false
	return s.pending, true
}

func (s *Serial) Pulse() bool { return s.pulse }

// Pending is true while a sample is held on either side of the crossing.
func (s *Serial) Pending() bool {
	return s.hasPending || s.reqSync[1] != s.ack || s.req != s.reqSync[1]
}

// Ready is evaluated in the serial domain: the last request has been acknowledged
// and no transaction is being shifted.
func (s *Serial) Ready() bool {
	return s.phase == serialIdle && s.req == s.ackSync[1]
}

func (s *Serial) Reset() {
	*s = Serial{bits: s.bits, mask: s.mask}
}

func (s *Serial) Stats() Stats { return s.stats }

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
