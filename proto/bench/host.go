package bench

import (
	"github.com/maemowong/perceptron/proto/input"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HOST DRIVERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// A host owns the external pins. Edge() is called on every rising edge of the external
// clock; the host sets its pin levels for that edge and the synchronizer samples them.
//
// Between transactions the host polls the core's ready signal and only starts the
// next transaction once the previous sample has been trained.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Host drives one external channel.
type Host interface {
	// Edge applies one external clock rising edge.
	Edge()

	// Done reports that every queued sample has been sent.
	Done() bool
}

// Pins is the level of the serial lines on one edge.
type Pins struct {
	CSN  bool // chip-select, active low
	Data bool
}

// SerialWaveform returns the per-edge pin levels for one transaction: bits address
// bits MSB first with chip-select low, one edge with chip-select high, then the
// direction bit.
func SerialWaveform(bits int, s input.Sample) []Pins {
	wave := make([]Pins, 0, bits+2)
	for k := bits - 1; k >= 0; k-- {
		wave = append(wave, Pins{CSN: false, Data: (s.Address>>k)&1 == 1})
	}
	wave = append(wave, Pins{CSN: true})
	wave = append(wave, Pins{CSN: true, Data: s.Outcome})
	return wave
}

// SerialHost shifts samples into an input.Serial.
type SerialHost struct {
	sync  *input.Serial
	bits  int
	ready func() bool
	queue []input.Sample
	wave  []Pins
	sent  int
}

// NewSerialHost queues samples for sync. ready gates the start of each transaction.
func NewSerialHost(sync *input.Serial, bits int, ready func() bool, samples []input.Sample) *SerialHost {
	q := make([]input.Sample, len(samples))
	copy(q, samples)
	return &SerialHost{sync: sync, bits: bits, ready: ready, queue: q}
}

func (h *SerialHost) Edge() {
	if len(h.wave) == 0 && len(h.queue) > 0 && h.ready() {
		h.wave = SerialWaveform(h.bits, h.queue[0])
		h.queue = h.queue[1:]
		h.sent++
	}

	pins := Pins{CSN: true}
	if len(h.wave) > 0 {
		pins = h.wave[0]
		h.wave = h.wave[1:]
	}
	h.sync.Edge(pins.CSN, pins.Data)
}

func (h *SerialHost) Done() bool { return len(h.queue) == 0 && len(h.wave) == 0 }

// Sent is the number of transactions started.
func (h *SerialHost) Sent() int { return h.sent }

// StrobeHost presents samples on parallel pins with a valid strobe held for hold
// external cycles.
type StrobeHost struct {
	strobe    *input.Strobe
	hold      int
	ready     func() bool
	queue     []input.Sample
	cur       input.Sample
	remaining int
	sent      int
}

// NewStrobeHost queues samples for strobe.
func NewStrobeHost(strobe *input.Strobe, hold int, ready func() bool, samples []input.Sample) *StrobeHost {
	if hold < 1 {
		hold = 1
	}
	q := make([]input.Sample, len(samples))
	copy(q, samples)
	return &StrobeHost{strobe: strobe, hold: hold, ready: ready, queue: q}
}

func (h *StrobeHost) Edge() {
	if h.remaining > 0 {
		h.remaining--
		if h.remaining == 0 {
			h.strobe.Drive(h.cur.Address, h.cur.Outcome, false)
		}
		return
	}
	if len(h.queue) == 0 || !h.ready() {
		return
	}
	h.cur = h.queue[0]
	h.queue = h.queue[1:]
	h.remaining = h.hold
	h.sent++
	h.strobe.Drive(h.cur.Address, h.cur.Outcome, true)
}

func (h *StrobeHost) Done() bool { return len(h.queue) == 0 && h.remaining == 0 }

// Sent is the number of strobes raised.
func (h *StrobeHost) Sent() int { return h.sent }
