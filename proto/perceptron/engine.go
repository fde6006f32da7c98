package perceptron

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/maemowong/perceptron/proto/input"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PERCEPTRON TABLE ENGINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// STATE MACHINE:
//
//   IDLE ──sample──▶ INDEX ──▶ FETCH ⇄ ACCUMULATE ──(i == H)──▶ PREDICT ──▶ TRAIN ──▶ IDLE
//                               ▲   (i < H)   │                                 │ ▲
//                               └─────────────┘                                 └─┘ read, write × (H+1)
//
//   IDLE        capture (address, outcome)
//   INDEX       index = (address >> 2) mod N, base = index × (H+1), read base
//   FETCH       wait L cycles for w[i]
//   ACCUMULATE  sum += history[i] ? w[i] : -w[i]   (i < H)
//               sum += w[H]                        (bias)
//   PREDICT     prediction = sum >= 0, prediction_ready pulse
//   TRAIN       for i in 0..H: read w[i], write sat(w[i] + s_i), s_i = +1 if bias or
//               history[i] == outcome, else -1. training_complete pulses with the last
//               write; history commits the outcome on the same edge.
//
// Training reads the history exactly as accumulation saw it. The commit happens
// after the final write, never before.
//
// LATENCY (L = memory latency):
//   1 (IDLE capture) + 1 (INDEX) + (H+1)(L+1) + 1 (PREDICT) + (H+1)(2L)
//   = 3 + (H+1)(3L+1) cycles per sample. H=7, L=2 → 59 cycles.
//
// SystemVerilog equivalent:
//   typedef enum logic [2:0] {IDLE, INDEX, FETCH, ACCUMULATE, PREDICT, TRAIN} state_t;
//   logic signed [SUM_BITS-1:0] sum;
//   logic [$clog2(HISTORY_LENGTH+1)-1:0] cursor;
//   logic train_wr;
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// State is the engine FSM state.
type State uint8

const (
	StateIdle State = iota
	StateIndex
	StateFetch
	StateAccumulate
	StatePredict
	StateTrain
)

var stateNames = [...]string{"IDLE", "INDEX", "FETCH", "ACCUMULATE", "PREDICT", "TRAIN"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Outputs are the engine's externally observable signals for the current cycle.
type Outputs struct {
	State            State
	PerceptronIndex  int
	WeightAddress    int
	PredictionReady  bool
	Prediction       bool
	Sum              int
	TrainingComplete bool
}

// CyclesPerSample is the fixed pipeline length for a memory latency.
func CyclesPerSample(cfg Config, latency int) int {
	if latency < 1 {
		latency = 1
	}
	return 3 + cfg.WeightsPerPerceptron()*(3*latency+1)
}

// Engine is the perceptron table engine.
type Engine struct {
	cfg     Config
	port    *Port
	history *History
	logger  *slog.Logger

	state   State
	arrived bool
	next    input.Sample

	sample   input.Sample
	index    int
	base     int
	cursor   int
	word     Word
	sum      int
	trainWr  bool
	weights  []int
	predRdy  bool
	pred     bool
	trainDne bool
}

// NewEngine builds an engine over port and history. logger may be nil.
func NewEngine(cfg Config, port *Port, history *History, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if port.store.Size() < cfg.Words() {
		return nil, fmt.Errorf("%w: weight store holds %d words, table needs %d",
			ErrInvalidConfig, port.store.Size(), cfg.Words())
	}
	if history.Len() != cfg.HistoryLength {
		return nil, fmt.Errorf("%w: history register is %d bits, want %d",
			ErrInvalidConfig, history.Len(), cfg.HistoryLength)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:     cfg,
		port:    port,
		history: history,
		logger:  logger,
		weights: make([]int, cfg.WeightsPerPerceptron()),
	}, nil
}

// Idle reports that Start would be accepted.
func (e *Engine) Idle() bool { return e.state == StateIdle && !e.arrived }

// Start hands a sample to the engine. It is captured on the next Tick.
func (e *Engine) Start(s input.Sample) error {
	if !e.Idle() {
		return ErrBusy
	}
	e.next = s
	e.arrived = true
	return nil
}

// Tick advances the engine one clock. It returns the finished record on the cycle
// training_complete pulses.
func (e *Engine) Tick() (Record, bool) {
	e.predRdy = false
	e.trainDne = false

	data, done := e.port.Tick()
	prev := e.state

	switch e.state {
	case StateIdle:
		if e.arrived {
			e.arrived = false
			e.sample = e.next
			e.state = StateIndex
		}

	case StateIndex:
		e.index = e.cfg.Index(e.sample.Address)
		e.base = e.cfg.Base(e.index)
		e.cursor = 0
		e.sum = 0
		e.port.IssueRead(e.base)
		e.state = StateFetch

	case StateFetch:
		if done {
			e.word = data
			e.state = StateAccumulate
		}

	case StateAccumulate:
		w := e.cfg.Decode(e.word)
		switch {
		case e.cursor == e.cfg.HistoryLength:
			e.sum += w
		case e.history.At(e.cursor):
			e.sum += w
		default:
			e.sum -= w
		}

		if e.cursor == e.cfg.HistoryLength {
			e.state = StatePredict
			break
		}
		e.cursor++
		e.port.IssueRead(e.base + e.cursor)
		e.state = StateFetch

	case StatePredict:
		e.pred = e.sum >= 0
		e.predRdy = true
		e.cursor = 0
		e.trainWr = false
		e.port.IssueRead(e.base)
		e.state = StateTrain

	case StateTrain:
		if !done {
			break
		}
		if !e.trainWr {
			isBias := e.cursor == e.cfg.HistoryLength
			hist := !isBias && e.history.At(e.cursor)
			w := e.cfg.Saturate(e.cfg.Decode(data) + trainDelta(isBias, hist, e.sample.Outcome))
			e.weights[e.cursor] = w
			e.port.IssueWrite(e.base+e.cursor, e.cfg.Encode(w))
			e.trainWr = true
			break
		}
		if e.cursor < e.cfg.HistoryLength {
			e.cursor++
			e.port.IssueRead(e.base + e.cursor)
			e.trainWr = false
			break
		}

		// Last write committed this cycle
		e.history.Commit(e.sample.Outcome)
		e.trainDne = true
		e.state = StateIdle

		rec := e.record()
		e.logger.Debug("sample trained",
			"address", fmt.Sprintf("%#x", rec.Address),
			"index", rec.HashIndex,
			"y", rec.Y,
			"prediction", rec.Prediction,
			"taken", rec.Taken)
		return rec, true
	}

	if prev != e.state && e.logger.Enabled(context.Background(), levelTrace) {
		e.logger.Log(context.Background(), levelTrace, "engine transition",
			"from", prev.String(), "to", e.state.String(), "cursor", e.cursor, "sum", e.sum)
	}
	return Record{}, false
}

func (e *Engine) record() Record {
	weights := make([]int, len(e.weights))
	copy(weights, e.weights)
	return Record{
		Address:      e.sample.Address,
		HashIndex:    e.index,
		StartAddress: e.base,
		Taken:        e.sample.Outcome,
		Prediction:   e.pred,
		Y:            e.sum,
		Weights:      weights,
	}
}

// Outputs samples the observable signals.
func (e *Engine) Outputs() Outputs {
	return Outputs{
		State:            e.state,
		PerceptronIndex:  e.index,
		WeightAddress:    e.port.Address(),
		PredictionReady:  e.predRdy,
		Prediction:       e.pred,
		Sum:              e.sum,
		TrainingComplete: e.trainDne,
	}
}

// State is the current FSM state.
func (e *Engine) State() State { return e.state }

// Reset returns the FSM to IDLE. Weight memory and history are reset by their owners.
func (e *Engine) Reset() {
	e.state = StateIdle
	e.arrived = false
	e.sample = input.Sample{}
	e.index, e.base, e.cursor, e.sum = 0, 0, 0, 0
	e.trainWr, e.predRdy, e.pred, e.trainDne = false, false, false, false
	for i := range e.weights {
		e.weights[i] = 0
	}
	e.port.Reset()
}

// levelTrace mirrors the CLI's TRACE level (slog.LevelDebug - 4).
const levelTrace = slog.LevelDebug - 4
