package perceptron

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/maemowong/perceptron/proto/input"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Top level of the predictor: input synchronizer → engine → weight store / history.
//
//   ┌──────────────┐ sample  ┌────────┐  port  ┌─────────────┐
//   │ input.Source │────────▶│ Engine │◀──────▶│ WeightStore │
//   └──────────────┘  (idle) └────────┘        └─────────────┘
//                                │ ▲
//                                ▼ │ commit / read
//                            ┌─────────┐
//                            │ History │
//                            └─────────┘
//
// BACKPRESSURE:
//   The synchronizer's pending slot is one sample deep and is only drained while the
//   engine is idle. Hosts wait for Ready() before starting the next transaction. A
//   transaction that completes while the slot is still held is dropped by the
//   synchronizer and counted in its Stats.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// CoreStats summarizes a run. Debug only.
type CoreStats struct {
	Cycles  uint64
	Samples uint64
	Correct uint64
	Input   input.Stats
	Port    PortStats
}

// Accuracy is Correct / Samples.
func (s CoreStats) Accuracy() float64 {
	return Stats{Branches: s.Samples, Correct: s.Correct}.Accuracy()
}

// Core ties a Source to an Engine.
type Core struct {
	cfg     Config
	source  input.Source
	store   WeightStore
	port    *Port
	history *History
	engine  *Engine
	logger  *slog.Logger

	cycles  uint64
	samples uint64
	correct uint64
	seen    input.Stats // last synchronizer counts reported
}

// NewCore builds a core over source and store with the given memory latency.
// logger may be nil.
func NewCore(cfg Config, source input.Source, store WeightStore, latency int, logger *slog.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	port := NewPort(store, latency)
	history := NewHistory(cfg.HistoryLength)
	engine, err := NewEngine(cfg, port, history, logger)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	return &Core{
		cfg:     cfg,
		source:  source,
		store:   store,
		port:    port,
		history: history,
		engine:  engine,
		logger:  logger,
	}, nil
}

// Tick advances the core by one internal clock.
func (c *Core) Tick() (Record, bool) {
	c.cycles++
	c.source.Tick()
	c.reportInput()

	if c.engine.Idle() {
		if s, ok := c.source.Poll(); ok {
			c.start(s)
		}
	}

	rec, ok := c.engine.Tick()
	if ok {
		c.samples++
		if rec.Correct() {
			c.correct++
		}
	}
	return rec, ok
}

// start hands a dequeued sample to the engine. The sample has already left the
// pending slot, so a refusal would lose it; that is a wiring defect, not a
// runtime condition.
func (c *Core) start(s input.Sample) {
	if err := c.engine.Start(s); err != nil {
		panic(fmt.Errorf("perceptron: sample %#x dequeued into a busy engine: %w", s.Address, err))
	}
}

// reportInput logs transactions the synchronizer dropped or discarded since the
// last cycle. The counts advance in either clock domain.
func (c *Core) reportInput() {
	st := c.source.Stats()
	if st.Dropped > c.seen.Dropped {
		c.logger.Warn("input transaction dropped, pending slot held",
			"cycle", c.cycles, "dropped", st.Dropped-c.seen.Dropped, "total", st.Dropped)
	}
	if st.Discarded > c.seen.Discarded {
		c.logger.Debug("malformed input transaction discarded",
			"cycle", c.cycles, "total", st.Discarded)
	}
	c.seen = st
}

// Ready reports that nothing is in flight and a host may start a transaction.
func (c *Core) Ready() bool {
	return c.engine.Idle() && !c.source.Pending() && c.source.Ready()
}

func (c *Core) Engine() *Engine      { return c.engine }
func (c *Core) History() *History    { return c.history }
func (c *Core) Source() input.Source { return c.source }
func (c *Core) Store() WeightStore   { return c.store }
func (c *Core) Config() Config       { return c.cfg }
func (c *Core) Outputs() Outputs     { return c.engine.Outputs() }
func (c *Core) MemoryLatency() int   { return c.port.Latency() }
func (c *Core) CyclesPerSample() int { return CyclesPerSample(c.cfg, c.port.Latency()) }

func (c *Core) Stats() CoreStats {
	return CoreStats{
		Cycles:  c.cycles,
		Samples: c.samples,
		Correct: c.correct,
		Input:   c.source.Stats(),
		Port:    c.port.Stats(),
	}
}

// PerceptronWeights reads perceptron idx straight from the store (test access path,
// bypasses the port).
func (c *Core) PerceptronWeights(idx int) ([]int, error) {
	base := c.cfg.Base(idx)
	out := make([]int, c.cfg.WeightsPerPerceptron())
	for i := range out {
		w, err := c.store.Read(base + i)
		if err != nil {
			return nil, err
		}
		out[i] = c.cfg.Decode(w)
	}
	return out, nil
}

// Reset clears every weight, the history, the synchronizer and the FSM.
func (c *Core) Reset() error {
	for addr := 0; addr < c.store.Size(); addr++ {
		if err := c.store.Write(addr, 0); err != nil {
			return fmt.Errorf("clearing weight store: %w", err)
		}
	}
	c.history.Reset()
	c.source.Reset()
	c.engine.Reset()
	c.cycles, c.samples, c.correct = 0, 0, 0
	c.seen = input.Stats{}
	c.logger.Debug("core reset", "words", c.store.Size())
	return nil
}
