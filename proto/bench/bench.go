// Package bench runs a perceptron Core against a host driving its external pins
// from a different clock domain.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maemowong/perceptron/proto/input"
	"github.com/maemowong/perceptron/proto/perceptron"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TESTBENCH
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Two free-running clocks share one timeline:
//
//   core      ─┐_┌─┐_┌─┐_┌─┐_┌─┐_┌─┐_┌─┐_┌─┐_┌─   CorePeriod
//   external  ──────┐_____┌─────┐_____┌──────   ExternalPeriod, offset ExternalPhase
//
// Events are ordered by timestamp. When both edges land on the same instant the
// external edge runs first, so pins set by the host are visible to that core tick
// (same as a testbench driving inputs on a shared edge with blocking assignments).
//
// The run ends once the host has nothing left to send and the core is Ready().
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	// ErrCycleLimit is returned when a run exceeds Options.MaxCycles.
	ErrCycleLimit = errors.New("cycle limit exceeded")

	// ErrIncomplete is returned when fewer samples were trained than were sent.
	ErrIncomplete = errors.New("samples lost in transit")
)

// Interface selects the external pin protocol.
type Interface string

const (
	InterfaceSerial Interface = "serial"
	InterfaceStrobe Interface = "strobe"
)

// Clocks describes the two clock domains.
type Clocks struct {
	CorePeriod     time.Duration
	ExternalPeriod time.Duration
	ExternalPhase  time.Duration
}

// DefaultClocks is a 10 MHz core fed by a 1 MHz host.
func DefaultClocks() Clocks {
	return Clocks{CorePeriod: 100 * time.Nanosecond, ExternalPeriod: 1000 * time.Nanosecond}
}

// Validate checks the periods are usable.
func (c Clocks) Validate() error {
	if c.CorePeriod <= 0 || c.ExternalPeriod <= 0 {
		return fmt.Errorf("clock periods must be positive (core %v, external %v)", c.CorePeriod, c.ExternalPeriod)
	}
	if c.ExternalPhase < 0 {
		return fmt.Errorf("external phase %v is negative", c.ExternalPhase)
	}
	return nil
}

// Options configures a Run.
type Options struct {
	Config        perceptron.Config
	Interface     Interface
	Clocks        Clocks
	MemoryLatency int

	// StrobeHold is how many external cycles the strobe host holds valid high.
	// It must span at least one core period.
	StrobeHold int

	// MaxCycles bounds the run in core cycles. Zero derives a bound from the
	// sample count.
	MaxCycles uint64

	Logger *slog.Logger
}

// DefaultOptions returns the bench defaults for cfg.
func DefaultOptions(cfg perceptron.Config) Options {
	return Options{
		Config:        cfg,
		Interface:     InterfaceSerial,
		Clocks:        DefaultClocks(),
		MemoryLatency: 2,
		StrobeHold:    1,
	}
}

// Result is the output of a Run.
type Result struct {
	Records []perceptron.Record
	Stats   perceptron.CoreStats
	Sent    int
	Elapsed time.Duration // simulated time
}

// Bench is one wired-up core, host and clock pair.
type Bench struct {
	opts   Options
	core   *perceptron.Core
	host   Host
	sent   func() int
	logger *slog.Logger

	tCore time.Duration
	tExt  time.Duration
}

// New builds the store, synchronizer, core and host for samples.
func New(opts Options, samples []input.Sample) (*Bench, error) {
	if err := opts.Clocks.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MemoryLatency < 1 {
		return nil, fmt.Errorf("memory latency %d must be at least 1", opts.MemoryLatency)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	b := &Bench{opts: opts, logger: logger, tExt: opts.Clocks.ExternalPhase}
	store := perceptron.NewArrayStore(opts.Config.Words())

	switch opts.Interface {
	case InterfaceSerial, "":
		sync := input.NewSerial(opts.Config.AddrBits)
		core, err := perceptron.NewCore(opts.Config, sync, store, opts.MemoryLatency, logger)
		if err != nil {
			return nil, err
		}
		host := NewSerialHost(sync, opts.Config.AddrBits, core.Ready, samples)
		b.core, b.host, b.sent = core, host, host.Sent

	case InterfaceStrobe:
		hold := max(opts.StrobeHold, 1)
		if time.Duration(hold)*opts.Clocks.ExternalPeriod < opts.Clocks.CorePeriod {
			return nil, fmt.Errorf("strobe held %d external cycles is shorter than one core period", hold)
		}
		strobe := input.NewStrobe(opts.Config.AddrBits)
		core, err := perceptron.NewCore(opts.Config, strobe, store, opts.MemoryLatency, logger)
		if err != nil {
			return nil, err
		}
		host := NewStrobeHost(strobe, hold, core.Ready, samples)
		b.core, b.host, b.sent = core, host, host.Sent

	default:
		return nil, fmt.Errorf("unknown interface %q", opts.Interface)
	}

	if b.opts.MaxCycles == 0 {
		b.opts.MaxCycles = b.cycleBound(len(samples))
	}
	return b, nil
}

// cycleBound allows each sample its pipeline plus two full serial transactions.
func (b *Bench) cycleBound(n int) uint64 {
	ratio := uint64((b.opts.Clocks.ExternalPeriod + b.opts.Clocks.CorePeriod - 1) / b.opts.Clocks.CorePeriod)
	tx := uint64(b.opts.Config.AddrBits+2+max(b.opts.StrobeHold, 1)) * ratio
	phase := uint64(b.opts.Clocks.ExternalPhase/b.opts.Clocks.CorePeriod) + 1
	per := uint64(b.core.CyclesPerSample()) + 2*tx + 8
	return uint64(n+1)*per*2 + phase
}

func (b *Bench) Core() *perceptron.Core { return b.core }
func (b *Bench) Host() Host             { return b.host }

// Now is the simulated time of the next core edge.
func (b *Bench) Now() time.Duration { return b.tCore }

// Step advances to the next event. It returns a record when the core trained one.
func (b *Bench) Step() (perceptron.Record, bool) {
	if b.tExt <= b.tCore {
		b.host.Edge()
		b.tExt += b.opts.Clocks.ExternalPeriod
		return perceptron.Record{}, false
	}
	rec, ok := b.core.Tick()
	b.tCore += b.opts.Clocks.CorePeriod
	return rec, ok
}

// Done reports the host is drained and nothing is in flight.
func (b *Bench) Done() bool { return b.host.Done() && b.core.Ready() }

// Run steps until Done, ctx is cancelled, or the cycle limit is hit. Records are
// returned even when an error is.
func (b *Bench) Run(ctx context.Context) (*Result, error) {
	var records []perceptron.Record
	result := func() *Result {
		return &Result{Records: records, Stats: b.core.Stats(), Sent: b.sent(), Elapsed: b.tCore}
	}

	b.logger.Info("bench started",
		"interface", b.opts.Interface,
		"core_period", b.opts.Clocks.CorePeriod,
		"external_period", b.opts.Clocks.ExternalPeriod,
		"external_phase", b.opts.Clocks.ExternalPhase,
		"max_cycles", b.opts.MaxCycles)

	for !b.Done() {
		cycles := b.core.Stats().Cycles
		if cycles&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return result(), fmt.Errorf("bench interrupted at cycle %d: %w", cycles, err)
			}
		}
		if cycles >= b.opts.MaxCycles {
			return result(), fmt.Errorf("%w: %d cycles, %d records", ErrCycleLimit, cycles, len(records))
		}

		if rec, ok := b.Step(); ok {
			records = append(records, rec)
		}
	}

	res := result()
	b.logger.Info("bench finished",
		"records", len(records),
		"cycles", res.Stats.Cycles,
		"accuracy", res.Stats.Accuracy(),
		"dropped", res.Stats.Input.Dropped,
		"discarded", res.Stats.Input.Discarded)

	if len(records) != res.Sent {
		return res, fmt.Errorf("%w: sent %d, trained %d", ErrIncomplete, res.Sent, len(records))
	}
	return res, nil
}

// Run builds a Bench for samples and runs it to completion.
func Run(ctx context.Context, opts Options, samples []input.Sample) (*Result, error) {
	b, err := New(opts, samples)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx)
}
