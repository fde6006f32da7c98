// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Perceptron Branch Direction Predictor - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// A perceptron predictor keeps a small table of weight vectors. A branch address is
// hashed to one vector; the dot product of that vector with the recent global branch
// history (taken = +1, not taken = -1) plus a bias weight gives a signed score y.
// y >= 0 predicts taken. Once the real outcome is known the weights move one step
// toward agreeing with it, saturating at the signed range of WEIGHT_BITS.
//
// BLOCKS:
//   History      H-bit shift register of past outcomes, oldest first
//   WeightStore  word-addressed weight memory, one access at a time, fixed latency
//   Engine       IDLE → INDEX → FETCH/ACCUMULATE → PREDICT → TRAIN → IDLE
//   Core         input synchronizer + engine, one sample in flight
//   Reference    zero-latency functional model used as the verification oracle
//
// HARDWARE MODEL:
// ───────────────
// Every Tick() is one rising edge of the internal clock. Methods with pointer receivers
// that mutate state map to always_ff blocks; pure helpers map to always_comb.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package perceptron

import (
	"errors"
	"fmt"
	"math/bits"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// One configuration per predictor instance, fixed at elaboration time.
//
//   PERCEPTRON_SIZE = (H + 1) × WEIGHT_BITS            bits per perceptron
//   NUM_PERCEPTRONS = TABLE_BYTES × 8 / PERCEPTRON_SIZE
//
// SystemVerilog equivalent:
//   parameter ADDR_BITS       = 16;
//   parameter HISTORY_LENGTH  = 7;
//   parameter WEIGHT_BITS     = 8;
//   parameter TABLE_BYTES     = 64;
//   localparam PERCEPTRON_SIZE = (HISTORY_LENGTH + 1) * WEIGHT_BITS;
//   localparam NUM_PERCEPTRONS = (TABLE_BYTES * 8) / PERCEPTRON_SIZE;
//   localparam SUM_BITS        = $clog2(HISTORY_LENGTH + 1) + WEIGHT_BITS;
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidConfig wraps every configuration invariant violation.
	ErrInvalidConfig = errors.New("invalid predictor configuration")

	// ErrBusy is returned by Engine.Start when a sample is already in flight.
	ErrBusy = errors.New("engine busy")

	// ErrAddressRange is returned for weight store accesses outside the table.
	ErrAddressRange = errors.New("weight store address out of range")
)

// MaxHistoryLength is the widest history register the model packs into one word.
const MaxHistoryLength = 64

// Config holds the predictor geometry.
type Config struct {
	AddrBits      int `json:"addr_bits" yaml:"addr_bits"`
	HistoryLength int `json:"history_length" yaml:"history_length"`
	WeightBits    int `json:"weight_bits" yaml:"weight_bits"`
	TableBytes    int `json:"table_bytes" yaml:"table_bytes"`
}

// DefaultConfig matches the taped-out geometry: 16-bit address latch, 7 history
// bits, 8-bit weights, 64 bytes of weight storage (8 perceptrons).
func DefaultConfig() Config {
	return Config{
		AddrBits:      16,
		HistoryLength: 7,
		WeightBits:    8,
		TableBytes:    64,
	}
}

// Validate checks every elaboration-time invariant.
func (c Config) Validate() error {
	if c.AddrBits < 1 || c.AddrBits > 32 {
		return fmt.Errorf("%w: addr_bits must be in 1..32, got %d", ErrInvalidConfig, c.AddrBits)
	}
	if c.HistoryLength < 1 || c.HistoryLength > MaxHistoryLength {
		return fmt.Errorf("%w: history_length must be in 1..%d, got %d", ErrInvalidConfig, MaxHistoryLength, c.HistoryLength)
	}
	switch c.WeightBits {
	case 2, 4, 8:
	default:
		return fmt.Errorf("%w: weight_bits must be 2, 4 or 8, got %d", ErrInvalidConfig, c.WeightBits)
	}
	if c.TableBytes <= 0 {
		return fmt.Errorf("%w: table_bytes must be positive, got %d", ErrInvalidConfig, c.TableBytes)
	}
	if (c.TableBytes*8)%c.PerceptronSize() != 0 {
		return fmt.Errorf("%w: table_bytes*8 (%d) is not a multiple of the perceptron size (%d bits)",
			ErrInvalidConfig, c.TableBytes*8, c.PerceptronSize())
	}
	if c.NumPerceptrons() == 0 {
		return fmt.Errorf("%w: table holds no perceptrons", ErrInvalidConfig)
	}
	return nil
}

// PerceptronSize is the storage of one perceptron in bits.
func (c Config) PerceptronSize() int { return (c.HistoryLength + 1) * c.WeightBits }

// NumPerceptrons is the number of table entries.
func (c Config) NumPerceptrons() int { return c.TableBytes * 8 / c.PerceptronSize() }

// WeightsPerPerceptron is H history weights plus the bias.
func (c Config) WeightsPerPerceptron() int { return c.HistoryLength + 1 }

// Words is the weight store depth in words.
func (c Config) Words() int { return c.NumPerceptrons() * c.WeightsPerPerceptron() }

// SumBits is the accumulator width: ceil(log2(H+1)) + W.
// bits.Len(H) equals ceil(log2(H+1)) for every H >= 1.
func (c Config) SumBits() int { return bits.Len(uint(c.HistoryLength)) + c.WeightBits }

// WeightMax is 2^(W-1) - 1.
func (c Config) WeightMax() int { return (1 << (c.WeightBits - 1)) - 1 }

// WeightMin is -2^(W-1).
func (c Config) WeightMin() int { return -(1 << (c.WeightBits - 1)) }

// ───────────────────────────────────────────────────────────────────────────────────────────────
// Index hashes an address to a perceptron: (address >> 2) mod NUM_PERCEPTRONS.
// The low two bits are instruction alignment and carry no information.
//
// SystemVerilog:
//   assign perceptron_index = (inst_addr >> 2) % NUM_PERCEPTRONS;
// ───────────────────────────────────────────────────────────────────────────────────────────────
func (c Config) Index(address uint32) int {
	return int((address >> 2) % uint32(c.NumPerceptrons()))
}

// Latch truncates address to the AddrBits wires of the input pins.
func (c Config) Latch(address uint32) uint32 {
	if c.AddrBits >= 32 {
		return address
	}
	return address & (uint32(1)<<c.AddrBits - 1)
}

// Base is the first weight store word of a perceptron.
func (c Config) Base(index int) int { return index * c.WeightsPerPerceptron() }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WEIGHT ARITHMETIC
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Saturate clamps v to the signed W-bit range.
//
// SystemVerilog:
//   assign w_next = (sum_wide > W_MAX) ? W_MAX : (sum_wide < W_MIN) ? W_MIN : sum_wide;
func (c Config) Saturate(v int) int {
	if v > c.WeightMax() {
		return c.WeightMax()
	}
	if v < c.WeightMin() {
		return c.WeightMin()
	}
	return v
}

// Encode packs a signed weight into its W-bit two's-complement word.
func (c Config) Encode(w int) Word {
	return Word(uint8(w) & c.wordMask())
}

// Decode sign-extends a W-bit word.
func (c Config) Decode(word Word) int {
	v := int(uint8(word) & c.wordMask())
	if v&(1<<(c.WeightBits-1)) != 0 {
		v -= 1 << c.WeightBits
	}
	return v
}

func (c Config) wordMask() uint8 {
	return uint8((1 << c.WeightBits) - 1)
}

// trainDelta is the learning-rule step for weight i: +1 when the weight is the bias
// or its history bit agrees with the outcome, otherwise -1.
func trainDelta(isBias, historyBit, outcome bool) int {
	if isBias || historyBit == outcome {
		return 1
	}
	return -1
}
