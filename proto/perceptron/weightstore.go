package perceptron

import "fmt"

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WEIGHT STORE
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Word-addressed weight memory. Perceptron k occupies words [k×(H+1), k×(H+1)+H]:
// H history weights followed by the bias.
//
//   addr:  0    1    ...  H-1   H    | H+1  ...
//          w0   w1   ...  wH-1  bias | w0 of perceptron 1
//
// The memory itself (WeightStore) has immediate effect. Port adds the fixed access
// latency and the "one outstanding access" rule the engine sees in hardware:
//
//   cycle t     : Issue(addr)           mem_addr <= addr; wr_en <= w
//   cycle t+L   : data valid / write committed
//
// SystemVerilog equivalent (L = 2):
//   always_ff @(posedge clk) begin
//     if (wr_en) mem[mem_addr] <= mem_data_in;
//     rd_q  <= mem[mem_addr];
//     mem_data_out <= rd_q;
//   end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Word is one W-bit weight in two's complement, stored in a byte.
type Word uint8

// WeightStore is the external weight memory.
type WeightStore interface {
	Read(addr int) (Word, error)
	Write(addr int, w Word) error
	Size() int
}

// ArrayStore is a WeightStore backed by a plain slice.
type ArrayStore struct {
	words []Word
}

// NewArrayStore returns a zeroed store of size words.
func NewArrayStore(size int) *ArrayStore {
	return &ArrayStore{words: make([]Word, size)}
}

func (s *ArrayStore) Read(addr int) (Word, error) {
	if addr < 0 || addr >= len(s.words) {
		return 0, fmt.Errorf("%w: read %d, size %d", ErrAddressRange, addr, len(s.words))
	}
	return s.words[addr], nil
}

func (s *ArrayStore) Write(addr int, w Word) error {
	if addr < 0 || addr >= len(s.words) {
		return fmt.Errorf("%w: write %d, size %d", ErrAddressRange, addr, len(s.words))
	}
	s.words[addr] = w
	return nil
}

func (s *ArrayStore) Size() int { return len(s.words) }

// Reset zeroes every word.
func (s *ArrayStore) Reset() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Snapshot copies the store contents.
func (s *ArrayStore) Snapshot() []Word {
	out := make([]Word, len(s.words))
	copy(out, s.words)
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MEMORY PORT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// PortStats counts completed accesses. Debug only.
type PortStats struct {
	Reads  uint64
	Writes uint64
}

// Port sequences accesses to a WeightStore with a fixed latency.
type Port struct {
	store   WeightStore
	latency int

	busy      bool
	write     bool
	addr      int
	data      Word
	remaining int

	stats PortStats
}

// NewPort wraps store with an access latency of at least one cycle.
func NewPort(store WeightStore, latency int) *Port {
	if latency < 1 {
		latency = 1
	}
	return &Port{store: store, latency: latency}
}

// IssueRead starts a read. Issuing while busy is an integration defect.
func (p *Port) IssueRead(addr int) { p.issue(false, addr, 0) }

// IssueWrite starts a write of w.
func (p *Port) IssueWrite(addr int, w Word) { p.issue(true, addr, w) }

func (p *Port) issue(write bool, addr int, w Word) {
	if p.busy {
		panic("perceptron: weight store access issued while another is outstanding")
	}
	if addr < 0 || addr >= p.store.Size() {
		panic(fmt.Errorf("%w: %d", ErrAddressRange, addr))
	}
	p.busy = true
	p.write = write
	p.addr = addr
	p.data = w
	p.remaining = p.latency
}

// Tick advances one cycle. It returns the read data (or the written word) and true on
// the cycle the outstanding access completes.
func (p *Port) Tick() (Word, bool) {
	if !p.busy {
		return 0, false
	}
	p.remaining--
	if p.remaining > 0 {
		return 0, false
	}
	p.busy = false

	if p.write {
		if err := p.store.Write(p.addr, p.data); err != nil {
			panic(err)
		}
		p.stats.Writes++
		return p.data, true
	}

	w, err := p.store.Read(p.addr)
	if err != nil {
		panic(err)
	}
	p.stats.Reads++
	return w, true
}

// Address is the word address on the memory bus (held after completion).
func (p *Port) Address() int { return p.addr }

func (p *Port) Busy() bool       { return p.busy }
func (p *Port) Latency() int     { return p.latency }
func (p *Port) Stats() PortStats { return p.stats }

// Reset abandons any outstanding access.
func (p *Port) Reset() {
	p.busy = false
	p.remaining = 0
	p.addr = 0
}
