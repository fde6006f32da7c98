package perceptron

import (
	"errors"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WEIGHT STORE AND PORT TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestArrayStore_ReadWrite(t *testing.T) {
	s := NewArrayStore(8)
	if err := s.Write(3, 0xAB); err != nil {
		t.Fatal(err)
	}
	w, err := s.Read(3)
	if err != nil || w != 0xAB {
		t.Errorf("Read(3) = %#x, %v", w, err)
	}

	if _, err := s.Read(8); !errors.Is(err, ErrAddressRange) {
		t.Errorf("Read(8) error = %v, want ErrAddressRange", err)
	}
	if err := s.Write(-1, 0); !errors.Is(err, ErrAddressRange) {
		t.Errorf("Write(-1) error = %v, want ErrAddressRange", err)
	}

	s.Reset()
	for i, w := range s.Snapshot() {
		if w != 0 {
			t.Errorf("word %d = %#x after Reset", i, w)
		}
	}
}

func TestPort_ReadLatency(t *testing.T) {
	// WHAT: Read data valid exactly L cycles after issue
	for _, latency := range []int{1, 2, 5} {
		s := NewArrayStore(4)
		_ = s.Write(2, 0x5A)
		p := NewPort(s, latency)

		p.IssueRead(2)
		for c := 1; c < latency; c++ {
			if _, ok := p.Tick(); ok {
				t.Fatalf("L=%d: data after %d cycles", latency, c)
			}
		}
		w, ok := p.Tick()
		if !ok || w != 0x5A {
			t.Errorf("L=%d: Tick() = %#x, %v; want 0x5a, true", latency, w, ok)
		}
		if p.Busy() {
			t.Errorf("L=%d: port busy after completion", latency)
		}
	}
}

func TestPort_WriteInvisibleUntilCommit(t *testing.T) {
	// WHAT: Stored word changes only on the completion cycle
	s := NewArrayStore(4)
	p := NewPort(s, 2)

	p.IssueWrite(1, 0x7F)
	if w, _ := s.Read(1); w != 0 {
		t.Fatal("write visible at issue")
	}
	p.Tick()
	if w, _ := s.Read(1); w != 0 {
		t.Fatal("write visible before latency elapsed")
	}
	p.Tick()
	if w, _ := s.Read(1); w != 0x7F {
		t.Fatalf("word = %#x after commit, want 0x7f", w)
	}
	if st := p.Stats(); st.Writes != 1 || st.Reads != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPort_SecondIssuePanics(t *testing.T) {
	p := NewPort(NewArrayStore(4), 2)
	p.IssueRead(0)
	defer func() {
		if recover() == nil {
			t.Error("second outstanding access did not panic")
		}
	}()
	p.IssueRead(1)
}

func TestPort_OutOfRangePanics(t *testing.T) {
	p := NewPort(NewArrayStore(4), 2)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrAddressRange) {
			t.Errorf("recover() = %v, want ErrAddressRange", r)
		}
	}()
	p.IssueWrite(4, 1)
}
