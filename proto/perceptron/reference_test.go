package perceptron

import (
	"strings"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// REFERENCE MODEL AND ORACLE FORMAT TESTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestReference_HandComputedTrace(t *testing.T) {
	// WHAT: Three branches on one perceptron, worked by hand
	// H=3, W=4. Weights [w0 w1 w2 bias], history oldest first.
	cfg := Config{AddrBits: 8, HistoryLength: 3, WeightBits: 4, TableBytes: 16}
	ref, err := NewReference(cfg)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		taken   bool
		wantY   int
		wantW   []int
		wantHst []bool
	}{
		// y = 0 → taken. Outcome T vs history FFF: w0..2 -1, bias +1
		{true, 0, []int{-1, -1, -1, 1}, []bool{false, false, true}},
		// history FFT: y = 1 - (-1) - (-1) + (-1) = 2. Outcome F: h0,h1 agree +1, h2 disagrees -1
		{false, 2, []int{0, 0, -2, 2}, []bool{false, true, false}},
		// history FTF: y = 2 - 0 + 0 - (-2) = 4. Outcome T: h0 -1, h1 +1, h2 -1
		{true, 4, []int{-1, 1, -3, 3}, []bool{true, false, true}},
	}

	for i, s := range steps {
		rec := ref.Step(0, s.taken)
		if rec.Y != s.wantY {
			t.Errorf("step %d: Y = %d, want %d", i, rec.Y, s.wantY)
		}
		if rec.Prediction != (s.wantY >= 0) {
			t.Errorf("step %d: prediction = %v", i, rec.Prediction)
		}
		for j := range s.wantW {
			if rec.Weights[j] != s.wantW[j] {
				t.Fatalf("step %d: weights = %v, want %v", i, rec.Weights, s.wantW)
			}
		}
		hist := ref.History()
		for j := range s.wantHst {
			if hist[j] != s.wantHst[j] {
				t.Fatalf("step %d: history = %v, want %v", i, hist, s.wantHst)
			}
		}
	}

	if st := ref.Stats(); st.Branches != 3 || st.Correct != 2 {
		t.Errorf("stats = %+v, want 3 branches 2 correct", st)
	}
}

func TestReference_HashesLatchedAddress(t *testing.T) {
	// WHAT: Address bits above AddrBits never reach the index hash
	// WHY:  With 3 perceptrons, 0x104 and 0x04 hash differently unless truncated
	// HARDWARE: the pins are AddrBits wide
	cfg := Config{AddrBits: 8, HistoryLength: 15, WeightBits: 4, TableBytes: 24}
	wide, err := NewReference(cfg)
	if err != nil {
		t.Fatal(err)
	}
	narrow, _ := NewReference(cfg)

	for i, addr := range []uint32{0x0104, 0x8000010c, 0x0104, 0xFF04} {
		got := wide.Step(addr, i%2 == 0)
		want := narrow.Step(addr&0xFF, i%2 == 0)
		if m := Mismatch(got, want); m != "" {
			t.Fatalf("step %d (%#x): %s", i, addr, m)
		}
		if got.Address != addr&0xFF {
			t.Errorf("step %d: record address %#x, want %#x", i, got.Address, addr&0xFF)
		}
	}
	if _, _, idx := wide.Predict(0x0104); idx != 1 {
		t.Errorf("Predict(0x104) index = %d, want 1", idx)
	}
}

func TestReference_PredictIsPure(t *testing.T) {
	ref, _ := NewReference(DefaultConfig())
	ref.Step(0x10, true)
	ref.Step(0x10, true)

	p1, y1, i1 := ref.Predict(0x10)
	p2, y2, i2 := ref.Predict(0x10)
	if p1 != p2 || y1 != y2 || i1 != i2 {
		t.Error("Predict changed state")
	}
}

func TestReference_Reset(t *testing.T) {
	ref, _ := NewReference(DefaultConfig())
	for i := 0; i < 20; i++ {
		ref.Step(uint32(i*4), i%3 == 0)
	}
	ref.Reset()
	if _, y, _ := ref.Predict(0x40); y != 0 {
		t.Errorf("Y after Reset = %d, want 0", y)
	}
	if ref.Stats() != (Stats{}) {
		t.Error("stats survived Reset")
	}
}

func TestStats_Accuracy(t *testing.T) {
	if (Stats{}).Accuracy() != 0 {
		t.Error("empty accuracy not 0")
	}
	if got := (Stats{Branches: 4, Correct: 3}).Accuracy(); got != 0.75 {
		t.Errorf("Accuracy() = %v, want 0.75", got)
	}
}

func TestOracle_FormatParseRoundTrip(t *testing.T) {
	rec := Record{
		Address: 0x8c, HashIndex: 3, StartAddress: 24, Taken: true, Prediction: false,
		Y: -17, Weights: []int{-1, 2, -128, 127, 0, 0, 5, 1},
	}
	line := FormatRecord(rec)
	if !strings.HasPrefix(line, "Branch address: 8c, \tHash index: 3, \tStarting address: 24,") {
		t.Errorf("unexpected line %q", line)
	}

	got, ok := ParseRecord(line)
	if !ok {
		t.Fatalf("ParseRecord(%q) failed", line)
	}
	if m := Mismatch(got, rec); m != "" || got.Address != rec.Address || got.Taken != rec.Taken {
		t.Errorf("round trip: %s (%+v)", m, got)
	}
}

func TestOracle_ParseReplayToolLine(t *testing.T) {
	// WHAT: Lines from the trace-replay tool carry a trailing ", " and a Trained field
	line := "Branch address: 80000104, \tHash index: 1, \tStarting address: 8, \tBranch Taken: 0, " +
		"\tPrediction: 1, \tY: 3, \t\tWeights after training: 1, -1, 0, 2, -3, 0, 1, 1, , \tTrained: 1"

	got, ok := ParseRecord(line)
	if !ok {
		t.Fatal("line not recognised")
	}
	if got.Address != 0x80000104 || got.HashIndex != 1 || got.StartAddress != 8 ||
		got.Taken || !got.Prediction || got.Y != 3 {
		t.Errorf("parsed %+v", got)
	}
	want := []int{1, -1, 0, 2, -3, 0, 1, 1}
	if len(got.Weights) != len(want) {
		t.Fatalf("weights = %v, want %v", got.Weights, want)
	}
}

func TestOracle_ParseRejectsOutOfRangeNumbers(t *testing.T) {
	// WHAT: A field that does not fit an int rejects the line instead of reading as 0
	valid := FormatRecord(Record{Address: 4, HashIndex: 1, StartAddress: 8, Y: -3, Weights: []int{1, 2}})
	huge := "99999999999999999999999"
	tests := []struct {
		name, old, new string
	}{
		{"hash index", "Hash index: 1,", "Hash index: " + huge + ","},
		{"start address", "Starting address: 8,", "Starting address: " + huge + ","},
		{"y", "Y: -3,", "Y: -" + huge + ","},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := strings.Replace(valid, tt.old, tt.new, 1)
			if line == valid {
				t.Fatalf("field %q not found in %q", tt.old, valid)
			}
			if rec, ok := ParseRecord(line); ok {
				t.Errorf("ParseRecord accepted %q as %+v", line, rec)
			}
		})
	}
}

func TestOracle_ParseRecordsSkipsNoise(t *testing.T) {
	in := strings.Join([]string{
		"NUM_PERCEPTRONS: 8",
		FormatRecord(Record{Address: 4, Weights: []int{0, 1}}),
		"Overflow in y: 300",
		FormatRecord(Record{Address: 8, Taken: true, Weights: []int{1, 0}}),
		"Accuracy: 0.5",
	}, "\n")

	recs, err := ParseRecords(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Address != 4 || recs[1].Address != 8 || !recs[1].Taken {
		t.Errorf("records = %+v", recs)
	}
}

func TestOracle_Mismatch(t *testing.T) {
	base := Record{HashIndex: 1, StartAddress: 8, Prediction: true, Y: 2, Weights: []int{1, 2}}
	tests := []struct {
		name   string
		mutate func(*Record)
		want   string
	}{
		{"equal", func(*Record) {}, ""},
		{"index", func(r *Record) { r.HashIndex = 2 }, "hash index"},
		{"start", func(r *Record) { r.StartAddress = 9 }, "start address"},
		{"prediction", func(r *Record) { r.Prediction = false }, "prediction"},
		{"y", func(r *Record) { r.Y = 3 }, "Y"},
		{"weight", func(r *Record) { r.Weights = []int{1, 3} }, "weight 1"},
		{"length", func(r *Record) { r.Weights = []int{1} }, "1 weights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base
			got.Weights = append([]int(nil), base.Weights...)
			tt.mutate(&got)
			m := Mismatch(got, base)
			if tt.want == "" && m != "" || tt.want != "" && !strings.HasPrefix(m, tt.want) {
				t.Errorf("Mismatch = %q, want prefix %q", m, tt.want)
			}
		})
	}
}
