package perceptron

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ORACLE RECORDS
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// One line per observed branch, as printed by the trace-replay reference:
//
//   Branch address: 8c, 	Hash index: 3, 	Starting address: 24, 	Branch Taken: 1,
//   	Prediction: 1, 	Y: 0, 		Weights after training: 1, 1, 1, 1, 1, 1, 1, 1
//
// (one physical line). The verification bench compares index, start address,
// prediction, Y and the full post-training weight vector bit for bit.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Record is the observable result of one predicted-and-trained branch.
type Record struct {
	Address      uint32 `json:"address"`
	HashIndex    int    `json:"hash_index"`
	StartAddress int    `json:"start_address"`
	Taken        bool   `json:"taken"`
	Prediction   bool   `json:"prediction"`
	Y            int    `json:"y"`
	Weights      []int  `json:"weights"`
}

// Correct reports whether the prediction matched the outcome.
func (r Record) Correct() bool { return r.Prediction == r.Taken }

var recordPattern = regexp.MustCompile(
	`Branch address:\s*(?:0x)?([0-9a-fA-F]+),\s*` +
		`Hash index:\s*(\d+),\s*` +
		`Starting address:\s*(\d+),\s*` +
		`Branch Taken:\s*(\d+),\s*` +
		`Prediction:\s*(\d+),\s*` +
		`Y:\s*(-?\d+),\s*` +
		`Weights after training:\s*([-\d,\s]+)`)

// FormatRecord renders r in the oracle line format.
func FormatRecord(r Record) string {
	ws := make([]string, len(r.Weights))
	for i, w := range r.Weights {
		ws[i] = strconv.Itoa(w)
	}
	return fmt.Sprintf("Branch address: %x, \tHash index: %d, \tStarting address: %d, \tBranch Taken: %d, \tPrediction: %d, \tY: %d, \t\tWeights after training: %s",
		r.Address, r.HashIndex, r.StartAddress, b2i(r.Taken), b2i(r.Prediction), r.Y, strings.Join(ws, ", "))
}

// ParseRecord parses one oracle line. Text after the weight list is ignored.
func ParseRecord(line string) (Record, bool) {
	m := recordPattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}

	addr, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return Record{}, false
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return Record{}, false
	}
	start, err := strconv.Atoi(m[3])
	if err != nil {
		return Record{}, false
	}
	y, err := strconv.Atoi(m[6])
	if err != nil {
		return Record{}, false
	}

	var weights []int
	for _, f := range strings.Split(m[7], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		w, err := strconv.Atoi(f)
		if err != nil {
			return Record{}, false
		}
		weights = append(weights, w)
	}

	return Record{
		Address:      uint32(addr),
		HashIndex:    idx,
		StartAddress: start,
		Taken:        m[4] != "0",
		Prediction:   m[5] != "0",
		Y:            y,
		Weights:      weights,
	}, true
}

// ParseRecords reads every oracle line from r, skipping anything else.
func ParseRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if rec, ok := ParseRecord(sc.Text()); ok {
			out = append(out, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading oracle records: %w", err)
	}
	return out, nil
}

// Mismatch describes the first field that differs between two records.
func Mismatch(got, want Record) string {
	switch {
	case got.HashIndex != want.HashIndex:
		return fmt.Sprintf("hash index %d, want %d", got.HashIndex, want.HashIndex)
	case got.StartAddress != want.StartAddress:
		return fmt.Sprintf("start address %d, want %d", got.StartAddress, want.StartAddress)
	case got.Prediction != want.Prediction:
		return fmt.Sprintf("prediction %v, want %v", got.Prediction, want.Prediction)
	case got.Y != want.Y:
		return fmt.Sprintf("Y %d, want %d", got.Y, want.Y)
	case len(got.Weights) != len(want.Weights):
		return fmt.Sprintf("%d weights, want %d", len(got.Weights), len(want.Weights))
	}
	for i := range got.Weights {
		if got.Weights[i] != want.Weights[i] {
			return fmt.Sprintf("weight %d = %d, want %d", i, got.Weights[i], want.Weights[i])
		}
	}
	return ""
}
