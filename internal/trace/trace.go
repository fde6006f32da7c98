// Package trace extracts conditional branch outcomes from spike commit logs.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/maemowong/perceptron/proto/input"
)

// ErrNoBranches is returned when a log holds no conditional branch.
var ErrNoBranches = errors.New("no conditional branches in trace")

const (
	opcodeMask   = 0x7F
	opcodeBranch = 0x63 // RISC-V B-type
)

// commitPattern matches `core   0: 3 0x0000000080000104 (0x00b50463)`.
var commitPattern = regexp.MustCompile(`core\s+\d+:\s+\d+\s+(0x[0-9a-fA-F]+)\s+\((0x[0-9a-fA-F]+)\)`)

// Branch is one retired conditional branch.
type Branch struct {
	PC          uint64 `json:"pc"`
	Instruction uint32 `json:"instruction"`
	Taken       bool   `json:"taken"`
}

type commit struct {
	pc   uint64
	inst uint32
}

// Parse scans a spike log and returns its conditional branches in retirement
// order. A branch is taken when the next retired pc is not pc+4. The final
// commit has no successor and is never reported.
func Parse(r io.Reader) ([]Branch, error) {
	var commits []commit

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		m := commitPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		pc, err := strconv.ParseUint(m[1][2:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: pc %s: %w", lineNo, m[1], err)
		}
		inst, err := strconv.ParseUint(m[2][2:], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: instruction %s: %w", lineNo, m[2], err)
		}
		commits = append(commits, commit{pc: pc, inst: uint32(inst)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	var branches []Branch
	for i := 0; i+1 < len(commits); i++ {
		c := commits[i]
		if c.inst&opcodeMask != opcodeBranch {
			continue
		}
		branches = append(branches, Branch{
			PC:          c.pc,
			Instruction: c.inst,
			Taken:       commits[i+1].pc != c.pc+4,
		})
	}
	if len(branches) == 0 {
		return nil, ErrNoBranches
	}
	return branches, nil
}

// Mask truncates each pc to the bits wired to the predictor pins.
func Mask(branches []Branch, mask uint32) []input.Sample {
	out := make([]input.Sample, len(branches))
	for i, b := range branches {
		out[i] = input.Sample{Address: uint32(b.PC) & mask, Outcome: b.Taken}
	}
	return out
}

// Stats counts taken and not-taken branches.
func Stats(branches []Branch) (taken, notTaken int) {
	for _, b := range branches {
		if b.Taken {
			taken++
		} else {
			notTaken++
		}
	}
	return taken, notTaken
}
