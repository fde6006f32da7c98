package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/maemowong/perceptron/internal/config"
	"github.com/maemowong/perceptron/internal/logging"
	"github.com/maemowong/perceptron/internal/trace"
	"github.com/maemowong/perceptron/proto/input"
	"github.com/maemowong/perceptron/proto/perceptron"
	"github.com/spf13/cobra"
)

// loadConfig resolves --config, applies --db and --log-level, and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays machine-readable.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return logging.NewJSONLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	}
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// branchSource is what a trace file yielded.
type branchSource struct {
	Samples []input.Sample

	// Oracle holds the expected records when the file was an oracle printout.
	Oracle []perceptron.Record
}

// loadBranches reads a spike commit log, or an oracle file when the log holds
// no conditional branches.
func loadBranches(path string, mask uint32) (*branchSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	branches, err := trace.Parse(bytes.NewReader(data))
	if err == nil {
		return &branchSource{Samples: trace.Mask(branches, mask)}, nil
	}
	if !errors.Is(err, trace.ErrNoBranches) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	records, err := perceptron.ParseRecords(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, trace.ErrNoBranches)
	}

	src := &branchSource{Oracle: records, Samples: make([]input.Sample, len(records))}
	for i, r := range records {
		src.Samples[i] = input.Sample{Address: r.Address & mask, Outcome: r.Taken}
	}
	return src, nil
}
