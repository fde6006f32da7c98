package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/maemowong/perceptron/internal/store"
	"github.com/maemowong/perceptron/proto/bench"
	"github.com/maemowong/perceptron/proto/perceptron"
	"github.com/spf13/cobra"
)

// errMismatch makes verify exit non-zero.
var errMismatch = errors.New("model mismatch")

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <spike-log|oracle-file>",
		Short: "Replay a branch trace through the cycle-level model",
		Long: `Replay drives every branch of a trace through the two-clock testbench and
prints one record per trained branch followed by the prediction accuracy.

When a database is configured (--db, PERCEPTRON_DB or store.path) the run and
its records are saved and can be inspected with 'perceptron runs'.

Examples:
  perceptron replay spike_log.txt
  perceptron replay --interface strobe --db runs.db spike_log.txt
  perceptron replay --json spike_log.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if iface, _ := cmd.Flags().GetString("interface"); iface != "" {
				cfg.Bench.Interface = iface
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
			}
			logger := newLogger(cmd, cfg)

			src, err := loadBranches(args[0], cfg.Bench.AddressMask)
			if err != nil {
				return err
			}
			logger.Info("trace loaded", "path", args[0], "branches", len(src.Samples), "oracle", src.Oracle != nil)

			res, err := bench.Run(cmd.Context(), cfg.BenchOptions(logger), src.Samples)
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			runID := ""
			if cfg.Store.Path != "" {
				s, err := store.Open(cmd.Context(), cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("failed to open run database: %w", err)
				}
				defer s.Close()

				runID, err = s.SaveRun(cmd.Context(), store.Run{
					Source:    filepath.Base(args[0]),
					Interface: cfg.Bench.Interface,
					Config:    cfg.Predictor,
					Cycles:    res.Stats.Cycles,
				}, res.Records)
				if err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				logger.Info("run saved", "id", runID, "db", cfg.Store.Path)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				result := map[string]any{
					"branches": len(res.Records),
					"correct":  res.Stats.Correct,
					"accuracy": res.Stats.Accuracy(),
					"cycles":   res.Stats.Cycles,
					"elapsed":  res.Elapsed.String(),
				}
				if !quiet {
					result["records"] = res.Records
				}
				if runID != "" {
					result["run_id"] = runID
				}
				return json.NewEncoder(out).Encode(result)
			}

			if !quiet {
				for _, r := range res.Records {
					fmt.Fprintln(out, perceptron.FormatRecord(r))
				}
			}
			fmt.Fprintf(out, "Accuracy: %g\n", res.Stats.Accuracy())
			if runID != "" {
				fmt.Fprintf(out, "Run: %s\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().String("interface", "", "Host interface: serial or strobe (overrides bench.interface)")
	cmd.Flags().Bool("quiet", false, "Print only the summary")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <spike-log|oracle-file>",
		Short: "Check the cycle-level model against the functional reference",
		Long: `Verify replays a trace through the cycle-level model and compares each
record with the expected one. For a spike log the expected records come from
the zero-latency reference model; for an oracle file they are the records in
the file.

Reports the first mismatch (hash index, start address, prediction, Y or a
weight) and exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			src, err := loadBranches(args[0], cfg.Bench.AddressMask)
			if err != nil {
				return err
			}

			want := src.Oracle
			if want == nil {
				ref, err := perceptron.NewReference(cfg.Predictor)
				if err != nil {
					return err
				}
				want = make([]perceptron.Record, len(src.Samples))
				for i, s := range src.Samples {
					want[i] = ref.Step(s.Address, s.Outcome)
				}
			}

			res, err := bench.Run(cmd.Context(), cfg.BenchOptions(logger), src.Samples)
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			first, detail := -1, ""
			for i := range want {
				if i >= len(res.Records) {
					first, detail = i, "missing record"
					break
				}
				if m := perceptron.Mismatch(res.Records[i], want[i]); m != "" {
					first, detail = i, m
					break
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				result := map[string]any{
					"branches": len(want),
					"match":    first < 0,
				}
				if first >= 0 {
					result["first_mismatch"] = first
					result["detail"] = detail
				}
				if err := json.NewEncoder(out).Encode(result); err != nil {
					return err
				}
			} else if first < 0 {
				fmt.Fprintf(out, "OK: %d branches match\n", len(want))
			} else {
				fmt.Fprintf(out, "MISMATCH at branch %d (address %#x): %s\n", first, src.Samples[first].Address, detail)
				fmt.Fprintf(out, "  want: %s\n", perceptron.FormatRecord(want[first]))
				if first < len(res.Records) {
					fmt.Fprintf(out, "  got:  %s\n", perceptron.FormatRecord(res.Records[first]))
				}
			}

			if first >= 0 {
				return fmt.Errorf("%w at branch %d: %s", errMismatch, first, detail)
			}
			return nil
		},
	}
	return cmd
}
