package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maemowong/perceptron/internal/store"
	"github.com/maemowong/perceptron/proto/perceptron"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved replay runs",
		Long: `Inspect runs saved by 'perceptron replay' with a database configured.

Examples:
  perceptron runs list --db runs.db
  perceptron runs show --db runs.db <id>`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)
	return cmd
}

func openRunStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, errors.New("no run database configured (use --db, PERCEPTRON_DB or store.path)")
	}
	return store.Open(cmd.Context(), cfg.Store.Path)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(out).Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-20s %-6s  %5d branches  %.4f\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Source, r.Interface, r.Branches, r.Accuracy())
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many runs (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			records, err := s.Records(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"run":     run,
					"records": records,
				})
			}

			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "Created:   %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Source:    %s\n", run.Source)
			fmt.Fprintf(out, "Interface: %s\n", run.Interface)
			fmt.Fprintf(out, "Geometry:  H=%d W=%d table=%dB (%d perceptrons)\n",
				run.Config.HistoryLength, run.Config.WeightBits, run.Config.TableBytes, run.Config.NumPerceptrons())
			fmt.Fprintf(out, "Cycles:    %d\n", run.Cycles)
			fmt.Fprintf(out, "Accuracy:  %g (%d/%d)\n", run.Accuracy(), run.Correct, run.Branches)
			fmt.Fprintln(out)
			for _, r := range records {
				fmt.Fprintln(out, perceptron.FormatRecord(r))
			}
			return nil
		},
	}
	return cmd
}
