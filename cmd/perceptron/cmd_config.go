package main

import (
	"encoding/json"
	"fmt"

	"github.com/maemowong/perceptron/proto/perceptron"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or validate configuration",
		Long: `Configuration is read from --config or ~/.perceptron/config.yaml, then
PERCEPTRON_* environment variables.

Examples:
  perceptron config show
  perceptron config validate --config bench.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))
			fmt.Fprintf(out, "# %d perceptrons, %d words, %d-bit sum, %d cycles per sample\n",
				cfg.Predictor.NumPerceptrons(), cfg.Predictor.Words(), cfg.Predictor.SumBits(),
				perceptron.CyclesPerSample(cfg.Predictor, cfg.Bench.MemoryLatency))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit non-zero if it is invalid",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]bool{"valid": true})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	}
}
