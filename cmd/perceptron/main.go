package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "perceptron",
		Short: "Cycle-level perceptron branch predictor model",
		Long: `perceptron replays branch traces through a cycle-level model of a hardware
perceptron branch predictor and checks it against a functional reference.

Branches come from a spike commit log (conditional branches are extracted and
their outcome derived from the next retired pc) or from an oracle file of
previously printed records.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.perceptron/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Run database path (overrides store.path)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newReplayCmd(),
		newVerifyCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
