package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gartstein/companydir/internal/directory/discovery"
	"github.com/gartstein/companydir/internal/directory/search"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run website discovery cycles in the foreground",
	Long: `Run a fixed number of discovery cycles without the cooldown between them.

Each cycle picks one company without a website, searches for it and either
records the websites found or deletes the company when the search yields
nothing usable. The loop stops early once no undiscovered company is left.

Examples:
  # Discover a single company
  directoryctl discover

  # Work through up to 20 companies
  directoryctl discover --cycles 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, _ := cmd.Flags().GetInt("cycles")
		if cycles < 1 {
			return fmt.Errorf("--cycles must be at least 1")
		}

		worker := discovery.NewWorker(svc, search.NewClient(cfg.Search(), logger), logger,
			discovery.WithRetryPolicy(cfg.Retry()),
			discovery.WithKeyword(cfg.DiscoveryKeyword),
		)
		return runDiscover(cmd.Context(), cmd.OutOrStdout(), worker, cycles)
	},
}

func init() {
	discoverCmd.Flags().Int("cycles", 1, "number of cycles to run")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(ctx context.Context, out io.Writer, runner discovery.CycleRunner, cycles int) error {
	counts := make(map[discovery.Outcome]int)
	for i := 0; i < cycles; i++ {
		outcome, err := runner.RunCycle(ctx)
		if err != nil {
			return err
		}
		counts[outcome]++
		if outcome == discovery.OutcomeIdle {
			break
		}
	}
	fmt.Fprintf(out, "%d discovered, %d deleted, %d idle\n",
		counts[discovery.OutcomeDiscovered], counts[discovery.OutcomeDeleted], counts[discovery.OutcomeIdle])
	return nil
}
