package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how far website discovery has progressed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := svc.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Companies:           %d\n", stats.Companies)
		fmt.Fprintf(out, "Without website:     %d\n", stats.WithoutWebsite)
		fmt.Fprintf(out, "Without career page: %d\n", stats.WithoutCareerPage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
