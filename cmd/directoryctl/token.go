package main

import (
	"fmt"

	"github.com/gartstein/companydir/internal/directory/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:         "token",
	Short:       "Issue a bearer token for the mutating API calls",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStore: "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.GenerateToken(subject, cfg.JWTSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "directoryctl", "token subject recorded in the audit logs")
	tokenCmd.Flags().Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
