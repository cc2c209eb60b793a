package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete SID [SID...]",
	Short: "Delete companies and all of their facts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sids := make([]models.SID, 0, len(args))
		for _, arg := range args {
			v, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid sid %q", arg)
			}
			sids = append(sids, models.SID(v))
		}

		deleted, err := deleteAll(cmd.Context(), svc, sids)
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d company(ies)\n", deleted)
		return err
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

// deleteAll stops at the first failure and reports how many were deleted.
func deleteAll(ctx context.Context, dir interface {
	DeleteCompany(ctx context.Context, sid models.SID) error
}, sids []models.SID) (int, error) {
	for i, sid := range sids {
		if err := dir.DeleteCompany(ctx, sid); err != nil {
			return i, fmt.Errorf("failed to delete company %d: %w", sid, err)
		}
	}
	return len(sids), nil
}
