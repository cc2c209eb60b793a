package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/spf13/cobra"
)

// filterDirectory is the part of the directory service the filter job uses.
type filterDirectory interface {
	FindNoiseCompanies(ctx context.Context, required []string) ([]models.SID, error)
	GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error)
	DeleteCompany(ctx context.Context, sid models.SID) error
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "List companies whose aliases match none of the required substrings",
	Long: `List deletion candidates: companies none of whose aliases contain any of
the required substrings (case-insensitive). Companies without aliases are
always candidates.

Nothing is deleted unless --delete is given.

Examples:
  # Show companies that are not banks or trusts
  directoryctl filter --require bank --require trust

  # Remove them
  directoryctl filter --require bank --require trust --delete`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		required, _ := cmd.Flags().GetStringSlice("require")
		del, _ := cmd.Flags().GetBool("delete")
		return runFilter(cmd.Context(), cmd.OutOrStdout(), svc, required, del)
	},
}

func init() {
	filterCmd.Flags().StringSlice("require", nil, "substring an alias must contain (repeatable)")
	filterCmd.Flags().Bool("delete", false, "delete the candidates after listing them")
	_ = filterCmd.MarkFlagRequired("require")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(ctx context.Context, out io.Writer, dir filterDirectory, required []string, del bool) error {
	sids, err := dir.FindNoiseCompanies(ctx, required)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SID\tALIAS")
	for _, sid := range sids {
		alias := "-"
		if company, err := dir.GetCompany(ctx, sid); err == nil && company.PrimaryAlias() != "" {
			alias = company.PrimaryAlias()
		}
		fmt.Fprintf(tw, "%d\t%s\n", sid, alias)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d candidate(s)\n", len(sids))

	if !del {
		return nil
	}
	deleted, err := deleteAll(ctx, dir, sids)
	fmt.Fprintf(out, "deleted %d company(ies)\n", deleted)
	return err
}
