package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every company and its facts as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("out")

		out := cmd.OutOrStdout()
		if path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return runExport(cmd.Context(), out, svc)
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, out io.Writer, dir interface {
	ListCompanies(ctx context.Context) ([]models.CompanyView, error)
}) error {
	companies, err := dir.ListCompanies(ctx)
	if err != nil {
		return err
	}
	if companies == nil {
		companies = []models.CompanyView{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(companies)
}
