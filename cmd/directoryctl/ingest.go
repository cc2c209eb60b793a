package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gartstein/companydir/internal/directory/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load an EDGAR company index into the directory",
	Long: `Load an EDGAR company.idx file into the directory.

Every row is merged into the company that owns its CIK: the company name
becomes an alias and the form type becomes a "form:<type>" tag. Malformed
rows are counted and skipped.

Examples:
  # Ingest a downloaded index
  directoryctl ingest company.idx

  # Read the index from stdin
  gunzip -c company.idx.gz | directoryctl ingest -

  # Download the index directly (EDGAR_USER_AGENT must be set)
  directoryctl ingest --url https://www.sec.gov/Archives/edgar/full-index/2024/QTR2/company.idx`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")

		src, err := openIndex(cmd.Context(), args, url)
		if err != nil {
			return err
		}
		defer src.Close()

		return runIngest(cmd.Context(), cmd.OutOrStdout(), ingest.NewIngester(svc, nil, logger), src)
	},
}

func init() {
	ingestCmd.Flags().String("url", "", "download the index from this URL instead of reading a file")
	rootCmd.AddCommand(ingestCmd)
}

func openIndex(ctx context.Context, args []string, url string) (io.ReadCloser, error) {
	switch {
	case url != "" && len(args) > 0:
		return nil, errors.New("pass either a file or --url, not both")
	case url != "":
		if cfg.EdgarUserAgent == "" {
			return nil, errors.New("EDGAR_USER_AGENT must be set to download from EDGAR")
		}
		logger.Info("Downloading company index", zap.String("url", url))
		return ingest.Fetch(ctx, url, cfg.EdgarUserAgent)
	case len(args) == 0 || args[0] == "-":
		return io.NopCloser(os.Stdin), nil
	default:
		return os.Open(args[0])
	}
}

func runIngest(ctx context.Context, out io.Writer, ingester *ingest.Ingester, src io.Reader) error {
	summary, err := ingester.Ingest(ctx, src)
	fmt.Fprintf(out, "processed %d rows: %d created, %d merged, %d failed\n",
		summary.Processed, summary.Created, summary.Merged, summary.Failed)
	return err
}
