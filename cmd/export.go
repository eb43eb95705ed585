package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solidarity-tools/harvest-cli/internal/export"
	"github.com/solidarity-tools/harvest-cli/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored opportunities to a file",
	Long: `Export opportunities as CSV, XLSX, or JSON. The query filter flags
compose, so an export can cover any slice of the dataset:

  harvest-cli export --format xlsx --topic environment --out env.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// An unfiltered export covers the whole table, not one query page.
		filter := filterFromFlags(cmd)
		var opps []model.Opportunity
		if filter.Empty() && filter.Limit == 0 {
			opps, err = st.ListOpportunities(ctx)
		} else {
			opps, err = st.QueryOpportunities(ctx, filter)
		}
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if out == "" {
			out = export.DefaultFilename(format, time.Now())
		}
		if err := export.ToFile(out, format, opps); err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", out),
			zap.String("format", format),
			zap.Int("records", len(opps)),
		)
		fmt.Fprintf(os.Stdout, "Exported %d opportunities to %s\n", len(opps), out)
		return nil
	},
}

func init() {
	registerFilterFlags(exportCmd)
	exportCmd.Flags().Int("limit", 0, "max records (default all matches up to 100; raise for full exports)")
	exportCmd.Flags().String("format", "csv", "output format: csv, xlsx, json")
	exportCmd.Flags().String("out", "", "output path (default opportunities_export_<timestamp>.<format>)")
	rootCmd.AddCommand(exportCmd)
}
