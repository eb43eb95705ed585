package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/solidarity-tools/harvest-cli/internal/analytics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset statistics",
	Long:  "Aggregate the stored opportunities: totals, top countries/topics/locations, recent additions, field completeness, co-occurrence pairs, and derived insights.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		format, _ := cmd.Flags().GetString("format")

		opps, err := st.ListOpportunities(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		stats := analytics.Compute(opps, time.Now().UTC())

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		case "table":
			formatStats(os.Stdout, stats)
			return nil
		default:
			return eris.Errorf("unknown format %q (want table or json)", format)
		}
	},
}

func init() {
	statsCmd.Flags().String("format", "table", "output format: table, json")
	rootCmd.AddCommand(statsCmd)
}

// formatStats writes a human-readable statistics summary to out.
func formatStats(out io.Writer, s *analytics.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total opportunities:\t%d\n", s.TotalOpportunities)
	_, _ = fmt.Fprintf(w, "Recent additions (7 days):\t%d\n", s.RecentAdditions)
	if !s.LastUpdate.IsZero() {
		_, _ = fmt.Fprintf(w, "Last update:\t%s\n", s.LastUpdate.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintf(w, "Avg countries per opportunity:\t%.1f\n", s.AvgCountries)
	_, _ = fmt.Fprintf(w, "Avg topics per opportunity:\t%.1f\n", s.AvgTopics)
	_ = w.Flush()

	writeFreqSection(out, "Top recruiting countries", s.Countries)
	writeFreqSection(out, "Top activity topics", s.Topics)
	writeFreqSection(out, "Top activity locations", s.Locations)
	writePairSection(out, "Country co-occurrence", s.CountryPairs)
	writePairSection(out, "Topic co-occurrence", s.TopicPairs)

	if len(s.Completeness) > 0 {
		_, _ = fmt.Fprintf(out, "\nField completeness:\n")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, field := range analytics.CompletenessFields {
			if pct, ok := s.Completeness[field]; ok {
				_, _ = fmt.Fprintf(w, "  %s:\t%.1f%%\n", field, pct)
			}
		}
		_ = w.Flush()
	}

	if len(s.Insights) > 0 {
		_, _ = fmt.Fprintf(out, "\nInsights:\n")
		for _, line := range s.Insights {
			_, _ = fmt.Fprintf(out, "  - %s\n", line)
		}
	}
}

func writeFreqSection(out io.Writer, title string, counts []analytics.FreqCount) {
	if len(counts) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s:\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range counts {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", c.Value, c.Count)
	}
	_ = w.Flush()
}

func writePairSection(out io.Writer, title string, pairs []analytics.PairCount) {
	if len(pairs) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s:\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		_, _ = fmt.Fprintf(w, "  %s + %s:\t%d\n", p.A, p.B, p.Count)
	}
	_ = w.Flush()
}
