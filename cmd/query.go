package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search stored opportunities",
	Long: `Search the local store. Values within one flag are OR-ed, different
flags are AND-ed, and all matching is case-insensitive substring.

  harvest-cli query --country estonia --country latvia --topic environment`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := filterFromFlags(cmd)
		format, _ := cmd.Flags().GetString("format")

		opps, err := st.QueryOpportunities(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "query")
		}

		if len(opps) == 0 {
			fmt.Fprintln(os.Stderr, "No opportunities matched.")
			return nil
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(opps)
		case "table":
			formatOpportunityList(os.Stdout, opps)
			return nil
		default:
			return eris.Errorf("unknown format %q (want table or json)", format)
		}
	},
}

func init() {
	registerFilterFlags(queryCmd)
	queryCmd.Flags().Int("limit", 0, "max results (default 100)")
	queryCmd.Flags().String("format", "table", "output format: table, json")
	rootCmd.AddCommand(queryCmd)
}

// registerFilterFlags adds the shared opportunity filter flags. The query and
// export commands accept the same set.
func registerFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("country", nil, "filter by recruiting country (repeatable)")
	cmd.Flags().StringSlice("topic", nil, "filter by activity topic (repeatable)")
	cmd.Flags().StringSlice("location", nil, "filter by activity location (repeatable)")
	cmd.Flags().StringSlice("title", nil, "filter by title keyword (repeatable)")
	cmd.Flags().StringSlice("description", nil, "filter by description keyword (repeatable)")
}

// filterFromFlags builds a QueryFilter from the shared filter flags.
func filterFromFlags(cmd *cobra.Command) model.QueryFilter {
	countries, _ := cmd.Flags().GetStringSlice("country")
	topics, _ := cmd.Flags().GetStringSlice("topic")
	locations, _ := cmd.Flags().GetStringSlice("location")
	titles, _ := cmd.Flags().GetStringSlice("title")
	descriptions, _ := cmd.Flags().GetStringSlice("description")
	limit, _ := cmd.Flags().GetInt("limit")

	return model.QueryFilter{
		Countries:           countries,
		Topics:              topics,
		Locations:           locations,
		TitleKeywords:       titles,
		DescriptionKeywords: descriptions,
		Limit:               limit,
	}
}

// formatOpportunityList writes a tabular opportunity listing to out.
func formatOpportunityList(out io.Writer, opps []model.Opportunity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OPID\tTITLE\tLOCATION\tCOUNTRIES\tTOPICS\tUPDATED")
	_, _ = fmt.Fprintln(w, "----\t-----\t--------\t---------\t------\t-------")

	for _, o := range opps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Opid,
			truncateCell(o.Title, 40),
			truncateCell(o.ActivityLocation, 24),
			truncateCell(strings.Join(o.ParticipantCountries, ", "), 28),
			truncateCell(strings.Join(o.TopicsList, ", "), 28),
			o.LastUpdated.Format("2006-01-02"),
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d opportunities\n", len(opps))
}

// truncateCell shortens a value for tabular display.
func truncateCell(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
