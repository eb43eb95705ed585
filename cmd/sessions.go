package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent harvest sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")

		sessions, err := st.ListSessions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "sessions")
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions recorded.")
			return nil
		}

		formatSessionsList(os.Stdout, sessions)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "max number of sessions to display")
	rootCmd.AddCommand(sessionsCmd)
}

// formatSessionsList writes a tabular session listing to out.
func formatSessionsList(out io.Writer, sessions []model.HarvestSession) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tFOUND\tOK\tFAILED")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t--------\t-----\t--\t------")

	for _, s := range sessions {
		dur := "-"
		if s.CompletedAt != nil {
			dur = s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			truncateID(s.ID),
			s.Status,
			s.StartedAt.Format("2006-01-02 15:04"),
			dur,
			s.TotalFound,
			s.Successful,
			s.Failed,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
