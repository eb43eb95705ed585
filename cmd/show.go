package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <opid>",
	Short: "Show one stored opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opp, err := st.GetOpportunity(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "show")
		}
		if opp == nil {
			return eris.Errorf("opportunity %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(opp)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
