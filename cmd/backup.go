package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/solidarity-tools/harvest-cli/internal/export"
	"github.com/solidarity-tools/harvest-cli/internal/store"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a JSON snapshot of the opportunity table",
	Long:  "Mirror every stored opportunity into a single JSON artifact, written atomically. The snapshot is a backup, not a source: nothing reads it back during harvesting.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Backup.Path
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		count, err := writeBackup(ctx, st, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Backed up %d opportunities to %s\n", count, out)
		return nil
	},
}

func init() {
	backupCmd.Flags().String("out", "", "snapshot path (default from backup.path config)")
	rootCmd.AddCommand(backupCmd)
}

// writeBackup snapshots the full opportunity table to path and reports how
// many records it covered.
func writeBackup(ctx context.Context, st store.Store, path string) (int, error) {
	opps, err := st.ListOpportunities(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "backup: list opportunities")
	}
	if err := export.WriteSnapshot(path, opps); err != nil {
		return 0, err
	}
	return len(opps), nil
}
