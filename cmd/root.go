package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solidarity-tools/harvest-cli/internal/config"
)

var cfg *config.Config

var (
	rootCfgFile string
	rootStore   string
	rootDriver  string
)

var rootCmd = &cobra.Command{
	Use:   "harvest-cli",
	Short: "European Solidarity Corps opportunity harvester",
	Long:  "Walks the volunteering catalog's paginated listing, fetches and extracts detail pages concurrently, and maintains a local opportunity database with query, analytics, and export tooling.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(rootCfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if rootDriver != "" {
			cfg.Store.Driver = rootDriver
		}
		if rootStore != "" {
			switch cfg.Store.Driver {
			case "postgres":
				cfg.Store.DatabaseURL = rootStore
			default:
				cfg.Store.Path = rootStore
			}
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCfgFile, "config", "", "config file (default: ./config.yaml, then XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&rootStore, "store", "", "store location override (sqlite path or postgres DSN)")
	rootCmd.PersistentFlags().StringVar(&rootDriver, "driver", "", "store driver override (sqlite, postgres)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
