package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solidarity-tools/harvest-cli/internal/catalog"
	"github.com/solidarity-tools/harvest-cli/internal/extract"
	"github.com/solidarity-tools/harvest-cli/internal/harvest"
	"github.com/solidarity-tools/harvest-cli/internal/report"
	"github.com/solidarity-tools/harvest-cli/internal/resilience"
)

var (
	scrapeWorkers  int
	scrapePageSize int
	scrapeMaxPages int
	scrapeOffset   int
	scrapeDeadline time.Duration
	scrapeReport   string
	scrapeNoBackup bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Harvest the opportunity catalog",
	Long: `Walk the catalog's paginated listing, fetch every discovered detail page
through a bounded worker pool, extract structured records, and upsert them
into the local store. Each run is accounted as a session.

A --deadline stops admission of new items once elapsed; items already in
flight still drain. Unless --no-backup is given, a successful run refreshes
the JSON snapshot configured under backup.path.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyScrapeOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "scrape"))

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mappings := extract.DefaultMappings()
		if cfg.Extraction.MappingsFile != "" {
			mappings, err = extract.LoadMappings(cfg.Extraction.MappingsFile)
			if err != nil {
				return err
			}
			log.Info("loaded extraction mapping overrides",
				zap.String("file", cfg.Extraction.MappingsFile),
				zap.Int("mappings", len(mappings)),
			)
		}

		client := catalog.NewClient(catalog.Options{
			BaseURL:           cfg.Catalog.BaseURL,
			DetailURLTemplate: cfg.Catalog.DetailURLTemplate,
			Timeout:           time.Duration(cfg.Catalog.TimeoutSecs) * time.Second,
			RateInterval:      time.Duration(cfg.Catalog.RateIntervalMs) * time.Millisecond,
			Retry: resilience.FromRetryConfig(
				cfg.Catalog.MaxAttempts,
				cfg.Catalog.InitialBackoffMs,
				cfg.Catalog.MaxBackoffMs,
				cfg.Catalog.BackoffMultiplier,
				cfg.Catalog.JitterFraction,
			),
			FailureThreshold: cfg.Catalog.FailureThreshold,
			UserAgents:       cfg.Catalog.UserAgents,
		})

		deadline := time.Duration(cfg.Harvest.DeadlineSecs) * time.Second
		if cmd.Flags().Changed("deadline") {
			deadline = scrapeDeadline
		}

		engine := harvest.NewEngine(client, extract.New(mappings), st, harvest.Options{
			Workers:     cfg.Harvest.Workers,
			PageSize:    cfg.Harvest.PageSize,
			MaxPages:    cfg.Harvest.MaxPages,
			StartOffset: cfg.Harvest.StartOffset,
			Deadline:    deadline,
		})

		sess, runErr := engine.Run(ctx)
		if sess == nil {
			return runErr
		}

		if scrapeReport != "" {
			if err := report.WriteSessionFile(scrapeReport, sess); err != nil {
				log.Error("session report failed", zap.Error(err))
			} else {
				log.Info("session report written", zap.String("path", scrapeReport))
			}
		}

		if runErr == nil && cfg.Backup.Auto && !scrapeNoBackup {
			if n, err := writeBackup(ctx, st, cfg.Backup.Path); err != nil {
				log.Error("snapshot backup failed", zap.Error(err))
			} else {
				log.Info("snapshot backup written",
					zap.String("path", cfg.Backup.Path),
					zap.Int("records", n),
				)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sess); err != nil {
			return eris.Wrap(err, "encode session summary")
		}
		return runErr
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeWorkers, "workers", 0, "concurrent detail fetchers (default from config)")
	scrapeCmd.Flags().IntVar(&scrapePageSize, "page-size", 0, "listing page size (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "listing page ceiling (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeOffset, "offset", -1, "listing start offset (default from config)")
	scrapeCmd.Flags().DurationVar(&scrapeDeadline, "deadline", 0, "stop admitting new items after this duration (e.g. 10m)")
	scrapeCmd.Flags().StringVar(&scrapeReport, "report", "", "write a markdown session report to this path")
	scrapeCmd.Flags().BoolVar(&scrapeNoBackup, "no-backup", false, "skip the post-run JSON snapshot")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeOverrides folds explicitly set flags into the loaded config so
// validation covers the effective values.
func applyScrapeOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("workers") {
		cfg.Harvest.Workers = scrapeWorkers
	}
	if cmd.Flags().Changed("page-size") {
		cfg.Harvest.PageSize = scrapePageSize
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.Harvest.MaxPages = scrapeMaxPages
	}
	if cmd.Flags().Changed("offset") {
		cfg.Harvest.StartOffset = scrapeOffset
	}
}
