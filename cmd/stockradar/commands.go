package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joonpak/stockradar/internal/analysis"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one news collection pass",
	Long: `Run one news collection pass against the configured providers.

Examples:
  stockradar collect
  stockradar collect --query "반도체,2차전지"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if query == "" {
			query = a.cfg.Providers.DefaultQuery
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		result, err := a.collector.Collect(ctx, query)
		if err != nil {
			return err
		}

		printSuccess("Collected %d articles (%d new, %d duplicates)",
			result.Fetched, result.Inserted, result.Duplicates)
		for name, msg := range result.ProviderErrors {
			printWarning("%s: %s", name, msg)
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis pipeline for one date",
	Long: `Run the analysis pipeline and write a market report.

Examples:
  stockradar analyze
  stockradar analyze --date 2026-08-25
  stockradar analyze --date 2026-08-25 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		force, _ := cmd.Flags().GetBool("force")

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		result, err := a.pipeline.Run(ctx, date, force)
		switch {
		case errors.Is(err, analysis.ErrDuplicateRun):
			printWarning("Report already exists: %s (use --force to recompute)", result.ReportID)
			return nil
		case errors.Is(err, analysis.ErrNoArticles):
			printWarning("No articles in the analysis window, nothing to report")
			return nil
		case err != nil:
			return err
		}

		printSuccess("Report %s written (%d articles, %d industries, %d companies)",
			result.ReportID, result.ArticlesConsidered, result.Industries, result.Companies)
		return nil
	},
}

func init() {
	collectCmd.Flags().String("query", "", "comma-separated keywords (default: configured query)")
	analyzeCmd.Flags().String("date", "", "analysis date as YYYY-MM-DD (default: today)")
	analyzeCmd.Flags().Bool("force", false, "recompute and replace an existing report")
}
