package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/app"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the listing page once and submits documents",
		Long: `Fetches the configured investor relations page, extracts PDF links,
drops documents older than crawler.min_year and submits the rest to the
storage API. Re-running is safe: known URLs are reported as duplicates.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("target", "", "override crawler.target_url")
	cmd.Flags().Int("min-year", 0, "override crawler.min_year")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	cfg := e.cfg
	if target, _ := cmd.Flags().GetString("target"); target != "" {
		cfg.Crawler.TargetURL = target
	}
	if minYear, _ := cmd.Flags().GetInt("min-year"); minYear > 0 {
		cfg.Crawler.MinYear = minYear
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	services, err := app.NewCrawler(cmd.Context(), cfg, e.logger)
	if err != nil {
		return fmt.Errorf("init crawler: %w", err)
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			e.logger.Warn("close services failed", zap.Error(cerr))
		}
	}()

	summary, err := services.Driver().Run(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(),
		"candidates=%d skipped=%d created=%d duplicates=%d rejected=%d\n",
		summary.Candidates, summary.Skipped, summary.Created, summary.Duplicates, summary.Rejected,
	)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}
