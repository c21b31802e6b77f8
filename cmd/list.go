package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/apiclient"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/retry"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists stored documents through the storage API",
		RunE:  runListCommand,
	}
	cmd.Flags().String("type", "", "filter by document_type")
	cmd.Flags().Int("year", 0, "filter by year")
	cmd.Flags().Int("quarter", 0, "filter by quarter")
	cmd.Flags().Int("limit", storage.DefaultReadLimit, "maximum documents to return")
	return cmd
}

func runListCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	client, err := apiclient.New(apiclient.Config{
		Endpoint: e.cfg.StorageAPI.Endpoint,
		Timeout:  e.cfg.StorageAPI.Timeout,
		Retry:    retry.Config{MaxAttempts: e.cfg.Retry.MaxAttempts},
	}, e.logger)
	if err != nil {
		return err
	}

	var f storage.Filter
	if t, _ := cmd.Flags().GetString("type"); t != "" {
		dt := document.Type(t)
		f.Type = &dt
	}
	if cmd.Flags().Changed("year") {
		y, _ := cmd.Flags().GetInt("year")
		f.Year = &y
	}
	if cmd.Flags().Changed("quarter") {
		q, _ := cmd.Flags().GetInt("quarter")
		f.Quarter = &q
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")

	docs, err := client.Read(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	return nil
}
