package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"captionbot/internal/config"
	"captionbot/internal/ledger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func repliesCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replies",
		Short: "List recently published and failed replies from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Ledger.Enabled {
				return fmt.Errorf("the reply ledger is disabled (ledger.enabled)")
			}
			if _, err := os.Stat(cfg.Ledger.DBPath); err != nil {
				return fmt.Errorf("no ledger at %s yet", cfg.Ledger.DBPath)
			}

			store, err := ledger.Open(cfg.Ledger.DBPath, logger)
			if err != nil {
				return fmt.Errorf("ledger: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			entries, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				data, _ := json.MarshalIndent(map[string]any{"stats": stats, "entries": entries}, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			for _, e := range entries {
				fmt.Println(formatEntry(e))
			}
			fmt.Printf("\n%d published, %d failed\n", stats.Published, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func formatEntry(e ledger.Entry) string {
	when := humanize.Time(e.CreatedAt)
	if e.Status == ledger.StatusPublished {
		return fmt.Sprintf("[ok]   %-14s reply %s to %s (@%s, photo %s, render %dms)",
			when, e.ReplyID, e.ReplyToID, e.Handle, e.PhotoID, e.RenderMS)
	}
	return fmt.Sprintf("[fail] %-14s %s stage on post %s (photo %s): %s",
		when, e.Stage, e.SourcePostID, e.PhotoID, e.Error)
}
