package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podflow/internal/journal"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var shopFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show recent stage and upload results from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			runCtx := cmd.Context()

			uploads, err := store.RecentUploads(runCtx, strings.TrimSpace(shopFilter), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Uploads:")
			if len(uploads) == 0 {
				fmt.Fprintln(out, "  none recorded")
			} else {
				rows := make([][]string, 0, len(uploads))
				for _, u := range uploads {
					rows = append(rows, []string{
						u.FinishedAt.Local().Format(time.DateTime),
						u.Shop,
						u.AssetID,
						u.Outcome,
						fmt.Sprintf("%d", u.Attempts),
						u.Message,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Finished", "Shop", "Asset", "Outcome", "Attempts", "Detail"},
					rows,
					"Attempts",
				))
			}

			// The stage history is shop independent; skip it when filtering.
			if strings.TrimSpace(shopFilter) != "" {
				return nil
			}

			stages, err := store.RecentStages(runCtx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Stages:")
			if len(stages) == 0 {
				fmt.Fprintln(out, "  none recorded")
				return nil
			}
			rows := make([][]string, 0, len(stages))
			for _, s := range stages {
				rows = append(rows, []string{
					s.FinishedAt.Local().Format(time.DateTime),
					s.Stage,
					s.AssetID,
					s.Outcome,
					fmt.Sprintf("%d", s.Attempts),
					s.Message,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Stage", "Asset", "Outcome", "Attempts", "Detail"},
				rows,
				"Attempts",
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&shopFilter, "shop", "", "Only show uploads for this shop")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows per table")
	return cmd
}
