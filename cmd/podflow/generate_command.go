package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podflow/internal/pipeline"
	"podflow/internal/workspace"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var count int

	cmd := &cobra.Command{
		Use:   "generate <sequence>",
		Short: "Run a stage sequence and fill the pending partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ws, err := workspace.New(outputDir)
			if err != nil {
				return err
			}
			lock, err := ws.AcquireLock()
			if err != nil {
				return err
			}
			defer lock.Release()

			if count <= 0 {
				count = rt.cfg.Generate.Count
			}
			pipe := pipeline.New(rt.cfg, rt.stageRegistry(), rt.sessions, rt.journal, ws, rt.logger)
			summary, err := pipe.Run(cmd.Context(), strings.TrimSpace(args[0]), count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, result := range summary.Results {
				if result.Err != nil {
					fmt.Fprintf(out, "failed at %s: %v\n", result.FailedAt, result.Err)
					continue
				}
				fmt.Fprintf(out, "generated %s\n", result.AssetID)
			}
			fmt.Fprintln(out, renderDestinations([][]string{
				{"pending", fmt.Sprintf("%d", summary.Produced())},
				{"error_generate", fmt.Sprintf("%d", summary.Failed())},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-directory", "o", "", "Workspace directory the assets are written to")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of assets to generate (defaults to the configured count)")
	_ = cmd.MarkFlagRequired("output-directory")
	return cmd
}
