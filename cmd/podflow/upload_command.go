package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podflow/internal/journal"
	"podflow/internal/uploader"
	"podflow/internal/workspace"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var uploadPath string

	cmd := &cobra.Command{
		Use:   "upload <shop>",
		Short: "Upload the pending assets to a shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ws, err := workspace.New(uploadPath)
			if err != nil {
				return err
			}
			lock, err := ws.AcquireLock()
			if err != nil {
				return err
			}
			defer lock.Release()

			shopName := strings.TrimSpace(args[0])
			engine := uploader.New(rt.cfg, rt.shopRegistry(), rt.sessions, rt.journal, ws, rt.logger)
			summary, err := engine.Run(cmd.Context(), shopName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, result := range summary.Results {
				switch result.Outcome {
				case journal.OutcomeSuccess:
					fmt.Fprintf(out, "uploaded %s\n", result.AssetID)
				case journal.OutcomeSkipped:
					fmt.Fprintf(out, "skipped %s: %v\n", result.AssetID, result.Err)
				default:
					fmt.Fprintf(out, "failed %s: %v\n", result.AssetID, result.Err)
				}
			}
			if summary.Aborted {
				fmt.Fprintln(out, "daily upload limit reached, remaining assets stay pending")
			}
			fmt.Fprintln(out, renderDestinations([][]string{
				{"used_" + shopName, fmt.Sprintf("%d", summary.Uploaded())},
				{"pending", fmt.Sprintf("%d", summary.Skipped())},
				{"error_" + shopName, fmt.Sprintf("%d", summary.Failed())},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&uploadPath, "upload-path", "u", "", "Workspace directory holding the pending assets")
	_ = cmd.MarkFlagRequired("upload-path")
	return cmd
}
