package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podflow/internal/deps"
	"podflow/internal/settings"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools podflow depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := settings.NewStore(cfg.Paths.SettingsPath)
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg, store))
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			missingRequired := false
			for _, status := range statuses {
				kind := statusOK
				message := status.Detail
				if !status.Available {
					if status.Optional {
						kind = statusWarn
					} else {
						kind = statusError
						missingRequired = true
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}
			if missingRequired {
				return fmt.Errorf("required dependencies are missing")
			}
			return nil
		},
	}
}
