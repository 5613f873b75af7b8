package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podflow/internal/profiles"
	"podflow/internal/verify"
)

func newVerifySiteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verifysite <site>",
		Short: "Sign in to a site and store the session",
		Long: "Opens a visible browser window on the site's login page. Complete the " +
			"login by hand, then confirm on the terminal to save the session for " +
			"headless runs.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: profiles.SiteNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			verifier := verify.New(rt.cfg, rt.sessions, rt.profiles, rt.logger, cmd.InOrStdin(), cmd.OutOrStdout())
			if err := verifier.Run(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			return nil
		},
	}
}
