package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podflow/internal/services"
	"podflow/internal/settings"
)

func newSettingTorBinaryCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "setting-tor-binary",
		Short: "Store the tor binary path used by the upscale stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := settings.NewStore(cfg.Paths.SettingsPath)
			if err != nil {
				return err
			}
			if err := store.SetTorBinary(strings.TrimSpace(path)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tor binary set to %s\n", strings.TrimSpace(path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Absolute path to the tor executable")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newShowTorPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show-tor-path",
		Short: "Print the stored tor binary path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := settings.NewStore(cfg.Paths.SettingsPath)
			if err != nil {
				return err
			}
			binary, err := store.TorBinary()
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No tor binary configured; run setting-tor-binary first")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), binary)
			return nil
		},
	}
}
