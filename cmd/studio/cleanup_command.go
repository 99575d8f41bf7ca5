package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete unreferenced assets older than the configured TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.AssetTTL() <= 0 {
				fmt.Fprintln(out, "Asset TTL is disabled (assets.ttl_hours = 0); nothing to sweep")
				return nil
			}

			backend, err := storage.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init storage backend: %w", err)
			}
			svc := assets.NewService(cfg, backend, logging.NewNop())
			removed, err := svc.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(out, "No expired assets")
				return nil
			}
			fmt.Fprintf(out, "Removed %d expired assets\n", removed)
			return nil
		},
	}
}
