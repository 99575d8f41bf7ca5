package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and manage stored assets",
	}

	assetsCmd.AddCommand(newAssetsListCommand(ctx))
	assetsCmd.AddCommand(newAssetsShowCommand(ctx))
	assetsCmd.AddCommand(newAssetsDeleteCommand(ctx))

	return assetsCmd
}

func newAssetsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the asset catalog, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.client().ListAssets(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			if len(catalog) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assets")
				return nil
			}
			rows := make([][]string, 0, len(catalog))
			for _, asset := range catalog {
				rows = append(rows, []string{
					asset.AssetID,
					formatSeconds(asset.Audio.Duration),
					orDash(asset.Audio.Format),
					asset.Provenance.SourceType,
					shortTimestamp(asset.CreatedAt),
				})
			}
			table := renderTable(
				[]string{"ID", "Duration", "Format", "Source", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newAssetsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <assetID>",
		Short: "Show one asset with its stored objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().GetAsset(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			asset := resp.Asset
			fmt.Fprintf(out, "Asset:    %s\n", asset.AssetID)
			fmt.Fprintf(out, "Duration: %s\n", formatSeconds(asset.Audio.Duration))
			if asset.Audio.Format != "" {
				fmt.Fprintf(out, "Format:   %s", asset.Audio.Format)
				if asset.Audio.SampleRate > 0 {
					fmt.Fprintf(out, " (%d Hz, %d ch)", asset.Audio.SampleRate, asset.Audio.Channels)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Source:   %s", asset.Provenance.SourceType)
			switch {
			case asset.Provenance.SourceURL != "":
				fmt.Fprintf(out, " (%s)", asset.Provenance.SourceURL)
			case asset.Provenance.OriginalFilename != "":
				fmt.Fprintf(out, " (%s)", asset.Provenance.OriginalFilename)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Created:  %s\n", asset.CreatedAt)

			if len(resp.Objects) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(resp.Objects))
			for _, obj := range resp.Objects {
				rows = append(rows, []string{obj.Name, humanBytes(obj.Size)})
			}
			fmt.Fprintln(out)
			table := renderTable(
				[]string{"Object", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the asset as JSON")
	return cmd
}

func newAssetsDeleteCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <assetID>",
		Short: "Delete an asset and its stored objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteAsset(cmd.Context(), args[0], force); err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Asset %s deleted\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Delete even when referenced by recipes or active jobs")
	return cmd
}
