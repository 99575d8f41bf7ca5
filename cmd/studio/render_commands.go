package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var recipePath string

	cmd := &cobra.Command{
		Use:   "preview <assetID>",
		Short: "Render a preview from a recipe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := loadRecipe(recipePath)
			if err != nil {
				return err
			}
			resp, err := ctx.client().SubmitPreview(cmd.Context(), args[0], rec)
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			printSubmitResult(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "Path to the recipe JSON file")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var recipePath string

	cmd := &cobra.Command{
		Use:   "save <assetID>",
		Short: "Render a recipe at final fidelity and save it to the asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := loadRecipe(recipePath)
			if err != nil {
				return err
			}
			resp, err := ctx.client().SubmitSave(cmd.Context(), args[0], rec)
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			printSubmitResult(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "Path to the recipe JSON file")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func loadRecipe(pathValue string) (recipe.Recipe, error) {
	var rec recipe.Recipe
	path, err := config.ExpandPath(strings.TrimSpace(pathValue))
	if err != nil {
		return rec, fmt.Errorf("resolve recipe path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read recipe file: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse recipe file %s: %w", path, err)
	}
	return rec, nil
}
