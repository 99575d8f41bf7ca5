package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
)

var audioFileExtensions = map[string]struct{}{
	".aac":  {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit audio sources for ingestion",
	}

	ingestCmd.AddCommand(newIngestURLCommand(ctx))
	ingestCmd.AddCommand(newIngestYouTubeCommand(ctx))
	ingestCmd.AddCommand(newIngestFileCommand(ctx))

	return ingestCmd
}

func newIngestURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>",
		Short: "Ingest audio from a direct media URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().SubmitIngest(cmd.Context(), api.IngestRequest{
				SourceType: assets.SourceURL,
				URL:        args[0],
			})
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			printSubmitResult(cmd, resp)
			return nil
		},
	}
}

func newIngestYouTubeCommand(ctx *commandContext) *cobra.Command {
	var rightsAttested bool

	cmd := &cobra.Command{
		Use:   "youtube <videoID|url>",
		Short: "Ingest audio from a YouTube video you hold rights to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.IngestRequest{
				SourceType:     assets.SourceYouTube,
				RightsAttested: rightsAttested,
			}
			if strings.Contains(args[0], "://") {
				req.URL = args[0]
			} else {
				req.VideoID = args[0]
			}
			resp, err := ctx.client().SubmitIngest(cmd.Context(), req)
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			printSubmitResult(cmd, resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rightsAttested, "rights-attested", false, "Affirm you hold the rights to this content")
	return cmd
}

func newIngestFileCommand(ctx *commandContext) *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a local audio or video file for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect source file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("source path %q is a directory", path)
			}

			resolved, err := resolveSourceType(sourceType, path)
			if err != nil {
				return err
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open source file: %w", err)
			}
			defer file.Close()

			resp, err := ctx.client().SubmitUpload(cmd.Context(), resolved, filepath.Base(path), file)
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			printSubmitResult(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source kind: audio or video (inferred from the extension by default)")
	return cmd
}

func resolveSourceType(flag, path string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
		if _, ok := audioFileExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			return assets.SourceAudioFile, nil
		}
		return assets.SourceVideoFile, nil
	case "audio", assets.SourceAudioFile:
		return assets.SourceAudioFile, nil
	case "video", assets.SourceVideoFile:
		return assets.SourceVideoFile, nil
	default:
		return "", fmt.Errorf("unknown source type %q (use audio or video)", flag)
	}
}

func printSubmitResult(cmd *cobra.Command, resp *api.SubmitResponse) {
	out := cmd.OutOrStdout()
	if resp.Cached {
		fmt.Fprintf(out, "Job %s %s (served from render cache)\n", resp.JobID, resp.Status)
		return
	}
	fmt.Fprintf(out, "Job %s submitted (%s)\n", resp.JobID, resp.Status)
}
