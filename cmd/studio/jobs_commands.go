package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage pipeline jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.client().ListJobs(cmd.Context(), listStatuses...)
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.JobID,
					job.Type,
					job.Status,
					fmt.Sprintf("%.0f%%", job.Progress),
					orDash(job.AssetID),
					shortTimestamp(job.CreatedAt),
				})
			}
			table := renderTable(
				[]string{"ID", "Type", "Status", "Progress", "Asset", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show one job with queue position and download link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().GetJob(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			if jsonOut {
				return writeJSON(cmd, job)
			}
			printJobDetail(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().CancelJob(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s\n", job.JobID, job.Status)
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove complete, failed, and cancelled job records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			removed, err := store.ClearTerminal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", removed)
			return nil
		},
	}
}

func printJobDetail(cmd *cobra.Command, job *api.JobView) {
	out := cmd.OutOrStdout()
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-10s %s\n", label+":", value)
		}
	}
	line("Job", job.JobID)
	line("Type", job.Type)
	line("Status", job.Status)
	line("Progress", fmt.Sprintf("%.0f%%", job.Progress))
	line("Stage", job.Stage)
	line("Asset", job.AssetID)
	if job.QueuePosition != nil {
		line("Queued", fmt.Sprintf("position %d", *job.QueuePosition))
	}
	line("Created", job.CreatedAt)
	line("Started", job.StartedAt)
	line("Finished", job.FinishedAt)
	line("Download", job.DownloadURL)
	if len(job.Result) > 0 {
		line("Result", string(job.Result))
	}
	if job.Error != nil {
		line("Error", fmt.Sprintf("%s: %s", job.Error.Code, job.Error.Message))
	}
}
