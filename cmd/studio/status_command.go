package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, ctx.baseURL())
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Storage", statusInfo, status.StorageKind, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Job store", statusInfo, status.StoreDBPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			fmt.Fprintln(stdout)

			if cfg := ctx.configValue(); cfg != nil {
				for _, line := range renderSectionHeader("Workspace", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, directoryStatusLine("Data directory", cfg.Paths.DataDir, colorize))
				fmt.Fprintln(stdout, directoryStatusLine("Staging directory", cfg.Paths.StagingDir, colorize))
				fmt.Fprintln(stdout, directoryStatusLine("Log directory", cfg.Paths.LogDir, colorize))
				if cfg.Storage.Backend == config.BackendLocal {
					fmt.Fprintln(stdout, directoryStatusLine("Object root", cfg.Storage.LocalRoot, colorize))
				}
				if free, err := deps.FreeBytes(cfg.Paths.StagingDir); err == nil {
					fmt.Fprintln(stdout, renderStatusLine("Free space", statusInfo, humanBytes(free), colorize))
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildJobCountRows(status.Jobs)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

func directoryStatusLine(label, path string, colorize bool) string {
	status := deps.CheckDirectory(label, path)
	if status.Available {
		return renderStatusLine(label, statusOK, status.Detail, colorize)
	}
	return renderStatusLine(label, statusError, status.Detail, colorize)
}

func dependencyLines(statuses []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Version != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Version)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func buildJobCountRows(counts api.JobCounts) [][]string {
	if counts.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, 6)
	add := func(label string, count int) {
		if count > 0 {
			rows = append(rows, []string{label, strconv.Itoa(count)})
		}
	}
	add("pending", counts.Pending)
	add("processing", counts.Processing)
	add("complete", counts.Complete)
	add("failed", counts.Failed)
	add("cancelled", counts.Cancelled)
	rows = append(rows, []string{"total", strconv.Itoa(counts.Total)})
	return rows
}
