package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sightline/internal/batch"
	"sightline/internal/history"
	"sightline/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs or show the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 lists all)")
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return services.Wrap(services.ErrValidation, "cli", "history prune", "--keep must not be negative", nil)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := history.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, plural(int(removed), "run", "runs"))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "Number of recent runs to keep")
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

func listRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			operationTitle(run.Operation),
			formatTimestamp(run.StartedAt),
			runDuration(run),
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			yesNo(run.Stopped),
		})
	}
	fmt.Fprintln(out, tableView{
		columns: []column{col("Run"), col("Operation"), col("Started"), numCol("Duration"), numCol("Files"), numCol("OK"), numCol("Failed"), col("Stopped")},
		rows:    rows,
	}.render())
	return nil
}

func showRun(cmd *cobra.Command, store *history.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return services.Wrap(services.ErrNotFound, "cli", "history", fmt.Sprintf("run %q not found", id), nil)
	}
	jobs, err := store.Jobs(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("%s run %s", operationTitle(run.Operation), shortID(run.ID)), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(out, "Tool:       %s\n", run.Tool)
	fmt.Fprintf(out, "Output dir: %s\n", run.OutputDir)
	fmt.Fprintf(out, "Started:    %s\n", formatTimestamp(run.StartedAt))
	fmt.Fprintf(out, "Duration:   %s\n", runDuration(*run))
	fmt.Fprintf(out, "Stopped:    %s\n", yesNo(run.Stopped))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			filepath.Base(job.InputPath),
			renderJobStatus(job.Status, colorize),
			strconv.Itoa(job.ExitCode),
			formatDuration(jobDuration(job)),
			job.OutputPath,
		})
	}
	fmt.Fprintln(out, tableView{
		columns: []column{col("File"), col("Status"), numCol("Exit"), numCol("Duration"), col("Output")},
		rows:    rows,
	}.render())

	for _, job := range jobs {
		if job.Status != batch.StatusFailed || job.ErrorLog == "" {
			continue
		}
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader(filepath.Base(job.InputPath), colorize) {
			fmt.Fprintln(out, line)
		}
		for _, line := range strings.Split(job.ErrorLog, "\n") {
			fmt.Fprintln(out, statusIndent+line)
		}
	}
	return nil
}

func runDuration(run history.Run) string {
	if !run.Finished() {
		return "running"
	}
	return formatDuration(run.Duration())
}

func jobDuration(job history.JobRecord) time.Duration {
	if job.StartedAt.IsZero() || job.FinishedAt.IsZero() {
		return 0
	}
	return job.FinishedAt.Sub(job.StartedAt)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
