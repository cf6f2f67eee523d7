package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the shared work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a per-status job count summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), stats)
				}

				var rows [][]string
				total := 0
				for _, status := range queue.AllStatuses() {
					count := stats[status]
					total += count
					if count == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{{Title: "Status"}, {Title: "Count", Right: true}},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit stats as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in enqueue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						shortID(job.ID),
						job.InputPath,
						string(job.JobType),
						string(job.Status),
						fmt.Sprintf("%d/%d", job.CompletedSteps(), len(job.Steps)),
						strconv.Itoa(job.Retries),
						job.WorkerID,
						job.AddedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						{Title: "ID"},
						{Title: "Input"},
						{Title: "Type"},
						{Title: "Status"},
						{Title: "Steps", Right: true},
						{Title: "Retries", Right: true},
						{Title: "Worker"},
						{Title: "Added"},
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit jobs as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its step progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := findJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), job)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job      %s\n", job.ID)
				fmt.Fprintf(out, "Input    %s\n", job.InputPath)
				fmt.Fprintf(out, "Type     %s\n", job.JobType)
				fmt.Fprintf(out, "Status   %s\n", job.Status)
				fmt.Fprintf(out, "Retries  %d\n", job.Retries)
				if job.WorkerID != "" {
					fmt.Fprintf(out, "Worker   %s\n", job.WorkerID)
				}
				if job.OutputPath != "" {
					fmt.Fprintf(out, "Output   %s\n", job.OutputPath)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error    %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "Added    %s\n", job.AddedAt.Local().Format(time.RFC3339))
				if job.ClaimedAt != nil {
					fmt.Fprintf(out, "Claimed  %s\n", job.ClaimedAt.Local().Format(time.RFC3339))
				}
				if job.CompletedAt != nil {
					fmt.Fprintf(out, "Finished %s\n", job.CompletedAt.Local().Format(time.RFC3339))
				}

				rows := make([][]string, 0, len(job.Steps))
				for i, step := range job.Steps {
					rows = append(rows, []string{strconv.Itoa(i + 1), step.Name, string(step.Status)})
				}
				fmt.Fprintln(out, renderTable(
					[]column{{Title: "#", Right: true}, {Title: "Step"}, {Title: "Status"}},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the job as JSON")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	var fromStep int

	cmd := &cobra.Command{
		Use:   "reset <job-id>",
		Short: "Rewind a job and return it to the pending pool",
		Long: `Reset rewinds the job's step progress to the given step (1-based) and
returns it to pending with a fresh retry budget. This is the only way a
permanently failed job re-enters rotation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := findJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if err := store.Reset(cmd.Context(), job.ID, fromStep); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset job %s from step %d; it is pending again\n", shortID(job.ID), fromStep)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&fromStep, "from-step", 1, "First step to re-run (1-based)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Return failed jobs to pending with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				ids := make([]string, 0, len(args))
				for _, arg := range args {
					job, err := findJob(cmd, store, arg)
					if err != nil {
						return err
					}
					ids = append(ids, job.ID)
				}
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed job(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := findJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				removed, err := store.Remove(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("job %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", shortID(job.ID))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every job record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("refusing to clear the shared queue without --force")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				count, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d job(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm removal of all jobs on every host")
	return cmd
}

// findJob resolves a job by full id or unambiguous prefix.
func findJob(cmd *cobra.Command, store *queue.Store, ref string) (*queue.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty job id")
	}

	job, err := store.GetByID(cmd.Context(), ref)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, queue.ErrNotFound) {
		return nil, err
	}

	jobs, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	var matches []*queue.Job
	for _, candidate := range jobs {
		if strings.HasPrefix(candidate.ID, ref) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("job %s not found", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("job id %s is ambiguous (%d matches)", ref, len(matches))
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
