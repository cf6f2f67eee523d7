package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/pipeline"
	"shuttle/internal/queue"
	"shuttle/internal/worker"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run the transcoding worker loop",
		Long: `Work claims jobs from the shared queue and runs their pipeline steps
until interrupted. Each claimed job resumes from its first incomplete
step, so a worker restart never repeats finished work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				executor := pipeline.New(cfg, logger)
				w, err := worker.New(cfg, store, executor, logger, workerID)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&workerID, "worker-id", "", "Identity recorded on claimed jobs (default: hostname)")
	return cmd
}
