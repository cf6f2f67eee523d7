package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
)

// StepExecutor performs the transcoding action for one step of a job.
// Implementations report success or failure; the worker owns all queue
// bookkeeping around the call.
type StepExecutor interface {
	RunStep(ctx context.Context, job *queue.Job, step string) error
	OutputPath(job *queue.Job) string
	Cleanup(job *queue.Job)
}

// Worker polls the shared queue and processes one job at a time.
type Worker struct {
	store    *queue.Store
	executor StepExecutor
	logger   *slog.Logger
	id       string

	pollInterval time.Duration
	staleWindow  time.Duration
}

// New constructs a worker. An empty id falls back to the hostname, which
// matches how operators identify the transcoding VMs.
func New(cfg *config.Config, store *queue.Store, executor StepExecutor, logger *slog.Logger, id string) (*Worker, error) {
	if cfg == nil || store == nil || executor == nil {
		return nil, errors.New("worker requires config, store, and executor")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve worker id: %w", err)
		}
		id = hostname
	}
	return &Worker{
		store:        store,
		executor:     executor,
		logger:       logging.NewComponentLogger(logger, "worker").With(logging.String("worker_id", id)),
		id:           id,
		pollInterval: cfg.PollInterval(),
		staleWindow:  cfg.StaleClaimWindow(),
	}, nil
}

// ID returns the worker's identity as recorded on claimed jobs.
func (w *Worker) ID() string {
	return w.id
}

// Run polls for jobs until the context is cancelled. Store errors are
// logged and retried after the poll interval; they do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", logging.Duration("poll_interval", w.pollInterval))
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopped")
			return err
		}

		if w.staleWindow > 0 {
			cutoff := time.Now().UTC().Add(-w.staleWindow)
			if reclaimed, err := w.store.ReclaimStale(ctx, cutoff); err != nil {
				w.logger.Warn("stale claim sweep failed", logging.Error(err))
			} else if reclaimed > 0 {
				w.logger.Info("reclaimed orphaned jobs", logging.Int64("count", reclaimed))
			}
		}

		job, err := w.store.Claim(ctx, w.id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error("claim failed", logging.Error(err))
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

// processJob resumes the job at its first incomplete step and reports the
// outcome. Step progress already recorded by a previous attempt is kept.
func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	logger := w.logger.With(
		logging.String("job_id", job.ID),
		logging.String("input", job.InputPath),
		logging.String("job_type", string(job.JobType)),
	)
	logger.Info("claimed job",
		logging.Int("retries", job.Retries),
		logging.Int("steps_done", job.CompletedSteps()),
	)
	defer w.executor.Cleanup(job)

	for _, step := range job.RemainingSteps() {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-job: leave the job running for the stale
			// sweep or an operator to recover.
			logger.Warn("shutdown before job finished", logging.String("step", step))
			return
		}

		stepErr := w.executor.RunStep(ctx, job, step)
		status := queue.StepCompleted
		if stepErr != nil {
			status = queue.StepFailed
		}
		if err := w.store.ReportStep(ctx, job.ID, step, status); err != nil {
			logger.Error("report step failed", logging.String("step", step), logging.Error(err))
			w.failJob(ctx, logger, job, fmt.Sprintf("report step %s: %v", step, err))
			return
		}

		if stepErr != nil {
			logger.Error("step failed", logging.String("step", step), logging.Error(stepErr))
			w.failJob(ctx, logger, job, fmt.Sprintf("step %s: %v", step, stepErr))
			return
		}
		logger.Info("step completed", logging.String("step", step))
	}

	output := w.executor.OutputPath(job)
	result := queue.JobResult{Status: queue.StatusCompleted, OutputPath: output}
	if err := w.store.ReportJob(ctx, job.ID, result); err != nil {
		logger.Error("report completion failed", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.String("output", output))
}

func (w *Worker) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) {
	result := queue.JobResult{Status: queue.StatusFailed, ErrorMessage: message}
	if err := w.store.ReportJob(ctx, job.ID, result); err != nil {
		logger.Error("report failure failed", logging.Error(err))
	}
}

// sleep waits one poll interval; false means the context ended first.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
