package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/media/ffprobe"
	"shuttle/internal/queue"
)

// Executor runs the recorded pipeline steps for claimed jobs.
type Executor struct {
	cfg    *config.Config
	logger *slog.Logger
	runner Runner

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// Option configures the executor.
type Option func(*Executor)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(runner Runner) Option {
	return func(e *Executor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// New constructs an executor bound to the configured binaries and scratch
// directories.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		runner:     commandRunner{},
		workspaces: make(map[string]*workspace),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunStep executes one named step of the job's sequence.
func (e *Executor) RunStep(ctx context.Context, job *queue.Job, step string) error {
	ws, err := e.workspaceFor(job)
	if err != nil {
		return err
	}
	paths := newJobPaths(job, ws)

	e.logger.Info("running step",
		logging.String("job_id", job.ID),
		logging.String("step", step),
		logging.String("input", job.InputPath),
	)

	switch step {
	case "probe":
		return e.probe(ctx, job, paths.input)
	case "verify":
		return e.verify(ctx, paths.output)
	default:
		commands, err := planFor(e.cfg.Binaries, job, paths, step)
		if err != nil {
			return err
		}
		if err := e.runner.Run(ctx, commands); err != nil {
			return fmt.Errorf("step %s: %w", step, err)
		}
		return nil
	}
}

// OutputPath reports where the finished file for a job lands.
func (e *Executor) OutputPath(job *queue.Job) string {
	return outputPathFor(job.InputPath)
}

// Cleanup removes the job's scratch directories. Safe to call whether or
// not any step ran.
func (e *Executor) Cleanup(job *queue.Job) {
	e.mu.Lock()
	ws := e.workspaces[job.ID]
	delete(e.workspaces, job.ID)
	e.mu.Unlock()

	if ws == nil {
		return
	}
	if err := ws.Cleanup(); err != nil {
		e.logger.Warn("workspace cleanup failed",
			logging.String("job_id", job.ID),
			logging.Error(err),
		)
	}
}

func (e *Executor) workspaceFor(job *queue.Job) (*workspace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ws, ok := e.workspaces[job.ID]; ok {
		return ws, nil
	}
	ws, err := newWorkspace(e.cfg.Paths.TempDir, e.cfg.Paths.RAMDir, job.ID)
	if err != nil {
		return nil, err
	}
	e.workspaces[job.ID] = ws
	return ws, nil
}

// probe confirms the input is readable and matches its job type before any
// heavy work starts.
func (e *Executor) probe(ctx context.Context, job *queue.Job, input string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("step probe: %w", err)
	}
	result, err := ffprobe.Inspect(ctx, e.cfg.Binaries.FFprobe, input)
	if err != nil {
		return fmt.Errorf("step probe: %w", err)
	}
	if len(result.VideoStreams()) == 0 {
		return errors.New("step probe: no video stream in input")
	}
	if job.JobType == queue.JobTypeDolbyVision && !result.HasDolbyVision() {
		return errors.New("step probe: input has no Dolby Vision layer")
	}
	return nil
}

// verify checks that the remuxed output exists and parses as a playable
// container.
func (e *Executor) verify(ctx context.Context, output string) error {
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("step verify: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("step verify: output file is empty")
	}
	result, err := ffprobe.Inspect(ctx, e.cfg.Binaries.FFprobe, output)
	if err != nil {
		return fmt.Errorf("step verify: %w", err)
	}
	if len(result.VideoStreams()) == 0 {
		return errors.New("step verify: no video stream in output")
	}
	return nil
}
