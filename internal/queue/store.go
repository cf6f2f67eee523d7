package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry ceiling applied when none is configured.
// A job that has failed this many times is demoted to failed_permanent by
// the next claim sweep.
const DefaultMaxRetries = 3

// Store exposes queue operations over a locked backend. All reads and
// writes go through the backend's exclusive critical section; no caller
// ever observes a torn document.
type Store struct {
	backend    backend
	maxRetries int
	now        func() time.Time
	newID      func() string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries overrides the permanent-failure threshold.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock injects a time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func newStore(b backend, opts ...Option) *Store {
	s := &Store{
		backend:    b,
		maxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the backend.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// AddResult describes the outcome of an enqueue attempt.
type AddResult struct {
	Job       *Job
	Duplicate bool
}

// Add enqueues a new job for the input path unless one is already tracked.
// A duplicate path is reported via AddResult.Duplicate rather than an
// error so scanners can keep going.
func (s *Store) Add(ctx context.Context, inputPath string, jobType JobType) (AddResult, error) {
	if _, ok := StepsFor(jobType); !ok {
		return AddResult{}, fmt.Errorf("add %q: %w: %q", inputPath, ErrUnknownJobType, jobType)
	}

	var result AddResult
	err := s.backend.Update(ctx, func(doc *document) error {
		if existing := doc.findByInput(inputPath); existing != nil {
			result = AddResult{Job: existing.Clone(), Duplicate: true}
			return nil
		}
		job := &Job{
			ID:        s.newID(),
			InputPath: inputPath,
			JobType:   jobType,
			Status:    StatusPending,
			AddedAt:   s.now(),
			Steps:     newSteps(jobType),
		}
		doc.Jobs = append(doc.Jobs, job)
		result = AddResult{Job: job.Clone()}
		return nil
	})
	if err != nil {
		return AddResult{}, fmt.Errorf("add %q: %w", inputPath, err)
	}
	return result, nil
}

// JobResult is a worker-reported job outcome.
type JobResult struct {
	Status       Status
	OutputPath   string
	ErrorMessage string
}

// ReportJob records a job-level outcome. Only completed and failed are
// accepted; permanent failure is decided by the claim sweep, never
// reported directly. A failed result increments the retry count, which is
// what the sweep compares against the ceiling.
func (s *Store) ReportJob(ctx context.Context, jobID string, result JobResult) error {
	if result.Status != StatusCompleted && result.Status != StatusFailed {
		return fmt.Errorf("report job %s: %w: %q", jobID, ErrInvalidResultStatus, result.Status)
	}

	err := s.backend.Update(ctx, func(doc *document) error {
		job := doc.find(jobID)
		if job == nil {
			return ErrNotFound
		}
		job.Status = result.Status
		if result.OutputPath != "" {
			job.OutputPath = result.OutputPath
		}
		switch result.Status {
		case StatusCompleted:
			now := s.now()
			job.CompletedAt = &now
			job.ErrorMessage = ""
		case StatusFailed:
			job.Retries++
			job.ErrorMessage = result.ErrorMessage
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("report job %s: %w", jobID, err)
	}
	return nil
}

// ReportStep records the outcome of a single pipeline step. Unknown step
// names are rejected without mutating the queue.
func (s *Store) ReportStep(ctx context.Context, jobID, stepName string, status StepStatus) error {
	if _, ok := ParseStepStatus(string(status)); !ok {
		return fmt.Errorf("report step %s/%s: invalid step status %q", jobID, stepName, status)
	}

	err := s.backend.Update(ctx, func(doc *document) error {
		job := doc.find(jobID)
		if job == nil {
			return ErrNotFound
		}
		step, ok := job.Step(stepName)
		if !ok {
			return fmt.Errorf("%w: %q not in %s sequence", ErrUnknownStep, stepName, job.JobType)
		}
		step.Status = status
		return nil
	})
	if err != nil {
		return fmt.Errorf("report step %s/%s: %w", jobID, stepName, err)
	}
	return nil
}

// Reset rewinds a job to the given 1-based step index: that step and every
// later one return to pending, the job re-enters rotation as pending, and
// the retry count is cleared. This is the operator escape hatch out of
// failed_permanent and deliberately bypasses the retry ceiling.
func (s *Store) Reset(ctx context.Context, jobID string, fromStep int) error {
	err := s.backend.Update(ctx, func(doc *document) error {
		job := doc.find(jobID)
		if job == nil {
			return ErrNotFound
		}
		if fromStep < 1 || fromStep > len(job.Steps) {
			return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidResetIndex, fromStep, len(job.Steps))
		}
		for i := fromStep - 1; i < len(job.Steps); i++ {
			job.Steps[i].Status = StepPending
		}
		job.Status = StatusPending
		job.Retries = 0
		job.ErrorMessage = ""
		job.OutputPath = ""
		job.ClaimedAt = nil
		job.CompletedAt = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset job %s: %w", jobID, err)
	}
	return nil
}

// GetByID fetches a snapshot of one job.
func (s *Store) GetByID(ctx context.Context, jobID string) (*Job, error) {
	var found *Job
	err := s.backend.Update(ctx, func(doc *document) error {
		if job := doc.find(jobID); job != nil {
			found = job.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if found == nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, ErrNotFound)
	}
	return found, nil
}

// List returns job snapshots, optionally filtered by status, ordered by
// enqueue time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}

	var jobs []*Job
	err := s.backend.Update(ctx, func(doc *document) error {
		for _, job := range doc.Jobs {
			if len(filter) > 0 {
				if _, ok := filter[job.Status]; !ok {
					continue
				}
			}
			jobs = append(jobs, job.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].AddedAt.Before(jobs[j].AddedAt) })
	return jobs, nil
}

// Stats returns the job count per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	stats := make(map[Status]int)
	err := s.backend.Update(ctx, func(doc *document) error {
		for _, job := range doc.Jobs {
			stats[job.Status]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// KnownInputPaths returns the set of every tracked input path. Scanners use
// it to avoid re-enqueueing files the queue already knows about.
func (s *Store) KnownInputPaths(ctx context.Context) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	err := s.backend.Update(ctx, func(doc *document) error {
		for _, job := range doc.Jobs {
			paths[job.InputPath] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("known input paths: %w", err)
	}
	return paths, nil
}

// Remove deletes a job record. Returns false when the id is unknown.
func (s *Store) Remove(ctx context.Context, jobID string) (bool, error) {
	removed := false
	err := s.backend.Update(ctx, func(doc *document) error {
		for i, job := range doc.Jobs {
			if job.ID == jobID {
				doc.Jobs = append(doc.Jobs[:i], doc.Jobs[i+1:]...)
				removed = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove job %s: %w", jobID, err)
	}
	return removed, nil
}

// Clear removes every job record and returns how many were dropped.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var count int64
	err := s.backend.Update(ctx, func(doc *document) error {
		count = int64(len(doc.Jobs))
		doc.Jobs = nil
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return count, nil
}

// RetryFailed moves failed jobs back to pending with their retry budget
// restored. With no ids, all failed jobs are retried. Step progress is
// preserved so retried jobs resume rather than restart. Jobs in
// failed_permanent are not touched; use Reset for those.
func (s *Store) RetryFailed(ctx context.Context, jobIDs ...string) (int64, error) {
	wanted := make(map[string]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = struct{}{}
	}

	var count int64
	err := s.backend.Update(ctx, func(doc *document) error {
		for _, job := range doc.Jobs {
			if job.Status != StatusFailed {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[job.ID]; !ok {
					continue
				}
			}
			job.Status = StatusPending
			job.Retries = 0
			job.ErrorMessage = ""
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return count, nil
}

// ReclaimStale returns running jobs whose claim is older than cutoff back
// to pending. Completed steps and the retry count are preserved, so the
// next claimant resumes the job. This sweep covers workers that died
// mid-step; it only runs when the operator has enabled a staleness window.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := s.backend.Update(ctx, func(doc *document) error {
		for _, job := range doc.Jobs {
			if job.Status != StatusRunning || job.ClaimedAt == nil {
				continue
			}
			if !job.ClaimedAt.Before(cutoff) {
				continue
			}
			job.Status = StatusPending
			job.ClaimedAt = nil
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return count, nil
}
