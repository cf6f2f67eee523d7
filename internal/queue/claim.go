package queue

import (
	"context"
	"fmt"
)

// Claim selects the next eligible job and atomically transitions it to
// running, bound to workerID. It returns nil with no error when nothing is
// claimable; callers poll with a delay.
//
// The sweep, selection, and transition all execute inside one exclusive
// critical section, so two concurrent claims can never take the same job.
func (s *Store) Claim(ctx context.Context, workerID string) (*Job, error) {
	var claimed *Job
	err := s.backend.Update(ctx, func(doc *document) error {
		sweepPermanentFailures(doc, s.maxRetries)

		candidate := selectCandidate(doc)
		if candidate == nil {
			return nil
		}

		now := s.now()
		candidate.Status = StatusRunning
		candidate.WorkerID = workerID
		candidate.ClaimedAt = &now
		claimed = candidate.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return claimed, nil
}

// sweepPermanentFailures demotes failed jobs that have exhausted their
// retry budget. It runs on every claim attempt rather than a timer, so
// demotion is lazy but keeps pace with worker activity.
func sweepPermanentFailures(doc *document, maxRetries int) {
	for _, job := range doc.Jobs {
		if job.Status == StatusFailed && job.Retries >= maxRetries {
			job.Status = StatusFailedPermanent
		}
	}
}

// selectCandidate picks the pending or failed job with the earliest
// enqueue time. Ties fall back to document order, which is stable
// first-seen order, giving FIFO-with-retry semantics: a retried job
// competes by its original enqueue time, not by when it failed.
func selectCandidate(doc *document) *Job {
	var best *Job
	for _, job := range doc.Jobs {
		if job.Status != StatusPending && job.Status != StatusFailed {
			continue
		}
		if best == nil || job.AddedAt.Before(best.AddedAt) {
			best = job
		}
	}
	return best
}
