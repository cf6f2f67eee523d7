package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

// backends runs a subtest against both store backends so the claim
// protocol is exercised over the file document and SQLite alike.
func backends(t *testing.T, fn func(t *testing.T, store *queue.Store, cfg *config.Config)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		fn(t, testsupport.MustOpenStore(t, cfg), cfg)
	})
	t.Run("sqlite", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithSQLiteBackend())
		fn(t, testsupport.MustOpenStore(t, cfg), cfg)
	})
}

func mustAdd(t *testing.T, store *queue.Store, path string, jobType queue.JobType) *queue.Job {
	t.Helper()
	result, err := store.Add(context.Background(), path, jobType)
	if err != nil {
		t.Fatalf("Add(%s) failed: %v", path, err)
	}
	if result.Duplicate {
		t.Fatalf("Add(%s) unexpectedly reported duplicate", path)
	}
	return result.Job
}

func failOnce(t *testing.T, store *queue.Store, workerID string) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := store.Claim(ctx, workerID)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	if err := store.ReportJob(ctx, job.ID, queue.JobResult{Status: queue.StatusFailed, ErrorMessage: "encode blew up"}); err != nil {
		t.Fatalf("ReportJob(failed) failed: %v", err)
	}
	return job
}

func TestAddAssignsDefaults(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeDolbyVision)

		if job.ID == "" {
			t.Fatal("expected job ID to be assigned")
		}
		if job.Status != queue.StatusPending {
			t.Fatalf("expected pending, got %s", job.Status)
		}
		if job.Retries != 0 {
			t.Fatalf("expected zero retries, got %d", job.Retries)
		}
		if job.AddedAt.IsZero() {
			t.Fatal("expected added_at to be set")
		}
		steps, _ := queue.StepsFor(queue.JobTypeDolbyVision)
		if len(job.Steps) != len(steps) {
			t.Fatalf("expected %d steps, got %d", len(steps), len(job.Steps))
		}
		for i, step := range job.Steps {
			if step.Name != steps[i] {
				t.Fatalf("step %d: expected %s, got %s", i, steps[i], step.Name)
			}
			if step.Status != queue.StepPending {
				t.Fatalf("step %s: expected pending, got %s", step.Name, step.Status)
			}
		}

		fetched, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched.InputPath != "/media/a.mkv" {
			t.Fatalf("unexpected input path %q", fetched.InputPath)
		}
	})
}

func TestAddRejectsUnknownJobType(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		_, err := store.Add(context.Background(), "/media/a.mkv", queue.JobType("4k_remaster"))
		if !errors.Is(err, queue.ErrUnknownJobType) {
			t.Fatalf("expected ErrUnknownJobType, got %v", err)
		}
	})
}

// P3: two adds with the same path leave exactly one record.
func TestAddDedupsByInputPath(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		first := mustAdd(t, store, "/media/a.mkv", queue.JobTypeDolbyVision)

		second, err := store.Add(ctx, "/media/a.mkv", queue.JobTypeStandard)
		if err != nil {
			t.Fatalf("duplicate Add errored: %v", err)
		}
		if !second.Duplicate {
			t.Fatal("expected duplicate add to be declined")
		}
		if second.Job.ID != first.ID {
			t.Fatalf("duplicate should report the existing job, got %s vs %s", second.Job.ID, first.ID)
		}

		jobs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
	})
}

// P1: with one eligible job, exactly one of N concurrent claims wins.
func TestClaimMutualExclusion(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		const workers = 8
		var wg sync.WaitGroup
		claims := make([]*queue.Job, workers)
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				claims[i], errs[i] = store.Claim(context.Background(), fmt.Sprintf("vm%d", i))
			}(i)
		}
		wg.Wait()

		winners := 0
		for i := 0; i < workers; i++ {
			if errs[i] != nil {
				t.Fatalf("worker %d claim errored: %v", i, errs[i])
			}
			if claims[i] != nil {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winning claim, got %d", winners)
		}
	})
}

func TestClaimBindsWorker(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		job, err := store.Claim(ctx, "vm1")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job == nil {
			t.Fatal("expected a job")
		}
		if job.Status != queue.StatusRunning {
			t.Fatalf("expected running, got %s", job.Status)
		}
		if job.WorkerID != "vm1" {
			t.Fatalf("expected worker vm1, got %q", job.WorkerID)
		}
		if job.ClaimedAt == nil {
			t.Fatal("expected claimed_at to be set")
		}

		// The running job must not be claimable again.
		second, err := store.Claim(ctx, "vm2")
		if err != nil {
			t.Fatalf("second Claim failed: %v", err)
		}
		if second != nil {
			t.Fatalf("running job was double-claimed by %s", second.WorkerID)
		}
	})
}

// P2: an older failed-then-eligible job competes by enqueue time, so a
// fresh pending job added first still wins.
func TestClaimFIFOWithRetry(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		a := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		time.Sleep(5 * time.Millisecond)
		b := mustAdd(t, store, "/media/b.mkv", queue.JobTypeStandard)

		// Fail B once so it sits in failed with retries=1.
		claimed, err := store.Claim(ctx, "vm1")
		if err != nil || claimed == nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if claimed.ID != a.ID {
			t.Fatalf("expected oldest job %s first, got %s", a.ID, claimed.ID)
		}
		// Park A as completed so B can be exercised.
		if err := store.ReportJob(ctx, a.ID, queue.JobResult{Status: queue.StatusCompleted, OutputPath: "/media/a_final.mkv"}); err != nil {
			t.Fatalf("ReportJob failed: %v", err)
		}
		failOnce(t, store, "vm1")

		// Re-add a fresh pending job; B failed earlier but was enqueued
		// before it, so B must win the next claim.
		c := mustAdd(t, store, "/media/c.mkv", queue.JobTypeStandard)
		next, err := store.Claim(ctx, "vm2")
		if err != nil || next == nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if next.ID != b.ID {
			t.Fatalf("expected failed job %s (older) before fresh %s, got %s", b.ID, c.ID, next.ID)
		}
	})
}

// P4: after max_retries failures the sweep parks the job permanently and
// it is never handed out again without an admin reset.
func TestPermanentFailureThreshold(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		for i := 0; i < queue.DefaultMaxRetries; i++ {
			failed := failOnce(t, store, "vm1")
			if failed.ID != job.ID {
				t.Fatalf("claimed unexpected job %s", failed.ID)
			}
		}

		next, err := store.Claim(ctx, "vm1")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if next != nil {
			t.Fatalf("exhausted job was claimed again: %+v", next)
		}

		parked, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if parked.Status != queue.StatusFailedPermanent {
			t.Fatalf("expected failed_permanent, got %s", parked.Status)
		}
		if parked.Retries != queue.DefaultMaxRetries {
			t.Fatalf("expected %d retries, got %d", queue.DefaultMaxRetries, parked.Retries)
		}
	})
}

// P5: a reclaimed job keeps its completed steps; only the rest remain.
func TestResumeKeepsCompletedSteps(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		job, err := store.Claim(ctx, "vm1")
		if err != nil || job == nil {
			t.Fatalf("Claim failed: %v", err)
		}
		for _, step := range []string{"probe", "encode_video"} {
			if err := store.ReportStep(ctx, job.ID, step, queue.StepCompleted); err != nil {
				t.Fatalf("ReportStep(%s) failed: %v", step, err)
			}
		}

		// Worker dies mid-job; the stale sweep returns it to pending.
		reclaimed, err := store.ReclaimStale(ctx, time.Now().UTC().Add(time.Minute))
		if err != nil {
			t.Fatalf("ReclaimStale failed: %v", err)
		}
		if reclaimed != 1 {
			t.Fatalf("expected 1 reclaimed job, got %d", reclaimed)
		}

		resumed, err := store.Claim(ctx, "vm2")
		if err != nil || resumed == nil {
			t.Fatalf("re-claim failed: %v", err)
		}
		remaining := resumed.RemainingSteps()
		want := []string{"remux", "verify"}
		if len(remaining) != len(want) {
			t.Fatalf("expected remaining %v, got %v", want, remaining)
		}
		for i := range want {
			if remaining[i] != want[i] {
				t.Fatalf("expected remaining %v, got %v", want, remaining)
			}
		}
		if resumed.Retries != 0 {
			t.Fatalf("reclaim must not burn retries, got %d", resumed.Retries)
		}
	})
}

// P6: reset is the only door out of failed_permanent and is idempotent.
func TestAdminResetIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		for i := 0; i < queue.DefaultMaxRetries; i++ {
			failOnce(t, store, "vm1")
		}
		if _, err := store.Claim(ctx, "vm1"); err != nil {
			t.Fatalf("sweep claim failed: %v", err)
		}

		for attempt := 0; attempt < 3; attempt++ {
			if err := store.Reset(ctx, job.ID, 1); err != nil {
				t.Fatalf("Reset attempt %d failed: %v", attempt, err)
			}
			got, err := store.GetByID(ctx, job.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			if got.Status != queue.StatusPending {
				t.Fatalf("expected pending after reset, got %s", got.Status)
			}
			if got.Retries != 0 {
				t.Fatalf("expected retries reset, got %d", got.Retries)
			}
			for _, step := range got.Steps {
				if step.Status != queue.StepPending {
					t.Fatalf("step %s not reset: %s", step.Name, step.Status)
				}
			}
		}
	})
}

func TestResetPartialRewind(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		if _, err := store.Claim(ctx, "vm1"); err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		for _, step := range []string{"probe", "encode_video", "remux"} {
			if err := store.ReportStep(ctx, job.ID, step, queue.StepCompleted); err != nil {
				t.Fatalf("ReportStep failed: %v", err)
			}
		}

		if err := store.Reset(ctx, job.ID, 3); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		wantStatus := map[string]queue.StepStatus{
			"probe":        queue.StepCompleted,
			"encode_video": queue.StepCompleted,
			"remux":        queue.StepPending,
			"verify":       queue.StepPending,
		}
		for _, step := range got.Steps {
			if step.Status != wantStatus[step.Name] {
				t.Fatalf("step %s: expected %s, got %s", step.Name, wantStatus[step.Name], step.Status)
			}
		}
	})
}

func TestResetValidatesIndex(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		for _, index := range []int{0, -1, 5} {
			if err := store.Reset(ctx, job.ID, index); !errors.Is(err, queue.ErrInvalidResetIndex) {
				t.Fatalf("Reset(%d): expected ErrInvalidResetIndex, got %v", index, err)
			}
		}
		// Queue untouched after rejected resets.
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != queue.StatusPending {
			t.Fatalf("rejected reset mutated status: %s", got.Status)
		}
	})
}

func TestReportStepRejectsUnknownName(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		// extract_rpu belongs to the Dolby Vision sequence, not standard.
		err := store.ReportStep(ctx, job.ID, "extract_rpu", queue.StepCompleted)
		if !errors.Is(err, queue.ErrUnknownStep) {
			t.Fatalf("expected ErrUnknownStep, got %v", err)
		}

		if err := store.ReportStep(ctx, "no-such-job", "probe", queue.StepCompleted); !errors.Is(err, queue.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReportJobValidatesStatus(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)

		for _, status := range []queue.Status{queue.StatusPending, queue.StatusRunning, queue.StatusFailedPermanent} {
			err := store.ReportJob(ctx, job.ID, queue.JobResult{Status: status})
			if !errors.Is(err, queue.ErrInvalidResultStatus) {
				t.Fatalf("status %s: expected ErrInvalidResultStatus, got %v", status, err)
			}
		}
	})
}

func TestReportJobCompletionStampsRecord(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		if _, err := store.Claim(ctx, "vm1"); err != nil {
			t.Fatalf("Claim failed: %v", err)
		}

		result := queue.JobResult{Status: queue.StatusCompleted, OutputPath: "/media/a_final.mkv"}
		if err := store.ReportJob(ctx, job.ID, result); err != nil {
			t.Fatalf("ReportJob failed: %v", err)
		}

		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != queue.StatusCompleted {
			t.Fatalf("expected completed, got %s", got.Status)
		}
		if got.OutputPath != "/media/a_final.mkv" {
			t.Fatalf("unexpected output path %q", got.OutputPath)
		}
		if got.CompletedAt == nil {
			t.Fatal("expected completed_at to be set")
		}
	})
}

func TestKnownInputPaths(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		mustAdd(t, store, "/media/b.mkv", queue.JobTypeDolbyVision)

		paths, err := store.KnownInputPaths(ctx)
		if err != nil {
			t.Fatalf("KnownInputPaths failed: %v", err)
		}
		for _, want := range []string{"/media/a.mkv", "/media/b.mkv"} {
			if _, ok := paths[want]; !ok {
				t.Fatalf("expected %s in known paths", want)
			}
		}
	})
}

func TestRetryFailedRestoresBudget(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		job := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		failOnce(t, store, "vm1")
		failOnce(t, store, "vm1")

		count, err := store.RetryFailed(ctx)
		if err != nil {
			t.Fatalf("RetryFailed failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 retried job, got %d", count)
		}

		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != queue.StatusPending || got.Retries != 0 {
			t.Fatalf("expected pending/0, got %s/%d", got.Status, got.Retries)
		}
	})
}

func TestStatsRemoveClear(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		a := mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		mustAdd(t, store, "/media/b.mkv", queue.JobTypeDolbyVision)
		failOnce(t, store, "vm1")

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats[queue.StatusFailed] != 1 || stats[queue.StatusPending] != 1 {
			t.Fatalf("unexpected stats: %v", stats)
		}

		removed, err := store.Remove(ctx, a.ID)
		if err != nil || !removed {
			t.Fatalf("Remove failed: removed=%v err=%v", removed, err)
		}
		removed, err = store.Remove(ctx, a.ID)
		if err != nil || removed {
			t.Fatalf("second Remove should be a no-op: removed=%v err=%v", removed, err)
		}

		cleared, err := store.Clear(ctx)
		if err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if cleared != 1 {
			t.Fatalf("expected 1 cleared job, got %d", cleared)
		}
	})
}

// The end-to-end scenario from the design brief: two workers, one Dolby
// Vision job and one standard job, both driven to completion.
func TestTwoWorkerScenario(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeDolbyVision)
		mustAdd(t, store, "/media/b.mkv", queue.JobTypeStandard)

		var wg sync.WaitGroup
		claims := make([]*queue.Job, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				job, err := store.Claim(ctx, fmt.Sprintf("vm%d", i+1))
				if err != nil {
					t.Errorf("claim %d failed: %v", i, err)
					return
				}
				claims[i] = job
			}(i)
		}
		wg.Wait()

		if claims[0] == nil || claims[1] == nil {
			t.Fatalf("both workers should win a job: %v, %v", claims[0], claims[1])
		}
		if claims[0].ID == claims[1].ID {
			t.Fatalf("both workers claimed job %s", claims[0].ID)
		}

		for _, job := range claims {
			for _, step := range job.RemainingSteps() {
				if err := store.ReportStep(ctx, job.ID, step, queue.StepCompleted); err != nil {
					t.Fatalf("ReportStep(%s/%s) failed: %v", job.ID, step, err)
				}
			}
			output := job.InputPath[:len(job.InputPath)-len(".mkv")] + "_final.mkv"
			if err := store.ReportJob(ctx, job.ID, queue.JobResult{Status: queue.StatusCompleted, OutputPath: output}); err != nil {
				t.Fatalf("ReportJob failed: %v", err)
			}
		}

		done, err := store.List(ctx, queue.StatusCompleted)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(done) != 2 {
			t.Fatalf("expected 2 completed jobs, got %d", len(done))
		}
		for _, job := range done {
			if job.OutputPath == "" {
				t.Fatalf("job %s missing output path", job.ID)
			}
		}

		idle, err := store.Claim(ctx, "vm3")
		if err != nil {
			t.Fatalf("final Claim failed: %v", err)
		}
		if idle != nil {
			t.Fatalf("expected empty queue, claimed %s", idle.ID)
		}
	})
}

// A corrupt queue document is treated as empty and reinitialized rather
// than wedging every operation.
func TestFileStoreSelfHealsCorruptDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
	if err := os.WriteFile(cfg.Paths.QueuePath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt queue file: %v", err)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List over corrupt document failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("corrupt document should read as empty, got %d jobs", len(jobs))
	}

	// The store is usable again immediately.
	mustAdd(t, store, "/media/b.mkv", queue.JobTypeStandard)
	jobs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected reinitialized store with 1 job, got %d", len(jobs))
	}
}

// A read failure on the share must fail the operation and leave the
// document alone; only missing or undecodable content may reinitialize.
func TestFileStoreSurfacesReadErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
	original, err := os.ReadFile(cfg.Paths.QueuePath)
	if err != nil {
		t.Fatalf("read queue document: %v", err)
	}

	// A symlink loop stands in for a flaky mount: reads fail with an
	// I/O error, not ENOENT.
	if err := os.Remove(cfg.Paths.QueuePath); err != nil {
		t.Fatalf("remove queue document: %v", err)
	}
	if err := os.Symlink(cfg.Paths.QueuePath, cfg.Paths.QueuePath); err != nil {
		t.Fatalf("create symlink loop: %v", err)
	}

	if _, err := store.List(ctx); err == nil {
		t.Fatal("expected the read failure to surface")
	}

	// The failed operation must not have rewritten the document.
	info, err := os.Lstat(cfg.Paths.QueuePath)
	if err != nil {
		t.Fatalf("lstat queue path: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("queue path was rewritten during a failed read")
	}

	// Once the medium recovers, the queue content is intact.
	if err := os.Remove(cfg.Paths.QueuePath); err != nil {
		t.Fatalf("remove symlink loop: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.QueuePath, original, 0o644); err != nil {
		t.Fatalf("restore queue document: %v", err)
	}
	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List after recovery failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the original job to survive, got %d jobs", len(jobs))
	}
}

// Two independent store handles on the same document must serialize their
// mutations through the lock file, like two worker processes would.
func TestFileStoreCrossHandleExclusion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storeA := testsupport.MustOpenStore(t, cfg)
	storeB, err := queue.NewFileStore(cfg.Paths.QueuePath, cfg.Paths.LockPath)
	if err != nil {
		t.Fatalf("open second store handle: %v", err)
	}
	t.Cleanup(func() { _ = storeB.Close() })

	ctx := context.Background()
	mustAdd(t, storeA, "/media/a.mkv", queue.JobTypeStandard)

	var wg sync.WaitGroup
	results := make([]*queue.Job, 2)
	for i, s := range []*queue.Store{storeA, storeB} {
		wg.Add(1)
		go func(i int, s *queue.Store) {
			defer wg.Done()
			job, err := s.Claim(ctx, fmt.Sprintf("host%d", i))
			if err != nil {
				t.Errorf("claim via handle %d failed: %v", i, err)
				return
			}
			results[i] = job
		}(i, s)
	}
	wg.Wait()

	winners := 0
	for _, job := range results {
		if job != nil {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected one winner across handles, got %d", winners)
	}
}

func TestReclaimStaleRespectsCutoff(t *testing.T) {
	backends(t, func(t *testing.T, store *queue.Store, _ *config.Config) {
		ctx := context.Background()
		mustAdd(t, store, "/media/a.mkv", queue.JobTypeStandard)
		if _, err := store.Claim(ctx, "vm1"); err != nil {
			t.Fatalf("Claim failed: %v", err)
		}

		// A cutoff in the past leaves the fresh claim alone.
		count, err := store.ReclaimStale(ctx, time.Now().UTC().Add(-time.Hour))
		if err != nil {
			t.Fatalf("ReclaimStale failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("fresh claim reclaimed: %d", count)
		}

		count, err = store.ReclaimStale(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("ReclaimStale failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 reclaimed job, got %d", count)
		}
	})
}
