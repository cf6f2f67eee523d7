package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusFailedPermanent Status = "failed_permanent"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusFailedPermanent,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job in this status has left normal rotation.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailedPermanent
}

// StepStatus tracks progress of a single pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ParseStepStatus converts a string into a known StepStatus.
func ParseStepStatus(value string) (StepStatus, bool) {
	switch StepStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StepPending:
		return StepPending, true
	case StepCompleted:
		return StepCompleted, true
	case StepFailed:
		return StepFailed, true
	default:
		return "", false
	}
}

// JobType selects the pipeline variant and therefore the step sequence.
type JobType string

const (
	JobTypeDolbyVision JobType = "dolby_vision"
	JobTypeStandard    JobType = "standard"
)

// stepSequences is the fixed, ordered step vocabulary per job type. The
// worker's executor and this table must agree; a reported step name that is
// not in the job's recorded sequence is rejected.
var stepSequences = map[JobType][]string{
	JobTypeDolbyVision: {
		"probe",
		"extract_hevc",
		"convert_p81",
		"extract_rpu",
		"encode_video",
		"inject_rpu",
		"extract_chapters",
		"remux",
		"verify",
	},
	JobTypeStandard: {
		"probe",
		"encode_video",
		"remux",
		"verify",
	},
}

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stepSequences[normalized]
	return normalized, ok
}

// StepsFor returns the ordered step names for a job type.
func StepsFor(jobType JobType) ([]string, bool) {
	steps, ok := stepSequences[jobType]
	if !ok {
		return nil, false
	}
	cp := make([]string, len(steps))
	copy(cp, steps)
	return cp, true
}

// Step records the progress of one named pipeline stage. Order within
// Job.Steps is significant and fixed at enqueue time.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// Job represents one unit of schedulable work tracked through the pipeline.
type Job struct {
	ID           string     `json:"id"`
	InputPath    string     `json:"input_path"`
	JobType      JobType    `json:"job_type"`
	Status       Status     `json:"status"`
	WorkerID     string     `json:"worker_id,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Retries      int        `json:"retries"`
	Steps        []Step     `json:"steps"`
}

// Step returns a pointer into the job's step slice for the named step.
func (j *Job) Step(name string) (*Step, bool) {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i], true
		}
	}
	return nil, false
}

// RemainingSteps returns the names of every step that has not completed,
// in pipeline order. A reclaimed job resumes from the first of these.
func (j *Job) RemainingSteps() []string {
	var remaining []string
	for _, step := range j.Steps {
		if step.Status != StepCompleted {
			remaining = append(remaining, step.Name)
		}
	}
	return remaining
}

// CompletedSteps counts steps that have finished successfully.
func (j *Job) CompletedSteps() int {
	count := 0
	for _, step := range j.Steps {
		if step.Status == StepCompleted {
			count++
		}
	}
	return count
}

// Clone returns a deep copy so callers can hold a job outside the store's
// critical section without aliasing persisted state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Steps = make([]Step, len(j.Steps))
	copy(cp.Steps, j.Steps)
	if j.ClaimedAt != nil {
		t := *j.ClaimedAt
		cp.ClaimedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func newSteps(jobType JobType) []Step {
	names := stepSequences[jobType]
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name, Status: StepPending}
	}
	return steps
}
