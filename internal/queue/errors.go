package queue

import "errors"

var (
	// ErrUnknownJobType reports a job type with no registered step sequence.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrUnknownStep reports a step name that is not part of the job's
	// recorded step sequence. This signals a config mismatch between the
	// worker's executor and the queue; the update is rejected.
	ErrUnknownStep = errors.New("unknown step name")

	// ErrNotFound reports that no job matches the requested id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidResetIndex reports a reset step index outside
	// 1..len(steps). The queue is left untouched.
	ErrInvalidResetIndex = errors.New("reset step index out of range")

	// ErrInvalidResultStatus reports a job result status other than
	// completed or failed; those are the only worker-reportable outcomes.
	ErrInvalidResultStatus = errors.New("job result status must be completed or failed")
)
