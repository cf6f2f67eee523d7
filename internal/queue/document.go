package queue

import "context"

// document is the full persisted job collection. Backends hand a consistent
// snapshot of it to mutators and persist whatever the mutation leaves
// behind; job order in the slice is the stable first-seen order used for
// claim tie-breaking.
type document struct {
	Jobs []*Job `json:"jobs"`
}

func (d *document) find(id string) *Job {
	for _, job := range d.Jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (d *document) findByInput(path string) *Job {
	for _, job := range d.Jobs {
		if job.InputPath == path {
			return job
		}
	}
	return nil
}

// backend serializes access to the persisted document. Update must hold
// exclusive access across the full read-modify-write cycle, persist only
// when fn returns nil, and treat a missing or corrupt document as empty.
type backend interface {
	Update(ctx context.Context, fn func(doc *document) error) error
	Close() error
}
