// Package queue persists transcode jobs in a shared store and implements
// the claim protocol that lets independent worker processes pull work
// safely.
//
// Every operation runs inside a single exclusive critical section over the
// whole persisted job collection, so concurrent workers on different hosts
// never observe torn state and two claims can never select the same job.
// The Store is backend-agnostic: the default backend is a flock-guarded
// JSON document on the network share, and a SQLite backend is available
// where advisory file locks are not trustworthy across hosts.
//
// Claim semantics: failed jobs whose retry count has reached the configured
// ceiling are demoted to failed_permanent on every claim attempt, the
// oldest pending or failed job wins the claim, and step-level progress is
// preserved across re-claims so a resumed job continues from its first
// incomplete step.
//
// Treat this package as the single source of truth for queue semantics;
// when adding statuses or step vocabularies, update models.go and keep the
// backends' serialization in sync.
package queue
