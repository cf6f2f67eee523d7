// Package worker drives claimed jobs through their pipeline steps.
//
// Each worker process runs one blocking poll loop: reclaim orphaned
// running jobs when a staleness window is configured, claim the next
// eligible job, resume it from its first incomplete step, and report step
// and job outcomes back to the queue. All coordination with other workers
// happens through the shared store; the loop itself holds no cross-process
// state.
package worker
