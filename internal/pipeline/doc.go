// Package pipeline executes the per-step transcoding commands for a job.
//
// Each step of a job's recorded sequence maps to a fixed command plan
// (ffmpeg, dovi_tool, mkvmerge) operating inside a per-job workspace on
// local scratch storage, with small intermediates kept on a RAM-backed
// directory when one is available. The Dolby Vision pipeline converts a
// profile 7 source to profile 8.1, re-encodes the base layer, re-injects
// the RPU, and remuxes the result next to the input file.
//
// Command execution goes through the Runner seam so tests can stub the
// external binaries. The queue never calls into this package; the worker
// loop drives it step by step and reports outcomes back to the store.
package pipeline
