// Package scanner discovers source files on the media share and enqueues
// them. It dedups against paths the queue already tracks, ignores
// generated outputs by filename marker, and classifies each candidate into
// the Dolby Vision or standard pipeline.
package scanner
