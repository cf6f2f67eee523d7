// Package main hosts the shuttle CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the three operator surfaces: scan
// to enqueue new source files, work to run the transcoding loop, and
// queue to inspect or repair job records in the shared document. It
// centralizes configuration resolution and store access so subcommands
// can focus on presentation.
//
// Keep this package lean: new behavior belongs in the internal packages
// first, surfaced here through dedicated commands or flags.
package main
