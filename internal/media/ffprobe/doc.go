// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties, including
//     side data used to recognize Dolby Vision configuration records
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
