// Package logging wires log/slog for the export pipeline.
//
// It provides attribute helpers so call sites stay terse, a console handler
// tuned for interactive use (colorized when the writer is a terminal), a JSON
// handler for machine consumption, and a frame sampler that keeps per-frame
// encode progress from flooding the log.
package logging
