// Package export orchestrates turning a session's frame sequence into one
// encoded video file.
//
// Finalize drives an explicit state machine:
//
//	Idle → Validating → Encoding → (Remuxing) → Done | Failed | Cancelled
//
// The compatibility (h264) mode encodes to a temporary file inside the
// workspace and then remuxes it into the destination with a fast-start
// layout; the production (prores) mode skips the remux and atomically moves
// the temporary output. Every terminal state runs workspace cleanup exactly
// once, structurally enforced by a single deferred transition in Finalize.
package export
