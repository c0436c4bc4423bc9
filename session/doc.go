// Package session orchestrates the capture pipeline for one question:
// the controller state machine the facilitator drives, the per-segment
// pipeline workers, and the answer record that accumulates the
// transcript.
//
// The controller owns the segmenter and serializes answer creation;
// workers run concurrently, one per segment, and may complete out of
// order. Stage failures are isolated to their segment and surfaced for
// manual retry.
package session
