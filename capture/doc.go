// Package capture turns a continuous audio source into a sequence of
// bounded segments without gaps or overlaps, keeping the source open
// across segment boundaries.
//
// The Segmenter owns the Source for the lifetime of a recording. Segment
// boundaries are driven by the accumulated duration of the frames read,
// not by wall-clock timers, so segmentation is deterministic and testable
// with synthetic sources. Materialized segments are emitted on a channel
// the instant they close; emission never blocks on network I/O.
package capture
