package checklist

import "context"

// Store is the versioned, append-only record of snapshots per answer.
//
// Append is the atomicity and serialization point for concurrent merges:
// it accepts the version the caller based its merge on and fails with a
// MergeConflict AppError when another publish got there first. A snapshot
// is either fully written or not written at all.
type Store interface {
	// Append writes a new snapshot for the answer. expectedVersion is the
	// version of the snapshot the merge was based on (0 when no snapshot
	// existed). Returns the assigned version, which is always
	// expectedVersion + 1 on success.
	Append(ctx context.Context, answerID string, snap Snapshot, expectedVersion int) (int, error)

	// Latest returns the highest-version snapshot for the answer, or nil
	// when none exists.
	Latest(ctx context.Context, answerID string) (*Snapshot, error)

	// History returns all snapshots for the answer in version order.
	History(ctx context.Context, answerID string) ([]Snapshot, error)
}
