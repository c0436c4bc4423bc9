package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Storage defines the interface for object storage operations.
type Storage interface {
	// Upload writes data from reader to the given path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at the given path.
	// Returns nil if the object does not exist.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an object exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// URL returns a retrieval location for the object at the given path.
	URL(ctx context.Context, path string) (string, error)

	// List returns metadata for all objects whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// SegmentKey returns the canonical object key for a segment's raw audio.
// Keys group by session so List with a session prefix returns all of a
// recording's segments in index order.
func SegmentKey(sessionID string, segmentIndex int) string {
	return fmt.Sprintf("sessions/%s/segments/%04d.wav", sessionID, segmentIndex)
}

// SessionPrefix returns the object key prefix covering a session's segments.
func SessionPrefix(sessionID string) string {
	return fmt.Sprintf("sessions/%s/segments/", sessionID)
}
