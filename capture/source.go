package capture

import (
	"context"
	"time"
)

// Frame is one chunk of raw PCM audio read from a source. Duration is
// carried with the data so segmentation is frame-driven rather than
// wall-clock driven.
type Frame struct {
	Data     []byte
	Duration time.Duration
}

// Source is a continuous audio capture device or stand-in. A Source is
// exclusively owned by one Segmenter for the duration of a recording.
//
// Open acquires the device and must fail when no device exists or
// permission is denied. Frames returns the stream of captured frames;
// the channel closes when the source is closed or the underlying device
// stops. Close releases the device and is idempotent.
type Source interface {
	Open(ctx context.Context) error
	Frames() <-chan Frame
	Close() error
}
