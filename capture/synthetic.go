package capture

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SyntheticSource produces silence frames of a fixed total duration. It
// stands in for a real capture device in tests and demo deployments and
// makes segmentation fully deterministic: frames carry their duration, so
// no wall-clock timing is involved.
type SyntheticSource struct {
	// TotalDuration is how much audio to produce before the stream ends.
	// Zero means unbounded (until Close).
	TotalDuration time.Duration
	// FrameDuration is the duration of each emitted frame.
	FrameDuration time.Duration
	// SampleRate, Channels and BitsPerSample size the PCM payload.
	SampleRate    int
	Channels      int
	BitsPerSample int
	// Unavailable simulates a missing or permission-denied device.
	Unavailable bool

	mu     sync.Mutex
	frames chan Frame
	closed chan struct{}
	once   sync.Once
}

// Open acquires the synthetic device and starts frame production.
func (s *SyntheticSource) Open(_ context.Context) error {
	if s.Unavailable {
		return fmt.Errorf("no capture device available")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames != nil {
		return fmt.Errorf("capture device already open")
	}

	if s.FrameDuration == 0 {
		s.FrameDuration = time.Second
	}
	if s.SampleRate == 0 {
		s.SampleRate = DefaultSampleRate
	}
	if s.Channels == 0 {
		s.Channels = DefaultChannels
	}
	if s.BitsPerSample == 0 {
		s.BitsPerSample = DefaultBitsPerSample
	}

	s.frames = make(chan Frame)
	s.closed = make(chan struct{})
	go s.produce()
	return nil
}

// Frames returns the frame stream. Valid only after Open.
func (s *SyntheticSource) Frames() <-chan Frame { return s.frames }

// Close stops frame production. Idempotent.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == nil {
		return nil
	}
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *SyntheticSource) produce() {
	defer close(s.frames)

	bytesPerSecond := s.SampleRate * s.Channels * s.BitsPerSample / 8
	frameBytes := int(int64(bytesPerSecond) * int64(s.FrameDuration) / int64(time.Second))

	var produced time.Duration
	for s.TotalDuration == 0 || produced < s.TotalDuration {
		d := s.FrameDuration
		if s.TotalDuration > 0 && s.TotalDuration-produced < d {
			d = s.TotalDuration - produced
			frameBytes = int(int64(bytesPerSecond) * int64(d) / int64(time.Second))
		}

		select {
		case s.frames <- Frame{Data: make([]byte, frameBytes), Duration: d}:
			produced += d
		case <-s.closed:
			return
		}
	}
}

// compile-time check
var _ Source = (*SyntheticSource)(nil)
