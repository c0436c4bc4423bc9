package capture

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/logger"
)

// Segment is one materialized bounded slice of captured audio. Audio is
// WAV-encoded and ready for storage.
type Segment struct {
	// Index is the 0-based ordering key, assigned in capture order.
	Index int
	// Audio is the WAV-encoded segment content.
	Audio []byte
	// Duration is the captured duration of this segment.
	Duration time.Duration
}

// Segmenter cuts the frames of a Source into fixed-duration segments.
// Indices are strictly increasing and contiguous from 0; no frames are
// dropped between windows. The final, possibly short, partial segment is
// flushed when the source closes or Stop is called.
type Segmenter struct {
	src Source
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	running bool
	out     chan Segment
	done    chan struct{}
	stop    sync.Once
}

// NewSegmenter creates a segmenter over the given source. cfg must have
// been validated; the segment duration is fixed once Start is called.
func NewSegmenter(src Source, cfg Config, log *logger.Logger) *Segmenter {
	cfg.ApplyDefaults()
	return &Segmenter{
		src: src,
		cfg: cfg,
		log: log.WithComponent("segmenter"),
	}
}

// Start acquires the capture source and begins producing segments on the
// returned channel. Fails with a DeviceUnavailable AppError when the
// source cannot be opened. The channel closes after the final partial
// segment is flushed.
func (s *Segmenter) Start(ctx context.Context) (<-chan Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, errors.InvalidState("start recording", "recording")
	}

	if err := s.src.Open(ctx); err != nil {
		return nil, errors.DeviceUnavailable(err)
	}

	s.running = true
	s.out = make(chan Segment, 16)
	s.done = make(chan struct{})
	s.stop = sync.Once{}

	s.log.Info("recording started", logger.Fields("segment_duration", s.cfg.SegmentDuration.String()))
	go s.run()
	return s.out, nil
}

// Stop closes the capture source. The in-flight buffer is flushed as the
// final segment and the segment channel closes; Stop returns once that
// flush is complete. Stop is idempotent and safe to call concurrently.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stop.Do(func() {
		if err := s.src.Close(); err != nil {
			s.log.Warn("closing capture source", logger.Fields(logger.FieldError, err.Error()))
		}
	})
	<-s.done
}

// run is the segmentation loop. It is not a suspension point: frames keep
// buffering regardless of how many downstream workers are blocked on
// network I/O.
func (s *Segmenter) run() {
	defer func() {
		close(s.out)
		close(s.done)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var (
		buf      []byte
		buffered time.Duration
		index    int
	)

	flush := func() {
		seg := Segment{
			Index:    index,
			Audio:    EncodeWAV(buf, s.cfg.SampleRate, s.cfg.Channels, s.cfg.BitsPerSample),
			Duration: buffered,
		}
		s.out <- seg
		s.log.Debug("segment materialized", logger.Fields(
			logger.FieldSegment, seg.Index,
			"duration", seg.Duration.String(),
		))
		index++
		buf = nil
		buffered = 0
	}

	for frame := range s.src.Frames() {
		remaining := frame
		for remaining.Duration > 0 || len(remaining.Data) > 0 {
			space := s.cfg.SegmentDuration - buffered
			if remaining.Duration <= space {
				buf = append(buf, remaining.Data...)
				buffered += remaining.Duration
				remaining = Frame{}
			} else {
				// Split the frame at the window boundary so no audio is
				// dropped and the next window starts exactly on time.
				cut := int(int64(len(remaining.Data)) * int64(space) / int64(remaining.Duration))
				buf = append(buf, remaining.Data[:cut]...)
				buffered += space
				remaining = Frame{
					Data:     remaining.Data[cut:],
					Duration: remaining.Duration - space,
				}
			}
			if buffered >= s.cfg.SegmentDuration {
				flush()
			}
		}
	}

	// Source closed: flush the final partial segment, if any audio was
	// captured since the last boundary.
	if buffered > 0 || len(buf) > 0 {
		flush()
	}
	s.log.Info("recording stopped", logger.Fields("segments", index))
}
