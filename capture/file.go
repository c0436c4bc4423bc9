package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileSource replays a raw PCM file as a capture stream. Useful for
// re-processing recorded sessions and for integration tests against real
// audio content.
type FileSource struct {
	// Path is the raw PCM file to replay.
	Path string
	// FrameDuration is the duration of each emitted frame.
	FrameDuration time.Duration
	// SampleRate, Channels and BitsPerSample describe the PCM data.
	SampleRate    int
	Channels      int
	BitsPerSample int

	mu     sync.Mutex
	frames chan Frame
	closed chan struct{}
	once   sync.Once
}

// Open reads the file and starts frame production.
func (f *FileSource) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames != nil {
		return fmt.Errorf("capture device already open")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}

	if f.FrameDuration == 0 {
		f.FrameDuration = time.Second
	}
	if f.SampleRate == 0 {
		f.SampleRate = DefaultSampleRate
	}
	if f.Channels == 0 {
		f.Channels = DefaultChannels
	}
	if f.BitsPerSample == 0 {
		f.BitsPerSample = DefaultBitsPerSample
	}

	f.frames = make(chan Frame)
	f.closed = make(chan struct{})
	go f.produce(data)
	return nil
}

// Frames returns the frame stream. Valid only after Open.
func (f *FileSource) Frames() <-chan Frame { return f.frames }

// Close stops frame production. Idempotent.
func (f *FileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed == nil {
		return nil
	}
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *FileSource) produce(data []byte) {
	defer close(f.frames)

	bytesPerSecond := f.SampleRate * f.Channels * f.BitsPerSample / 8
	frameBytes := int(int64(bytesPerSecond) * int64(f.FrameDuration) / int64(time.Second))
	if frameBytes <= 0 {
		return
	}

	for off := 0; off < len(data); off += frameBytes {
		end := off + frameBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		d := time.Duration(int64(len(chunk)) * int64(time.Second) / int64(bytesPerSecond))

		select {
		case f.frames <- Frame{Data: chunk, Duration: d}:
		case <-f.closed:
			return
		}
	}
}

// compile-time check
var _ Source = (*FileSource)(nil)
