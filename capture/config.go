package capture

import (
	"fmt"
	"time"
)

// Bounds for the configurable segment duration.
const (
	MinSegmentDuration = 60 * time.Second
	MaxSegmentDuration = 900 * time.Second

	DefaultSegmentDuration = 60 * time.Second
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultBitsPerSample   = 16
)

// Config holds capture configuration. The segment duration is fixed for
// the lifetime of a recording session once it starts.
type Config struct {
	// SegmentDuration is the target duration of each segment.
	SegmentDuration time.Duration `mapstructure:"segment_duration" json:"segment_duration"`

	// SampleRate is the PCM sample rate in Hz.
	SampleRate int `mapstructure:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	Channels int `mapstructure:"channels" json:"channels"`

	// BitsPerSample is the PCM bit depth.
	BitsPerSample int `mapstructure:"bits_per_sample" json:"bits_per_sample"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.SegmentDuration == 0 {
		c.SegmentDuration = DefaultSegmentDuration
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.BitsPerSample == 0 {
		c.BitsPerSample = DefaultBitsPerSample
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SegmentDuration < MinSegmentDuration || c.SegmentDuration > MaxSegmentDuration {
		return fmt.Errorf("capture: segment_duration must be between %s and %s, got %s",
			MinSegmentDuration, MaxSegmentDuration, c.SegmentDuration)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("capture: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("capture: channels must be positive, got %d", c.Channels)
	}
	if c.BitsPerSample != 8 && c.BitsPerSample != 16 && c.BitsPerSample != 24 && c.BitsPerSample != 32 {
		return fmt.Errorf("capture: bits_per_sample must be 8, 16, 24 or 32, got %d", c.BitsPerSample)
	}
	return nil
}
