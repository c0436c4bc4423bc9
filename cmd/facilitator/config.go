package main

import (
	"fmt"
	"time"

	"github.com/skillsenselab/workshopkit/capture"
	"github.com/skillsenselab/workshopkit/config"
	"github.com/skillsenselab/workshopkit/llm/ollama"
	"github.com/skillsenselab/workshopkit/server"
	"github.com/skillsenselab/workshopkit/session"
	"github.com/skillsenselab/workshopkit/storage"
	"github.com/skillsenselab/workshopkit/transcription/whisper"
)

// ProviderConfig selects a pluggable backend by name and carries its
// backend-specific settings.
type ProviderConfig struct {
	Provider string         `yaml:"provider" mapstructure:"provider"`
	Settings map[string]any `yaml:"settings" mapstructure:"settings"`
}

// AudioConfig selects where segment audio comes from. A real microphone
// driver plugs in through the capture.Source seam; the built-in sources
// replay a PCM file or synthesize silence for rehearsals.
type AudioConfig struct {
	Source string `yaml:"source" mapstructure:"source"` // "file" or "synthetic"
	Path   string `yaml:"path" mapstructure:"path"`     // PCM file for the file source

	// TotalDurationSeconds bounds the synthetic source; zero means
	// unbounded (until recording stops).
	TotalDurationSeconds int `yaml:"total_duration_seconds" mapstructure:"total_duration_seconds"`
}

// SnapshotsConfig selects the checklist snapshot store backend.
type SnapshotsConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "memory" or "sqlite"
	Path    string `yaml:"path" mapstructure:"path"`       // sqlite database file
}

// ObservabilityConfig controls the OTLP exporters.
type ObservabilityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// Config is the facilitator service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config         `yaml:"server" mapstructure:"server"`
	Storage       storage.Config        `yaml:"storage" mapstructure:"storage"`
	Capture       capture.Config        `yaml:"capture" mapstructure:"capture"`
	Audio         AudioConfig           `yaml:"audio" mapstructure:"audio"`
	Transcription ProviderConfig        `yaml:"transcription" mapstructure:"transcription"`
	LLM           ProviderConfig        `yaml:"llm" mapstructure:"llm"`
	Snapshots     SnapshotsConfig       `yaml:"snapshots" mapstructure:"snapshots"`
	Timeouts      session.StageTimeouts `yaml:"timeouts" mapstructure:"timeouts"`
	Observability ObservabilityConfig   `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "facilitator"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Capture.ApplyDefaults()
	c.Timeouts.ApplyDefaults()

	if c.Audio.Source == "" {
		c.Audio.Source = "synthetic"
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = whisper.ProviderName
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ollama.ProviderName
	}
	if c.Snapshots.Backend == "" {
		c.Snapshots.Backend = "memory"
	}
	if c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	switch c.Audio.Source {
	case "synthetic":
	case "file":
		if c.Audio.Path == "" {
			return fmt.Errorf("audio.path is required for the file source")
		}
	default:
		return fmt.Errorf("audio.source must be \"file\" or \"synthetic\" (got: %s)", c.Audio.Source)
	}
	switch c.Snapshots.Backend {
	case "memory":
	case "sqlite":
		if c.Snapshots.Path == "" {
			return fmt.Errorf("snapshots.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("snapshots.backend must be \"memory\" or \"sqlite\" (got: %s)", c.Snapshots.Backend)
	}
	return nil
}

// newSource builds the capture source factory the session manager hands
// to each recording.
func (c *Config) newSource() func() capture.Source {
	switch c.Audio.Source {
	case "file":
		return func() capture.Source {
			return &capture.FileSource{
				Path:          c.Audio.Path,
				FrameDuration: time.Second,
				SampleRate:    c.Capture.SampleRate,
				Channels:      c.Capture.Channels,
				BitsPerSample: c.Capture.BitsPerSample,
			}
		}
	default:
		return func() capture.Source {
			return &capture.SyntheticSource{
				TotalDuration: time.Duration(c.Audio.TotalDurationSeconds) * time.Second,
				FrameDuration: time.Second,
				SampleRate:    c.Capture.SampleRate,
				Channels:      c.Capture.Channels,
				BitsPerSample: c.Capture.BitsPerSample,
			}
		}
	}
}
