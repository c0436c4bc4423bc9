package provider

import "context"

// Provider is what every pluggable backend exposes regardless of kind.
type Provider interface {
	// Name identifies the backend, matching the name it registers under.
	Name() string
	// IsAvailable reports whether the backend can currently serve
	// requests, for health reporting.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a backend from the settings block of the service
// configuration that selected it.
type Factory[T Provider] func(settings map[string]any) (T, error)
