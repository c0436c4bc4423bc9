package provider

import (
	"context"
	"strings"
	"testing"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string                       { return f.name }
func (f *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry[*fakeProvider]()
	r.RegisterFactory("fake", func(settings map[string]any) (*fakeProvider, error) {
		name, _ := settings["name"].(string)
		return &fakeProvider{name: name}, nil
	})

	p, err := r.Create("fake", map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("name = %q, want a", p.Name())
	}
}

func TestRegistry_CreateUnknownNamesRegistered(t *testing.T) {
	r := NewRegistry[*fakeProvider]()
	factory := func(_ map[string]any) (*fakeProvider, error) { return &fakeProvider{}, nil }
	r.RegisterFactory("whisper", factory)
	r.RegisterFactory("openai", factory)

	_, err := r.Create("wisper", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown provider name")
	}
	// The message lists the registered names sorted, as a typo hint.
	if !strings.Contains(err.Error(), "openai, whisper") {
		t.Errorf("error should list registered providers, got: %v", err)
	}
}
