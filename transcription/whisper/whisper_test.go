package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skillsenselab/workshopkit/transcription"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "base" {
			t.Errorf("expected model 'base', got %q", r.FormValue("model"))
		}
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		f.Close()
		if hdr.Filename != "0002.wav" {
			t.Errorf("expected filename '0002.wav', got %q", hdr.Filename)
		}

		json.NewEncoder(w).Encode(whisperResponse{
			Text:     "we agreed on the rollout plan",
			Language: "en",
			Segments: []whisperSegment{
				{Text: "we agreed", Start: 0, End: 1.2},
				{Text: "on the rollout plan", Start: 1.2, End: 3.4},
			},
		})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		Audio:    []byte("fake-wav"),
		Filename: "0002.wav",
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if resp.Text != "we agreed on the rollout plan" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if len(resp.Spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(resp.Spans))
	}
	if resp.Duration != 3.4 {
		t.Errorf("expected duration 3.4, got %v", resp.Duration)
	}
}

func TestTranscribe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(context.Background(), transcription.Request{Audio: []byte("x")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	if !p.IsAvailable(context.Background()) {
		t.Error("expected provider to be available")
	}

	srv.Close()
	if p.IsAvailable(context.Background()) {
		t.Error("expected provider to be unavailable after server close")
	}
}
