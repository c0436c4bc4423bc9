package extraction

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/llm"
	"github.com/skillsenselab/workshopkit/logger"
)

type fakeLLM struct {
	content string
	err     error
	lastReq llm.CompletionRequest
}

func (f *fakeLLM) Name() string                       { return "fake" }
func (f *fakeLLM) IsAvailable(_ context.Context) bool { return true }
func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}
func (f *fakeLLM) CompleteStructured(ctx context.Context, req llm.CompletionRequest, _ any) (*llm.CompletionResponse, error) {
	return f.Complete(ctx, req)
}

func testDefinition() *checklist.Definition {
	return &checklist.Definition{
		QuestionID: "q-1",
		Version:    1,
		Entries: []checklist.Entry{
			{ID: "budget", Description: "project budget", Importance: checklist.ImportanceCritical},
			{ID: "timeline", Description: "delivery timeline", Importance: checklist.ImportanceImportant},
		},
	}
}

func TestExtract(t *testing.T) {
	p := &fakeLLM{content: `{
		"satisfied": [{"entry_id": "budget", "confidence": 0.85}],
		"findings": [{"topic": "staffing", "detail": "two engineers joining in May"}]
	}`}
	e := NewLLMExtractor(p, logger.NewDefault("test"))

	res, err := e.Extract(context.Background(), "the budget is 40k", testDefinition())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Satisfied) != 1 || res.Satisfied[0].EntryID != "budget" {
		t.Errorf("unexpected satisfied set %+v", res.Satisfied)
	}
	if res.Satisfied[0].Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", res.Satisfied[0].Confidence)
	}
	if len(res.Findings) != 1 || res.Findings[0].Topic != "staffing" {
		t.Errorf("unexpected findings %+v", res.Findings)
	}

	// The prompt must carry both the definition and the transcript.
	if !strings.Contains(p.lastReq.Messages[0].Content, "budget") ||
		!strings.Contains(p.lastReq.Messages[0].Content, "the budget is 40k") {
		t.Errorf("prompt missing definition or transcript: %q", p.lastReq.Messages[0].Content)
	}
}

func TestExtract_DropsUnknownEntries(t *testing.T) {
	p := &fakeLLM{content: `{
		"satisfied": [
			{"entry_id": "budget", "confidence": 2.5},
			{"entry_id": "invented", "confidence": 0.9}
		]
	}`}
	e := NewLLMExtractor(p, logger.NewDefault("test"))

	res, err := e.Extract(context.Background(), "some text", testDefinition())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Satisfied) != 1 {
		t.Fatalf("expected 1 satisfied entry, got %+v", res.Satisfied)
	}
	if res.Satisfied[0].Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", res.Satisfied[0].Confidence)
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	p := &fakeLLM{content: `should never be called`}
	e := NewLLMExtractor(p, logger.NewDefault("test"))

	res, err := e.Extract(context.Background(), "   ", testDefinition())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Satisfied) != 0 || len(res.Findings) != 0 {
		t.Errorf("expected empty result for empty transcript, got %+v", res)
	}
	if p.lastReq.Messages != nil {
		t.Error("LLM must not be called for an empty transcript")
	}
}

func TestExtract_ProviderFailure(t *testing.T) {
	p := &fakeLLM{err: fmt.Errorf("connection refused")}
	e := NewLLMExtractor(p, logger.NewDefault("test"))

	_, err := e.Extract(context.Background(), "some text", testDefinition())
	if !errors.HasCode(err, errors.ErrCodeExtractionFailed) {
		t.Errorf("expected EXTRACTION_FAILED, got %v", err)
	}
}
