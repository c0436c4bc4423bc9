package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/llm"
	"github.com/skillsenselab/workshopkit/logger"
)

// Extractor reports which checklist entries the cumulative transcript
// satisfies. Implementations may fail or time out; callers treat a
// failure as non-fatal to the transcript.
type Extractor interface {
	Extract(ctx context.Context, cumulativeText string, def *checklist.Definition) (checklist.ExtractionResult, error)
}

const systemPrompt = `You review the transcript of a spoken answer to a workshop question.
You are given a checklist of information items the question seeks to collect.
Decide which checklist entries the transcript satisfies, with a confidence
between 0 and 1, and report any noteworthy information the transcript
contains that no checklist entry asked for.

Only mark an entry satisfied when the transcript actually contains the
information it describes. Respond as JSON:
{
  "satisfied": [{"entry_id": "...", "confidence": 0.0}],
  "findings": [{"topic": "...", "detail": "..."}]
}`

// LLMExtractor implements Extractor on top of an llm.Provider.
type LLMExtractor struct {
	provider llm.Provider
	log      *logger.Logger
}

// NewLLMExtractor creates an extractor backed by the given LLM provider.
func NewLLMExtractor(p llm.Provider, log *logger.Logger) *LLMExtractor {
	return &LLMExtractor{
		provider: p,
		log:      log.WithComponent("extractor"),
	}
}

// Extract prompts the LLM with the definition and the full transcript so
// far. Entry ids the model invents are dropped; the aggregator only ever
// sees ids present in the definition.
func (e *LLMExtractor) Extract(ctx context.Context, cumulativeText string, def *checklist.Definition) (checklist.ExtractionResult, error) {
	var out checklist.ExtractionResult
	if strings.TrimSpace(cumulativeText) == "" {
		return out, nil
	}

	user := buildUserPrompt(cumulativeText, def)
	if err := llm.CompleteStructured(ctx, e.provider, systemPrompt, user, &out); err != nil {
		return checklist.ExtractionResult{}, errors.ExtractionFailed(err)
	}

	out.Satisfied = filterKnownEntries(out.Satisfied, def)
	e.log.Debug("extraction completed", logger.Fields(
		"satisfied", len(out.Satisfied),
		"findings", len(out.Findings),
	))
	return out, nil
}

func buildUserPrompt(cumulativeText string, def *checklist.Definition) string {
	var b strings.Builder
	b.WriteString("Checklist entries:\n")
	for _, entry := range def.Entries {
		fmt.Fprintf(&b, "- id: %s | importance: %s | %s\n", entry.ID, entry.Importance, entry.Description)
	}
	b.WriteString("\nTranscript so far:\n")
	b.WriteString(cumulativeText)
	return b.String()
}

func filterKnownEntries(satisfied []checklist.SatisfiedEntry, def *checklist.Definition) []checklist.SatisfiedEntry {
	out := satisfied[:0]
	for _, s := range satisfied {
		if def.Entry(s.EntryID) == nil {
			continue
		}
		if s.Confidence < 0 {
			s.Confidence = 0
		}
		if s.Confidence > 1 {
			s.Confidence = 1
		}
		out = append(out, s)
	}
	return out
}

// compile-time check
var _ Extractor = (*LLMExtractor)(nil)
