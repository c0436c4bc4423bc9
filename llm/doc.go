// Package llm defines the provider interface and common types for
// chat-completion backends used by checklist extraction.
//
// It follows the provider pattern with a pluggable registry for
// runtime-selectable backends.
//
// # Backends
//
//   - llm/ollama: local Ollama server
//   - llm/openai: OpenAI chat completions API
//
// # Usage
//
//	reg := llm.NewRegistry()
//	reg.RegisterFactory(ollama.ProviderName, ollama.Factory())
//	p, err := reg.Create("ollama", settings)
//	text, err := llm.Complete(ctx, p, systemPrompt, userPrompt)
//
// For structured output, CompleteStructured appends JSON formatting
// instructions and unmarshals the response:
//
//	var out ExtractionResult
//	err := llm.CompleteStructured(ctx, p, system, user, &out)
package llm
