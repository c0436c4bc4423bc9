// Package transcription defines the provider interface and common types
// for converting captured audio segments to text.
//
// It follows the provider pattern with a pluggable registry for
// runtime-selectable backends.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar
//   - transcription/openai: OpenAI Whisper API
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
//	p, err := reg.Create("whisper", settings)
//	result, err := p.Transcribe(ctx, req)
package transcription
