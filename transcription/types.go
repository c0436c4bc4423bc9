package transcription

// Request holds parameters for a transcription call. Audio carries the
// raw encoded bytes of a single captured segment.
type Request struct {
	// Audio is the encoded audio content (WAV).
	Audio []byte `json:"-"`
	// Filename is a hint for the backend (e.g. "0001.wav").
	Filename string `json:"filename,omitempty"`
	// Language is the expected language of the audio (e.g. "en").
	Language string `json:"language,omitempty"`
	// Model is the transcription model to use.
	Model string `json:"model,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Spans contains time-aligned transcript spans.
	Spans []Span `json:"spans,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Span represents a time-aligned portion of a transcript.
type Span struct {
	// Start is the span start time in seconds.
	Start float64 `json:"start"`
	// End is the span end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this span.
	Text string `json:"text"`
}
