package transcription

import "context"

// Request holds parameters for a recognition call.
type Request struct {
	// AudioPath is the path to the audio file to transcribe. Depending on the
	// backend transport it is either sent verbatim (server-local path) or the
	// file is read and uploaded.
	AudioPath string `json:"audio_path"`
	// Language is the expected language of the audio (e.g. "ja"). Empty lets
	// the backend detect it.
	Language string `json:"language,omitempty"`
	// InitialPrompt biases decoding toward a style or vocabulary.
	InitialPrompt string `json:"initial_prompt,omitempty"`
}

// Hooks receives intermediate state while a recognition call is in flight.
// Any hook may be nil. Hooks are invoked from the goroutine that called
// Transcribe, between stream reads.
type Hooks struct {
	// OnInfo is called once when the backend reports language and duration.
	OnInfo func(info Info)
	// OnProgress is called with a 0-100 percentage and an optional message.
	OnProgress func(percent float64, message string)
	// OnDelta is called for each completed partial result.
	OnDelta func(delta Delta)
}

// Recognizer is the interface streaming speech-to-text backends implement.
type Recognizer interface {
	// Name returns the backend name.
	Name() string
	// IsAvailable reports whether the backend is reachable.
	IsAvailable(ctx context.Context) bool
	// Transcribe sends audio for recognition, streaming intermediate state
	// through hooks, and returns the final result. It never retries; a
	// transport failure, non-2xx response, terminal error event, or a stream
	// that ends without a result all surface as an error.
	Transcribe(ctx context.Context, req Request, hooks Hooks) (*VerboseResult, error)
}
