// Package transcription defines the recognizer interface and common types
// for interacting with streaming speech-to-text backends.
//
// A Recognizer turns one audio file into a VerboseResult. While the backend
// is working it reports intermediate state through caller-supplied Hooks:
// one Info near the start, any number of progress updates, and one Delta per
// completed chunk. The final result (or a terminal error) ends the call.
//
// # Backends
//
//   - transcription/whisper: faster-whisper streaming sidecar (SSE or NDJSON)
package transcription
