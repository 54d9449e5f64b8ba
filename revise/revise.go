// Package revise turns a raw transcript into display-ready revised segments:
// an LLM call restores missing punctuation, the corrected text is re-timed
// against the original word timestamps, and the result is split into
// sentence segments.
package revise

import (
	"context"
	"strings"

	"github.com/skillsenselab/memovox/align"
	"github.com/skillsenselab/memovox/llm"
	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/segment"
	"github.com/skillsenselab/memovox/transcription"
)

// punctuationInstruction is the fixed system prompt for the correction call.
// The model must not rewrite speech, only punctuate it.
const punctuationInstruction = "Correct any missing punctuation marks in the following transcribed text. " +
	"Preserve any spoken errors and output any mispronunciations or incomplete sentences as they are. " +
	"Return only the corrected text, with no additional formatting or numbering. " +
	"Process all the text in one go, do not split it into multiple requests."

// Reviser runs the punctuation-correction enhancement.
type Reviser struct {
	provider llm.Provider
	log      *logger.Logger
}

// New creates a Reviser on the given completion provider.
func New(provider llm.Provider, log *logger.Logger) *Reviser {
	return &Reviser{
		provider: provider,
		log:      log.WithComponent("revise"),
	}
}

// Process revises the transcript and returns segments re-timed against the
// original words. Punctuation correction is best-effort: if the completion
// call fails the original text is aligned unchanged.
func (r *Reviser) Process(ctx context.Context, originalText string, originalWords []transcription.WordTiming) (*transcription.RevisedSegments, error) {
	punctuated := r.Punctuate(ctx, originalText)
	alignedWords := align.Words(originalWords, punctuated)
	segments := segment.TimeBased(alignedWords)
	return &transcription.RevisedSegments{Segments: segments}, nil
}

// Punctuate returns the punctuation-corrected transcript. It never fails
// past its own boundary: any provider error or empty response falls back to
// the original text.
func (r *Reviser) Punctuate(ctx context.Context, originalText string) string {
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: punctuationInstruction},
			{Role: "user", Content: originalText},
		},
		Temperature: 0.1,
	})
	if err != nil {
		r.log.Error("punctuation correction failed, using original text", logger.ErrorFields("punctuate", err))
		return originalText
	}

	corrected := strings.TrimSpace(strings.ReplaceAll(resp.Content, "\n", ""))
	if corrected == "" {
		return originalText
	}
	return corrected
}
