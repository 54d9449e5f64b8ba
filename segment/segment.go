// Package segment groups timed words into sentence-like display segments.
//
// Primary segmentation closes a segment at sentence-terminal punctuation or
// at a word-count cap; a secondary merge pass coalesces short segments up to
// a target duration so the interactive transcript view renders fewer, denser
// blocks.
package segment

import (
	"strings"

	"github.com/skillsenselab/memovox/transcription"
)

// terminalPunctuation is the sentence-ending character class, covering both
// ASCII and CJK forms.
const terminalPunctuation = ".!?。！？"

// maxSegmentWords caps a single segment so pathological transcripts with no
// punctuation still segment.
const maxSegmentWords = 100

// DefaultMergeTarget is the merge pass target duration in seconds.
const DefaultMergeTarget = 60.0

// TimeBased scans words in order and emits a segment at every
// sentence-terminal word, at the word-count cap, and at end of input. Every
// input word appears in exactly one output segment; each segment's Start and
// End bound its own first and last word.
func TimeBased(words []transcription.WordTiming) []transcription.RevisedSegment {
	if len(words) == 0 {
		return nil
	}

	var segments []transcription.RevisedSegment
	var current []transcription.WordTiming

	for _, word := range words {
		current = append(current, word)
		if strings.ContainsAny(word.Word, terminalPunctuation) || len(current) >= maxSegmentWords {
			segments = append(segments, newSegment(current))
			current = nil
		}
	}
	if len(current) > 0 {
		segments = append(segments, newSegment(current))
	}

	return segments
}

func newSegment(words []transcription.WordTiming) transcription.RevisedSegment {
	return transcription.RevisedSegment{
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Words: words,
	}
}

// Merge greedily coalesces ordered segments: each next segment joins the
// growing output segment unless that output segment, extended through the
// candidate's end, already spans the target duration, in which case the candidate
// starts a new one. Output segments generally span at least
// targetDurationSeconds, except possibly the last.
func Merge(segments []transcription.RevisedSegment, targetDurationSeconds float64) []transcription.RevisedSegment {
	if len(segments) == 0 {
		return nil
	}

	merged := []transcription.RevisedSegment{cloneSegment(segments[0])}
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if seg.End-last.Start >= targetDurationSeconds {
			merged = append(merged, cloneSegment(seg))
			continue
		}
		last.End = seg.End
		last.Words = append(last.Words, seg.Words...)
	}
	return merged
}

func cloneSegment(seg transcription.RevisedSegment) transcription.RevisedSegment {
	out := seg
	out.Words = append([]transcription.WordTiming(nil), seg.Words...)
	return out
}
