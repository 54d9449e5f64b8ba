package segment

import (
	"encoding/json"

	"github.com/skillsenselab/memovox/transcription"
)

// Stored holds the four persisted recording fields the read side resolves
// display segments from. Nil means the field was never written.
type Stored struct {
	RevisedSegments *string
	WhisperData     *string
	Transcription   *string
	Duration        *float64
}

// Resolve builds the display-ready, merged segment list for a recording.
// mergeTarget is the merge pass target duration in seconds; zero selects
// DefaultMergeTarget.
//
// Resolution order: revised segments when present and parseable; else
// segments derived from the raw recognizer data, associating each word with
// the segment whose interval contains it; else a single synthetic segment
// spanning the whole recording with the plain transcript as its only word.
// A corrupt stored blob never propagates an error; it falls through to the
// next tier.
func Resolve(rec Stored, mergeTarget float64) []transcription.RevisedSegment {
	if mergeTarget <= 0 {
		mergeTarget = DefaultMergeTarget
	}

	if rec.RevisedSegments != nil {
		var revised transcription.RevisedSegments
		if err := json.Unmarshal([]byte(*rec.RevisedSegments), &revised); err == nil && len(revised.Segments) > 0 {
			return Merge(revised.Segments, mergeTarget)
		}
	}

	if rec.WhisperData != nil {
		var data transcription.VerboseResult
		if err := json.Unmarshal([]byte(*rec.WhisperData), &data); err == nil &&
			len(data.Segments) > 0 && len(data.Words) > 0 {
			return Merge(fromRaw(data), mergeTarget)
		}
	}

	if rec.Transcription != nil && *rec.Transcription != "" {
		var duration float64
		if rec.Duration != nil {
			duration = *rec.Duration
		}
		word := transcription.WordTiming{Word: *rec.Transcription, Start: 0, End: duration}
		return []transcription.RevisedSegment{{Start: 0, End: duration, Words: []transcription.WordTiming{word}}}
	}

	return nil
}

// fromRaw converts raw recognizer segments into display segments, assigning
// each word to the segment whose interval contains it.
func fromRaw(data transcription.VerboseResult) []transcription.RevisedSegment {
	out := make([]transcription.RevisedSegment, 0, len(data.Segments))
	for _, seg := range data.Segments {
		var words []transcription.WordTiming
		for _, word := range data.Words {
			if word.Start >= seg.Start && word.End <= seg.End {
				words = append(words, word)
			}
		}
		out = append(out, transcription.RevisedSegment{
			Start: seg.Start,
			End:   seg.End,
			Words: words,
		})
	}
	return out
}
