package segment

import (
	"encoding/json"
	"testing"

	"github.com/skillsenselab/memovox/transcription"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestResolve_PrefersRevisedSegments(t *testing.T) {
	revised := transcription.RevisedSegments{
		Segments: []transcription.RevisedSegment{
			{Start: 0, End: 2, Words: []transcription.WordTiming{wt("Revised.", 0, 2)}},
		},
	}
	blob, _ := json.Marshal(revised)

	got := Resolve(Stored{
		RevisedSegments: strPtr(string(blob)),
		Transcription:   strPtr("ignored"),
		Duration:        f64Ptr(10),
	}, 0)
	if len(got) != 1 || got[0].Words[0].Word != "Revised." {
		t.Errorf("got %v", got)
	}
}

func TestResolve_FallsBackToWhisperData(t *testing.T) {
	data := transcription.VerboseResult{
		Text:     "hello world",
		Duration: 2,
		Segments: []transcription.Segment{
			{ID: 0, Start: 0, End: 1, Text: "hello"},
			{ID: 1, Start: 1, End: 2, Text: "world"},
		},
		Words: []transcription.WordTiming{
			wt("hello", 0, 0.9),
			wt("world", 1.1, 1.9),
		},
	}
	blob, _ := json.Marshal(data)

	got := Resolve(Stored{
		RevisedSegments: strPtr("{corrupt json"),
		WhisperData:     strPtr(string(blob)),
		Transcription:   strPtr("hello world"),
	}, 0)
	if len(got) == 0 {
		t.Fatal("expected segments from whisper data")
	}
	var wordCount int
	for _, seg := range got {
		wordCount += len(seg.Words)
	}
	if wordCount != 2 {
		t.Errorf("got %d words, want 2", wordCount)
	}
}

func TestResolve_PlainTranscriptFallback(t *testing.T) {
	got := Resolve(Stored{
		Transcription: strPtr("just text"),
		Duration:      f64Ptr(42.5),
	}, 0)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	seg := got[0]
	if seg.Start != 0 || seg.End != 42.5 {
		t.Errorf("span [%v,%v], want [0,42.5]", seg.Start, seg.End)
	}
	if len(seg.Words) != 1 || seg.Words[0].Word != "just text" {
		t.Errorf("words = %v", seg.Words)
	}
	if seg.Words[0].Start != 0 || seg.Words[0].End != 42.5 {
		t.Errorf("synthetic word timing [%v,%v]", seg.Words[0].Start, seg.Words[0].End)
	}
}

func TestResolve_CorruptBlobsNeverPropagate(t *testing.T) {
	got := Resolve(Stored{
		RevisedSegments: strPtr("not json"),
		WhisperData:     strPtr("[1,2,"),
		Transcription:   strPtr("survivor"),
		Duration:        f64Ptr(1),
	}, 0)
	if len(got) != 1 || got[0].Words[0].Word != "survivor" {
		t.Errorf("got %v", got)
	}
}

func TestResolve_HonorsMergeTarget(t *testing.T) {
	revised := transcription.RevisedSegments{
		Segments: []transcription.RevisedSegment{
			{Start: 0, End: 2, Words: []transcription.WordTiming{wt("one.", 0, 2)}},
			{Start: 2, End: 4, Words: []transcription.WordTiming{wt("two.", 2, 4)}},
			{Start: 4, End: 6, Words: []transcription.WordTiming{wt("three.", 4, 6)}},
		},
	}
	blob, _ := json.Marshal(revised)
	stored := Stored{RevisedSegments: strPtr(string(blob))}

	if got := Resolve(stored, 0); len(got) != 1 {
		t.Errorf("default target: got %d segments, want 1", len(got))
	}
	if got := Resolve(stored, 3); len(got) != 3 {
		t.Errorf("target 3s: got %d segments, want 3", len(got))
	}
}

func TestResolve_Empty(t *testing.T) {
	if got := Resolve(Stored{}, 0); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
