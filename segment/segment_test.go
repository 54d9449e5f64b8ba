package segment

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/skillsenselab/memovox/transcription"
)

func wt(word string, start, end float64) transcription.WordTiming {
	return transcription.WordTiming{Word: word, Start: start, End: end}
}

func TestTimeBased_SplitsOnTerminalPunctuation(t *testing.T) {
	words := []transcription.WordTiming{
		wt("Hello", 0, 0.5),
		wt("world", 0.5, 1.0),
		wt(".", 1.0, 1.1),
	}

	segments := TimeBased(words)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	seg := segments[0]
	if seg.Start != 0 || seg.End != 1.1 {
		t.Errorf("segment span [%v,%v], want [0,1.1]", seg.Start, seg.End)
	}
	if len(seg.Words) != 3 {
		t.Errorf("segment has %d words, want 3", len(seg.Words))
	}
}

func TestTimeBased_CJKPunctuation(t *testing.T) {
	words := []transcription.WordTiming{
		wt("こんにちは。", 0, 1.0),
		wt("天気", 1.0, 1.5),
		wt("晴れ！", 1.5, 2.0),
		wt("です", 2.0, 2.5),
	}

	segments := TimeBased(words)
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	// trailing partial run is flushed
	if got := segments[2].Words[0].Word; got != "です" {
		t.Errorf("last segment starts with %q", got)
	}
}

func TestTimeBased_NoWordsDroppedOrDuplicated(t *testing.T) {
	var words []transcription.WordTiming
	for i := 0; i < 250; i++ {
		w := fmt.Sprintf("w%d", i)
		if i%17 == 0 {
			w += "."
		}
		words = append(words, wt(w, float64(i), float64(i)+0.5))
	}

	segments := TimeBased(words)

	var flat []transcription.WordTiming
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			t.Fatal("empty segment emitted")
		}
		if seg.Start != seg.Words[0].Start || seg.End != seg.Words[len(seg.Words)-1].End {
			t.Errorf("segment bounds [%v,%v] do not match its words", seg.Start, seg.End)
		}
		flat = append(flat, seg.Words...)
	}
	if !reflect.DeepEqual(flat, words) {
		t.Error("concatenated segment words differ from input")
	}
}

func TestTimeBased_CapsRunWithoutPunctuation(t *testing.T) {
	var words []transcription.WordTiming
	for i := 0; i < maxSegmentWords*2; i++ {
		words = append(words, wt("w", float64(i), float64(i)+1))
	}

	segments := TimeBased(words)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if len(segments[0].Words) != maxSegmentWords {
		t.Errorf("first segment has %d words, want %d", len(segments[0].Words), maxSegmentWords)
	}
}

func TestTimeBased_Empty(t *testing.T) {
	if got := TimeBased(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestMerge_CoalescesUpToTarget(t *testing.T) {
	segments := []transcription.RevisedSegment{
		{Start: 0, End: 10, Words: []transcription.WordTiming{wt("a.", 0, 10)}},
		{Start: 10, End: 25, Words: []transcription.WordTiming{wt("b.", 10, 25)}},
		{Start: 25, End: 70, Words: []transcription.WordTiming{wt("c.", 25, 70)}},
		{Start: 70, End: 80, Words: []transcription.WordTiming{wt("d.", 70, 80)}},
	}

	merged := Merge(segments, 60)
	if len(merged) != 2 {
		t.Fatalf("got %d segments, want 2", len(merged))
	}
	// b joins a (25s elapsed from a's start); c would stretch the block to
	// 70s, past the target, so it starts a new output segment
	if merged[0].Start != 0 || merged[0].End != 25 {
		t.Errorf("first merged span [%v,%v]", merged[0].Start, merged[0].End)
	}
	if len(merged[0].Words) != 2 {
		t.Errorf("first merged segment has %d words", len(merged[0].Words))
	}
	// d joins c (only 55s elapsed from c's start)
	if merged[1].Start != 25 || merged[1].End != 80 {
		t.Errorf("second merged span [%v,%v]", merged[1].Start, merged[1].End)
	}
}

func TestMerge_PreservesAllWordsInOrder(t *testing.T) {
	var segments []transcription.RevisedSegment
	var all []transcription.WordTiming
	for i := 0; i < 20; i++ {
		w := wt(fmt.Sprintf("s%d.", i), float64(i*7), float64(i*7+6))
		segments = append(segments, transcription.RevisedSegment{Start: w.Start, End: w.End, Words: []transcription.WordTiming{w}})
		all = append(all, w)
	}

	merged := Merge(segments, 30)

	var flat []transcription.WordTiming
	prevEnd := -1.0
	for _, seg := range merged {
		if seg.Start < prevEnd {
			t.Errorf("segment [%v,%v] overlaps previous end %v", seg.Start, seg.End, prevEnd)
		}
		prevEnd = seg.End
		flat = append(flat, seg.Words...)
	}
	if !reflect.DeepEqual(flat, all) {
		t.Error("merge dropped or reordered words")
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	segments := []transcription.RevisedSegment{
		{Start: 0, End: 1, Words: []transcription.WordTiming{wt("a.", 0, 1)}},
		{Start: 1, End: 2, Words: []transcription.WordTiming{wt("b.", 1, 2)}},
	}

	Merge(segments, 60)

	if segments[0].End != 1 || len(segments[0].Words) != 1 {
		t.Error("Merge mutated its input")
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil, 60); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
