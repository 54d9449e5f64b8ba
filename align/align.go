// Package align re-times punctuation-revised text against the original
// word-level timestamps using a character-level diff.
//
// The revision step should only add punctuation, but its output is treated
// as an arbitrary edit of the transcript: characters may be inserted,
// deleted, or left unchanged. Every character of the revised text receives a
// timing taken from the original sequence, so downstream segmentation can
// split on revised punctuation without losing timestamp accuracy.
package align

import (
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/skillsenselab/memovox/transcription"
)

type charToken struct {
	char     rune
	start    float64
	end      float64
	assigned bool
}

// Words aligns revisedText against the original timed words and returns a
// new word sequence covering the revised text.
//
// The diff is case-insensitive. Unchanged characters keep their original
// word's timing; characters only present in the revised text (inserted
// punctuation) inherit the timing of the preceding revised character, so new
// punctuation attaches to the end of the word before it. Insertions before
// any timed character inherit the first assigned timing instead. Consecutive
// revised characters with identical timings are collapsed back into one
// word, which reconstructs word and punctuation-cluster granularity.
//
// Emitted timings always come from the original sequence; the result never
// contains a timestamp outside the original's [min start, max end] range.
func Words(original []transcription.WordTiming, revisedText string) []transcription.WordTiming {
	a := expandWords(original)
	b := expandText(revisedText)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(normalize(a), normalize(b), false)

	aIndex, bIndex := 0, 0
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := 0; k < n; k++ {
				b[bIndex].start = a[aIndex].start
				b[bIndex].end = a[aIndex].end
				b[bIndex].assigned = true
				aIndex++
				bIndex++
			}
		case diffmatchpatch.DiffDelete:
			// only in original: skip
			aIndex += n
		case diffmatchpatch.DiffInsert:
			// only in revised: attach to the preceding revised character
			for k := 0; k < n; k++ {
				if bIndex > 0 {
					prev := b[bIndex-1]
					b[bIndex].start = prev.start
					b[bIndex].end = prev.end
					b[bIndex].assigned = prev.assigned
				}
				bIndex++
			}
		}
	}

	assignLeading(b)

	return mergeChars(b)
}

// expandWords splits each word into one token per character, every character
// inheriting its parent word's timing.
func expandWords(words []transcription.WordTiming) []charToken {
	var out []charToken
	for _, w := range words {
		for _, r := range w.Word {
			out = append(out, charToken{char: r, start: w.Start, end: w.End, assigned: true})
		}
	}
	return out
}

func expandText(text string) []charToken {
	out := make([]charToken, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		out = append(out, charToken{char: r})
	}
	return out
}

// normalize lowercases per rune, keeping the rune count stable so diff run
// lengths map one-to-one onto token indices.
func normalize(tokens []charToken) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = unicode.ToLower(tok.char)
	}
	return string(runes)
}

// assignLeading gives characters inserted before any timed character the
// first assigned timing, so no token carries an invented zero timestamp when
// real timings exist.
func assignLeading(tokens []charToken) {
	first := -1
	for i := range tokens {
		if tokens[i].assigned {
			first = i
			break
		}
	}
	if first <= 0 {
		return
	}
	for i := 0; i < first; i++ {
		tokens[i].start = tokens[first].start
		tokens[i].end = tokens[first].end
	}
}

// mergeChars collapses consecutive characters sharing identical timings back
// into words.
func mergeChars(tokens []charToken) []transcription.WordTiming {
	var merged []transcription.WordTiming
	for _, tok := range tokens {
		if n := len(merged); n > 0 && merged[n-1].Start == tok.start && merged[n-1].End == tok.end {
			merged[n-1].Word += string(tok.char)
			continue
		}
		merged = append(merged, transcription.WordTiming{
			Word:  string(tok.char),
			Start: tok.start,
			End:   tok.end,
		})
	}
	return merged
}
