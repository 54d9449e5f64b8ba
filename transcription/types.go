package transcription

// WordTiming is a single recognized word with its time span.
// Start and End are seconds from the beginning of the audio, Start <= End.
type WordTiming struct {
	// Word is the recognized text, including any attached punctuation.
	Word string `json:"word"`
	// Start is the word start time in seconds.
	Start float64 `json:"start"`
	// End is the word end time in seconds.
	End float64 `json:"end"`
}

// Segment is a raw recognizer segment, one decoded chunk of audio.
type Segment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Temperature      float64 `json:"temperature,omitempty"`
	AvgLogprob       float64 `json:"avg_logprob,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     float64 `json:"no_speech_prob,omitempty"`
}

// VerboseResult is the full structured output of a recognition call.
// Words and Segments are optional; backends without word-level timestamps
// return only Text.
type VerboseResult struct {
	// Language is the detected or requested language code.
	Language string `json:"language"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration"`
	// Text is the full transcript.
	Text string `json:"text"`
	// Words holds word-level timings across the whole recording.
	Words []WordTiming `json:"words,omitempty"`
	// Segments holds the raw recognizer segments.
	Segments []Segment `json:"segments,omitempty"`
}

// Info carries the recognizer's stream metadata, reported once near the start.
type Info struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Delta is one incremental partial result: a finished segment and the words
// that fall inside it.
type Delta struct {
	Segment Segment      `json:"segment"`
	Words   []WordTiming `json:"words,omitempty"`
}

// RevisedSegment is a display segment built from punctuation-revised,
// re-aligned words. Start equals the first word's start and End the last
// word's end.
type RevisedSegment struct {
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Words []WordTiming `json:"words"`
}

// RevisedSegments is the persisted envelope for revised display segments.
type RevisedSegments struct {
	Segments []RevisedSegment `json:"segments"`
}
