package queue

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/observability"
	"github.com/skillsenselab/memovox/store"
	"github.com/skillsenselab/memovox/transcription"
)

// Recognizer progress is rescaled into 1..95 so the UI can show motion
// before the first event and keep the last 5% for revision and persistence.
func scaleProgress(percent float64) float64 {
	return percent*0.94 + 1
}

// process runs the full pipeline for one recording. Failures are persisted
// on the recording, never returned; the worker moves on to the next job.
func (q *Queue) process(ctx context.Context, id string) {
	ctx, span := observability.StartSpan(ctx, "queue.process")
	defer span.End()
	observability.SetSpanAttribute(ctx, "recording.id", id)

	start := time.Now()
	log := q.log.WithFields(map[string]interface{}{logger.FieldRecording: id})

	rec, err := q.store.Get(ctx, id)
	if err != nil {
		log.Error("recording vanished before processing", logger.ErrorFields("get", err))
		observability.SetSpanError(ctx, err)
		return
	}

	if err := q.store.Update(ctx, id, store.Fields{
		store.ColStatus:          store.StatusProcessing,
		store.ColProgress:        1,
		store.ColRevisedSegments: nil,
		store.ColError:           nil,
	}); err != nil {
		log.Error("failed to mark recording as processing", logger.ErrorFields("update", err))
		observability.SetSpanError(ctx, err)
		return
	}

	result, err := q.transcribe(ctx, log, id, rec.FilePath)
	if err != nil {
		q.fail(ctx, log, id, err)
		q.metrics.RecordJob(ctx, string(store.StatusFailed), time.Since(start))
		return
	}

	// Persist the final transcript before revision starts, so the store never
	// holds a stale partial transcript while the LLM call is in flight.
	whisperData := marshalJSON(log, result)
	final := store.Fields{
		store.ColTranscription: result.Text,
		store.ColWhisperData:   whisperData,
	}
	if result.Duration > 0 {
		final[store.ColDuration] = result.Duration
	}
	q.persistBestEffort(ctx, log, id, final, "final transcript")

	fields := store.Fields{
		store.ColStatus:        store.StatusCompleted,
		store.ColProgress:      100,
		store.ColError:         nil,
		store.ColTranscription: result.Text,
		store.ColWhisperData:   whisperData,
	}
	if result.Duration > 0 {
		fields[store.ColDuration] = result.Duration
	}

	// Revision is best effort. A transcript without punctuation is still a
	// usable transcript.
	if q.reviser != nil && len(result.Words) > 0 {
		revised, err := q.reviser.Process(ctx, result.Text, result.Words)
		if err != nil {
			log.Warn("punctuation revision failed, keeping raw transcript", logger.ErrorFields("revise", err))
		} else if data := marshalJSON(log, revised); data != nil {
			fields[store.ColRevisedSegments] = data
		}
	}

	if err := q.store.Update(ctx, id, fields); err != nil {
		log.Error("failed to persist completed transcription", logger.ErrorFields("update", err))
		observability.SetSpanError(ctx, err)
		return
	}

	q.metrics.RecordJob(ctx, string(store.StatusCompleted), time.Since(start))
	log.Info("transcription completed", logger.Fields(
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"words", len(result.Words),
	))
}

// transcribe converts the audio and streams it through the recognizer,
// persisting partial results as they arrive.
func (q *Queue) transcribe(ctx context.Context, log *logger.Logger, id, audioPath string) (*transcription.VerboseResult, error) {
	converted, err := q.converter.ToRecognitionFormat(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		durationOK bool
		lastWrite  time.Time
		partial    transcription.VerboseResult
	)

	hooks := transcription.Hooks{
		OnInfo: func(info transcription.Info) {
			mu.Lock()
			durationOK = info.Duration > 0
			mu.Unlock()
			if info.Duration > 0 {
				q.persistBestEffort(ctx, log, id, store.Fields{store.ColDuration: info.Duration}, "duration")
			}
		},
		OnProgress: func(percent float64, message string) {
			mu.Lock()
			now := time.Now()
			due := percent >= 100 || now.Sub(lastWrite) >= q.cfg.ProgressInterval
			if due {
				lastWrite = now
			}
			mu.Unlock()
			if !due {
				return
			}
			q.persistBestEffort(ctx, log, id, store.Fields{
				store.ColProgress: scaleProgress(percent),
			}, "progress")
		},
		OnDelta: func(delta transcription.Delta) {
			mu.Lock()
			partial.Segments = append(partial.Segments, delta.Segment)
			partial.Words = append(partial.Words, delta.Words...)
			partial.Text = joinSegmentText(partial.Segments)
			snapshot := partial
			mu.Unlock()
			q.persistBestEffort(ctx, log, id, store.Fields{
				store.ColTranscription: snapshot.Text,
				store.ColWhisperData:   marshalJSON(log, &snapshot),
			}, "partial transcript")
		},
	}

	result, err := q.recognizer.Transcribe(ctx, transcription.Request{
		AudioPath:     converted,
		Language:      q.cfg.Language,
		InitialPrompt: q.cfg.InitialPrompt,
	}, hooks)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	haveDuration := durationOK || result.Duration > 0
	mu.Unlock()
	if !haveDuration {
		if d := q.converter.ProbeDuration(ctx, converted); d > 0 {
			result.Duration = d
		}
	}
	return result, nil
}

// fail records a terminal failure on the recording.
func (q *Queue) fail(ctx context.Context, log *logger.Logger, id string, cause error) {
	observability.SetSpanError(ctx, cause)
	log.Error("transcription failed", logger.ErrorFields("process", cause))
	if err := q.store.Update(ctx, id, store.Fields{
		store.ColStatus: store.StatusFailed,
		store.ColError:  cause.Error(),
	}); err != nil {
		log.Error("failed to persist failure", logger.ErrorFields("update", err))
	}
}

// persistBestEffort writes intermediate state. Write errors are logged and
// swallowed: losing a progress tick or a partial transcript must not abort
// a transcription that is otherwise succeeding.
func (q *Queue) persistBestEffort(ctx context.Context, log *logger.Logger, id string, fields store.Fields, what string) {
	if err := q.store.Update(ctx, id, fields); err != nil {
		log.Warn("failed to persist "+what, logger.ErrorFields("update", err))
	}
}

func joinSegmentText(segments []transcription.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// marshalJSON returns the JSON encoding as a nullable string column value:
// a string on success, nil when encoding fails.
func marshalJSON(log *logger.Logger, v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn("failed to encode JSON payload", logger.ErrorFields("marshal", err))
		return nil
	}
	return string(data)
}
