// Package store defines the recording record and the persistence interface
// the transcription pipeline writes through. The pipeline never creates or
// deletes recordings; it reads them and updates the transcription-owned
// fields while a job is in flight.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a recording does not exist.
var ErrNotFound = errors.New("store: recording not found")

// Status is the recording lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ValidTransition reports whether the edge from -> to is allowed:
// PENDING -> PROCESSING -> {COMPLETED, FAILED}, plus the operator
// reschedule edge back to PENDING from any non-pending state.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusPending
	case StatusCompleted, StatusFailed:
		return to == StatusPending
	default:
		return false
	}
}

// Recording is one uploaded voice memo. The transcription fields are owned
// exclusively by the pipeline while Status is PROCESSING.
type Recording struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// FilePath points at the uploaded source audio. Read-only to the pipeline.
	FilePath string

	Status                Status  `gorm:"index;default:PENDING"`
	TranscriptionProgress float64 `gorm:"default:0"`
	// Transcription is the plain transcript text, updated incrementally.
	Transcription *string
	// WhisperData is the serialized raw recognizer result, replaced on each
	// delta and at completion.
	WhisperData *string
	// RevisedSegments is the serialized post-alignment segment envelope,
	// written once at completion.
	RevisedSegments *string
	// TranscriptionError holds the failure reason for FAILED recordings.
	TranscriptionError *string
	// Duration is the audio length in seconds, set once the recognizer
	// reports it.
	Duration *float64
}

// BeforeCreate generates an ID if not already set.
func (r *Recording) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Column names used in partial updates. Each Update call is an independent,
// not-necessarily-atomic write; there is no cross-field transaction.
const (
	ColStatus          = "status"
	ColProgress        = "transcription_progress"
	ColTranscription   = "transcription"
	ColWhisperData     = "whisper_data"
	ColRevisedSegments = "revised_segments"
	ColError           = "transcription_error"
	ColDuration        = "duration"
)

// Fields is a partial update: column name to new value. A nil value clears a
// nullable column.
type Fields map[string]any

// Store is the persistence sink the pipeline reads and updates recordings
// through, keyed by recording ID.
type Store interface {
	// Create inserts a recording, generating an ID when empty. The ID is
	// written back onto rec.
	Create(ctx context.Context, rec *Recording) error
	// Get returns one recording, or ErrNotFound.
	Get(ctx context.Context, id string) (*Recording, error)
	// Update applies a partial field update to one recording.
	Update(ctx context.Context, id string, fields Fields) error
	// FindByStatus returns all recordings in the given status, oldest first.
	FindByStatus(ctx context.Context, status Status) ([]Recording, error)
	// ResetToPending flips every recording in the given status to PENDING,
	// clearing its error, and returns the number affected. Used for bulk
	// reschedule of FAILED recordings and for startup crash recovery of
	// PROCESSING ones.
	ResetToPending(ctx context.Context, from Status) (int64, error)
	// List returns all recordings, newest first.
	List(ctx context.Context) ([]Recording, error)
}
