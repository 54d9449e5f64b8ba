// Package memory provides an in-memory store.Store for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/memovox/store"
)

// Store is a map-backed store.Store. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	recordings map[string]*store.Recording
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{recordings: make(map[string]*store.Recording)}
}

// Create inserts a recording, generating an ID when empty.
func (s *Store) Create(_ context.Context, rec *store.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = store.StatusPending
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.recordings[rec.ID] = copyRecording(rec)
	return nil
}

// MustCreate inserts a recording and returns a copy of it. Test fixture
// helper.
func (s *Store) MustCreate(rec store.Recording) *store.Recording {
	_ = s.Create(context.Background(), &rec)
	return copyRecording(&rec)
}

// Get returns one recording, or store.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*store.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recordings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRecording(rec), nil
}

// Update applies a partial field update to one recording.
func (s *Store) Update(_ context.Context, id string, fields store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recordings[id]
	if !ok {
		return store.ErrNotFound
	}
	for col, val := range fields {
		if err := applyField(rec, col, val); err != nil {
			return err
		}
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// FindByStatus returns all recordings in the given status, oldest first.
func (s *Store) FindByStatus(_ context.Context, status store.Status) ([]store.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Recording
	for _, rec := range s.recordings {
		if rec.Status == status {
			out = append(out, *copyRecording(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ResetToPending flips every recording in the given status to PENDING.
func (s *Store) ResetToPending(_ context.Context, from store.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, rec := range s.recordings {
		if rec.Status == from {
			rec.Status = store.StatusPending
			rec.TranscriptionProgress = 0
			rec.TranscriptionError = nil
			rec.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

// List returns all recordings, newest first.
func (s *Store) List(_ context.Context) ([]store.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		out = append(out, *copyRecording(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func applyField(rec *store.Recording, col string, val any) error {
	switch col {
	case store.ColStatus:
		rec.Status = val.(store.Status)
	case store.ColProgress:
		rec.TranscriptionProgress = toFloat(val)
	case store.ColTranscription:
		rec.Transcription = toStringPtr(val)
	case store.ColWhisperData:
		rec.WhisperData = toStringPtr(val)
	case store.ColRevisedSegments:
		rec.RevisedSegments = toStringPtr(val)
	case store.ColError:
		rec.TranscriptionError = toStringPtr(val)
	case store.ColDuration:
		f := toFloat(val)
		rec.Duration = &f
	default:
		return fmt.Errorf("store: unknown column %q", col)
	}
	return nil
}

func toStringPtr(val any) *string {
	if val == nil {
		return nil
	}
	s := val.(string)
	return &s
}

func toFloat(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func copyRecording(rec *store.Recording) *store.Recording {
	out := *rec
	out.Transcription = copyPtr(rec.Transcription)
	out.WhisperData = copyPtr(rec.WhisperData)
	out.RevisedSegments = copyPtr(rec.RevisedSegments)
	out.TranscriptionError = copyPtr(rec.TranscriptionError)
	out.Duration = copyPtr(rec.Duration)
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
