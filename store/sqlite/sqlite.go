// Package sqlite implements store.Store on SQLite via GORM. This mirrors the
// single-file database the voice-memo web app persists recordings in.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/store"
)

// Store is a GORM-backed store.Store.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the SQLite database at path and migrates the
// recordings table.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&store.Recording{}); err != nil {
		return nil, fmt.Errorf("migrate recordings table: %w", err)
	}

	log.WithComponent("store").Info("sqlite store opened", logger.Fields("path", path))
	return &Store{db: db, log: log.WithComponent("store")}, nil
}

// Create inserts a recording. BeforeCreate fills the ID when empty.
func (s *Store) Create(ctx context.Context, rec *store.Recording) error {
	if rec.Status == "" {
		rec.Status = store.StatusPending
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	return nil
}

// Get returns one recording, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*store.Recording, error) {
	var rec store.Recording
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %s: %w", id, err)
	}
	return &rec, nil
}

// Update applies a partial field update to one recording.
func (s *Store) Update(ctx context.Context, id string, fields store.Fields) error {
	res := s.db.WithContext(ctx).
		Model(&store.Recording{}).
		Where("id = ?", id).
		Updates(map[string]any(fields))
	if res.Error != nil {
		return fmt.Errorf("update recording %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindByStatus returns all recordings in the given status, oldest first.
func (s *Store) FindByStatus(ctx context.Context, status store.Status) ([]store.Recording, error) {
	var out []store.Recording
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find recordings by status %s: %w", status, err)
	}
	return out, nil
}

// ResetToPending flips every recording in the given status back to PENDING.
func (s *Store) ResetToPending(ctx context.Context, from store.Status) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&store.Recording{}).
		Where("status = ?", from).
		Updates(map[string]any{
			store.ColStatus:   store.StatusPending,
			store.ColProgress: 0,
			store.ColError:    nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reset %s recordings: %w", from, res.Error)
	}
	return res.RowsAffected, nil
}

// List returns all recordings, newest first.
func (s *Store) List(ctx context.Context) ([]store.Recording, error) {
	var out []store.Recording
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}
