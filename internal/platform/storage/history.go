// Package storage persists transcript history in a local SQLite database.
package storage

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voicehold/internal/domain/notify"
	"voicehold/internal/platform/logging"

	platerr "voicehold/internal/platform/errors"
)

// TranscriptRecord is one delivered transcription.
type TranscriptRecord struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	SessionID         string    `gorm:"index" json:"session_id"`
	Text              string    `json:"text"`
	RawText           string    `json:"raw_text"`
	Engine            string    `json:"engine"`
	RefinementApplied bool      `json:"refinement_applied"`
	Fallback          bool      `json:"fallback"`
	AudioSeconds      float64   `json:"audio_seconds"`
}

// TranscriptStore owns the history database. Constructed once in bootstrap
// and passed where needed.
type TranscriptStore struct {
	db     *gorm.DB
	logger *logging.Logger
	limit  int
}

// NewTranscriptStore opens (creating if necessary) the history database at
// path. limit caps how many records Prune keeps; <= 0 means unlimited.
func NewTranscriptStore(path string, limit int, logger *logging.Logger) (*TranscriptStore, error) {
	const op = "storage.NewTranscriptStore"

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, platerr.Wrap(platerr.KindStorage, op, "create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, platerr.Wrap(platerr.KindStorage, op, "open database", err)
	}
	if err := db.AutoMigrate(&TranscriptRecord{}); err != nil {
		return nil, platerr.Wrap(platerr.KindStorage, op, "migrate schema", err)
	}

	logger.InfoTag("STORE", "transcript history at %s", path)
	return &TranscriptStore{db: db, logger: logger, limit: limit}, nil
}

// Save appends one record and prunes past the configured limit.
func (s *TranscriptStore) Save(rec *TranscriptRecord) error {
	const op = "storage.TranscriptStore.Save"
	if err := s.db.Create(rec).Error; err != nil {
		return platerr.Wrap(platerr.KindStorage, op, "insert record", err)
	}
	if s.limit > 0 {
		if err := s.prune(); err != nil {
			s.logger.WarnTag("STORE", "prune: %v", err)
		}
	}
	return nil
}

func (s *TranscriptStore) prune() error {
	var count int64
	if err := s.db.Model(&TranscriptRecord{}).Count(&count).Error; err != nil {
		return err
	}
	excess := count - int64(s.limit)
	if excess <= 0 {
		return nil
	}
	var ids []uint
	if err := s.db.Model(&TranscriptRecord{}).
		Order("id asc").Limit(int(excess)).Pluck("id", &ids).Error; err != nil {
		return err
	}
	return s.db.Delete(&TranscriptRecord{}, ids).Error
}

// Recent returns up to n records, newest first.
func (s *TranscriptStore) Recent(n int) ([]TranscriptRecord, error) {
	const op = "storage.TranscriptStore.Recent"
	if n <= 0 {
		n = 50
	}
	var out []TranscriptRecord
	if err := s.db.Order("id desc").Limit(n).Find(&out).Error; err != nil {
		return nil, platerr.Wrap(platerr.KindStorage, op, "query records", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *TranscriptStore) Count() (int64, error) {
	var count int64
	err := s.db.Model(&TranscriptRecord{}).Count(&count).Error
	return count, err
}

// Attach subscribes the store to final-text events so every delivered
// transcription lands in history without the pipeline knowing about storage.
func (s *TranscriptStore) Attach(bus *notify.Bus) error {
	return bus.Subscribe(notify.EventTextFinal, func(data notify.TextEventData) {
		rec := &TranscriptRecord{
			SessionID:         data.SessionID,
			Text:              data.Text,
			RawText:           data.RawText,
			Engine:            data.Engine,
			RefinementApplied: data.RefinementApplied,
			Fallback:          data.Fallback,
			AudioSeconds:      data.AudioSeconds,
		}
		if err := s.Save(rec); err != nil {
			s.logger.WarnTag("STORE", "save transcript: %v", err)
		}
	})
}

// Close releases the underlying connection.
func (s *TranscriptStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
