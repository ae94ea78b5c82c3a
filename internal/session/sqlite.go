package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sessionEntry is one key/value row. Namespace plus key identify the record.
type sessionEntry struct {
	Namespace string    `gorm:"primaryKey;type:varchar(255)"`
	Key       string    `gorm:"column:entry_key;primaryKey;type:varchar(64)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (sessionEntry) TableName() string {
	return "session_entries"
}

// SQLiteStore keeps sessions for every namespace in one local database file
type SQLiteStore struct {
	db        *gorm.DB
	namespace string
	logger    zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path, namespace string, zlog zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	return newSQLiteStore(db, namespace, zlog)
}

func newSQLiteStore(db *gorm.DB, namespace string, zlog zerolog.Logger) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&sessionEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		namespace: namespace,
		logger:    zlog.With().Str("component", "session").Str("backend", BackendSQLite).Logger(),
	}, nil
}

func (s *SQLiteStore) Save(rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	entry := sessionEntry{
		Namespace: s.namespace,
		Key:       StorageKey,
		Value:     string(data),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load() *Record {
	var entry sessionEntry
	err := s.db.Where("namespace = ? AND entry_key = ?", s.namespace, StorageKey).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to read session from database")
		}
		return nil
	}

	rec, err := decode([]byte(entry.Value))
	if err != nil {
		s.logger.Debug().Err(err).Msg("Discarding unreadable session")
		return nil
	}
	return rec
}

func (s *SQLiteStore) Clear() error {
	err := s.db.Where("namespace = ? AND entry_key = ?", s.namespace, StorageKey).Delete(&sessionEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
