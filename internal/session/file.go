package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore keeps the session as a JSON file readable only by its owner
type FileStore struct {
	path   string
	logger zerolog.Logger
}

func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "session").Str("backend", BackendFile).Logger(),
	}
}

// Path returns the file the session is written to
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Save(rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	// Create session directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves half a record
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (f *FileStore) Load() *Record {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn().Err(err).Str("path", f.path).Msg("Failed to read session file")
		}
		return nil
	}

	rec, err := decode(data)
	if err != nil {
		f.logger.Debug().Err(err).Str("path", f.path).Msg("Discarding unreadable session")
		return nil
	}
	return rec
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
