package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Store persists at most one session record
type Store interface {
	// Save serializes the record, replacing any prior value
	Save(rec *Record) error
	// Load returns the persisted record, or nil when none exists or it
	// cannot be decoded
	Load() *Record
	// Clear removes the persisted record
	Clear() error
}

// Backend names accepted by Open
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Options configures Open
type Options struct {
	Backend   string
	Namespace string // usually the server alias
	Dir       string // base directory for file and sqlite backends
	Logger    zerolog.Logger
}

// Open returns the store for the configured backend
func Open(opts Options) (Store, error) {
	ns := sanitizeNamespace(opts.Namespace)

	switch strings.ToLower(opts.Backend) {
	case "", BackendKeyring:
		return NewKeyringStore(ns, opts.Logger), nil
	case BackendFile:
		dir, err := resolveDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		return NewFileStore(filepath.Join(dir, "sessions", ns+".json"), opts.Logger), nil
	case BackendSQLite:
		dir, err := resolveDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(dir, "sessions.db"), ns, opts.Logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend '%s' (expected keyring, file, sqlite or memory)", opts.Backend)
	}
}

// Close releases what store holds open, such as the sqlite handle. Stores
// with nothing to release are left alone.
func Close(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// resolveDir returns dir, or ~/.config/usradm when dir is empty
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "usradm"), nil
}

func sanitizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, ns)
}

func encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("session record is nil")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// decode parses a persisted record. Callers treat a failure as logged out.
func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &rec, nil
}

// MemoryStore keeps the record in process memory
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load() *Record {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()
	if data == nil {
		return nil
	}
	rec, err := decode(data)
	if err != nil {
		return nil
	}
	return rec
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
