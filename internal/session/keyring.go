package session

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "usradm"
)

// KeyringStore keeps the session in the OS keychain/credential manager
type KeyringStore struct {
	key    string
	logger zerolog.Logger
}

// NewKeyringStore returns a store keyed per namespace, so sessions for
// different servers never overwrite each other.
func NewKeyringStore(namespace string, logger zerolog.Logger) *KeyringStore {
	return &KeyringStore{
		key:    fmt.Sprintf("session-%s", namespace),
		logger: logger.With().Str("component", "session").Str("backend", BackendKeyring).Logger(),
	}
}

func (k *KeyringStore) Save(rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, k.key, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (k *KeyringStore) Load() *Record {
	data, err := keyring.Get(keyringService, k.key)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			k.logger.Warn().Err(err).Msg("Failed to read session from keyring")
		}
		return nil
	}

	rec, err := decode([]byte(data))
	if err != nil {
		k.logger.Debug().Err(err).Msg("Discarding unreadable session")
		return nil
	}
	return rec
}

func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(keyringService, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
