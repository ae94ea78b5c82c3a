package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func sampleRecord() *Record {
	return &Record{
		Token: "tok-123",
		User: &UserInfo{
			ID:    "7",
			Name:  "A",
			Email: "a@b.com",
			Role:  "admin",
		},
		Role:            "admin",
		IsAuthenticated: true,
		ExpiresAt:       "2030-01-01T00:00:00Z",
	}
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	keyring.MockInit()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "sessions.db"), "test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		BackendMemory:  NewMemoryStore(),
		BackendKeyring: NewKeyringStore("test", zerolog.Nop()),
		BackendFile:    NewFileStore(filepath.Join(dir, "sessions", "test.json"), zerolog.Nop()),
		BackendSQLite:  sqliteStore,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			require.NoError(t, store.Save(rec))

			loaded := store.Load()
			require.NotNil(t, loaded)
			assert.Equal(t, rec, loaded)
		})
	}
}

func TestStore_SaveReplacesPriorRecord(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(sampleRecord()))

			second := &Record{IsAuthenticated: true, Role: "user", User: &UserInfo{Name: "B", Role: "user"}}
			require.NoError(t, store.Save(second))

			assert.Equal(t, second, store.Load())
		})
	}
}

func TestStore_ClearRemovesRecord(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(sampleRecord()))
			require.NoError(t, store.Clear())
			assert.Nil(t, store.Load())

			// Clearing twice is not an error
			require.NoError(t, store.Clear())
		})
	}
}

func TestStore_LoadAbsent(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, store.Load())
		})
	}
}

func TestFileStore_CorruptRecordFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store := NewFileStore(path, zerolog.Nop())
	assert.Nil(t, store.Load())
}

func TestKeyringStore_CorruptRecordFailsClosed(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(keyringService, "session-broken", "]]"))

	store := NewKeyringStore("broken", zerolog.Nop())
	assert.Nil(t, store.Load())
}

func TestKeyringStore_NamespacesAreIsolated(t *testing.T) {
	keyring.MockInit()

	prod := NewKeyringStore("production", zerolog.Nop())
	staging := NewKeyringStore("staging", zerolog.Nop())

	require.NoError(t, prod.Save(sampleRecord()))
	assert.Nil(t, staging.Load())

	require.NoError(t, staging.Clear())
	assert.NotNil(t, prod.Load())
}

func TestSQLiteStore_NamespacesShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	a, err := NewSQLiteStore(path, "a", zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteStore(path, "b", zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Save(sampleRecord()))
	assert.Nil(t, b.Load())
	assert.Equal(t, "tok-123", a.Load().Token)
}

func TestOpen_Backends(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	store, err := Open(Options{Backend: "file", Namespace: "my server", Dir: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	fileStore, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "sessions", "my_server.json"), fileStore.Path())

	store, err = Open(Options{Backend: "", Namespace: "x", Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, store)

	store, err = Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = Open(Options{Backend: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session backend 'redis'")
}

func TestRecord_Normalize(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"user role wins", Record{Role: "moderator", User: &UserInfo{Role: "admin"}}, "admin"},
		{"top level fallback", Record{Role: "admin", User: &UserInfo{}}, "admin"},
		{"no user object", Record{Role: "moderator"}, "moderator"},
		{"default role", Record{}, "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			rec.Normalize()
			assert.Equal(t, tt.want, rec.Role)
			require.NotNil(t, rec.User)
			assert.Equal(t, tt.want, rec.User.Role)
			assert.Equal(t, tt.want, rec.RoleName())
		})
	}
}

func TestRecord_IsAdminViaEitherAlias(t *testing.T) {
	assert.True(t, (&Record{User: &UserInfo{Role: "admin"}}).IsAdmin())
	assert.True(t, (&Record{Role: "admin"}).IsAdmin())
	assert.False(t, (&Record{Role: "user", User: &UserInfo{Role: "moderator"}}).IsAdmin())

	// Aliases that disagree: admin on either side counts
	assert.True(t, (&Record{Token: "t", User: &UserInfo{Role: "user"}, Role: "admin"}).IsAdmin())
	assert.True(t, (&Record{Token: "t", User: &UserInfo{Role: "admin"}, Role: "user"}).IsAdmin())

	var absent *Record
	assert.False(t, absent.IsAdmin())
}

func TestRecord_DisplayName(t *testing.T) {
	assert.Equal(t, "A", sampleRecord().DisplayName())
	assert.Equal(t, "a@b.com", (&Record{User: &UserInfo{Email: "a@b.com"}}).DisplayName())
	assert.Equal(t, "", (&Record{Token: "t"}).DisplayName())

	var absent *Record
	assert.Equal(t, "", absent.DisplayName())
}

func TestRecord_Valid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  *Record
		want bool
	}{
		{"absent", nil, false},
		{"no token no flag", &Record{User: &UserInfo{Name: "x"}}, false},
		{"token", &Record{Token: "t"}, true},
		{"flag only", &Record{IsAuthenticated: true}, true},
		{"expired with token", &Record{Token: "t", ExpiresAt: "2025-12-31T23:59:59Z"}, false},
		{"expired laravel format", &Record{IsAuthenticated: true, ExpiresAt: "2025-12-31 10:00:00"}, false},
		{"future expiry", &Record{Token: "t", ExpiresAt: "2026-01-02T00:00:00.000000Z"}, true},
		{"unparseable expiry", &Record{Token: "t", ExpiresAt: "tomorrow"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Valid(now))
		})
	}
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	rec := sampleRecord()
	got, ok := FromContext(NewContext(context.Background(), rec))
	require.True(t, ok)
	assert.Same(t, rec, got)

	_, ok = FromContext(NewContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Options{Backend: "sqlite", Namespace: "x", Dir: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleRecord()))

	require.NoError(t, Close(store))
	// The handle is gone, so reads fail closed
	assert.Nil(t, store.Load())

	assert.NoError(t, Close(NewMemoryStore()))
}
