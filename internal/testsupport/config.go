package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ShareDir = filepath.Join(base, "share")
	cfg.Paths.QueuePath = filepath.Join(base, "share", "queue.json")
	cfg.Paths.LockPath = filepath.Join(base, "share", "queue.json.lock")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.RAMDir = ""
	cfg.Store.DBPath = filepath.Join(base, "share", "queue.db")
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSQLiteBackend switches the test config to the SQLite store.
func WithSQLiteBackend() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Store.Backend = config.StoreBackendSQLite
	}
}

// WithMaxRetries overrides the retry ceiling on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxRetries = n
	}
}

// MustOpenStore opens the configured store backend and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
