package queue

import (
	"fmt"

	"shuttle/internal/config"
)

// Open initializes the store backend selected by configuration.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	opts := []Option{WithMaxRetries(cfg.Workflow.MaxRetries)}
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		return NewSQLiteStore(cfg.Store.DBPath, opts...)
	default:
		return NewFileStore(cfg.Paths.QueuePath, cfg.Paths.LockPath, opts...)
	}
}
