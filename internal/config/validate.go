package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ShareDir) == "" {
		return errors.New("paths.share_dir must be set")
	}
	if strings.TrimSpace(c.Paths.QueuePath) == "" {
		return errors.New("paths.queue_path must be set")
	}
	if c.Paths.LockPath == c.Paths.QueuePath {
		return errors.New("paths.lock_path must differ from paths.queue_path")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendSQLite:
		return nil
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreBackendFile, StoreBackendSQLite, c.Store.Backend)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.MaxRetries < 1 {
		return errors.New("workflow.max_retries must be at least 1")
	}
	if c.Workflow.StaleClaimMinutes < 0 {
		return errors.New("workflow.stale_claim_minutes must not be negative")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if len(c.Scanner.Extensions) == 0 {
		return errors.New("scanner.extensions must list at least one extension")
	}
	for _, ext := range c.Scanner.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("scanner.extensions contains an empty entry")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
