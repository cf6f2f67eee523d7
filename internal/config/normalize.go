package config

import (
	"path/filepath"
	"strings"
)

// normalize expands user paths and derives dependent locations from the
// share directory when they are not set explicitly.
func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeScanner()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ShareDir, err = ExpandPath(c.Paths.ShareDir); err != nil {
		return err
	}
	if c.Paths.MediaDir, err = ExpandPath(c.Paths.MediaDir); err != nil {
		return err
	}
	if c.Paths.TempDir, err = ExpandPath(c.Paths.TempDir); err != nil {
		return err
	}
	if c.Paths.RAMDir, err = ExpandPath(c.Paths.RAMDir); err != nil {
		return err
	}

	if strings.TrimSpace(c.Paths.QueuePath) == "" {
		c.Paths.QueuePath = filepath.Join(c.Paths.ShareDir, "queue.json")
	} else if c.Paths.QueuePath, err = ExpandPath(c.Paths.QueuePath); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = c.Paths.QueuePath + ".lock"
	} else if c.Paths.LockPath, err = ExpandPath(c.Paths.LockPath); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.ShareDir, "logs")
	} else if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if strings.TrimSpace(c.Store.DBPath) == "" {
		c.Store.DBPath = filepath.Join(c.Paths.ShareDir, "queue.db")
	} else if expanded, err := ExpandPath(c.Store.DBPath); err == nil {
		c.Store.DBPath = expanded
	}
}

func (c *Config) normalizeScanner() {
	if len(c.Scanner.Extensions) == 0 {
		c.Scanner.Extensions = append([]string(nil), defaultExtensions...)
	}
	for i, ext := range c.Scanner.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scanner.Extensions[i] = ext
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
