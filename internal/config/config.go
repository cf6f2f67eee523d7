package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations shared across commands.
type Paths struct {
	ShareDir  string `toml:"share_dir"`
	QueuePath string `toml:"queue_path"`
	LockPath  string `toml:"lock_path"`
	LogDir    string `toml:"log_dir"`
	MediaDir  string `toml:"media_dir"`
	TempDir   string `toml:"temp_dir"`
	RAMDir    string `toml:"ram_dir"`
}

// Store selects and locates the queue store backend.
type Store struct {
	Backend string `toml:"backend"`
	DBPath  string `toml:"db_path"`
}

// Store backend names.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Workflow contains worker loop timing and retry settings.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	MaxRetries        int `toml:"max_retries"`
	StaleClaimMinutes int `toml:"stale_claim_minutes"`
}

// Scanner contains media discovery settings.
type Scanner struct {
	Extensions  []string `toml:"extensions"`
	SkipMarkers []string `toml:"skip_markers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Binaries overrides the external tool names the pipeline invokes.
type Binaries struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	DoviTool string `toml:"dovi_tool"`
	MKVMerge string `toml:"mkvmerge"`
}

// Config is the root configuration object.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Store    Store    `toml:"store"`
	Workflow Workflow `toml:"workflow"`
	Scanner  Scanner  `toml:"scanner"`
	Logging  Logging  `toml:"logging"`
	Binaries Binaries `toml:"binaries"`
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path; defaults apply otherwise.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shuttle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// DefaultConfigPath returns the expanded default config file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/shuttle/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories shuttle needs to operate. The
// media directory is not created: it lives on external storage and a
// missing mount should surface as a scan error, not an empty directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ShareDir,
		filepath.Dir(c.Paths.QueuePath),
		c.Paths.LogDir,
		c.Paths.TempDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the worker idle sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// StaleClaimWindow returns how old a running claim must be before the
// reclaim sweep returns it to pending. Zero disables the sweep.
func (c *Config) StaleClaimWindow() time.Duration {
	return time.Duration(c.Workflow.StaleClaimMinutes) * time.Minute
}

// ExpandPath resolves ~ prefixes and returns an absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
