package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspace holds the scratch directories for one job. Dir lives on local
// disk and receives the large video intermediates; RAMDir holds small
// files (RPU binary, chapter metadata) and falls back to Dir when the
// RAM-backed mount is unavailable.
type workspace struct {
	Dir    string
	RAMDir string
}

func newWorkspace(tempBase, ramBase, jobID string) (*workspace, error) {
	dir := filepath.Join(tempBase, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}

	ramDir := dir
	if ramBase != "" {
		if info, err := os.Stat(ramBase); err == nil && info.IsDir() {
			ramDir = filepath.Join(ramBase, "shuttle-"+jobID)
			if err := os.MkdirAll(ramDir, 0o755); err != nil {
				ramDir = dir
			}
		}
	}

	return &workspace{Dir: dir, RAMDir: ramDir}, nil
}

// Cleanup removes both scratch directories and everything in them.
func (w *workspace) Cleanup() error {
	if w == nil {
		return nil
	}
	var firstErr error
	for _, dir := range []string{w.Dir, w.RAMDir} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clean workspace %q: %w", dir, err)
		}
	}
	return firstErr
}
