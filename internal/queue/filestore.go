package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the poll interval while waiting on the companion lock
// file. The lock is advisory and held only for one read-modify-write.
const lockRetryDelay = 25 * time.Millisecond

// fileBackend persists the job document as a single JSON file on the
// shared mount, serialized by an OS-level exclusive lock on a companion
// lock file. The in-process mutex covers goroutines sharing one backend;
// flock covers other processes and hosts on the same mount.
//
// flock semantics across network filesystems vary; deployments on mounts
// without reliable advisory locking should use the SQLite backend instead.
type fileBackend struct {
	queuePath string
	lock      *flock.Flock

	mu sync.Mutex
}

// NewFileStore opens a Store backed by a flock-guarded JSON document.
// The document is created empty on first mutation if absent.
func NewFileStore(queuePath, lockPath string, opts ...Option) (*Store, error) {
	if queuePath == "" {
		return nil, errors.New("queue path required")
	}
	if lockPath == "" {
		lockPath = queuePath + ".lock"
	}
	if err := os.MkdirAll(filepath.Dir(queuePath), 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	b := &fileBackend{
		queuePath: queuePath,
		lock:      flock.New(lockPath),
	}
	return newStore(b, opts...), nil
}

func (b *fileBackend) Update(ctx context.Context, fn func(doc *document) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	if !locked {
		return errors.New("acquire queue lock: not acquired")
	}
	defer func() {
		_ = b.lock.Unlock()
	}()

	doc, err := b.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return b.save(doc)
}

// load reads the persisted document. A missing, empty, or undecodable file
// is treated as an empty collection and the next save reinitializes the
// store. Any other read failure surfaces to the caller: a flaky mount must
// fail the operation, not masquerade as an empty queue and let the
// following save wipe the shared document.
func (b *fileBackend) load() (*document, error) {
	data, err := os.ReadFile(b.queuePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read queue document: %w", err)
	}
	if len(data) == 0 {
		return &document{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return &document{}, nil
	}
	return &doc, nil
}

// save writes the document through a temp file and rename so readers on
// the same mount never observe a partial write.
func (b *fileBackend) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue document: %w", err)
	}

	dir := filepath.Dir(b.queuePath)
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("stage queue document: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write queue document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flush queue document: %w", err)
	}
	if err := os.Rename(tmpPath, b.queuePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace queue document: %w", err)
	}
	return nil
}

func (b *fileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lock != nil && b.lock.Locked() {
		return b.lock.Unlock()
	}
	return nil
}
