package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/media/ffprobe"
	"shuttle/internal/queue"
)

// Enqueuer is the slice of the queue store the scanner needs.
type Enqueuer interface {
	Add(ctx context.Context, inputPath string, jobType queue.JobType) (queue.AddResult, error)
	KnownInputPaths(ctx context.Context) (map[string]struct{}, error)
}

// Classifier decides which pipeline variant applies to a source file.
type Classifier interface {
	Classify(ctx context.Context, path string) (queue.JobType, error)
}

// Result summarizes one scan pass.
type Result struct {
	Scanned    int
	Added      int
	Duplicates int
	Skipped    int
}

// Scanner walks the media directory and enqueues untracked source files.
type Scanner struct {
	store      Enqueuer
	classifier Classifier
	logger     *slog.Logger

	extensions  map[string]struct{}
	skipMarkers []string
}

// New constructs a scanner with the config's extension and marker filters.
// A nil classifier falls back to ffprobe-based Dolby Vision detection.
func New(cfg *config.Config, store Enqueuer, classifier Classifier, logger *slog.Logger) *Scanner {
	if classifier == nil {
		classifier = &FFprobeClassifier{Binary: cfg.Binaries.FFprobe}
	}
	extensions := make(map[string]struct{}, len(cfg.Scanner.Extensions))
	for _, ext := range cfg.Scanner.Extensions {
		extensions[ext] = struct{}{}
	}
	return &Scanner{
		store:       store,
		classifier:  classifier,
		logger:      logging.NewComponentLogger(logger, "scanner"),
		extensions:  extensions,
		skipMarkers: append([]string(nil), cfg.Scanner.SkipMarkers...),
	}
}

// Scan walks dir and enqueues every eligible file the queue does not
// already track. Files whose names carry a skip marker are generated
// outputs and never enqueued.
func (s *Scanner) Scan(ctx context.Context, dir string) (Result, error) {
	var result Result

	known, err := s.store.KnownInputPaths(ctx)
	if err != nil {
		return result, fmt.Errorf("scan %q: %w", dir, err)
	}

	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if _, ok := s.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		result.Scanned++

		if s.hasSkipMarker(name) {
			result.Skipped++
			return nil
		}
		if _, ok := known[path]; ok {
			result.Duplicates++
			return nil
		}

		jobType, err := s.classifier.Classify(ctx, path)
		if err != nil {
			s.logger.Warn("classification failed, skipping file",
				logging.String("path", path),
				logging.Error(err),
			)
			result.Skipped++
			return nil
		}

		added, err := s.store.Add(ctx, path, jobType)
		if err != nil {
			return fmt.Errorf("enqueue %q: %w", path, err)
		}
		if added.Duplicate {
			result.Duplicates++
			return nil
		}
		result.Added++
		s.logger.Info("enqueued job",
			logging.String("path", path),
			logging.String("job_type", string(jobType)),
			logging.String("job_id", added.Job.ID),
		)
		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("scan %q: %w", dir, walkErr)
	}
	return result, nil
}

func (s *Scanner) hasSkipMarker(name string) bool {
	for _, marker := range s.skipMarkers {
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// FFprobeClassifier inspects files with ffprobe and routes Dolby Vision
// sources to the full pipeline.
type FFprobeClassifier struct {
	Binary string
}

// Classify returns dolby_vision for sources carrying a DV layer and
// standard otherwise.
func (c *FFprobeClassifier) Classify(ctx context.Context, path string) (queue.JobType, error) {
	result, err := ffprobe.Inspect(ctx, c.Binary, path)
	if err != nil {
		return "", err
	}
	if len(result.VideoStreams()) == 0 {
		return "", errors.New("no video stream")
	}
	if result.HasDolbyVision() {
		return queue.JobTypeDolbyVision, nil
	}
	return queue.JobTypeStandard, nil
}
