package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/pkg/models"
	"go.uber.org/zap"
)

// Walk error kinds. Both abort a scan before any callback runs.
var (
	ErrPathNotFound = errors.New("path does not exist")
	ErrNotDirectory = errors.New("path is not a directory")
)

// FileCallback is invoked for every file that passes the extension filter.
// It must not panic: failures are reported through the returned error.
// A nil return counts the file as processed, an error wrapping
// fs.ErrPermission counts it as skipped, any other error counts it as failed.
type FileCallback func(path string) error

// ProgressFunc receives the running counters at every progress interval.
type ProgressFunc func(stats models.ScanStats)

// Walker walks a directory tree and applies a callback to every file.
// Unreadable subtrees are pruned, bad entries are counted, and the walk
// itself only aborts on an enumeration failure.
type Walker struct {
	logger   *zap.Logger
	interval int

	// OnProgress, if set, is called in addition to the progress log line.
	OnProgress ProgressFunc

	stats models.ScanStats
}

// NewWalker creates a new filesystem walker
func NewWalker(cfg *config.Config, logger *zap.Logger) *Walker {
	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = 100
	}

	return &Walker{
		logger:   logger,
		interval: interval,
	}
}

// Scan recursively walks the directory tree rooted at root and invokes
// callback for every file whose extension passes the filter. An empty or nil
// extensions list admits every file. Counters reset at entry; enumeration
// order is filesystem-dependent and not guaranteed.
func (w *Walker) Scan(ctx context.Context, root string, callback FileCallback, extensions []string) error {
	info, err := os.Stat(root)
	if err != nil {
		w.logger.Error("Path does not exist", zap.String("path", root))
		return fmt.Errorf("%w: %s", ErrPathNotFound, root)
	}
	if !info.IsDir() {
		w.logger.Error("Path is not a directory", zap.String("path", root))
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	// Reset statistics
	w.stats = models.ScanStats{}

	filter := normalizeExtensions(extensions)

	w.logger.Info("Starting scan", zap.String("path", root))
	if len(filter) > 0 {
		w.logger.Info("Filtering by extensions", zap.Strings("extensions", extensions))
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			// ReadDir failed on a subdirectory: a permission (or similar OS)
			// error prunes the subtree, anything else is fatal for the walk.
			if errors.Is(err, fs.ErrPermission) {
				w.logger.Warn("Cannot access directory, pruning", zap.String("path", path), zap.Error(err))
				return filepath.SkipDir
			}
			return fmt.Errorf("error during directory scan: %w", err)
		}

		if d.IsDir() {
			return nil
		}

		w.processEntry(path, callback, filter)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.Info("Scan cancelled", zap.String("path", root))
		} else {
			w.logger.Error("Error during directory scan", zap.Error(err))
		}
		return err
	}

	return nil
}

// processEntry applies the extension filter and the callback to one entry,
// updating the counters. Never propagates callback errors to the walk.
func (w *Walker) processEntry(path string, callback FileCallback, filter map[string]struct{}) {
	if len(filter) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := filter[ext]; !ok {
			w.stats.Skipped++
			w.logger.Debug("Skipped (extension filter)", zap.String("path", path))
			return
		}
	}

	err := callback(path)

	switch {
	case err == nil:
		w.stats.Processed++
		if w.stats.Processed%uint64(w.interval) == 0 {
			w.reportProgress()
		}
	case errors.Is(err, fs.ErrPermission):
		w.logger.Warn("Permission denied", zap.String("path", path))
		w.stats.Skipped++
	default:
		w.logger.Error("Error processing entry", zap.String("path", path), zap.Error(err))
		w.stats.Failed++
	}
}

// reportProgress logs the running counters and fires the progress hook.
func (w *Walker) reportProgress() {
	w.logger.Info("Progress",
		zap.Uint64("processed", w.stats.Processed),
		zap.Uint64("failed", w.stats.Failed),
		zap.Uint64("skipped", w.stats.Skipped))

	if w.OnProgress != nil {
		w.OnProgress(w.stats)
	}
}

// Statistics returns a snapshot of the counters for the most recent scan.
func (w *Walker) Statistics() models.ScanStats {
	return w.stats
}

// normalizeExtensions lower-cases each suffix and ensures a leading dot, so
// "txt" and ".TXT" both match a file named "a.txt".
func normalizeExtensions(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		return nil
	}

	filter := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		filter[ext] = struct{}{}
	}

	return filter
}
