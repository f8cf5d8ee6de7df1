package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/internal/filesystem"
	"github.com/IvanShishkin/filemq/pkg/models"
)

// Publisher is the queue side of the pipeline as the scanner sees it.
type Publisher interface {
	Connect() error
	Disconnect()
	Publish(record *models.FileRecord) error
	IsConnected() bool
}

// Scanner wires the walker, the extractor and the publisher into the
// file-to-message pipeline.
type Scanner struct {
	cfg       *config.Config
	logger    *zap.Logger
	walker    *filesystem.Walker
	extractor *filesystem.Extractor
	publisher Publisher
}

// NewScanner creates a new scanner instance
func NewScanner(cfg *config.Config, logger *zap.Logger, publisher Publisher) *Scanner {
	return &Scanner{
		cfg:       cfg,
		logger:    logger,
		walker:    filesystem.NewWalker(cfg, logger),
		extractor: filesystem.NewExtractor(cfg, logger),
		publisher: publisher,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(cb filesystem.ProgressFunc) {
	s.walker.OnProgress = cb
}

// Run connects to the broker, scans every root in order and publishes one
// message per file. The broker connection is closed on every exit path,
// including cancellation. A walk failure on one root does not stop the
// remaining roots; a failed initial connection aborts the whole run.
func (s *Scanner) Run(ctx context.Context, roots []string, extensions []string) (models.ScanStats, error) {
	var total models.ScanStats

	if err := s.publisher.Connect(); err != nil {
		s.logger.Error("Failed to connect to RabbitMQ", zap.Error(err))
		return total, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer s.publisher.Disconnect()

	var walkErr error
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}

		err := s.walker.Scan(ctx, root, s.processFile, extensions)
		stats := s.walker.Statistics()
		total.Processed += stats.Processed
		total.Failed += stats.Failed
		total.Skipped += stats.Skipped

		s.logger.Info("Scan completed",
			zap.String("path", root),
			zap.Uint64("processed", stats.Processed),
			zap.Uint64("failed", stats.Failed),
			zap.Uint64("skipped", stats.Skipped))

		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info("Scan interrupted by user")
				break
			}
			// Keep going with the remaining roots.
			s.logger.Error("Scan failed", zap.String("path", root), zap.Error(err))
			walkErr = err
		}
	}

	return total, walkErr
}

// processFile extracts metadata for one file and publishes it. Any failure,
// including a permission-denied status read, counts the file as failed: the
// permission class only crosses the walker boundary for callbacks that
// cannot produce a record at all.
func (s *Scanner) processFile(path string) error {
	record, err := s.extractor.Extract(path)
	if err != nil {
		return fmt.Errorf("extraction failed: %s", path)
	}

	if err := s.publisher.Publish(record); err != nil {
		return fmt.Errorf("publish failed for %s: %v", path, err)
	}

	s.logger.Debug("Published", zap.String("file", record.Name))
	return nil
}
