package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/pkg/models"
	"go.uber.org/zap"
)

// HashErrorSentinel is published instead of a digest when the file could not
// be read during hashing. The record itself is still complete.
const HashErrorSentinel = "error_calculating_hash"

// hashChunkSize bounds memory use while hashing large files.
const hashChunkSize = 4096

// Extractor produces a FileRecord for a file path
type Extractor struct {
	calculateHash bool
	maxHashSize   int64
	logger        *zap.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(cfg *config.Config, logger *zap.Logger) *Extractor {
	maxHashSize := cfg.MaxHashSize
	if maxHashSize <= 0 {
		maxHashSize = 100 * 1024 * 1024
	}

	return &Extractor{
		calculateHash: cfg.CalculateHash,
		maxHashSize:   maxHashSize,
		logger:        logger,
	}
}

// Extract reads file status and builds a complete record. A failed status
// read (permission or other OS error) returns an error after a warning log;
// it never panics and never returns a partial record.
func (e *Extractor) Extract(path string) (*models.FileRecord, error) {
	stat, err := os.Lstat(path)
	if err != nil {
		e.logger.Warn("Could not access file", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("could not access file %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	size := uint64(stat.Size())
	created, accessed := statTimes(stat)

	record := &models.FileRecord{
		Path:          absPath,
		Name:          filepath.Base(path),
		Extension:     strings.ToLower(filepath.Ext(path)),
		SizeBytes:     size,
		SizeHuman:     FormatSize(size),
		CreatedTime:   created.Format(time.RFC3339),
		ModifiedTime:  stat.ModTime().Format(time.RFC3339),
		AccessedTime:  accessed.Format(time.RFC3339),
		IsSymlink:     stat.Mode()&os.ModeSymlink != 0,
		ScanTimestamp: time.Now().Format(time.RFC3339),
	}

	if e.calculateHash && stat.Size() <= e.maxHashSize {
		record.SHA256Hash = e.computeHash(path)
	}

	return record, nil
}

// computeHash streams the file through SHA-256 in fixed-size chunks.
// Read failures degrade to the sentinel value instead of failing the record.
func (e *Extractor) computeHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("Could not calculate hash", zap.String("path", path), zap.Error(err))
		return HashErrorSentinel
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		e.logger.Warn("Could not calculate hash", zap.String("path", path), zap.Error(err))
		return HashErrorSentinel
	}

	return hex.EncodeToString(h.Sum(nil))
}

// FormatSize converts a byte count to a human-readable string, dividing by
// 1024 per unit step and formatting with two decimals (e.g. "1.50 KB").
func FormatSize(sizeBytes uint64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.2f PB", size)
}
