package testtree

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest describes the test tree to generate.
type Manifest struct {
	Directories []Directory `yaml:"directories"`
}

// Directory is one directory in the manifest, with the extensions and file
// count to generate inside it.
type Directory struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	Files      int      `yaml:"files"`
	MinSize    int      `yaml:"min_size"`
	MaxSize    int      `yaml:"max_size"`
}

// Generator writes a directory tree of random files for exercising the
// scanner against a known shape.
type Generator struct {
	logger *zap.Logger
	rng    *rand.Rand
}

// NewGenerator creates a generator seeded for reproducible trees.
func NewGenerator(logger *zap.Logger, seed int64) *Generator {
	return &Generator{
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// LoadManifest reads a YAML manifest describing the tree.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if len(m.Directories) == 0 {
		return nil, fmt.Errorf("manifest has no directories")
	}

	return &m, nil
}

// DefaultManifest mirrors the layout the scanner was originally exercised
// against: documents, images, videos and downloads with typical extensions.
func DefaultManifest() *Manifest {
	return &Manifest{
		Directories: []Directory{
			{Path: "documents", Extensions: []string{".txt", ".pdf", ".docx", ".xlsx"}, Files: 5},
			{Path: "documents/work", Extensions: []string{".txt", ".pdf", ".docx"}, Files: 4},
			{Path: "documents/personal", Extensions: []string{".txt", ".pdf"}, Files: 3},
			{Path: "images", Extensions: []string{".jpg", ".png", ".gif"}, Files: 5},
			{Path: "images/vacation", Extensions: []string{".jpg", ".png"}, Files: 4},
			{Path: "images/family", Extensions: []string{".jpg"}, Files: 3},
			{Path: "videos", Extensions: []string{".mp4", ".avi", ".mkv"}, Files: 3},
			{Path: "downloads", Extensions: []string{".zip", ".exe", ".gz"}, Files: 3},
		},
	}
}

// Generate writes the manifest's tree under baseDir and returns the number
// of files created.
func (g *Generator) Generate(baseDir string, m *Manifest) (int, error) {
	total := 0

	for _, dir := range m.Directories {
		dirPath := filepath.Join(baseDir, dir.Path)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return total, fmt.Errorf("failed to create directory %s: %w", dirPath, err)
		}
		g.logger.Debug("Created directory", zap.String("path", dirPath))

		count := dir.Files
		if count <= 0 {
			count = 3
		}

		exts := dir.Extensions
		if len(exts) == 0 {
			exts = []string{".txt"}
		}

		for i := 0; i < count; i++ {
			ext := exts[g.rng.Intn(len(exts))]
			name := fmt.Sprintf("file_%03d%s", i, ext)
			filePath := filepath.Join(dirPath, name)

			size := g.fileSize(dir)
			if err := os.WriteFile(filePath, g.randomContent(size), 0o644); err != nil {
				return total, fmt.Errorf("failed to create file %s: %w", filePath, err)
			}
			total++
		}
	}

	g.logger.Info("Test tree generated", zap.String("path", baseDir), zap.Int("files", total))
	return total, nil
}

func (g *Generator) fileSize(dir Directory) int {
	min, max := dir.MinSize, dir.MaxSize
	if min <= 0 {
		min = 64
	}
	if max <= min {
		max = min + 1024
	}
	return min + g.rng.Intn(max-min)
}

const contentChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 \n"

func (g *Generator) randomContent(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = contentChars[g.rng.Intn(len(contentChars))]
	}
	return buf
}
