package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/pkg/models"
)

func testWalker(t *testing.T, interval int) *Walker {
	t.Helper()
	return NewWalker(&config.Config{ProgressInterval: interval}, zap.NewNop())
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func TestScan_RootNotFound(t *testing.T) {
	w := testWalker(t, 100)

	called := false
	err := w.Scan(context.Background(), "/nonexistent/root", func(string) error {
		called = true
		return nil
	}, nil)

	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("Scan() error = %v, want ErrPathNotFound", err)
	}
	if called {
		t.Error("Callback invoked for missing root")
	}
}

func TestScan_RootNotDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "plain.txt")
	writeFiles(t, tmpDir, "plain.txt")

	w := testWalker(t, 100)

	called := false
	err := w.Scan(context.Background(), file, func(string) error {
		called = true
		return nil
	}, nil)

	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Scan() error = %v, want ErrNotDirectory", err)
	}
	if called {
		t.Error("Callback invoked for non-directory root")
	}
}

func TestScan_CountersResetBetweenScans(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "a.txt", "b.txt")

	w := testWalker(t, 100)
	ok := func(string) error { return nil }

	if err := w.Scan(context.Background(), tmpDir, ok, nil); err != nil {
		t.Fatalf("First Scan() error = %v", err)
	}
	if got := w.Statistics().Processed; got != 2 {
		t.Fatalf("First scan processed = %d, want 2", got)
	}

	if err := w.Scan(context.Background(), tmpDir, ok, nil); err != nil {
		t.Fatalf("Second Scan() error = %v", err)
	}
	if got := w.Statistics().Processed; got != 2 {
		t.Errorf("Second scan processed = %d, want 2 (counters must reset)", got)
	}
}

func TestScan_CountersSumToVisitedEntries(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir,
		"a.txt", "b.txt", "c.jpg",
		"sub/d.txt", "sub/e.log",
		"sub/deep/f.txt")

	w := testWalker(t, 100)
	err := w.Scan(context.Background(), tmpDir, func(string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	stats := w.Statistics()
	if stats.Total() != 6 {
		t.Errorf("Total() = %d, want 6", stats.Total())
	}
	if stats.Processed != 6 {
		t.Errorf("Processed = %d, want 6", stats.Processed)
	}
}

func TestScan_ExtensionFilter(t *testing.T) {
	tests := []struct {
		name      string
		filter    []string
		processed uint64
		skipped   uint64
	}{
		{"With dot", []string{".txt"}, 2, 2},
		{"Without dot", []string{"txt"}, 2, 2},
		{"Uppercase filter", []string{".TXT"}, 2, 2},
		{"Multiple", []string{"txt", ".jpg"}, 3, 1},
		{"No filter", nil, 4, 0},
		{"No match", []string{".pdf"}, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			// A.TXT must match a lowercase "txt" filter
			writeFiles(t, tmpDir, "a.txt", "A.TXT", "b.jpg", "c.log")

			w := testWalker(t, 100)
			if err := w.Scan(context.Background(), tmpDir, func(string) error { return nil }, tt.filter); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}

			stats := w.Statistics()
			if stats.Processed != tt.processed {
				t.Errorf("Processed = %d, want %d", stats.Processed, tt.processed)
			}
			if stats.Skipped != tt.skipped {
				t.Errorf("Skipped = %d, want %d", stats.Skipped, tt.skipped)
			}
		})
	}
}

func TestScan_CallbackErrorClassification(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "ok.txt", "denied.txt", "broken.txt")

	w := testWalker(t, 100)
	err := w.Scan(context.Background(), tmpDir, func(path string) error {
		switch filepath.Base(path) {
		case "denied.txt":
			return fs.ErrPermission
		case "broken.txt":
			return errors.New("boom")
		default:
			return nil
		}
	}, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v (callback errors must not abort the walk)", err)
	}

	stats := w.Statistics()
	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1", stats.Processed)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (permission denied counts as skipped)", stats.Skipped)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
}

func TestScan_UnreadableSubdirectoryPruned(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("Running as root, permission checks do not apply")
	}

	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "a.txt", "b.jpg", "locked/c.txt")

	locked := filepath.Join(tmpDir, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	var visited []string
	w := testWalker(t, 100)
	err := w.Scan(context.Background(), tmpDir, func(path string) error {
		visited = append(visited, filepath.Base(path))
		return nil
	}, []string{".txt"})
	if err != nil {
		t.Fatalf("Scan() error = %v (unreadable subdirectory must be pruned, not fatal)", err)
	}

	for _, name := range visited {
		if name == "c.txt" {
			t.Error("c.txt was visited despite its directory being unreadable")
		}
	}

	stats := w.Statistics()
	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1 (a.txt)", stats.Processed)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (b.jpg filtered)", stats.Skipped)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}
}

func TestScan_ProgressFiresAtExactMultiples(t *testing.T) {
	tmpDir := t.TempDir()
	names := make([]string, 7)
	for i := range names {
		names[i] = filepath.Join("files", string(rune('a'+i))+".txt")
	}
	writeFiles(t, tmpDir, names...)

	var fired []uint64
	w := testWalker(t, 2)
	w.OnProgress = func(stats models.ScanStats) {
		fired = append(fired, stats.Processed)
	}

	if err := w.Scan(context.Background(), tmpDir, func(string) error { return nil }, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []uint64{2, 4, 6}
	if len(fired) != len(want) {
		t.Fatalf("Progress fired %d times (%v), want %d", len(fired), fired, len(want))
	}
	for i, v := range want {
		if fired[i] != v {
			t.Errorf("Progress[%d] fired at processed=%d, want %d", i, fired[i], v)
		}
	}
}

func TestScan_ProgressNotTiedToFailures(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "ok1.txt", "ok2.txt", "bad1.txt", "bad2.txt", "bad3.txt")

	fired := 0
	w := testWalker(t, 2)
	w.OnProgress = func(models.ScanStats) { fired++ }

	err := w.Scan(context.Background(), tmpDir, func(path string) error {
		if filepath.Base(path)[:2] == "ba" {
			return errors.New("boom")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	// processed ends at 2: exactly one notification regardless of failures
	if fired != 1 {
		t.Errorf("Progress fired %d times, want 1", fired)
	}
}

func TestScan_Cancellation(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, "a.txt", "b.txt", "c.txt")

	ctx, cancel := context.WithCancel(context.Background())

	w := testWalker(t, 100)
	err := w.Scan(ctx, tmpDir, func(string) error {
		cancel() // cancel after the first file
		return nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}

	if got := w.Statistics().Processed; got != 1 {
		t.Errorf("Processed = %d, want 1 (in-flight statistics preserved)", got)
	}
}

func TestNormalizeExtensions(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"Adds dot", []string{"txt"}, []string{".txt"}},
		{"Keeps dot", []string{".txt"}, []string{".txt"}},
		{"Lowercases", []string{".TXT", "JPG"}, []string{".txt", ".jpg"}},
		{"Drops empties", []string{"", "  ", "log"}, []string{".log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeExtensions(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeExtensions(%v) has %d entries, want %d", tt.input, len(got), len(tt.want))
			}
			for _, ext := range tt.want {
				if _, ok := got[ext]; !ok {
					t.Errorf("normalizeExtensions(%v) missing %q", tt.input, ext)
				}
			}
		})
	}
}
