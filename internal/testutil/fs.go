package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// NewFs returns an in-memory filesystem populated with files. Keys are
// absolute slash-separated paths.
func NewFs(t testing.TB, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	WriteFiles(t, fs, files)
	return fs
}

// WriteFiles writes files into fs, creating parent directories.
func WriteFiles(t testing.TB, fs afero.Fs, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.FromSlash(name)
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// CountingFs wraps an afero.Fs and records how often each path is opened or
// stat'ed.
type CountingFs struct {
	afero.Fs

	mu    sync.Mutex
	opens map[string]int
	stats map[string]int
}

// NewCountingFs wraps fs.
func NewCountingFs(fs afero.Fs) *CountingFs {
	return &CountingFs{
		Fs:    fs,
		opens: make(map[string]int),
		stats: make(map[string]int),
	}
}

// Open records the call and delegates.
func (c *CountingFs) Open(name string) (afero.File, error) {
	c.record(c.opens, name)
	return c.Fs.Open(name)
}

// OpenFile records the call and delegates.
func (c *CountingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.record(c.opens, name)
	return c.Fs.OpenFile(name, flag, perm)
}

// Stat records the call and delegates.
func (c *CountingFs) Stat(name string) (os.FileInfo, error) {
	c.record(c.stats, name)
	return c.Fs.Stat(name)
}

// Opens returns how many times name was opened.
func (c *CountingFs) Opens(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[filepath.Clean(name)]
}

// Stats returns how many times name was stat'ed.
func (c *CountingFs) Stats(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[filepath.Clean(name)]
}

// Total returns the number of recorded calls of any kind.
func (c *CountingFs) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, v := range c.opens {
		n += v
	}
	for _, v := range c.stats {
		n += v
	}
	return n
}

// OpenedPaths returns every opened path, sorted.
func (c *CountingFs) OpenedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.opens))
	for p := range c.opens {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Reset clears all counters.
func (c *CountingFs) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens = make(map[string]int)
	c.stats = make(map[string]int)
}

func (c *CountingFs) record(counts map[string]int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts[filepath.Clean(name)]++
}
