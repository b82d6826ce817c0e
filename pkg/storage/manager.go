package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager writes media files into one directory and remembers which
// file names already exist there.
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output directory if needed and indexes the
// files it already holds.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		m.saved[entry.Name()] = true
	}
	return nil
}

// Path returns where name is stored
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, filepath.Base(name))
}

// IsDownloaded reports whether name exists, consulting the disk when the
// index has no entry.
func (m *Manager) IsDownloaded(name string) bool {
	name = filepath.Base(name)

	m.mu.RLock()
	ok := m.saved[name]
	m.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := os.Stat(m.Path(name)); err == nil {
		m.mu.Lock()
		m.saved[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r to name through a temporary file and an atomic rename.
// It returns the final path and the number of bytes written.
func (m *Manager) Save(r io.Reader, name string) (string, int64, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}
	filename := m.Path(name)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	n, err := io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to write media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()
	return filename, n, nil
}

// OutputDir returns the directory files are written to
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Count returns the number of files known to exist
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
