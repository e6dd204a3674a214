package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backlogsmith/backlogsmith/internal/config"
)

// BacklogPath returns the backlog.json path for a project directory.
func BacklogPath(projectDir string) string {
	return filepath.Join(projectDir, config.Dir, config.BacklogFile)
}

// Save writes the backlog to .backlogsmith/backlog.json atomically.
// It writes to a temp file first, then renames to ensure atomic operation.
func Save(projectDir string, b *Backlog) (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backlog: %w", err)
	}

	path := BacklogPath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a previously saved backlog.
func Load(projectDir string) (*Backlog, error) {
	path := BacklogPath(projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var b Backlog
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &b, nil
}
