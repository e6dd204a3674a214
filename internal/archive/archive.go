// Package archive preserves the previous backlog before a new pipeline run
// overwrites it. Each archived run gets a dated directory under
// .backlogsmith/archive/ keyed by a short run id.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/backlogsmith/backlogsmith/internal/config"
)

// NewRunID returns a short unique identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// Previous moves an existing backlog.json out of the way into
// .backlogsmith/archive/<date>-<runID>/. Returns the archive directory, or
// "" when there was nothing to archive.
func Previous(projectDir, runID string, w io.Writer) (string, error) {
	src := filepath.Join(projectDir, config.Dir, config.BacklogFile)
	if !fileExists(src) {
		return "", nil
	}

	datePart := time.Now().Format("2006-01-02")
	baseName := fmt.Sprintf("%s-%s", datePart, runID)
	archiveDir := filepath.Join(projectDir, config.Dir, config.ArchiveDir, baseName)
	archiveDir = resolveCollision(archiveDir)

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	dst := filepath.Join(archiveDir, config.BacklogFile)
	if err := moveFile(src, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", config.BacklogFile, err)
	}
	if w != nil {
		fmt.Fprintf(w, "  archived previous backlog to %s\n", filepath.Base(archiveDir))
	}
	return archiveDir, nil
}

// moveFile renames src into the archive, degrading to copy-and-remove when
// the archive directory sits on a different filesystem.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy across filesystems: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

// resolveCollision appends -2, -3, etc. if the directory already exists.
func resolveCollision(dir string) string {
	if !dirExists(dir) {
		return dir
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", dir, i)
		if !dirExists(candidate) {
			return candidate
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
