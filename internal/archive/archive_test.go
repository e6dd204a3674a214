package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backlogsmith/backlogsmith/internal/config"
)

func writeBacklog(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, config.Dir, config.BacklogFile)
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte(`{"run_id": "old"}`), 0644); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 8 {
		t.Errorf("run id %q is not 8 characters", a)
	}
	if a == b {
		t.Errorf("run ids collide: %q", a)
	}
}

func TestPreviousMovesBacklog(t *testing.T) {
	dir := t.TempDir()
	src := writeBacklog(t, dir)

	archived, err := Previous(dir, "abcd1234", io.Discard)
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if archived == "" {
		t.Fatal("expected an archive directory")
	}
	if !strings.HasSuffix(archived, "-abcd1234") {
		t.Errorf("archive dir %q is not keyed by the run id", archived)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source backlog.json still present after archiving")
	}
	data, err := os.ReadFile(filepath.Join(archived, config.BacklogFile))
	if err != nil {
		t.Fatalf("archived copy missing: %v", err)
	}
	if string(data) != `{"run_id": "old"}` {
		t.Errorf("archived content = %q", data)
	}
}

func TestPreviousNothingToArchive(t *testing.T) {
	archived, err := Previous(t.TempDir(), "abcd1234", io.Discard)
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if archived != "" {
		t.Errorf("archived %q, want nothing", archived)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	dst := filepath.Join(dir, "dst.json")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still present after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("moved content = %q", data)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := moveFile(filepath.Join(dir, "absent.json"), filepath.Join(dir, "dst.json"))
	if err == nil {
		t.Fatal("moveFile succeeded on a missing source")
	}
}

func TestPreviousCollision(t *testing.T) {
	dir := t.TempDir()
	writeBacklog(t, dir)

	first, err := Previous(dir, "abcd1234", io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	// Same run id again on the same day lands in a -2 directory.
	writeBacklog(t, dir)
	second, err := Previous(dir, "abcd1234", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if second != first+"-2" {
		t.Errorf("collision dir = %q, want %q", second, first+"-2")
	}
}
