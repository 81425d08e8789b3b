package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "artifact.txt")

	if err := WriteFileAtomic(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Fatalf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(PartialPath(path)); !os.IsNotExist(err) {
		t.Fatal("partial file should not survive commit")
	}
}

func TestCommitRenamesPartial(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "homily.mp3")
	partial := PartialPath(final)

	if err := os.WriteFile(partial, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Commit(partial, final); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("final artifact missing: %v", err)
	}
}

func TestCommitMissingPartialFails(t *testing.T) {
	dir := t.TempDir()
	if err := Commit(filepath.Join(dir, "absent.partial"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for missing partial file")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
}
