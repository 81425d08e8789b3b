// Package fileutil provides small filesystem helpers shared by the pipeline
// stages, chiefly commit-by-rename semantics for artifact writes.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PartialSuffix marks in-progress artifact writes that have not committed.
const PartialSuffix = ".partial"

// PartialPath returns the staging path used while an artifact is written.
func PartialPath(finalPath string) string {
	return finalPath + PartialSuffix
}

// Commit renames a staged partial file onto its final path. Rename within a
// filesystem is atomic, so readers never observe a half-written artifact.
func Commit(partialPath, finalPath string) error {
	if err := os.Rename(partialPath, finalPath); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

// Discard removes a staged partial file, ignoring a file that never appeared.
func Discard(partialPath string) {
	_ = os.Remove(partialPath)
}

// WriteFileAtomic writes data to path through a partial file plus rename.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	partial := PartialPath(path)
	if err := os.WriteFile(partial, data, mode); err != nil {
		return err
	}
	if err := Commit(partial, path); err != nil {
		Discard(partial)
		return err
	}
	return nil
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
