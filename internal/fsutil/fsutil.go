// Package fsutil provides the file system primitives the pipeline is built
// on: recursive tree copies, glob expansion, and directory moves.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// CopyFile copies a single regular file, creating the destination's parent
// directory and preserving the source's permission bits.
func CopyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return out.Close()
}

// CopyDir recursively copies every regular file under src into dest,
// preserving relative paths. It returns the number of files copied.
func CopyDir(src, dest string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dest, rel), 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := CopyFile(path, filepath.Join(dest, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return copied, nil
}

// Glob expands a doublestar pattern against root and returns the matching
// regular files as root-relative paths.
func Glob(root, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s under %s: %w", pattern, root, err)
	}
	var files []string
	for _, m := range matches {
		info, err := os.Stat(filepath.Join(root, m))
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	return files, nil
}

// MoveDir relocates a directory, falling back to copy-and-remove when a
// rename crosses filesystems.
func MoveDir(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if _, err := CopyDir(src, dest); err != nil {
		return err
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove %s after move: %w", src, err)
	}
	return nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
