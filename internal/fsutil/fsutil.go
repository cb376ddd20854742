// Package fsutil collects the filesystem primitives the sync and serve
// engines both need: plain file copy (used by the sync engine's Phase 2
// copy tasks), atomic file replacement (used by the sync engine's archive
// and Phase 3 index writes and by the serve engine's index-file caching), and
// a path-escape guard (used by the serve engine's raw-file fallback).
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// CopyFile copies src to dest, preserving dest's permission bits from src.
// No other metadata (mtimes, ownership) is preserved — the registry does
// not need it and dropping it keeps archive copies' bytes-only semantics
// simple.
func CopyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer srcFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		return errors.Wrapf(err, "copy %s -> %s", src, dest)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}
	return os.Chmod(dest, srcInfo.Mode())
}

// WriteFileAtomic writes data to path by writing to a sibling temp file and
// renaming over path, so that a concurrent reader never observes a
// partially written file. Falls back to copy+remove on cross-device rename
// errors, the same fallback renameWithFallback uses.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close temp file for %s", path)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrapf(err, "chmod temp file for %s", path)
	}

	if err := renameWithFallback(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into place: %s", path)
	}
	return nil
}

func renameWithFallback(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	crossDevice := false
	if errno, ok := terr.Err.(syscall.Errno); ok && errno == syscall.EXDEV {
		crossDevice = true
	}
	if runtime.GOOS == "windows" {
		if errno, ok := terr.Err.(syscall.Errno); ok && errno == 0x11 {
			crossDevice = true
		}
	}
	if !crossDevice {
		return terr
	}

	if cerr := CopyFile(src, dest); cerr != nil {
		return cerr
	}
	return os.Remove(src)
}

// WithinRoot reports whether the resolved form of candidate lies within
// root, guarding the serve engine's raw-file fallback against `../` path
// traversal. It resolves both paths with filepath.Clean and compares
// path components rather than doing a naive string-prefix check, so that
// /foo and /foobar are never conflated.
func WithinRoot(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)

	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+string(os.PathSeparator))
}

// SafeJoin joins root and userPath and verifies the result stays within
// root. It returns an error if it does not.
func SafeJoin(root, userPath string) (string, error) {
	joined := filepath.Join(root, userPath)
	if !WithinRoot(root, joined) {
		return "", errors.Errorf("path %q escapes root %q", userPath, root)
	}
	return joined, nil
}
