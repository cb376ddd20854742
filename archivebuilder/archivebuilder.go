// Package archivebuilder builds deterministic gzipped tar archives for
// git-sourced packages: same logical file contents always produce the same
// archive bytes, regardless of filesystem metadata or directory iteration
// order.
//
// Tar headers zero out mtime and ownership, modes are normalized to one of
// two values, and gzip runs at maximum compression, so the compressed
// stream is a pure function of its input.
package archivebuilder

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

// deterministic tar headers carry a zero mtime and no owner identity.
var epoch = time.Unix(0, 0)

const (
	modeRegular    = 0o644
	modeExecutable = 0o755
)

// Build writes a gzipped tar archive to w containing every file in files
// (paths relative to root) under the `{name}-{version}/` prefix, in the
// order given — callers are responsible for sorting that order
// deterministically; Build does not re-sort it. Directory entries are
// never emitted.
func Build(w io.Writer, name, version, root string, files []string) error {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return regerr.Wrap(regerr.ArchiveWrite, "create gzip writer", err)
	}
	tw := tar.NewWriter(gz)

	prefix := name + "-" + version

	for _, rel := range files {
		if err := addFile(tw, root, prefix, rel); err != nil {
			tw.Close()
			gz.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		return regerr.Wrap(regerr.ArchiveWrite, "close tar writer", err)
	}
	if err := gz.Close(); err != nil {
		return regerr.Wrap(regerr.ArchiveWrite, "close gzip writer", err)
	}
	return nil
}

func addFile(tw *tar.Writer, root, prefix, rel string) error {
	full := filepath.Join(root, rel)

	info, err := os.Lstat(full)
	if err != nil {
		return regerr.Wrap(regerr.ArchiveRead, "stat "+full, err)
	}
	if info.IsDir() {
		return regerr.New(regerr.ArchiveRead, "directory entry in file list: "+rel)
	}

	mode := int64(modeRegular)
	if info.Mode()&0o111 != 0 {
		mode = modeExecutable
	}

	header := &tar.Header{
		Name:     prefix + "/" + filepath.ToSlash(rel),
		Typeflag: tar.TypeReg,
		Mode:     mode,
		Size:     info.Size(),
		ModTime:  epoch,
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
	}

	if err := tw.WriteHeader(header); err != nil {
		return regerr.Wrap(regerr.ArchiveWrite, "write tar header for "+rel, err)
	}

	f, err := os.Open(full)
	if err != nil {
		return regerr.Wrap(regerr.ArchiveRead, "open "+full, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return regerr.Wrap(regerr.ArchiveWrite, "write tar body for "+rel, err)
	}
	return nil
}

// EnumerateFiles walks root and returns every non-directory entry beneath
// it (skipping any .git directory) as a slash-separated path relative to
// root, sorted lexicographically. It uses
// godirwalk for the walk (the same tree-walk library the project's sync
// engine uses for its delete-unused sweep), since a plain filepath.Walk
// over a large checked-out git tree is measurably slower and os-dependent
// in symlink handling.
func EnumerateFiles(root string) ([]string, error) {
	var files []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				return err
			}
			if isDir {
				if de.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk package root")
	}
	sort.Strings(files)
	return files, nil
}
