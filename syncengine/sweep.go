package syncengine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

const indexMaxDepth = 3

// sweep runs Phase 4: delete anything under the registry root that this
// run didn't (re)write. Only runs when the delete-unused sweep is enabled.
func sweep(root string, addedCrates, addedIndexPaths map[string]bool) (Result, error) {
	var res Result

	cratesDeleted, err := sweepCrates(root, addedCrates)
	if err != nil {
		return res, err
	}
	res.CratesDeleted = cratesDeleted

	indexDeleted, err := sweepIndex(filepath.Join(root, "index"), addedIndexPaths)
	if err != nil {
		return res, err
	}
	res.IndexFilesDeleted = indexDeleted

	return res, nil
}

func sweepCrates(root string, added map[string]bool) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, regerr.Wrap(regerr.IndexIO, "list registry root "+root, err)
	}

	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".crate") {
			continue
		}
		full := filepath.Join(root, e.Name())
		if added[full] {
			continue
		}
		if err := os.Remove(full); err != nil {
			return deleted, regerr.Wrap(regerr.IndexIO, "remove stale archive "+full, err)
		}
		deleted++
	}
	return deleted, nil
}

func sweepIndex(indexRoot string, added map[string]bool) (int, error) {
	if _, err := os.Stat(indexRoot); os.IsNotExist(err) {
		return 0, nil
	}

	deleted := 0
	var dirs []string

	err := godirwalk.Walk(indexRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == indexRoot {
				return nil
			}
			rel, rerr := filepath.Rel(indexRoot, path)
			if rerr != nil {
				return rerr
			}
			depth := strings.Count(rel, string(filepath.Separator)) + 1

			isDir, derr := de.IsDirOrSymlinkToDir()
			if derr != nil {
				return derr
			}
			if isDir {
				if depth >= indexMaxDepth {
					return filepath.SkipDir
				}
				dirs = append(dirs, path)
				return nil
			}

			if !added[path] {
				if rerr := os.Remove(path); rerr != nil {
					return rerr
				}
				deleted++
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return deleted, errors.Wrap(err, "sweep index directory")
	}

	// Remove now-empty directories, deepest first, except indexRoot itself.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		entries, rerr := os.ReadDir(d)
		if rerr != nil {
			continue
		}
		if len(entries) == 0 {
			os.Remove(d)
		}
	}

	return deleted, nil
}
