package syncengine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/dhovart/cargo-local-registry/archivename"
	"github.com/dhovart/cargo-local-registry/index"
	"github.com/dhovart/cargo-local-registry/internal/regerr"
	"github.com/dhovart/cargo-local-registry/shard"
)

// Verify checks the consistency of the registry at root and returns one
// message per violation found:
//
//   - every .crate archive has an index record for its exact version in the
//     correctly sharded index file;
//   - every index file parses, holds no duplicate versions, and its lines
//     are in sorted order;
//   - every index record's archive exists on disk.
//
// A registry written by Sync satisfies all of these; Verify exists for
// registries that have since been touched by the serve engine's caching, an
// interrupted run, or a stray manual edit.
func Verify(root string) ([]string, error) {
	var problems []string

	archives, err := listArchives(root)
	if err != nil {
		return nil, err
	}

	for _, fname := range archives {
		name, version, perr := archivename.Parse(fname)
		if perr != nil {
			problems = append(problems, "unparseable archive name: "+fname)
			continue
		}
		indexPath := filepath.Join(root, "index", shard.Path(name))
		records, rerr := readIndexRecords(indexPath)
		if rerr != nil {
			problems = append(problems, "archive "+fname+" has no readable index file at "+indexPath)
			continue
		}
		if !hasVersion(records, name, version) {
			problems = append(problems, "archive "+fname+" has no matching index record in "+indexPath)
		}
	}

	indexRoot := filepath.Join(root, "index")
	err = godirwalk.Walk(indexRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			isDir, derr := de.IsDirOrSymlinkToDir()
			if derr != nil {
				return derr
			}
			if isDir {
				return nil
			}

			data, rerr := os.ReadFile(path)
			if rerr != nil {
				problems = append(problems, "unreadable index file: "+path)
				return nil
			}
			records, perr := index.ParseFile(data)
			if perr != nil {
				problems = append(problems, "malformed index file: "+path)
				return nil
			}
			if !index.UniqueVersions(records) {
				problems = append(problems, "duplicate versions in index file: "+path)
			}
			if !linesSorted(data) {
				problems = append(problems, "unsorted index file: "+path)
			}
			for _, r := range records {
				archive := filepath.Join(root, r.Name+"-"+r.Vers+".crate")
				if _, serr := os.Stat(archive); serr != nil {
					problems = append(problems, "index record "+r.Name+" "+r.Vers+" has no archive at "+archive)
				}
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		if os.IsNotExist(err) {
			return problems, nil
		}
		return problems, regerr.Wrap(regerr.IndexIO, "walk index directory", err)
	}

	sort.Strings(problems)
	return problems, nil
}

func listArchives(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, regerr.Wrap(regerr.IndexIO, "list registry root "+root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".crate") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readIndexRecords(path string) ([]index.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return index.ParseFile(data)
}

func hasVersion(records []index.Record, name, version string) bool {
	for _, r := range records {
		if strings.EqualFold(r.Name, name) && r.Vers == version {
			return true
		}
	}
	return false
}

// linesSorted reports whether the file's non-empty lines are in
// lexicographic order, the order EncodeFile writes them in.
func linesSorted(data []byte) bool {
	lines := strings.Split(string(data), "\n")
	prev := ""
	for _, line := range lines {
		if line == "" {
			continue
		}
		if prev != "" && line < prev {
			return false
		}
		prev = line
	}
	return true
}
