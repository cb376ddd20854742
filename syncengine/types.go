package syncengine

import "github.com/dhovart/cargo-local-registry/index"

// Options configures one Sync run.
type Options struct {
	Lockfile     string
	RegistryRoot string
	Upstream     string
	IncludeGit   bool
	NoDelete     bool
	// Workers bounds Phase 2's parallel file tasks. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int
}

// fileTask is one Phase 2 unit of work. Exactly one of copy/archive fields
// is meaningful, selected by Kind.
type fileTaskKind uint8

const (
	taskCopy fileTaskKind = iota
	taskArchive
)

type fileTask struct {
	kind fileTaskKind
	dest string

	// taskCopy
	src string

	// taskArchive
	name    string
	version string
	root    string
	files   []string
}

// indexUpdate is one Phase 1-emitted metadata tuple: the archive path it
// corresponds to, the index file it belongs in, and the record to merge
// into that file.
type indexUpdate struct {
	archivePath string
	indexPath   string
	record      index.Record
	version     string
}

// Result summarizes one Sync run, useful for logging and tests.
type Result struct {
	CratesWritten     int
	IndexFiles        int
	CratesDeleted     int
	IndexFilesDeleted int
}
