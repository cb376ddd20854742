package syncengine

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dhovart/cargo-local-registry/archivebuilder"
	"github.com/dhovart/cargo-local-registry/internal/fsutil"
	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

// execute runs Phase 2: file tasks are independent by construction (each
// writes a distinct destination path), so they fan out across a bounded
// worker pool. The pool size follows Options.Workers, defaulting to
// GOMAXPROCS.
func execute(tasks []fileTask, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, t := range tasks {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := runTask(t); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return firstErr
}

func runTask(t fileTask) error {
	if err := os.MkdirAll(filepath.Dir(t.dest), 0o755); err != nil {
		return regerr.Wrap(regerr.ArchiveWrite, "mkdir for "+t.dest, err)
	}

	switch t.kind {
	case taskCopy:
		if err := fsutil.CopyFile(t.src, t.dest); err != nil {
			return regerr.Wrap(regerr.ArchiveRead, "copy "+t.src+" -> "+t.dest, err)
		}
		return nil
	case taskArchive:
		var buf bytes.Buffer
		if err := archivebuilder.Build(&buf, t.name, t.version, t.root, t.files); err != nil {
			return err
		}
		if err := fsutil.WriteFileAtomic(t.dest, buf.Bytes(), 0o644); err != nil {
			return regerr.Wrap(regerr.ArchiveWrite, "write archive "+t.dest, err)
		}
		return nil
	default:
		return regerr.New(regerr.ArchiveWrite, "unknown file task kind")
	}
}
