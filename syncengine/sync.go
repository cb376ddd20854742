// Package syncengine orchestrates the four phases that turn a lockfile's
// resolved closure into an on-disk, byte-identical-across-runs registry:
// plan, parallel file tasks, sequential index writes, and an optional
// delete-unused sweep.
//
// Everything is planned before anything is written to the registry root, so
// a resolver or planning failure leaves the root untouched. Failures in
// later phases are not rolled back: archives written in Phase 2 stay on
// disk if a Phase 3 index write then fails.
package syncengine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	flock "github.com/theckman/go-flock"

	"github.com/dhovart/cargo-local-registry/internal/regerr"
	"github.com/dhovart/cargo-local-registry/resolverapi"
)

var log = logrus.WithField("component", "sync")

// gatewayAPI is the subset of resolverapi.Gateway the engine needs,
// narrowed to an interface so tests can substitute a fake resolver without
// shelling out to a real binary.
type gatewayAPI interface {
	ResolveLockfile(ctx context.Context, lockfilePath, upstream string) (resolverapi.Graph, error)
	ResolveSingle(ctx context.Context, name, req, upstream string) (string, error)
}

// Engine runs Sync against a configured resolver gateway.
type Engine struct {
	Gateway gatewayAPI
}

// Sync synchronizes opts.RegistryRoot with the closure described by
// opts.Lockfile.
func (e Engine) Sync(ctx context.Context, opts Options) (Result, error) {
	graph, err := e.Gateway.ResolveLockfile(ctx, opts.Lockfile, opts.Upstream)
	if err != nil {
		return Result{}, err
	}
	return e.syncGraph(graph, opts)
}

// syncGraph runs the four phases against an already-resolved graph. A file
// lock on `<root>/.sync.lock` serializes concurrent runs against the same
// root — Phase 3's "keep old if this index file has been written earlier
// in this run" bookkeeping is only sound for a single run at a time.
func (e Engine) syncGraph(graph resolverapi.Graph, opts Options) (Result, error) {
	// The index directory always exists after a sync, even an empty one.
	if err := os.MkdirAll(filepath.Join(opts.RegistryRoot, "index"), 0o755); err != nil {
		return Result{}, regerr.Wrap(regerr.IndexIO, "create registry root", err)
	}

	fl := flock.NewFlock(filepath.Join(opts.RegistryRoot, ".sync.lock"))
	if err := fl.Lock(); err != nil {
		return Result{}, regerr.Wrap(regerr.IndexIO, "acquire sync lock", err)
	}
	defer fl.Unlock()

	log.WithFields(logrus.Fields{
		"lockfile":    opts.Lockfile,
		"root":        opts.RegistryRoot,
		"include_git": opts.IncludeGit,
		"no_delete":   opts.NoDelete,
	}).Info("sync starting")

	tasks, updates, err := plan(graph, opts)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		for _, t := range tasks {
			if t.kind == taskArchive && t.root != "" {
				os.RemoveAll(t.root)
			}
		}
	}()

	if err := execute(tasks, opts.Workers); err != nil {
		return Result{}, err
	}

	writtenIndexes, err := writeIndexes(updates, opts.NoDelete)
	if err != nil {
		return Result{}, err
	}

	addedCrates := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		addedCrates[t.dest] = true
	}

	res := Result{
		CratesWritten: len(tasks),
		IndexFiles:    len(writtenIndexes),
	}

	if !opts.NoDelete {
		sweepRes, err := sweep(opts.RegistryRoot, addedCrates, writtenIndexes)
		if err != nil {
			return res, err
		}
		res.CratesDeleted = sweepRes.CratesDeleted
		res.IndexFilesDeleted = sweepRes.IndexFilesDeleted
	}

	log.WithFields(logrus.Fields{
		"crates_written":      res.CratesWritten,
		"index_files":         res.IndexFiles,
		"crates_deleted":      res.CratesDeleted,
		"index_files_deleted": res.IndexFilesDeleted,
	}).Info("sync complete")

	return res, nil
}

// Add resolves name at req against upstream and syncs it into root without
// disturbing other cached crates: git sources are excluded and the
// delete-unused sweep is skipped. The resolver's lock output is already in
// interchange form, so it is read back directly rather than handed to the
// resolver a second time.
func (e Engine) Add(ctx context.Context, root, name, req, upstream string) (Result, error) {
	lockPath, err := e.Gateway.ResolveSingle(ctx, name, req, upstream)
	if err != nil {
		return Result{}, err
	}

	graph, err := resolverapi.ReadLockfile(lockPath)
	if err != nil {
		return Result{}, err
	}

	return e.syncGraph(graph, Options{
		Lockfile:     lockPath,
		RegistryRoot: root,
		Upstream:     upstream,
		IncludeGit:   false,
		NoDelete:     true,
	})
}
