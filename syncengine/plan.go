package syncengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhovart/cargo-local-registry/archivebuilder"
	"github.com/dhovart/cargo-local-registry/index"
	"github.com/dhovart/cargo-local-registry/internal/regerr"
	"github.com/dhovart/cargo-local-registry/resolverapi"
	"github.com/dhovart/cargo-local-registry/shard"
)

// plan runs Phase 1: walk the resolved closure and emit the file tasks and
// index-metadata tuples Phase 2/3 consume. Iteration is in the resolver's
// own emission order (graph.Order) — plan does not sort — so that
// "multiple versions of the same crate in one run" accumulates in a
// stable, resolver-determined order.
func plan(graph resolverapi.Graph, opts Options) ([]fileTask, []indexUpdate, error) {
	tasks := make([]fileTask, 0, len(graph.Order))
	updates := make([]indexUpdate, 0, len(graph.Order))

	for _, id := range graph.Order {
		meta := graph.Packages[id]

		switch meta.Source {
		case resolverapi.SourceOther:
			continue
		case resolverapi.SourceGit:
			if !opts.IncludeGit {
				continue
			}
		}

		archiveName := fmt.Sprintf("%s-%s.crate", id.Name, id.Version)
		dest := filepath.Join(opts.RegistryRoot, archiveName)

		switch meta.Source {
		case resolverapi.SourceRegistry:
			if meta.CachePath == "" {
				return nil, nil, regerr.New(regerr.LockLoad, "registry package missing cache path: "+id.Name)
			}
			tasks = append(tasks, fileTask{kind: taskCopy, dest: dest, src: meta.CachePath})
		case resolverapi.SourceGit:
			if meta.GitRoot == "" {
				return nil, nil, regerr.New(regerr.LockLoad, "git package missing checkout root: "+id.Name)
			}
			staged, serr := stageGitCheckout(meta.GitRoot, os.TempDir())
			if serr != nil {
				return nil, nil, serr
			}
			files, ferr := archivebuilder.EnumerateFiles(staged)
			if ferr != nil {
				return nil, nil, regerr.Wrap(regerr.ArchiveRead, "enumerate files for "+id.Name, ferr)
			}
			tasks = append(tasks, fileTask{
				kind: taskArchive, dest: dest,
				name: id.Name, version: id.Version, root: staged, files: files,
			})
		}

		indexPath := filepath.Join(opts.RegistryRoot, "index", shard.Path(id.Name))
		record := index.Record{
			Name:     id.Name,
			Vers:     id.Version,
			Deps:     meta.Deps,
			Cksum:    meta.Cksum,
			Features: meta.Features,
			Yanked:   boolPtr(false), // local vendoring implies consent to use
		}
		updates = append(updates, indexUpdate{
			archivePath: dest,
			indexPath:   indexPath,
			record:      record,
			version:     id.Version,
		})
	}

	return tasks, updates, nil
}

func boolPtr(b bool) *bool { return &b }
