package syncengine

import (
	"os"

	"github.com/dhovart/cargo-local-registry/index"
	"github.com/dhovart/cargo-local-registry/internal/fsutil"
	"github.com/dhovart/cargo-local-registry/internal/regerr"
)

// writeIndexes runs Phase 3: sequential by construction, because two
// versions of the same crate resolved in one run share an index file and
// must accumulate into it one at a time. Returns the set of index paths
// written this run, needed by the Phase 4 sweep.
func writeIndexes(updates []indexUpdate, noDelete bool) (map[string]bool, error) {
	writtenThisRun := make(map[string]bool, len(updates))

	for _, u := range updates {
		keepOld := noDelete || writtenThisRun[u.indexPath]

		var existing []index.Record
		if keepOld {
			data, err := os.ReadFile(u.indexPath)
			switch {
			case err == nil:
				existing, err = index.ParseFile(data)
				if err != nil {
					return nil, regerr.Wrap(regerr.IndexIO, "parse existing index "+u.indexPath, err)
				}
			case os.IsNotExist(err):
				// nothing to merge with yet
			default:
				return nil, regerr.Wrap(regerr.IndexIO, "read existing index "+u.indexPath, err)
			}
		}

		merged := index.ReplaceVersion(existing, u.record)
		data, err := index.EncodeFile(merged)
		if err != nil {
			return nil, regerr.Wrap(regerr.IndexIO, "encode index "+u.indexPath, err)
		}

		if err := fsutil.WriteFileAtomic(u.indexPath, data, 0o644); err != nil {
			return nil, regerr.Wrap(regerr.IndexIO, "write index "+u.indexPath, err)
		}

		writtenThisRun[u.indexPath] = true
	}

	return writtenThisRun, nil
}
