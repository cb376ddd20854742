package serve

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhovart/cargo-local-registry/index"
	"github.com/dhovart/cargo-local-registry/internal/fsutil"
	"github.com/dhovart/cargo-local-registry/shard"
)

// cacheVersionInLocalIndex runs after an archive download: it makes the
// local index file for name reflect the version that was just fetched,
// without a full index refresh. The upstream's raw line for that version is
// preserved byte-for-byte — upstream records carry fields outside our fixed
// schema (`v`, `features2`, ...) that a decode/re-encode round trip would
// drop. All errors are logged and swallowed; it runs after the archive
// response has been decided, and its failures never change that response.
func (s *Server) cacheVersionInLocalIndex(ctx context.Context, name, version string) {
	upstreamURL := upstreamIndexURL(s.cfg.Upstream, name)

	body, err := fetchUpstream(ctx, s.cfg.client(), upstreamURL)
	if err != nil {
		s.log.WithField("crate", name).WithError(err).Warn("per-version index cacher: upstream fetch failed")
		return
	}

	var match string
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, derr := index.DecodeLine(line)
		if derr != nil {
			s.log.WithField("crate", name).WithError(derr).Warn("per-version index cacher: parse upstream index failed")
			return
		}
		if r.Vers == version {
			match = line
			break
		}
	}
	if match == "" {
		s.log.WithField("crate", name).WithField("version", version).Warn("per-version index cacher: version not found upstream")
		return
	}

	localPath := filepath.Join(s.cfg.Path, "index", shard.Path(name))

	var newContent string
	if s.cfg.Clean {
		newContent = match + "\n"
	} else {
		existing, rerr := os.ReadFile(localPath)
		switch {
		case rerr == nil:
			if strings.Contains(string(existing), `"vers":"`+version+`"`) {
				return // already cached, leave the file alone
			}
			content := string(existing)
			if content != "" && !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			newContent = content + match + "\n"
		case os.IsNotExist(rerr):
			newContent = match + "\n"
		default:
			s.log.WithError(rerr).Warn("per-version index cacher: read existing local index failed")
			return
		}
	}

	if err := fsutil.WriteFileAtomic(localPath, []byte(newContent), 0o644); err != nil {
		s.log.WithError(err).Warn("per-version index cacher: write failed")
	}
}
