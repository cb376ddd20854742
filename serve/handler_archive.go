package serve

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dhovart/cargo-local-registry/archivename"
	"github.com/dhovart/cargo-local-registry/internal/fsutil"
)

// handleArchive serves `{name}-{version}.crate` from the registry root,
// falling through to the upstream download endpoint on miss when proxying
// is enabled. A successful download is persisted locally, evicting other
// cached versions of the same crate under clean mode, and the per-version
// index cacher brings the crate's local index file up to date.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, filename string) {
	// Same escape guard as the raw-file fallback: a `..` in the filename
	// must never resolve outside the registry root.
	localPath, err := fsutil.SafeJoin(s.cfg.Path, filename)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	name, version, parseErr := archivename.Parse(filename)

	if data, err := os.ReadFile(localPath); err == nil {
		serveArchiveBytes(w, data)
		return
	}

	if !s.cfg.EnableProxy {
		http.NotFound(w, r)
		return
	}

	if parseErr != nil {
		http.Error(w, "cannot parse crate filename", http.StatusBadRequest)
		return
	}

	body, status, err := fetchUpstreamStatus(r.Context(), s.cfg.client(), upstreamDownloadURL(s.cfg.Upstream, name, version))
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusInternalServerError)
		return
	}
	if status < 200 || status >= 300 {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Clean {
		s.evictOtherVersions(name, version)
	}

	// Persisting is opportunistic caching: a failed write is logged, not
	// surfaced — we already hold the bytes the client asked for.
	if err := writeArchiveFile(localPath, body); err != nil {
		s.log.WithError(err).Warn("failed to persist downloaded archive")
	}

	// The index cacher runs synchronously, before the bytes are served, so
	// its upstream index fetch adds to this response's latency. Its own
	// failures are logged and swallowed and never fail the response.
	s.cacheVersionInLocalIndex(context.WithoutCancel(r.Context()), name, version)

	serveArchiveBytes(w, body)
}

func (s *Server) evictOtherVersions(name, version string) {
	pattern := filepath.Join(s.cfg.Path, name+"-*.crate")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		s.log.WithError(err).Warn("clean mode: glob for stale versions failed")
		return
	}
	for _, m := range matches {
		otherName, otherVersion, err := archivename.Parse(filepath.Base(m))
		if err != nil || otherName != name || otherVersion == version {
			continue
		}
		if err := os.Remove(m); err != nil {
			s.log.WithField("path", m).WithError(err).Warn("clean mode: failed to evict stale archive")
		}
	}
}

func writeArchiveFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func serveArchiveBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
