package serve

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhovart/cargo-local-registry/internal/fsutil"
	"github.com/dhovart/cargo-local-registry/shard"
)

// handleIndex serves the index file for the crate named by the last path
// segment: a bounded freshness check against the upstream first, then the
// local file, and only when local is absent an unbounded upstream proxy.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	crate := strings.ToLower(lastSegment(r.URL.Path))
	if crate == "" {
		http.NotFound(w, r)
		return
	}
	localPath := filepath.Join(s.cfg.Path, "index", shard.Path(crate))
	upstreamURL := upstreamIndexURL(s.cfg.Upstream, crate)

	if s.cfg.EnableProxy {
		if served := s.serveFromFreshnessCache(w, r, crate, upstreamURL); served {
			return
		}
	}

	if s.serveLocalIndex(w, localPath) {
		return
	}

	if !s.cfg.EnableProxy {
		http.NotFound(w, r)
		return
	}

	s.proxyIndexUnbounded(w, r, localPath, upstreamURL)
}

// serveFromFreshnessCache serves cached bytes if fresh, otherwise attempts
// a refresh bounded by the fast-refresh deadline. A failed refresh serves
// the stale-but-valid entry when one exists (touching its last-check so the
// next requests within the TTL don't retry), and otherwise reports false so
// the caller falls back to the local file. Returns true if the response was
// fully written.
func (s *Server) serveFromFreshnessCache(w http.ResponseWriter, r *http.Request, crate, upstreamURL string) bool {
	now := time.Now()

	entry, cached := s.cache.get(crate)
	if cached && now.Sub(entry.lastCheck) < s.cfg.CacheTTL {
		writeIndexBytes(w, entry.content)
		return true
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.FastRefreshTimeout)
	defer cancel()

	body, err := fetchUpstream(ctx, s.cfg.client(), upstreamURL)
	if err != nil {
		s.log.WithField("crate", crate).WithError(err).Debug("bounded index refresh failed")
		if cached {
			s.cache.touchLastCheck(crate, now)
			writeIndexBytes(w, entry.content)
			return true
		}
		return false
	}

	s.cache.set(crate, body, now)
	writeIndexBytes(w, body)
	return true
}

func (s *Server) serveLocalIndex(w http.ResponseWriter, localPath string) bool {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return false
	}
	writeIndexBytes(w, data)
	return true
}

// proxyIndexUnbounded is only reached when local is absent, so no deadline
// is imposed — we need this one to actually succeed to have anything to
// serve.
func (s *Server) proxyIndexUnbounded(w http.ResponseWriter, r *http.Request, localPath, upstreamURL string) {
	body, status, err := fetchUpstreamStatus(r.Context(), s.cfg.client(), upstreamURL)
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusInternalServerError)
		return
	}
	if status < 200 || status >= 300 {
		http.NotFound(w, r)
		return
	}

	if err := fsutil.WriteFileAtomic(localPath, body, 0o644); err != nil {
		s.log.WithError(err).Warn("failed to persist proxied index file")
	}

	writeIndexBytes(w, body)
}

func writeIndexBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(data)
}
