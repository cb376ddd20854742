package serve

import (
	"net/http"
	"os"
	"strings"

	"github.com/dhovart/cargo-local-registry/internal/fsutil"
)

// handleFallback serves a raw file from the registry root after verifying
// the resolved path stays inside it; anything that escapes is forbidden.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	path, err := fsutil.SafeJoin(s.cfg.Path, r.URL.Path)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentTypeForExt(path))
	_, _ = w.Write(data)
}

func contentTypeForExt(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".tar"), strings.HasSuffix(path, ".gz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
