package serve

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Server is the serve engine. It embeds the in-memory freshness cache and
// routes the four endpoint families: config.json synthesis, index files,
// archive downloads, and the raw-file fallback.
type Server struct {
	cfg   Config
	cache *cache
	log   *logrus.Entry
}

// New builds a Server. The registry root in cfg.Path is not created here —
// the sync engine owns its lifecycle; the serve engine only reads from (and
// opportunistically writes cache files into) it.
func New(cfg Config) *Server {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Server{
		cfg:   cfg,
		cache: newCache(),
		log:   logrus.WithField("component", "serve"),
	}
}

// ServeHTTP dispatches directly rather than through a ServeMux: the routing
// rules ("last path segment", "ends in .crate") are not expressible as mux
// patterns, and a mux would canonicalize `..` segments into a redirect
// before the fallback handler's traversal guard could reject them.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Path

	switch {
	case path == "/index/config.json":
		s.handleConfig(w, r)
	case strings.HasPrefix(path, "/index/"):
		s.handleIndex(w, r)
	case strings.HasSuffix(path, ".crate"):
		s.handleArchive(w, r, strings.TrimPrefix(path, "/"))
	default:
		s.handleFallback(w, r)
	}
}

// ListenAndServe starts the HTTP server on cfg.Addr(), with bounded
// read/write/idle timeouts so a slow client cannot pin a goroutine forever.
func (s *Server) ListenAndServe() error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.WithField("addr", httpServer.Addr).Info("serve engine listening")
	return httpServer.ListenAndServe()
}
