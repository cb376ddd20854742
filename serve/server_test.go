package serve

import (
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhovart/cargo-local-registry/shard"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestServer(t *testing.T, root string, upstream *httptest.Server) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.PublicURL = "http://registry.example.test"
	if upstream != nil {
		cfg.Upstream = upstream.URL
		cfg.HTTPClient = upstream.Client()
	}
	return New(cfg)
}

// Local index hit, no upstream configured.
func TestHandleIndex_LocalHit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index", shard.Path("serde")), []byte(`{"name":"serde"}`+"\n"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/index/se/rd/serde", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"name":"serde"}`+"\n", w.Body.String())
}

func TestHandleIndex_NotFoundWithoutProxy(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/index/se/rd/serde", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// When the upstream is slower than FastRefreshTimeout, a prior successful
// fetch is served from cache instead of waiting out the slow response.
func TestHandleIndex_RefreshTimeoutFallsBackToCache(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Write([]byte(`{"name":"tokio","vers":"1.0.0"}` + "\n"))
			return
		}
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"name":"tokio","vers":"2.0.0"}` + "\n"))
	}))
	defer upstream.Close()

	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = upstream.URL
	cfg.HTTPClient = upstream.Client()
	cfg.CacheTTL = 50 * time.Millisecond
	cfg.FastRefreshTimeout = 20 * time.Millisecond
	s := New(cfg)

	req1 := httptest.NewRequest(http.MethodGet, "/index/to/ki/tokio", nil)
	w1 := httptest.NewRecorder()
	s.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)
	require.Contains(t, w1.Body.String(), "1.0.0")

	time.Sleep(60 * time.Millisecond) // let the cache entry go stale

	req2 := httptest.NewRequest(http.MethodGet, "/index/to/ki/tokio", nil)
	w2 := httptest.NewRecorder()
	s.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	// the refresh attempt times out before the slow second response lands,
	// so the stale-but-valid cached body is what gets served.
	assert.Contains(t, w2.Body.String(), "1.0.0")
}

// No more than one upstream request is issued per crate within a single
// TTL window, no matter how many requests arrive in the meantime.
func TestHandleIndex_BoundedFreshnessNoDuplicateFetch(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"name":"rand"}` + "\n"))
	}))
	defer upstream.Close()

	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = upstream.URL
	cfg.HTTPClient = upstream.Client()
	cfg.CacheTTL = time.Minute
	s := New(cfg)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/index/ra/nd/rand", nil)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 1, hits)
}

// A request path that attempts to escape the registry root must be
// rejected, never read.
func TestHandleFallback_PathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "secret.txt"), []byte("inside"))
	outsideDir := t.TempDir()
	writeFile(t, filepath.Join(outsideDir, "leaked.txt"), []byte("outside"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/../"+filepath.Base(outsideDir)+"/leaked.txt", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "outside")
}

func TestHandleFallback_ServesRawFileWithContentType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "snapshot.json"), []byte(`{"dl":"x"}`))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/snapshot.json", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"dl":"x"}`, w.Body.String())
}

func TestIndexPrefixNeverFallsThroughToRawFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index", "config.json.bak"), []byte(`{"dl":"x"}`))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	// config.json.bak does not match the exact "/index/config.json" route,
	// so it is treated as an index lookup (crate name "config.json.bak"),
	// not the raw fallback — confirm it 404s rather than leaking through.
	req := httptest.NewRequest(http.MethodGet, "/index/config.json.bak", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleConfig_SynthesizesFromPublicURL(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.PublicURL = "https://mirror.internal:27283"
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/index/config.json", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"dl":"https://mirror.internal:27283/{crate}-{version}.crate","api":"https://mirror.internal:27283"}`, w.Body.String())
}

func TestHandleArchive_LocalHit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "serde-1.0.0.crate"), []byte("crate-bytes"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/serde-1.0.0.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "crate-bytes", w.Body.String())
}

func TestHandleArchive_ProxiesAndPersistsOnMiss(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte("downloaded-bytes"))
		gz.Close()
	}))
	defer upstream.Close()

	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = upstream.URL
	cfg.HTTPClient = upstream.Client()
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/tokio-1.2.3.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	_, err := os.Stat(filepath.Join(root, "tokio-1.2.3.crate"))
	assert.NoError(t, err)
}

// crateUpstream answers download requests with archiveBody and everything
// else (index fetches) with indexBody.
func crateUpstream(archiveBody, indexBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/api/v1/crates/") {
			w.Write([]byte(archiveBody))
			return
		}
		w.Write([]byte(indexBody))
	}))
}

const tokioLine100 = `{"name":"tokio","vers":"1.0.0","deps":[],"cksum":"aa","features":{},"yanked":false,"v":2}`
const tokioLine123 = `{"name":"tokio","vers":"1.2.3","deps":[],"cksum":"bb","features":{},"yanked":false,"v":2}`

// Under clean mode, downloading a new version evicts every other cached
// version of the crate and rewrites its index file down to the single
// upstream line for the fetched version, preserved byte-for-byte.
func TestHandleArchive_CleanModeEvictsAndRewritesIndex(t *testing.T) {
	upstream := crateUpstream("new-archive-bytes", tokioLine100+"\n"+tokioLine123+"\n")
	defer upstream.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tokio-1.0.0.crate"), []byte("old-archive-bytes"))
	writeFile(t, filepath.Join(root, "index", shard.Path("tokio")), []byte(tokioLine100+"\n"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = upstream.URL
	cfg.HTTPClient = upstream.Client()
	cfg.Clean = true
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/tokio-1.2.3.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-archive-bytes", w.Body.String())

	_, err := os.Stat(filepath.Join(root, "tokio-1.0.0.crate"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "tokio-1.2.3.crate"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "index", shard.Path("tokio")))
	require.NoError(t, err)
	assert.Equal(t, tokioLine123+"\n", string(data))
}

// Without clean mode, the index cacher appends the fetched version's
// upstream line to the existing local file, keeping fields outside the
// fixed schema (like "v") intact and never duplicating a version.
func TestHandleArchive_IndexCacherAppendsSecondVersion(t *testing.T) {
	upstream := crateUpstream("archive-bytes", tokioLine100+"\n"+tokioLine123+"\n")
	defer upstream.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index", shard.Path("tokio")), []byte(tokioLine100+"\n"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = upstream.URL
	cfg.HTTPClient = upstream.Client()
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/tokio-1.2.3.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	data, err := os.ReadFile(filepath.Join(root, "index", shard.Path("tokio")))
	require.NoError(t, err)
	assert.Equal(t, tokioLine100+"\n"+tokioLine123+"\n", string(data))

	// a second download of the same version must not duplicate the line
	os.Remove(filepath.Join(root, "tokio-1.2.3.crate"))
	req = httptest.NewRequest(http.MethodGet, "/tokio-1.2.3.crate", nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	data, err = os.ReadFile(filepath.Join(root, "index", shard.Path("tokio")))
	require.NoError(t, err)
	assert.Equal(t, tokioLine100+"\n"+tokioLine123+"\n", string(data))
}

func TestHandleArchive_PathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	outsideDir := t.TempDir()
	writeFile(t, filepath.Join(outsideDir, "leaked-1.0.0.crate"), []byte("outside"))

	cfg := DefaultConfig()
	cfg.Path = root
	cfg.EnableProxy = false
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/../"+filepath.Base(outsideDir)+"/leaked-1.0.0.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "outside")
}

func TestHandleArchive_UnparseableNameWithProxyIsBadRequest(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = root
	cfg.Upstream = "crates.invalid"
	s := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/serde.crate", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root, nil)

	req := httptest.NewRequest(http.MethodPost, "/index/config.json", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
