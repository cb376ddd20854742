package serve

import (
	"strings"

	"github.com/dhovart/cargo-local-registry/shard"
)

// upstreamIndexURL builds the index URL for crate. upstream is normally a
// bare registry host like "crates.io", which maps to
// https://index.<host>/<shard-path>; a value carrying an explicit scheme
// is taken as the index base URL verbatim, so a private mirror (or a test
// server) can stand in for the public index.
func upstreamIndexURL(upstream, crate string) string {
	if strings.Contains(upstream, "://") {
		return strings.TrimSuffix(upstream, "/") + "/" + shard.Path(crate)
	}
	return "https://index." + upstream + "/" + shard.Path(crate)
}

// upstreamDownloadURL builds the archive download URL:
// <base>/api/v1/crates/<name>/<version>/download, where <base> is
// https://<upstream> for a bare host and upstream itself when it already
// carries a scheme.
func upstreamDownloadURL(upstream, name, version string) string {
	base := upstream
	if !strings.Contains(upstream, "://") {
		base = "https://" + upstream
	}
	return strings.TrimSuffix(base, "/") + "/api/v1/crates/" + name + "/" + version + "/download"
}

// lastSegment returns the final "/"-separated component of an URL path.
func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
