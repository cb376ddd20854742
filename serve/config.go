// Package serve is the serve engine: an HTTP front-end for the on-disk
// registry that, optionally, falls through to an upstream registry on
// miss, with a bounded freshness check and an at-most-one-version-per-crate
// policy under clean mode.
package serve

import (
	"net/http"
	"strconv"
	"time"
)

// Config carries everything one running serve engine needs: where the
// registry lives, how to reach the upstream, and the proxy/clean/freshness
// policy knobs.
type Config struct {
	Host string
	Port int

	// Path is the registry root R.
	Path string

	// PublicURL is the server's own externally-reachable base URL, used
	// to synthesize index/config.json's "dl"/"api" fields.
	PublicURL string

	// Upstream is the upstream registry host, e.g. "crates.io" — index
	// requests go to https://index.<Upstream>/..., downloads go to
	// https://<Upstream>/api/v1/crates/.... A value with an explicit
	// scheme is used as the base URL for both, unprefixed.
	Upstream string

	EnableProxy        bool
	Clean              bool
	CacheTTL           time.Duration
	FastRefreshTimeout time.Duration

	// HTTPClient is used for all upstream requests. When nil, New
	// substitutes a zero-value http.Client.
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with the documented defaults: localhost
// on 27283, proxying enabled, clean mode off, a 15-minute freshness window,
// and a 500 ms bounded-refresh deadline.
func DefaultConfig() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               27283,
		EnableProxy:        true,
		Clean:              false,
		CacheTTL:           15 * time.Minute,
		FastRefreshTimeout: 500 * time.Millisecond,
	}
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = 27283
	}
	return c.Host + ":" + strconv.Itoa(port)
}
