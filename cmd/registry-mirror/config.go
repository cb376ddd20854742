package main

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/dhovart/cargo-local-registry/serve"
)

// rawServeConfig is the TOML shape accepted by -config. It is a separate
// raw struct rather than serve.Config itself, whose HTTPClient field has
// no TOML representation and whose bools need unset-vs-false distinction.
type rawServeConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	Path              string `toml:"path"`
	PublicURL         string `toml:"public_url"`
	Upstream          string `toml:"upstream"`
	EnableProxy       *bool  `toml:"enable_proxy"`
	Clean             *bool  `toml:"clean"`
	CacheTTLSeconds   int    `toml:"cache_ttl_seconds"`
	FastRefreshMillis int    `toml:"fast_refresh_millis"`
}

// loadServeConfig overlays whatever the TOML file at path sets onto base
// (the built-in defaults); a zero-value field in the file leaves base
// untouched, except for the *bool fields, which distinguish unset from
// false. Command-line flags are applied after this, so they win over the
// file.
func loadServeConfig(path string, base serve.Config) (serve.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return serve.Config{}, errors.Wrapf(err, "read config file %s", path)
	}

	var raw rawServeConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return serve.Config{}, errors.Wrapf(err, "parse config file %s as TOML", path)
	}

	cfg := base
	if raw.Host != "" {
		cfg.Host = raw.Host
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if raw.Path != "" {
		cfg.Path = raw.Path
	}
	if raw.PublicURL != "" {
		cfg.PublicURL = raw.PublicURL
	}
	if raw.Upstream != "" {
		cfg.Upstream = raw.Upstream
	}
	if raw.EnableProxy != nil {
		cfg.EnableProxy = *raw.EnableProxy
	}
	if raw.Clean != nil {
		cfg.Clean = *raw.Clean
	}
	if raw.CacheTTLSeconds != 0 {
		cfg.CacheTTL = time.Duration(raw.CacheTTLSeconds) * time.Second
	}
	if raw.FastRefreshMillis != 0 {
		cfg.FastRefreshTimeout = time.Duration(raw.FastRefreshMillis) * time.Millisecond
	}
	return cfg, nil
}
