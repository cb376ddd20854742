package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/dhovart/cargo-local-registry/serve"
)

const serveShortHelp = `Serve a registry root over HTTP`
const serveLongHelp = `
Serve the registry root at -root over HTTP, synthesizing index/config.json,
proxying index and archive requests to -upstream on miss (unless -no-proxy
is set), and enforcing at-most-one-version-per-crate when -clean is set.

-config, if given, is a TOML file whose values replace the built-in
defaults; flags given on the command line override it. See
cmd/registry-mirror's config.go for its field names.
`

type serveCommand struct {
	root        string
	host        string
	port        int
	publicURL   string
	upstream    string
	noProxy     bool
	clean       bool
	cacheTTL    time.Duration
	fastRefresh time.Duration
	configPath  string

	fs *flag.FlagSet
}

func (cmd *serveCommand) Name() string      { return "serve" }
func (cmd *serveCommand) Args() string      { return "" }
func (cmd *serveCommand) ShortHelp() string { return serveShortHelp }
func (cmd *serveCommand) LongHelp() string  { return serveLongHelp }

func (cmd *serveCommand) Register(fs *flag.FlagSet) {
	cmd.fs = fs
	def := serve.DefaultConfig()
	fs.StringVar(&cmd.root, "root", "", "registry root directory (required)")
	fs.StringVar(&cmd.host, "host", def.Host, "address to listen on")
	fs.IntVar(&cmd.port, "port", def.Port, "port to listen on")
	fs.StringVar(&cmd.publicURL, "public-url", "", "externally reachable base URL for this server (required)")
	fs.StringVar(&cmd.upstream, "upstream", "crates.io", "upstream registry host")
	fs.BoolVar(&cmd.noProxy, "no-proxy", false, "never fall through to upstream; serve local files only")
	fs.BoolVar(&cmd.clean, "clean", def.Clean, "enforce at most one cached version per crate")
	fs.DurationVar(&cmd.cacheTTL, "cache-ttl", def.CacheTTL, "freshness window before re-checking upstream")
	fs.DurationVar(&cmd.fastRefresh, "fast-refresh-timeout", def.FastRefreshTimeout, "deadline for a bounded upstream refresh")
	fs.StringVar(&cmd.configPath, "config", "", "TOML config file; flags given on the command line override it")
}

func (cmd *serveCommand) Run(args []string) error {
	// Precedence: defaults, then the config file, then any flag the user
	// actually passed on the command line.
	cfg := serve.DefaultConfig()
	if cmd.configPath != "" {
		loaded, err := loadServeConfig(cmd.configPath, cfg)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	cmd.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["host"] {
		cfg.Host = cmd.host
	}
	if set["port"] {
		cfg.Port = cmd.port
	}
	if set["root"] || cfg.Path == "" {
		cfg.Path = cmd.root
	}
	if set["public-url"] || cfg.PublicURL == "" {
		cfg.PublicURL = cmd.publicURL
	}
	if set["upstream"] || cfg.Upstream == "" {
		cfg.Upstream = cmd.upstream
	}
	if set["no-proxy"] {
		cfg.EnableProxy = !cmd.noProxy
	}
	if set["clean"] {
		cfg.Clean = cmd.clean
	}
	if set["cache-ttl"] {
		cfg.CacheTTL = cmd.cacheTTL
	}
	if set["fast-refresh-timeout"] {
		cfg.FastRefreshTimeout = cmd.fastRefresh
	}

	if cfg.Path == "" {
		return fmt.Errorf("serve: -root is required")
	}
	if cfg.PublicURL == "" {
		return fmt.Errorf("serve: -public-url is required")
	}

	return serve.New(cfg).ListenAndServe()
}
