package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dhovart/cargo-local-registry/resolverapi"
	"github.com/dhovart/cargo-local-registry/syncengine"
)

const syncShortHelp = `Sync the registry root from a lockfile`
const syncLongHelp = `
Resolve the given lockfile's package closure and write every resolved
crate's archive and index record into the registry root, deterministically.

By default, crates and index entries no longer reachable from the lockfile
are swept from the registry root; -no-delete skips that sweep.
`

type syncCommand struct {
	lockfile     string
	root         string
	upstream     string
	includeGit   bool
	noDelete     bool
	workers      int
	resolverPath string
}

func (cmd *syncCommand) Name() string      { return "sync" }
func (cmd *syncCommand) Args() string      { return "" }
func (cmd *syncCommand) ShortHelp() string { return syncShortHelp }
func (cmd *syncCommand) LongHelp() string  { return syncLongHelp }

func (cmd *syncCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.lockfile, "lockfile", "", "path to the lockfile to sync from (required)")
	fs.StringVar(&cmd.root, "root", "", "registry root directory (required)")
	fs.StringVar(&cmd.upstream, "upstream", "crates.io", "upstream registry host")
	fs.BoolVar(&cmd.includeGit, "include-git", false, "include git-sourced packages")
	fs.BoolVar(&cmd.noDelete, "no-delete", false, "skip the sweep of crates/index entries no longer referenced")
	fs.IntVar(&cmd.workers, "workers", 0, "parallel file-copy workers (0 = GOMAXPROCS)")
	fs.StringVar(&cmd.resolverPath, "resolver", "", "path to the resolver binary (default: \"resolver\" on PATH)")
}

func (cmd *syncCommand) Run(args []string) error {
	if cmd.lockfile == "" || cmd.root == "" {
		return fmt.Errorf("sync: -lockfile and -root are required")
	}

	engine := syncengine.Engine{Gateway: resolverapi.Gateway{BinaryPath: cmd.resolverPath}}

	res, err := engine.Sync(context.Background(), syncengine.Options{
		Lockfile:     cmd.lockfile,
		RegistryRoot: cmd.root,
		Upstream:     cmd.upstream,
		IncludeGit:   cmd.includeGit,
		NoDelete:     cmd.noDelete,
		Workers:      cmd.workers,
	})
	if err != nil {
		return err
	}

	fmt.Printf("crates written: %d, index files: %d, crates deleted: %d, index files deleted: %d\n",
		res.CratesWritten, res.IndexFiles, res.CratesDeleted, res.IndexFilesDeleted)
	return nil
}
