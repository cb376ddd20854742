package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dhovart/cargo-local-registry/resolverapi"
	"github.com/dhovart/cargo-local-registry/syncengine"
)

const addShortHelp = `Resolve and vendor a single crate into the registry root`
const addLongHelp = `
Resolve name (optionally constrained by -req) against the upstream registry
and add it to the registry root without disturbing any other cached crate.
`

type addCommand struct {
	root         string
	name         string
	req          string
	upstream     string
	resolverPath string
}

func (cmd *addCommand) Name() string      { return "add" }
func (cmd *addCommand) Args() string      { return "<name>" }
func (cmd *addCommand) ShortHelp() string { return addShortHelp }
func (cmd *addCommand) LongHelp() string  { return addLongHelp }

func (cmd *addCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.root, "root", "", "registry root directory (required)")
	fs.StringVar(&cmd.req, "req", "", "version requirement, e.g. \"^1.2\" (default: any)")
	fs.StringVar(&cmd.upstream, "upstream", "crates.io", "upstream registry host")
	fs.StringVar(&cmd.resolverPath, "resolver", "", "path to the resolver binary (default: \"resolver\" on PATH)")
}

func (cmd *addCommand) Run(args []string) error {
	if cmd.root == "" {
		return fmt.Errorf("add: -root is required")
	}
	if len(args) != 1 {
		return fmt.Errorf("add: expected exactly one crate name argument")
	}
	cmd.name = args[0]

	engine := syncengine.Engine{Gateway: resolverapi.Gateway{BinaryPath: cmd.resolverPath}}

	res, err := engine.Add(context.Background(), cmd.root, cmd.name, cmd.req, cmd.upstream)
	if err != nil {
		return err
	}

	fmt.Printf("crates written: %d, index files: %d\n", res.CratesWritten, res.IndexFiles)
	return nil
}
