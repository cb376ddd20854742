package main

import (
	"flag"
	"fmt"

	"github.com/dhovart/cargo-local-registry/syncengine"
)

const verifyShortHelp = `Check a registry root for consistency`
const verifyLongHelp = `
Check that every archive in the registry root has a matching index record
in the correct shard, that every index file is well-formed, sorted, and
free of duplicate versions, and that every index record's archive exists.

Exits non-zero and prints one line per violation if any are found.
`

type verifyCommand struct {
	root string
}

func (cmd *verifyCommand) Name() string      { return "verify" }
func (cmd *verifyCommand) Args() string      { return "" }
func (cmd *verifyCommand) ShortHelp() string { return verifyShortHelp }
func (cmd *verifyCommand) LongHelp() string  { return verifyLongHelp }

func (cmd *verifyCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.root, "root", "", "registry root directory (required)")
}

func (cmd *verifyCommand) Run(args []string) error {
	if cmd.root == "" {
		return fmt.Errorf("verify: -root is required")
	}

	problems, err := syncengine.Verify(cmd.root)
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("verify: %d problem(s) found", len(problems))
	}
	fmt.Println("registry is consistent")
	return nil
}
