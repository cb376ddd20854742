package main

import (
	"flag"
	"fmt"
)

const versionShortHelp = `Display version`
const versionLongHelp = `
Display the version of this binary.
`

const Version = "0.1.0"

type versionCommand struct{}

func (cmd *versionCommand) Name() string           { return "version" }
func (cmd *versionCommand) Args() string           { return "" }
func (cmd *versionCommand) ShortHelp() string      { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string       { return versionLongHelp }
func (cmd *versionCommand) Register(*flag.FlagSet) {}

func (cmd *versionCommand) Run(args []string) error {
	fmt.Println(Version)
	return nil
}
