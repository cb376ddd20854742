// Command registry-mirror operates a local Cargo-style package registry
// mirror: it syncs a resolved dependency closure onto disk and serves it
// back over HTTP, with optional upstream fallback.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
)

// command is one registry-mirror subcommand.
type command interface {
	Name() string           // "sync"
	Args() string           // "<lockfile>"
	ShortHelp() string      // "Sync the registry from a lockfile"
	LongHelp() string       // long usage text
	Register(*flag.FlagSet) // command-specific flags
	Run(args []string) error
}

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	os.Exit(c.Run())
}

// Config specifies one registry-mirror invocation.
type Config struct {
	Args           []string
	Stdout, Stderr io.Writer
}

func (c *Config) Run() (exitCode int) {
	commands := []command{
		&syncCommand{},
		&addCommand{},
		&serveCommand{},
		&verifyCommand{},
		&versionCommand{},
	}

	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("registry-mirror manages a local package registry mirror")
		errLogger.Println()
		errLogger.Println("Usage: registry-mirror <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println(`Use "registry-mirror <command> -h" for command-specific flags.`)
	}

	if len(c.Args) < 2 {
		usage()
		return 1
	}

	cmdName := c.Args[1]
	if cmdName == "-h" || cmdName == "-help" || cmdName == "help" {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)
		verbose := fs.Bool("v", false, "enable verbose logging")
		cmd.Register(fs)
		resetUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}

		if *verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		if err := cmd.Run(fs.Args()); err != nil {
			errLogger.Printf("%s: %v\n", cmdName, err)
			return 1
		}
		return 0
	}

	errLogger.Printf("registry-mirror: %s: no such command\n", cmdName)
	usage()
	return 1
}

func resetUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		defValue := f.DefValue
		if defValue == "" {
			defValue = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, defValue)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: registry-mirror %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		logger.Println()
		if hasFlags {
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}
