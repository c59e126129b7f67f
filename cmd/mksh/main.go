// Command mksh is a minimal demonstration front end over the mksh package:
// enough of a CLI to run a script file or a `-c` command string, optionally
// dumping its parsed Command Tree and environment-frame stack instead of running
// it (spec §2 "a minimal driver exists only to exercise the package from a
// shell prompt").
package main

import (
	"bufio"
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pborman/getopt/v2"

	"github.com/Distrotech/mksh"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cmdString = getopt.StringLong("command", 'c', "", "run command-string instead of a script file")
		xtrace    = getopt.BoolLong("xtrace", 'x', "print commands and their arguments as they run")
		interact  = getopt.BoolLong("interactive", 'i', "force interactive-shell behavior")
		dump      = getopt.BoolLong("dump", 0, "print the parsed command tree instead of running it")
	)
	getopt.Parse()
	args := getopt.Args()
	_ = interact

	sh := mksh.NewShell(mksh.WithXTrace(*xtrace))

	var name, body string
	switch {
	case *cmdString != "":
		name, body = "-c", *cmdString
		if len(args) > 0 {
			sh.Positional = args[1:]
		}
	case len(args) > 0:
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "mksh: %v\n", err)
			return 127
		}
		name, body = args[0], string(data)
		sh.Positional = args[1:]
	default:
		data, err := ioutil.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mksh: %v\n", err)
			return 1
		}
		name, body = "<stdin>", string(data)
	}

	tree, err := sh.SubParse(name, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mksh: %v\n", err)
		return 2
	}

	if *dump {
		mksh.DumpTree(os.Stdout, tree)
		sh.DumpEnv(os.Stdout)
		return 0
	}

	ctx := context.Background()
	status, err := sh.Exec(ctx, tree)
	if err != nil {
		if sig, ok := err.(*mksh.Signal); ok {
			return sig.Status
		}
		fmt.Fprintf(os.Stderr, "mksh: %v\n", err)
		return 1
	}
	return status
}
