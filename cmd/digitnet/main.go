// Command digitnet trains and evaluates a convolutional MNIST digit
// classifier.
//
// Usage:
//
//	digitnet train        [flags]   train and save a checkpoint
//	digitnet evaluate     [flags]   restore, report test accuracy, export the graph
//	digitnet predict      [flags]   restore and classify test images
//	digitnet export-graph [flags]   write the network structure
//	digitnet version
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"train", "train the network and save a checkpoint", runTrain},
	{"evaluate", "restore a checkpoint and report test accuracy", runEvaluate},
	{"predict", "restore a checkpoint and classify test images", runPredict},
	{"export-graph", "write the network structure as JSON or YAML", runExportGraph},
}

// run executes one subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "digitnet %s\n", version)
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(args[1:], stdout, stderr)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			return 2
		default:
			fmt.Fprintf(stderr, "digitnet %s: %v\n", c.name, err)
			return 1
		}
	}

	fmt.Fprintf(stderr, "digitnet: unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: digitnet <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-13s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "  %-13s %s\n", "version", "print the version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'digitnet <command> -h' for command flags.")
}
