package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch name := os.Args[1]; name {
	case "repl":
		err = cmdRepl(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		if _, ok := commands[name]; !ok {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", name)
			usage()
			os.Exit(1)
		}
		err = cmdOnce(name, os.Args[2:])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cmdOnce runs one query against a core opened from the command line.
func cmdOnce(name string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := newShell(ctx, os.Stdout, os.Stderr)
	sh.tf = &targetFlags{}
	defer sh.close()
	return sh.exec(name, args)
}

func usage() {
	fmt.Fprintf(os.Stderr, `v8heap - postmortem V8 heap inspector for node core dumps

Usage:
  v8heap findjsobjects   [-d] [-m] [--json]             Histogram of objects by hidden class
  v8heap findjsinstances [-d] [-n <page>] <type|map>    List instances of a type
  v8heap inspect         [-d] [-m] [-s] [-l <n>] <addr> Print a value
  v8heap findrefs        [-v|-n|-s] [--dot] <target>    Find holders of a value, name or string
  v8heap constants       [--json]                       Dump the postmortem constants
  v8heap frame           [--args] [-n <count>] <fp>     Decode JavaScript stack frames
  v8heap disasm          [--dot|--cfg|--calls] <code>   Disassemble a Code object
  v8heap ranges          [--all] [-o <file>]            Export readable ranges from the core
  v8heap settings        [get|set|save] ...             Show or change settings
  v8heap repl                                           Interactive session

Flags (every command):
  --core <path>       Core dump
  --exe <path>        node executable that produced the core
  --ranges <path>     Memory ranges file (default $LLNODE_RANGESFILE, then core segments)
  --config <path>     Settings file (default ~/.v8heap.yaml)
  --color <mode>      auto, always or never
  --workers <n>       Parallel scan workers
  --quiet             Suppress diagnostics and progress
`)
}
