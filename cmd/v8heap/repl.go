package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
)

const (
	historyFile = ".v8heap_history"
	prompt      = "(v8heap) "
)

// cmdRepl opens a core once and answers queries interactively. The scan
// and reference indexes are reused across commands.
func cmdRepl(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	tf := &targetFlags{}
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if tf.core == "" {
		return errNoCore
	}

	sh := newShell(context.Background(), os.Stdout, os.Stderr)
	sh.tf = tf
	s, err := sh.session()
	if err != nil {
		return err
	}
	defer sh.close()
	// Later commands must not re-register target flags.
	sh.tf = nil
	fmt.Fprintf(os.Stderr, "target: %s (V8 %s)\n", s.Target.ID(), s.Schema.Common().Version())
	sh.flushDiags()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(complete)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		// Ctrl-C while a command runs cancels that command only.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		sh.ctx = ctx
		more := sh.dispatch(line)
		stop()
		if !more {
			return nil
		}
	}
}

// dispatch runs one REPL line and reports whether the session continues.
func (sh *shell) dispatch(line string) bool {
	fields := strings.Fields(line)
	// Accept the lldb plugin spelling "v8 findjsobjects".
	if fields[0] == "v8" && len(fields) > 1 {
		fields = fields[1:]
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		sh.help()
		return true
	}
	if err := sh.exec(fields[0], fields[1:]); err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
	}
	return true
}

func complete(line string) []string {
	var out []string
	for name := range commands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
