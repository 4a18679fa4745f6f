package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"v8heap/internal/config"
	"v8heap/internal/printer"
	"v8heap/internal/ranges"
	"v8heap/internal/scan"
	"v8heap/internal/session"
)

// maxDiags bounds the diagnostics printed after one command.
const maxDiags = 20

var errNoCore = errors.New("--core is required")

// targetFlags are accepted by every command run from the command line.
type targetFlags struct {
	core    string
	exe     string
	ranges  string
	config  string
	color   string
	workers int
	quiet   bool
}

func (tf *targetFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&tf.core, "core", "", "path to the core dump")
	fs.StringVar(&tf.exe, "exe", "", "path to the node executable")
	fs.StringVar(&tf.ranges, "ranges", "", "memory ranges file (default $"+ranges.EnvRangesFile+")")
	fs.StringVar(&tf.config, "config", "", "settings file (default ~/"+config.DefaultFile+")")
	fs.StringVar(&tf.color, "color", "", "color output: auto, always or never")
	fs.IntVar(&tf.workers, "workers", 0, "parallel scan workers (0 = from settings)")
	fs.BoolVar(&tf.quiet, "quiet", false, "suppress diagnostics and progress")
}

// settings loads the settings file and applies the flag overrides.
func (tf *targetFlags) settings() (config.Settings, error) {
	path, required := tf.config, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}
	st, err := config.Load(path, required)
	if err != nil {
		return st, err
	}
	if tf.color != "" {
		if err := st.Set("color", tf.color); err != nil {
			return st, err
		}
	}
	if tf.ranges != "" {
		st.RangesFile = tf.ranges
	}
	if tf.workers > 0 {
		st.Workers = tf.workers
	}
	return st, nil
}

// shell runs commands against one session. Commands run from the command
// line open the session lazily from tf; the REPL opens it up front.
type shell struct {
	ctx      context.Context
	out      io.Writer
	errOut   io.Writer
	tf       *targetFlags
	settings config.Settings
	sess     *session.Session
	quiet    bool

	// page is the findjsinstances listing a bare "findjsinstances" continues.
	page *page
}

func newShell(ctx context.Context, out, errOut io.Writer) *shell {
	return &shell{ctx: ctx, out: out, errOut: errOut, settings: config.Default()}
}

// command is a shell command taking its own arguments.
type command struct {
	run  func(sh *shell, args []string) error
	help string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"findjsobjects":   {(*shell).findJSObjects, "list object types by instance count"},
		"findjsinstances": {(*shell).findJSInstances, "list instances of a type; no arguments continues the last listing"},
		"inspect":         {(*shell).inspect, "print a value"},
		"findrefs":        {(*shell).findRefs, "find objects referencing a value, property name or string"},
		"constants":       {(*shell).constants, "dump the postmortem constants"},
		"frame":           {(*shell).frame, "decode JavaScript stack frames by frame pointer"},
		"disasm":          {(*shell).disasm, "disassemble a Code object"},
		"ranges":          {(*shell).exportRanges, "write the readable ranges of the core"},
		"settings":        {(*shell).settingsCmd, "show or change settings"},
		"rescan":          {(*shell).rescan, "drop cached results and scan again"},
	}
}

// exec runs the named command and reports the diagnostics it produced.
func (sh *shell) exec(name string, args []string) error {
	c, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	err := c.run(sh, args)
	sh.flushDiags()
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (sh *shell) help() {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(sh.out, "  %-16s %s\n", n, commands[n].help)
	}
	fmt.Fprintf(sh.out, "  %-16s %s\n", "help", "show this list")
	fmt.Fprintf(sh.out, "  %-16s %s\n", "quit", "leave the session")
}

// flags returns the flag set of a command. Commands run from the command
// line also accept the target flags.
func (sh *shell) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(sh.errOut)
	if sh.tf != nil {
		sh.tf.register(fs)
	}
	return fs
}

func (sh *shell) sessionOptions() session.Options {
	opts := session.Options{
		RangesFile: sh.settings.RangesFile,
		Heap:       sh.settings.HeapOptions(),
		Scan:       scan.Options{Workers: sh.settings.Workers},
		Quiet:      sh.quiet,
	}
	if !sh.quiet {
		opts.Scan.Progress = func(r ranges.Range, done, total int) {
			fmt.Fprintf(sh.errOut, "\rscanning: %d/%d ranges", done, total)
			if done == total {
				fmt.Fprintln(sh.errOut)
			}
		}
	}
	return opts
}

// session returns the open session, opening the core named by the target
// flags on first use.
func (sh *shell) session() (*session.Session, error) {
	if sh.sess != nil {
		return sh.sess, nil
	}
	if sh.tf == nil || sh.tf.core == "" {
		return nil, errNoCore
	}
	st, err := sh.tf.settings()
	if err != nil {
		return nil, err
	}
	sh.settings = st
	sh.quiet = sh.tf.quiet
	s, err := session.Open(sh.tf.core, sh.tf.exe, sh.sessionOptions())
	if err != nil {
		return nil, err
	}
	sh.sess = s
	return s, nil
}

// reconfigure rebuilds the decoder after a setting it depends on changed.
func (sh *shell) reconfigure() {
	if sh.sess == nil {
		return
	}
	sh.sess = sh.sess.Reconfigure(sh.sessionOptions())
	sh.page = nil
}

func (sh *shell) close() error {
	if sh.sess == nil {
		return nil
	}
	return sh.sess.Close()
}

// printer returns a printer honoring the color and length settings. A
// non-zero length in opts overrides the string_length setting.
func (sh *shell) printer(opts printer.Options) *printer.Printer {
	if opts.Length <= 0 {
		opts.Length = sh.settings.StringLength
	}
	var f *os.File
	if sh.out == io.Writer(os.Stdout) {
		f = os.Stdout
	}
	opts.Color = printer.ColorEnabled(sh.settings.Color, f)
	return printer.New(sh.sess.Heap, opts)
}

func (sh *shell) flushDiags() {
	if sh.sess == nil {
		return
	}
	ds := sh.sess.Diags.Drain()
	if sh.quiet {
		return
	}
	for i, d := range ds {
		if i == maxDiags {
			fmt.Fprintf(sh.errOut, "warning: ... %d more\n", len(ds)-maxDiags)
			break
		}
		fmt.Fprintf(sh.errOut, "warning: %s\n", d)
	}
}

// parseAddr reads an address or tagged value: hex with "0x", else decimal.
func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSuffix(s, ","), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return v, nil
}
