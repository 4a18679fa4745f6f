package main

import (
	"context"
	"fmt"
	"strings"

	lrender "github.com/zboralski/lattice/render"

	"v8heap/internal/output"
	"v8heap/internal/printer"
	"v8heap/internal/refgraph"
	"v8heap/internal/refs"
)

func (sh *shell) findRefs(args []string) error {
	fs := sh.flags("findrefs")
	byValue := fs.Bool("v", false, "find slots holding the value (default)")
	byName := fs.Bool("n", false, "find objects with a property of this name")
	byString := fs.Bool("s", false, "find slots holding a string with this text")
	dot := fs.Bool("dot", false, "render the holder graph as DOT (-v only)")
	depth := fs.Int("depth", 1, "holder levels to follow (-v only)")
	asJSON := fs.Bool("json", false, "write JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	modes := 0
	for _, b := range []bool{*byValue, *byName, *byString} {
		if b {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("findrefs: -v, -n and -s are exclusive")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: findrefs [-v|-n|-s] [--dot] [--depth n] <value | name | text>")
	}

	s, err := sh.session()
	if err != nil {
		return err
	}
	f, err := s.Refs(sh.ctx)
	if err != nil {
		return err
	}

	var rs []refs.Ref
	switch {
	case *byName:
		rs, err = f.FindName(sh.ctx, strings.Join(fs.Args(), " "))
	case *byString:
		rs, err = f.FindString(sh.ctx, strings.Join(fs.Args(), " "))
	default:
		raw, perr := parseAddr(fs.Arg(0))
		if perr != nil {
			return perr
		}
		if *dot {
			g, err := refgraph.Build(sh.ctx, f, raw, refgraph.Options{Depth: *depth})
			if err != nil {
				return err
			}
			fmt.Fprint(sh.out, lrender.DOT(g, refgraph.Label(f, raw)))
			return nil
		}
		if *depth > 1 && !*asJSON {
			return sh.refTree(sh.ctx, f, raw, *depth, 0, map[uint64]bool{raw: true})
		}
		rs, err = f.FindValue(sh.ctx, raw)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return output.WriteRefsJSON(sh.out, rs)
	}
	return sh.printer(printer.Options{}).Refs(sh.out, rs)
}

// refTree prints the holders of raw, then their holders indented by the
// tree_padding setting, down to depth levels. Holders already printed are
// not expanded again.
func (sh *shell) refTree(ctx context.Context, f *refs.Finder, raw uint64, depth, level int, seen map[uint64]bool) error {
	rs, err := f.FindValue(ctx, raw)
	if err != nil {
		return err
	}
	pad := strings.Repeat(" ", level*sh.settings.TreePadding)
	for _, r := range rs {
		fmt.Fprintf(sh.out, "%s%s\n", pad, r)
		if level+1 >= depth || seen[r.Holder] {
			continue
		}
		seen[r.Holder] = true
		if err := sh.refTree(ctx, f, r.Holder, depth, level+1, seen); err != nil {
			return err
		}
	}
	return nil
}
