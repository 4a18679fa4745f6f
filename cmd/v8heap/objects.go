package main

import (
	"fmt"
	"sort"
	"strings"

	"v8heap/internal/output"
	"v8heap/internal/printer"
	"v8heap/internal/scan"
)

func (sh *shell) findJSObjects(args []string) error {
	fs := sh.flags("findjsobjects")
	detailed := fs.Bool("d", false, "detailed: property and element counts, first property names")
	withMap := fs.Bool("m", false, "show the hidden-class address of each row")
	keys := fs.Int("keys", 3, "property names shown per row with -d")
	asJSON := fs.Bool("json", false, "write JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := sh.session()
	if err != nil {
		return err
	}
	hist, err := s.Histogram(sh.ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return output.WriteHistogramJSON(sh.out, hist, s.Heap.HeapObjectTag())
	}
	p := sh.printer(printer.Options{})
	if *detailed {
		return p.DetailedHistogram(sh.out, hist, *keys)
	}
	return p.Histogram(sh.out, hist, *withMap)
}

// page is an instance listing shown a page at a time.
type page struct {
	addrs []uint64
	next  int
	size  int
	opts  printer.Options
}

func (sh *shell) findJSInstances(args []string) error {
	fs := sh.flags("findjsinstances")
	detailed := fs.Bool("d", false, "print properties of each instance")
	printMap := fs.Bool("m", false, "prefix instances with their hidden-class address")
	length := fs.Int("l", 0, "preview length of strings and elements")
	size := fs.Int("n", 0, "instances per page (0 = all)")
	asJSON := fs.Bool("json", false, "write the instance addresses as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		if sh.page == nil || sh.page.next >= len(sh.page.addrs) {
			return fmt.Errorf("usage: findjsinstances [-d] [-n page] <type name | map address>")
		}
		return sh.showPage(sh.page)
	}

	s, err := sh.session()
	if err != nil {
		return err
	}
	hist, err := s.Histogram(sh.ctx)
	if err != nil {
		return err
	}
	name := strings.Join(fs.Args(), " ")
	addrs := instancesOf(hist, name, s.Heap.HeapObjectTag())
	if len(addrs) == 0 {
		fmt.Fprintf(sh.out, "No objects found with type name %s\n", name)
		return nil
	}
	if *asJSON {
		return output.WriteInstancesJSON(sh.out, name, addrs, s.Heap.HeapObjectTag())
	}

	pg := &page{
		addrs: addrs,
		size:  *size,
		opts:  printer.Options{Detailed: *detailed, PrintMap: *printMap, Length: *length},
	}
	if pg.size <= 0 {
		pg.size = len(addrs)
	}
	sh.page = pg
	return sh.showPage(pg)
}

// instancesOf resolves a type name or a tagged map address to the sorted
// untagged instances of every matching hidden class.
func instancesOf(hist *scan.Histogram, name string, tag uint64) []uint64 {
	if a, err := parseAddr(name); err == nil && strings.HasPrefix(name, "0x") {
		if r, ok := hist.Lookup(a - tag); ok {
			return r.Instances()
		}
		if r, ok := hist.Lookup(a); ok {
			return r.Instances()
		}
		return nil
	}
	var out []uint64
	for _, r := range hist.ByName(name) {
		out = append(out, r.Instances()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (sh *shell) showPage(pg *page) error {
	end := pg.next + pg.size
	if end > len(pg.addrs) {
		end = len(pg.addrs)
	}
	if _, err := sh.printer(pg.opts).Instances(sh.out, pg.addrs[pg.next:end]); err != nil {
		return err
	}
	if pg.next > 0 || end < len(pg.addrs) {
		fmt.Fprintf(sh.out, "(Showing %d to %d of %d instances)\n", pg.next+1, end, len(pg.addrs))
	}
	pg.next = end
	return nil
}

func (sh *shell) inspect(args []string) error {
	fs := sh.flags("inspect")
	detailed := fs.Bool("d", false, "print properties, elements and contexts")
	printMap := fs.Bool("m", false, "prefix objects with their hidden-class address")
	source := fs.Bool("s", false, "print function source (with -d)")
	length := fs.Int("l", 0, "preview length of strings, elements and buffers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: inspect [-d] [-m] [-s] [-l n] <address> ...")
	}

	if _, err := sh.session(); err != nil {
		return err
	}
	p := sh.printer(printer.Options{Detailed: *detailed, PrintMap: *printMap, Source: *source, Length: *length})
	for _, arg := range fs.Args() {
		raw, err := parseAddr(arg)
		if err != nil {
			return err
		}
		text, err := p.Inspect(raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, text)
	}
	return nil
}

func (sh *shell) constants(args []string) error {
	fs := sh.flags("constants")
	asJSON := fs.Bool("json", false, "write JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := sh.session()
	if err != nil {
		return err
	}
	if *asJSON {
		return output.WriteConstantsJSON(sh.out, s.Schema)
	}
	return sh.printer(printer.Options{}).Constants(sh.out, s.Schema)
}

func (sh *shell) frame(args []string) error {
	fs := sh.flags("frame")
	withArgs := fs.Bool("args", false, "print the receiver and arguments")
	count := fs.Int("n", 1, "frames to walk up the saved frame pointer chain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: frame [--args] [-n count] <frame pointer> ...")
	}
	s, err := sh.session()
	if err != nil {
		return err
	}
	p := sh.printer(printer.Options{})
	r := s.Heap.Reader()
	i := 0
	for _, arg := range fs.Args() {
		fp, err := parseAddr(arg)
		if err != nil {
			return err
		}
		for n := 0; n < *count && fp != 0; n++ {
			fmt.Fprintf(sh.out, "  frame #%d: 0x%016x %s\n", i, fp, p.Frame(s.Heap.Frame(fp), *withArgs))
			i++
			// The caller's frame pointer is saved at fp; stacks grow down.
			next, ok := r.ReadWord(fp)
			if !ok || next <= fp {
				break
			}
			fp = next
		}
	}
	return nil
}

func (sh *shell) rescan(args []string) error {
	fs := sh.flags("rescan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := sh.session()
	if err != nil {
		return err
	}
	sh.page = nil
	hist, err := s.Rescan(sh.ctx)
	if err != nil {
		return err
	}
	count, size := hist.Totals()
	fmt.Fprintf(sh.out, "%d objects (%d bytes) in %d hidden classes\n", count, size, hist.Len())
	return nil
}
