// Package printer renders decoded heap objects, histograms and reference
// listings as text for the terminal.
package printer

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"v8heap/internal/v8"
)

// DefaultLength is the preview length for strings, array elements and
// buffer bytes.
const DefaultLength = 16

// ColorEnabled resolves a color mode ("auto", "always" or "never") for f.
// Auto colors only terminals, and honors NO_COLOR.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// palette holds the colors of one printer. Each color is switched on or off
// individually so printers with different settings can coexist.
type palette struct {
	addr   *color.Color
	value  *color.Color
	header *color.Color
	key    *color.Color
	bad    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		addr:   color.New(color.FgCyan),
		value:  color.New(color.FgYellow),
		header: color.New(color.FgMagenta),
		key:    color.New(color.Bold, color.FgYellow),
		bad:    color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.addr, p.value, p.header, p.key, p.bad} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Options control how much of an object is printed.
type Options struct {
	Detailed bool // properties, elements, context and buffer bytes
	PrintMap bool // prefix objects with their hidden-class address
	Source   bool // function source text, detailed mode only
	Length   int  // preview length; 0 means DefaultLength
	Color    bool
}

// Printer renders values of one heap.
type Printer struct {
	h    *v8.Heap
	opts Options
	pal  palette
}

// New returns a printer for h.
func New(h *v8.Heap, opts Options) *Printer {
	if opts.Length <= 0 {
		opts.Length = DefaultLength
	}
	return &Printer{h: h, opts: opts, pal: newPalette(opts.Color)}
}

// Options returns the effective options.
func (p *Printer) Options() Options { return p.opts }

// nested returns the printer used for values inside a detailed listing:
// one line per value, same colors and preview length.
func (p *Printer) nested() *Printer {
	if !p.opts.Detailed && !p.opts.PrintMap {
		return p
	}
	opts := p.opts
	opts.Detailed = false
	opts.PrintMap = false
	opts.Source = false
	return &Printer{h: p.h, opts: opts, pal: p.pal}
}

// tagged converts an untagged object address for display.
func (p *Printer) tagged(addr uint64) uint64 { return addr + p.h.HeapObjectTag() }
