// Package session wires a target to the constant schema, heap decoder,
// range catalog, scanner and reference finder that the commands share.
package session

import (
	"context"
	"debug/elf"
	"fmt"
	"sync"

	"v8heap/internal/constants"
	"v8heap/internal/diag"
	"v8heap/internal/disasm"
	"v8heap/internal/ranges"
	"v8heap/internal/refs"
	"v8heap/internal/scan"
	"v8heap/internal/target"
	"v8heap/internal/v8"
)

// Options configure a session.
type Options struct {
	RangesFile string
	Heap       v8.Options
	Scan       scan.Options
	Refs       refs.Options
	Quiet      bool
}

// Session is one opened target with its decoding state.
type Session struct {
	Target  target.Target
	Diags   *diag.Diags
	Schema  *constants.Schema
	Heap    *v8.Heap
	Catalog *ranges.Catalog
	Scanner *scan.Scanner

	opts   Options
	closer func() error

	mu     sync.Mutex
	finder *refs.Finder
}

// Open opens a core dump and the executable that produced it.
func Open(corePath, exePath string, opts Options) (*Session, error) {
	c, err := target.OpenCore(corePath, exePath)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := New(c, opts)
	s.closer = c.Close
	return s, nil
}

// New builds a session over an already open target.
func New(t target.Target, opts Options) *Session {
	d := &diag.Diags{Quiet: opts.Quiet}
	schema := constants.New(t, d)
	h := v8.New(schema, opts.Heap)
	cat := ranges.NewCatalog(h.Reader(), ranges.Resolve(opts.RangesFile, t), d)
	return &Session{
		Target:  t,
		Diags:   d,
		Schema:  schema,
		Heap:    h,
		Catalog: cat,
		Scanner: scan.New(h, cat, d, opts.Scan),
		opts:    opts,
	}
}

// Options returns the options the session was built with.
func (s *Session) Options() Options { return s.opts }

// Reconfigure rebuilds the decoding state over the same target with new
// options. The returned session takes over closing the target; s must not
// be used afterwards.
func (s *Session) Reconfigure(opts Options) *Session {
	next := New(s.Target, opts)
	next.closer = s.closer
	s.closer = nil
	return next
}

// Close releases the target files.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Arch returns the instruction set of the target. Targets that do not
// carry an ELF machine are assumed to be amd64.
func (s *Session) Arch() (disasm.Arch, error) {
	if m, ok := s.Target.(interface{ Machine() elf.Machine }); ok {
		return disasm.ArchFor(m.Machine())
	}
	return disasm.AMD64, nil
}

// Histogram returns the cached histogram, scanning on first use.
func (s *Session) Histogram(ctx context.Context) (*scan.Histogram, error) {
	return s.Scanner.Histogram(ctx)
}

// Rescan discards the cached histogram and reference indexes and scans again.
func (s *Session) Rescan(ctx context.Context) (*scan.Histogram, error) {
	s.Catalog.Reset()
	s.mu.Lock()
	s.finder = nil
	s.mu.Unlock()
	return s.Scanner.Rescan(ctx)
}

// Refs returns the reference finder for the current histogram. Indexes
// built by earlier queries are reused while the histogram is unchanged.
func (s *Session) Refs(ctx context.Context) (*refs.Finder, error) {
	hist, err := s.Histogram(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finder == nil || s.finder.Histogram() != hist {
		s.finder = refs.New(s.Heap, hist, s.opts.Refs)
	}
	return s.finder, nil
}
