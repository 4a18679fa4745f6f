// Package scan walks every word of the readable memory ranges and builds a
// histogram of live JavaScript objects keyed by hidden class.
package scan

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"v8heap/internal/diag"
	"v8heap/internal/ranges"
	"v8heap/internal/v8"
)

// DefaultBlockWords is the number of words read from the target at once.
const DefaultBlockWords = 1 << 20

// Options tunes a scan.
type Options struct {
	// Workers is the number of ranges scanned in parallel. Zero means GOMAXPROCS.
	Workers int
	// BlockSize is the read size in bytes. Zero means DefaultBlockWords words.
	BlockSize int
	// Progress, when set, is called after each range completes. It may be
	// called from several goroutines.
	Progress func(r ranges.Range, done, total int)
}

// Scanner scans one heap and caches the histogram per target identity.
type Scanner struct {
	h     *v8.Heap
	cat   *ranges.Catalog
	diags *diag.Diags
	opts  Options

	mu   sync.Mutex
	last *Histogram
}

// New returns a Scanner over h whose ranges come from cat.
func New(h *v8.Heap, cat *ranges.Catalog, d *diag.Diags, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	ptr := int(h.PointerSize())
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockWords * ptr
	}
	if r := opts.BlockSize % ptr; r != 0 {
		opts.BlockSize += ptr - r
	}
	return &Scanner{h: h, cat: cat, diags: d, opts: opts}
}

// Heap returns the heap the scanner decodes with.
func (s *Scanner) Heap() *v8.Heap { return s.h }

// Histogram returns the histogram of the current target, scanning only when
// no non-empty histogram is cached for it.
func (s *Scanner) Histogram(ctx context.Context) (*Histogram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.h.Target().ID()
	if s.last != nil && s.last.TargetID == id && s.last.Len() > 0 {
		return s.last, nil
	}
	hist, err := s.run(ctx, id)
	if err != nil {
		return nil, err
	}
	s.last = hist
	return hist, nil
}

// Rescan discards any cached histogram and scans again.
func (s *Scanner) Rescan(ctx context.Context) (*Histogram, error) {
	s.Invalidate()
	return s.Histogram(ctx)
}

// Invalidate drops the cached histogram.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

// Cached returns the cached histogram for the current target, if any.
func (s *Scanner) Cached() (*Histogram, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.TargetID != s.h.Target().ID() {
		return nil, false
	}
	return s.last, true
}

// InstancesOf scans if needed and returns the instances of the hidden class
// at mapAddr.
func (s *Scanner) InstancesOf(ctx context.Context, mapAddr uint64) ([]uint64, error) {
	hist, err := s.Histogram(ctx)
	if err != nil {
		return nil, err
	}
	return hist.InstancesOf(mapAddr), nil
}

// mapEntry caches what a scan learned about one hidden class. rec is nil
// for maps whose instances are not counted.
type mapEntry struct {
	rec *TypeRecord
}

type pass struct {
	s    *Scanner
	hist *Histogram
	maps sync.Map // untagged map address -> *mapEntry
}

func (s *Scanner) run(ctx context.Context, id string) (*Histogram, error) {
	rs, err := s.cat.Load()
	if err != nil {
		return nil, err
	}
	p := &pass{s: s, hist: newHistogram(id)}

	// Ranges are independent. Cancellation is only observed between them.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	var done atomic.Int64
	for _, r := range rs {
		if gctx.Err() != nil {
			break
		}
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.scanRange(r)
			n := done.Add(1)
			if s.opts.Progress != nil {
				s.opts.Progress(r, int(n), len(rs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.hist, nil
}

// scanRange visits every pointer-aligned word of r. The stride is always one
// word; object sizes are never trusted to skip ahead.
func (p *pass) scanRange(r ranges.Range) {
	rd := p.s.h.Reader()
	ptr := uint64(rd.PointerSize())
	order := rd.ByteOrder()
	block := uint64(p.s.opts.BlockSize)
	buf := make([]byte, block)

	var found int64
	for off := uint64(0); off < r.Length; off += block {
		n := r.Length - off
		if n > block {
			n = block
		}
		b := buf[:n]
		if !rd.ReadInto(r.Start+off, b) {
			found += p.scanWords(r, r.Start+off, n)
			continue
		}
		for j := uint64(0); j+ptr <= n; j += ptr {
			var w uint64
			if ptr == 4 {
				w = uint64(order.Uint32(b[j:]))
			} else {
				w = order.Uint64(b[j:])
			}
			if p.visit(w) {
				found++
			}
		}
	}
	p.hist.addFound(found)
}

// scanWords visits the n bytes at addr one word at a time, for blocks that
// could not be read whole. Unreadable words are skipped and reported once.
func (p *pass) scanWords(r ranges.Range, addr, n uint64) int64 {
	rd := p.s.h.Reader()
	ptr := uint64(rd.PointerSize())
	var found, bad int64
	for j := uint64(0); j+ptr <= n; j += ptr {
		w, ok := rd.ReadWord(addr + j)
		if !ok {
			bad++
			continue
		}
		if p.visit(w) {
			found++
		}
	}
	if bad > 0 {
		p.s.diags.Addf(addr, diag.UnreadableBlock, "range %s: %d of %d words unreadable", r, bad, n/ptr)
	}
	return found
}

// visit classifies one word and records it when it references an object of
// a counted type.
func (p *pass) visit(word uint64) bool {
	h := p.s.h
	if h.Classify(word) != v8.HeapReference {
		return false
	}
	o, ok := h.Object(word).Get()
	if !ok {
		return false
	}
	m, ok := o.Map().Get()
	if !ok {
		return false
	}
	e := p.entry(m, o)
	if e == nil || e.rec == nil {
		return false
	}
	e.rec.Add(o.Addr())
	return true
}

// entry returns the cached entry for m, building it from the first instance
// o. It returns nil when m is not a valid map; such words are not cached.
func (p *pass) entry(m v8.Map, o v8.HeapObject) *mapEntry {
	if e, ok := p.maps.Load(m.Addr()); ok {
		return e.(*mapEntry)
	}
	if !m.IsMap() {
		return nil
	}
	t, ok := m.InstanceType().Get()
	if !ok {
		return nil
	}
	e := &mapEntry{}
	if p.counted(t) {
		size, ok := m.InstanceSize().Get()
		if !ok {
			return nil
		}
		name, err := m.TypeName(t)
		if err != nil {
			return nil
		}
		e.rec = p.hist.record(m.Addr(), func() *TypeRecord {
			r := newRecord(m.Addr(), name, size)
			r.Descriptors = m.NumberOfOwnDescriptors().Or(0)
			r.Elements = v8.JSObject{HeapObject: o}.ElementCount().Or(0)
			r.Keys, _ = m.DescriptorKeys(p.s.h.Options().MaxProperties)
			return r
		})
	}
	actual, _ := p.maps.LoadOrStore(m.Addr(), e)
	return actual.(*mapEntry)
}

// counted reports whether instances of type t belong in the histogram:
// ordinary and API objects, arrays and typed-array views. Strings and
// internal structures are valid objects but are left out.
func (p *pass) counted(t int64) bool {
	types := p.s.h.Schema().Types()
	if types.IsObjectType(t) {
		return true
	}
	if types.JSArray.Ok() && t == types.JSArray.Value {
		return true
	}
	return types.JSTypedArray.Ok() && t == types.JSTypedArray.Value
}
