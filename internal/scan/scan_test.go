package scan

import (
	"context"
	"errors"
	"testing"

	"v8heap/internal/constants"
	"v8heap/internal/diag"
	"v8heap/internal/ranges"
	"v8heap/internal/v8"
	"v8heap/internal/v8/v8test"
)

func newScanner(t *testing.T, fx *v8test.Heap, rs []ranges.Range, opts Options) (*Scanner, *diag.Diags) {
	t.Helper()
	d := &diag.Diags{}
	h := v8.New(constants.New(fx.Target(), &diag.Diags{Quiet: true}), v8.Options{})
	cat := ranges.NewCatalog(h.Reader(), ranges.Static(rs), d)
	return New(h, cat, d, opts), d
}

func region(fx *v8test.Heap, words ...uint64) ranges.Range {
	start, n := fx.Region(words...)
	return ranges.Range{Start: start, Length: n}
}

func mustScan(t *testing.T, s *Scanner) *Histogram {
	t.Helper()
	hist, err := s.Histogram(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return hist
}

func TestSingleObject(t *testing.T) {
	fx := v8test.New()
	m := fx.NewMapAt(0x1000, v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(m, fx.NewFunction("Foo"))
	obj := fx.NewObjectAt(0x2000, m)

	s, _ := newScanner(t, fx, []ranges.Range{region(fx, obj, v8test.Smi(7))}, Options{})
	hist := mustScan(t, s)

	if hist.Len() != 1 {
		t.Fatalf("records = %d, want 1", hist.Len())
	}
	r, ok := hist.Lookup(0x1000)
	if !ok {
		t.Fatal("no record for map 0x1000")
	}
	if r.Count() != 1 || r.Size() != 24 || r.Name != "Foo" {
		t.Errorf("record = %s count=%d size=%d", r.Name, r.Count(), r.Size())
	}
	if got := hist.InstancesOf(0x1000); len(got) != 1 || got[0] != 0x2000 {
		t.Errorf("InstancesOf = %x", got)
	}
	if hist.Found() != 1 {
		t.Errorf("Found = %d", hist.Found())
	}
}

func TestRevisitDoesNotDoubleCount(t *testing.T) {
	fx := v8test.New()
	m := fx.NewMapAt(0x1000, v8test.TypeJSObject, 3, 3)
	obj := fx.NewObjectAt(0x2000, m)

	rs := []ranges.Range{region(fx, obj, obj), region(fx, v8test.Smi(1), obj)}
	s, _ := newScanner(t, fx, rs, Options{Workers: 2})
	hist := mustScan(t, s)

	r, ok := hist.Lookup(0x1000)
	if !ok {
		t.Fatal("no record")
	}
	if r.Count() != 1 || r.Size() != 24 {
		t.Errorf("count=%d size=%d, want 1 and 24", r.Count(), r.Size())
	}
	if hist.Found() != 3 {
		t.Errorf("Found = %d, want 3 sightings", hist.Found())
	}
	if r.Name != "(Object)" {
		t.Errorf("name without constructor = %q", r.Name)
	}
}

func TestTruncatedRangeDropped(t *testing.T) {
	fx := v8test.New()
	m := fx.NewClass("Kept")
	kept := fx.NewObject(m)
	lost := fx.NewObject(fx.NewClass("Lost"))

	good := region(fx, kept)
	bad := region(fx, lost)
	bad.Length += 8 // last word lies past the mapped region

	s, d := newScanner(t, fx, []ranges.Range{bad, good}, Options{})
	hist := mustScan(t, s)
	if hist.Len() != 1 {
		t.Fatalf("records = %d", hist.Len())
	}
	if rs := hist.ByName("Kept"); len(rs) != 1 || rs[0].Count() != 1 {
		t.Errorf("ByName(Kept) = %v", rs)
	}
	if len(hist.ByName("Lost")) != 0 {
		t.Error("object from a dropped range was counted")
	}
	if n := d.Count(diag.SkippedRange); n != 1 {
		t.Errorf("skipped ranges = %d", n)
	}
}

func TestCountedTypes(t *testing.T) {
	fx := v8test.New()
	point := fx.NewClass("Point", "x", "y")
	buf := fx.NewArrayBuffer(0, 16)
	words := []uint64{
		fx.NewObject(point, v8test.Smi(1), v8test.Smi(2)),
		fx.NewArray(v8test.Smi(1), v8test.Smi(2), v8test.Smi(3)),
		fx.NewTypedArray(buf, 0, 16, 0, 0),
		fx.NewString("not counted"),
		fx.NewFixedArray(v8test.Smi(1)),
		fx.NewHeapNumber(1.5),
		fx.NewFunction("fn"),
		buf,
		fx.Undefined,
		fx.NewObject(fx.Empty), // map slot is not a map
		0x7001,                 // tagged but unmapped
		0x1003,                 // unrecognized
	}
	s, _ := newScanner(t, fx, []ranges.Range{region(fx, words...)}, Options{})
	hist := mustScan(t, s)

	names := map[string]bool{}
	for _, r := range hist.Records() {
		names[r.Name] = true
	}
	for _, want := range []string{"Point", "(Array)", "(ArrayBufferView)"} {
		if !names[want] {
			t.Errorf("missing %s in %v", want, names)
		}
	}
	if len(names) != 3 {
		t.Errorf("unexpected records: %v", names)
	}

	p := hist.ByName("Point")[0]
	if p.Descriptors != 2 || len(p.Keys) != 2 || p.Keys[0] != "x" {
		t.Errorf("Point shape = %d %v", p.Descriptors, p.Keys)
	}
	if got := p.ShapeName(false, 3); got != "Point: x, y" {
		t.Errorf("ShapeName = %q", got)
	}
	a := hist.ByName("(Array)")[0]
	if a.Elements != 3 {
		t.Errorf("array elements = %d", a.Elements)
	}
	if got := a.ShapeName(true, 0); got != "(Array)[3]" {
		t.Errorf("array ShapeName = %q", got)
	}
}

func TestHistogramCache(t *testing.T) {
	fx := v8test.New()
	m := fx.NewClass("Cached")
	a := fx.NewObject(m)
	r := region(fx, a, v8test.Smi(0))
	s, _ := newScanner(t, fx, []ranges.Range{r}, Options{})

	first := mustScan(t, s)
	if err := fx.Mem.PutWord(r.Start+8, fx.NewObject(m)); err != nil {
		t.Fatal(err)
	}
	if again := mustScan(t, s); again != first {
		t.Error("second scan of the same target did not reuse the histogram")
	}
	if got := first.ByName("Cached")[0].Count(); got != 1 {
		t.Errorf("cached count = %d", got)
	}

	fx.Mem.SetID("v8test-2")
	if _, ok := s.Cached(); ok {
		t.Error("Cached returned a histogram for another target")
	}
	rebuilt := mustScan(t, s)
	if rebuilt == first {
		t.Fatal("histogram not rebuilt after target change")
	}
	if got := rebuilt.ByName("Cached")[0].Count(); got != 2 {
		t.Errorf("rebuilt count = %d", got)
	}

	fx.Mem.PutWord(r.Start+8, v8test.Smi(0))
	if got := mustScan(t, s); got != rebuilt {
		t.Error("cache lost without a target change")
	}
	fresh, err := s.Rescan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := fresh.ByName("Cached")[0].Count(); got != 1 {
		t.Errorf("rescan count = %d", got)
	}
}

func TestEmptyHistogramNotCached(t *testing.T) {
	fx := v8test.New()
	r := region(fx, v8test.Smi(1), v8test.Smi(2))
	s, _ := newScanner(t, fx, []ranges.Range{r}, Options{})
	if hist := mustScan(t, s); hist.Len() != 0 {
		t.Fatalf("records = %d", hist.Len())
	}
	fx.Mem.PutWord(r.Start, fx.NewObject(fx.NewClass("Late")))
	if hist := mustScan(t, s); len(hist.ByName("Late")) != 1 {
		t.Error("empty histogram was reused")
	}
}

func TestBlockReads(t *testing.T) {
	fx := v8test.New()
	obj := fx.NewObject(fx.NewClass("Edge"))
	// Two adjacent mappings, one object reference in the second.
	const base = 0x70000000
	fx.Mem.Map(base, 16)
	fx.Mem.Map(base+16, 16)
	fx.Mem.PutWord(base+24, obj)
	rs := []ranges.Range{{Start: base, Length: 32}}

	for _, block := range []int{16, 32} {
		s, d := newScanner(t, fx, rs, Options{BlockSize: block})
		if hist := mustScan(t, s); len(hist.ByName("Edge")) != 1 {
			t.Errorf("block %d: object in the second mapping not found", block)
		}
		if n := d.Count(diag.UnreadableBlock); n != 0 {
			t.Errorf("block %d: unreadable block diagnostics = %d", block, n)
		}
	}
}

func TestBlockWithHole(t *testing.T) {
	fx := v8test.New()
	class := fx.NewClass("Edge")
	a, b := fx.NewObject(class), fx.NewObject(class)
	// A range whose ends are readable but whose middle was never dumped.
	const base = 0x70000000
	fx.Mem.Map(base, 16)
	fx.Mem.Map(base+32, 16)
	fx.Mem.PutWord(base+8, a)
	fx.Mem.PutWord(base+40, b)
	rs := []ranges.Range{{Start: base, Length: 48}}

	s, d := newScanner(t, fx, rs, Options{BlockSize: 48})
	hist := mustScan(t, s)
	recs := hist.ByName("Edge")
	if len(recs) != 1 || recs[0].Count() != 2 {
		t.Fatalf("records = %d, want one record with 2 instances", len(recs))
	}
	if n := d.Count(diag.UnreadableBlock); n != 1 {
		t.Errorf("unreadable block diagnostics = %d, want 1", n)
	}
}

func TestScanErrors(t *testing.T) {
	fx := v8test.New()
	h := v8.New(constants.New(fx.Target(), nil), v8.Options{})
	s := New(h, ranges.NewCatalog(h.Reader(), nil, nil), nil, Options{})
	if _, err := s.Histogram(context.Background()); !errors.Is(err, ranges.ErrNoRanges) {
		t.Errorf("no catalog: err = %v", err)
	}

	obj := fx.NewObject(fx.NewClass("X"))
	s, _ = newScanner(t, fx, []ranges.Range{region(fx, obj)}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Histogram(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
	if _, ok := s.Cached(); ok {
		t.Error("cancelled scan was cached")
	}
}

func TestProgress(t *testing.T) {
	fx := v8test.New()
	rs := []ranges.Range{region(fx, v8test.Smi(1)), region(fx, v8test.Smi(2)), region(fx, v8test.Smi(3))}
	calls := make(chan int, len(rs))
	s, _ := newScanner(t, fx, rs, Options{
		Workers:  1,
		Progress: func(_ ranges.Range, done, total int) { calls <- done*10 + total },
	})
	mustScan(t, s)
	close(calls)
	var got []int
	for c := range calls {
		got = append(got, c)
	}
	if len(got) != 3 || got[2] != 33 {
		t.Errorf("progress = %v", got)
	}
}
