package scan

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TypeRecord accumulates the instances of one hidden class.
type TypeRecord struct {
	Map          uint64 // untagged hidden-class address
	Name         string
	InstanceSize int64

	// Shape details captured from the first instance seen.
	Descriptors int64
	Elements    int64
	Keys        []string

	mu        sync.Mutex
	size      int64
	instances map[uint64]struct{}
}

func newRecord(mapAddr uint64, name string, instanceSize int64) *TypeRecord {
	return &TypeRecord{
		Map:          mapAddr,
		Name:         name,
		InstanceSize: instanceSize,
		instances:    make(map[uint64]struct{}),
	}
}

// Add records the object at addr and reports whether it was new.
// Revisits leave count and size untouched.
func (r *TypeRecord) Add(addr uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[addr]; ok {
		return false
	}
	r.instances[addr] = struct{}{}
	r.size += r.InstanceSize
	return true
}

// Count returns the number of distinct instances.
func (r *TypeRecord) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.instances))
}

// Size returns the cumulative instance size in bytes.
func (r *TypeRecord) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Instances returns the instance addresses in ascending order.
func (r *TypeRecord) Instances() []uint64 {
	r.mu.Lock()
	out := make([]uint64, 0, len(r.instances))
	for a := range r.instances {
		out = append(out, a)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether addr is a recorded instance.
func (r *TypeRecord) Has(addr uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[addr]
	return ok
}

// Sample returns the lowest instance address, or 0 for an empty record.
func (r *TypeRecord) Sample() uint64 {
	var min uint64
	r.mu.Lock()
	for a := range r.instances {
		if min == 0 || a < min {
			min = a
		}
	}
	r.mu.Unlock()
	return min
}

// ShapeName renders the name followed by up to max property names:
// "Point: x, y". With arrayLength the element count is appended to the name
// first ("(Array)[3]"). max <= 0 lists every key.
func (r *TypeRecord) ShapeName(arrayLength bool, max int) string {
	var b strings.Builder
	b.WriteString(r.Name)
	if arrayLength {
		b.WriteString("[" + strconv.FormatInt(r.Elements, 10) + "]")
	}
	n := len(r.Keys)
	if max > 0 && max < n {
		n = max
	}
	for i := 0; i < n; i++ {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(r.Keys[i])
	}
	if n < len(r.Keys) {
		b.WriteString(", ...")
	}
	return b.String()
}

// Histogram is the result of one heap scan, keyed by hidden-class address.
type Histogram struct {
	TargetID string

	mu      sync.Mutex
	records map[uint64]*TypeRecord
	found   int64
}

func newHistogram(id string) *Histogram {
	return &Histogram{TargetID: id, records: make(map[uint64]*TypeRecord)}
}

// record returns the record for mapAddr, creating it with mk on first sight.
// mk runs under the histogram lock so each record is built once.
func (h *Histogram) record(mapAddr uint64, mk func() *TypeRecord) *TypeRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.records[mapAddr]; ok {
		return r
	}
	r := mk()
	h.records[mapAddr] = r
	return r
}

func (h *Histogram) addFound(n int64) {
	h.mu.Lock()
	h.found += n
	h.mu.Unlock()
}

// Found returns the number of interesting object sightings, revisits included.
func (h *Histogram) Found() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.found
}

// Len returns the number of distinct hidden classes.
func (h *Histogram) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Lookup returns the record of the hidden class at mapAddr.
func (h *Histogram) Lookup(mapAddr uint64) (*TypeRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.records[mapAddr]
	return r, ok
}

// InstancesOf returns the instances of the hidden class at mapAddr.
func (h *Histogram) InstancesOf(mapAddr uint64) []uint64 {
	r, ok := h.Lookup(mapAddr)
	if !ok {
		return nil
	}
	return r.Instances()
}

// ByName returns the records whose display name is name, in sort order.
// Several hidden classes commonly share a constructor name.
func (h *Histogram) ByName(name string) []*TypeRecord {
	var out []*TypeRecord
	for _, r := range h.Sorted() {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Totals returns the instance count and size over all records.
func (h *Histogram) Totals() (count, size int64) {
	for _, r := range h.Records() {
		count += r.Count()
		size += r.Size()
	}
	return count, size
}

// Records returns the records in no particular order.
func (h *Histogram) Records() []*TypeRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*TypeRecord, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r)
	}
	return out
}

// Sorted returns the records ordered by instance count, then cumulative
// size, then name, all ascending. Records equal on all three are ordered
// by map address so the output is deterministic.
func (h *Histogram) Sorted() []*TypeRecord {
	rs := h.Records()
	type key struct {
		r           *TypeRecord
		count, size int64
	}
	ks := make([]key, len(rs))
	for i, r := range rs {
		ks[i] = key{r, r.Count(), r.Size()}
	}
	sort.Slice(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.count != b.count {
			return a.count < b.count
		}
		if a.size != b.size {
			return a.size < b.size
		}
		if a.r.Name != b.r.Name {
			return a.r.Name < b.r.Name
		}
		return a.r.Map < b.r.Map
	})
	for i, k := range ks {
		rs[i] = k.r
	}
	return rs
}

// Shape groups hidden classes that render to the same detailed name.
type Shape struct {
	Name        string // name with the first few property names
	Sample      uint64
	Count       int64
	Size        int64
	Descriptors int64
	Elements    int64
	Records     []*TypeRecord
}

// Shapes groups the records by name, element count and full key list, the
// view behind the detailed histogram. maxKeys bounds the keys shown in
// each Shape's Name.
func (h *Histogram) Shapes(maxKeys int) []*Shape {
	byKey := make(map[string]*Shape)
	var out []*Shape
	for _, r := range h.Sorted() {
		k := r.ShapeName(true, 0)
		s, ok := byKey[k]
		if !ok {
			s = &Shape{
				Name:        r.ShapeName(false, maxKeys),
				Descriptors: r.Descriptors,
				Elements:    r.Elements,
			}
			byKey[k] = s
			out = append(out, s)
		}
		if sample := r.Sample(); sample != 0 && (s.Sample == 0 || sample < s.Sample) {
			s.Sample = sample
		}
		s.Count += r.Count()
		s.Size += r.Size()
		s.Records = append(s.Records, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Name < b.Name
	})
	return out
}
