package target

import (
	"encoding/binary"
	"fmt"
	"sort"
)

type region struct {
	start uint64
	data  []byte
}

func (r *region) end() uint64 { return r.start + uint64(len(r.data)) }

// Memory is an in-memory Target built from explicit regions and symbols.
// It backs fixtures and raw memory dumps.
type Memory struct {
	id      string
	ptr     int
	order   binary.ByteOrder
	regions []*region // sorted by start, non-overlapping
	syms    map[string]Symbol
}

// NewMemory returns an empty little-endian Memory target with the given word size.
func NewMemory(id string, ptrSize int) *Memory {
	return &Memory{id: id, ptr: ptrSize, order: binary.LittleEndian, syms: make(map[string]Symbol)}
}

func (m *Memory) ID() string                  { return m.id }
func (m *Memory) PointerSize() int            { return m.ptr }
func (m *Memory) ByteOrder() binary.ByteOrder { return m.order }

// SetID changes the identity reported by ID.
func (m *Memory) SetID(id string) { m.id = id }

// Map adds a zero-filled region of n bytes at addr and returns its backing slice.
// Regions must not overlap.
func (m *Memory) Map(addr uint64, n int) []byte {
	r := &region{start: addr, data: make([]byte, n)}
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].start >= addr })
	if i > 0 && m.regions[i-1].end() > addr {
		panic(fmt.Sprintf("target: region 0x%x overlaps 0x%x", addr, m.regions[i-1].start))
	}
	if i < len(m.regions) && r.end() > m.regions[i].start {
		panic(fmt.Sprintf("target: region 0x%x overlaps 0x%x", addr, m.regions[i].start))
	}
	m.regions = append(m.regions, nil)
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = r
	return r.data
}

// Unmap removes the region starting at addr.
func (m *Memory) Unmap(addr uint64) {
	for i, r := range m.regions {
		if r.start == addr {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return
		}
	}
}

func (m *Memory) find(addr uint64, n int) (*region, uint64, bool) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].end() > addr })
	if i == len(m.regions) {
		return nil, 0, false
	}
	r := m.regions[i]
	if addr < r.start {
		return nil, 0, false
	}
	off := addr - r.start
	if off+uint64(n) > uint64(len(r.data)) || off+uint64(n) < off {
		return nil, 0, false
	}
	return r, off, true
}

// ReadMemory fills buf from addr. A read may span regions that are
// contiguous, as adjacent mappings are in a process image.
func (m *Memory) ReadMemory(addr uint64, buf []byte) error {
	if addr+uint64(len(buf)) < addr {
		return fmt.Errorf("%w: 0x%x+%d", ErrUnmapped, addr, len(buf))
	}
	if len(buf) == 0 {
		if _, _, ok := m.find(addr, 0); !ok {
			return fmt.Errorf("%w: 0x%x+0", ErrUnmapped, addr)
		}
		return nil
	}
	for pos := 0; pos < len(buf); {
		r, off, ok := m.find(addr+uint64(pos), 1)
		if !ok {
			return fmt.Errorf("%w: 0x%x+%d", ErrUnmapped, addr, len(buf))
		}
		pos += copy(buf[pos:], r.data[off:])
	}
	return nil
}

// Write stores b at addr. The destination must be mapped.
func (m *Memory) Write(addr uint64, b []byte) error {
	r, off, ok := m.find(addr, len(b))
	if !ok {
		return fmt.Errorf("%w: 0x%x+%d", ErrUnmapped, addr, len(b))
	}
	copy(r.data[off:], b)
	return nil
}

// PutUnsigned stores v at addr using width bytes.
func (m *Memory) PutUnsigned(addr uint64, v uint64, width int) error {
	var buf [8]byte
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		m.order.PutUint16(buf[:], uint16(v))
	case 4:
		m.order.PutUint32(buf[:], uint32(v))
	case 8:
		m.order.PutUint64(buf[:], v)
	default:
		return fmt.Errorf("target: bad width %d", width)
	}
	return m.Write(addr, buf[:width])
}

// PutWord stores a pointer-width word.
func (m *Memory) PutWord(addr, v uint64) error { return m.PutUnsigned(addr, v, m.ptr) }

// DefineSymbol registers a data symbol.
func (m *Memory) DefineSymbol(name string, addr, size uint64) {
	m.syms[name] = Symbol{Name: name, Addr: addr, Size: size}
}

func (m *Memory) LookupSymbol(name string) (Symbol, bool) {
	s, ok := m.syms[name]
	return s, ok
}

// Regions returns the mapped [start, end) pairs in address order.
func (m *Memory) Regions() [][2]uint64 {
	out := make([][2]uint64, len(m.regions))
	for i, r := range m.regions {
		out[i] = [2]uint64{r.start, r.end()}
	}
	return out
}
