// Package elfx provides ELF loading helpers for process core dumps and the executables that produced them.
package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	ErrNotELF     = errors.New("elfx: not an ELF file")
	ErrNotCore    = errors.New("elfx: not a core file")
	ErrNoSymbol   = errors.New("elfx: symbol not found")
	ErrNoSegment  = errors.New("elfx: no PT_LOAD segment covers address")
	ErrNotInFile  = errors.New("elfx: address not backed by file contents")
	ErrShortRead  = errors.New("elfx: short read")
	ErrBadNote    = errors.New("elfx: malformed note")
	ErrNoMappings = errors.New("elfx: core has no NT_FILE note")
)

// ntFile is the NT_FILE note type ("FILE").
const ntFile = 0x46494c45

// File wraps a debug/elf.File with convenience methods for heap inspection.
type File struct {
	ELF  *elf.File
	Path string
	raw  io.ReaderAt
	size int64

	symOnce sync.Once
	syms    map[string]elf.Symbol
	symErr  error
}

// Open opens an ELF file. Both executables and core files are accepted.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	return &File{ELF: ef, Path: path, raw: f, size: info.Size()}, nil
}

// NewFile wraps an already open reader.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	return &File{ELF: ef, raw: r, size: size}, nil
}

// Close releases resources.
func (f *File) Close() error {
	return f.ELF.Close()
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// IsCore reports whether the file is an ET_CORE dump.
func (f *File) IsCore() bool { return f.ELF.Type == elf.ET_CORE }

// PointerSize returns 8 for ELFCLASS64 and 4 otherwise.
func (f *File) PointerSize() int {
	if f.ELF.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

// ByteOrder returns the ELF byte order.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.ELF.ByteOrder
}

// Machine returns the ELF machine.
func (f *File) Machine() elf.Machine { return f.ELF.Machine }

func (f *File) loadSymbols() {
	f.syms = make(map[string]elf.Symbol)
	// .dynsym first so .symtab entries win on duplicate names.
	dyn, derr := f.ELF.DynamicSymbols()
	for _, s := range dyn {
		f.syms[s.Name] = s
	}
	st, serr := f.ELF.Symbols()
	for _, s := range st {
		if s.Name == "" {
			continue
		}
		f.syms[s.Name] = s
	}
	if len(f.syms) == 0 {
		f.symErr = fmt.Errorf("elfx: no symbols: symtab: %v, dynsym: %v", serr, derr)
	}
}

// Symbol looks up a static or dynamic symbol by exact name.
// Returns the symbol's virtual address and size.
func (f *File) Symbol(name string) (addr, size uint64, err error) {
	f.symOnce.Do(f.loadSymbols)
	if s, ok := f.syms[name]; ok {
		return s.Value, s.Size, nil
	}
	if f.symErr != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrNoSymbol, name, f.symErr)
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrNoSymbol, name)
}

// SymbolCount returns the number of named symbols loaded.
func (f *File) SymbolCount() int {
	f.symOnce.Do(f.loadSymbols)
	return len(f.syms)
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
// Addresses in the zero-filled tail of a segment (Memsz > Filesz) return ErrNotInFile.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			if va >= p.Vaddr+p.Filesz {
				return 0, fmt.Errorf("%w: VA 0x%x", ErrNotInFile, va)
			}
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadAt reads bytes from the underlying file at the given file offset.
func (f *File) ReadAt(buf []byte, off int64) (int, error) {
	return f.raw.ReadAt(buf, off)
}

// ReadAtVA fills buf from virtual address va. The range must be file-backed;
// it may cross from one PT_LOAD segment into the next when they are contiguous.
func (f *File) ReadAtVA(va uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if va+uint64(len(buf)) < va {
		return fmt.Errorf("%w: VA 0x%x+%d", ErrNotInFile, va, len(buf))
	}
	for pos := 0; pos < len(buf); {
		cur := va + uint64(pos)
		p := f.loadAt(cur)
		if p == nil {
			return fmt.Errorf("%w: VA 0x%x", ErrNoSegment, cur)
		}
		fileEnd := p.Vaddr + p.Filesz
		if cur >= fileEnd {
			return fmt.Errorf("%w: VA 0x%x+%d", ErrNotInFile, va, len(buf))
		}
		n := len(buf) - pos
		if avail := fileEnd - cur; uint64(n) > avail {
			// Only a fully dumped segment can continue into its neighbour.
			if p.Filesz < p.Memsz {
				return fmt.Errorf("%w: VA 0x%x+%d", ErrNotInFile, va, len(buf))
			}
			n = int(avail)
		}
		off := int64(cur - p.Vaddr + p.Off)
		if off+int64(n) > f.size {
			return fmt.Errorf("%w: VA 0x%x past end of file", ErrShortRead, cur)
		}
		got, err := f.raw.ReadAt(buf[pos:pos+n], off)
		if got != n {
			if err == nil {
				err = ErrShortRead
			}
			return fmt.Errorf("elfx: read at 0x%x: %w", off, err)
		}
		pos += n
	}
	return nil
}

// loadAt returns the PT_LOAD segment whose memory range holds va.
func (f *File) loadAt(va uint64) *elf.Prog {
	for _, p := range f.ELF.Progs {
		if p.Type == elf.PT_LOAD && va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			return p
		}
	}
	return nil
}

// ReadBytesAtVA reads n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := f.ReadAtVA(va, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
	Flags  elf.ProgFlag
}

// LoadSegments returns all PT_LOAD segments.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
			Flags:  p.Flags,
		})
	}
	return segs
}

// FileMapping is one entry of a core's NT_FILE note.
type FileMapping struct {
	Start   uint64
	End     uint64
	FileOff uint64 // in bytes
	Path    string
}

// FileMappings parses the NT_FILE note of a core file.
func (f *File) FileMappings() ([]FileMapping, error) {
	if !f.IsCore() {
		return nil, ErrNotCore
	}
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_NOTE {
			continue
		}
		if p.Filesz > uint64(f.size) {
			return nil, fmt.Errorf("%w: PT_NOTE size 0x%x exceeds file", ErrBadNote, p.Filesz)
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("elfx: read note: %w", err)
		}
		desc, ok, err := findNote(data, f.ByteOrder(), ntFile)
		if err != nil {
			return nil, err
		}
		if ok {
			return parseFileNote(desc, f.ByteOrder(), f.PointerSize())
		}
	}
	return nil, ErrNoMappings
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

func findNote(data []byte, order binary.ByteOrder, typ uint32) ([]byte, bool, error) {
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		ntype := order.Uint32(data[8:12])
		data = data[12:]
		nlen := align4(namesz)
		dlen := align4(descsz)
		if uint64(nlen) > uint64(len(data)) || uint64(nlen)+uint64(descsz) > uint64(len(data)) {
			return nil, false, fmt.Errorf("%w: note size %d+%d exceeds segment", ErrBadNote, namesz, descsz)
		}
		desc := data[nlen : nlen+descsz]
		if ntype == typ {
			return desc, true, nil
		}
		if uint64(nlen)+uint64(dlen) > uint64(len(data)) {
			break
		}
		data = data[nlen+dlen:]
	}
	return nil, false, nil
}

func parseFileNote(desc []byte, order binary.ByteOrder, ptrSize int) ([]FileMapping, error) {
	word := func(b []byte) uint64 {
		if ptrSize == 8 {
			return order.Uint64(b)
		}
		return uint64(order.Uint32(b))
	}
	if len(desc) < 2*ptrSize {
		return nil, fmt.Errorf("%w: NT_FILE header truncated", ErrBadNote)
	}
	count := word(desc)
	pageSize := word(desc[ptrSize:])
	tableLen := uint64(ptrSize) * 3 * count
	if count > uint64(len(desc)) || 2*uint64(ptrSize)+tableLen > uint64(len(desc)) {
		return nil, fmt.Errorf("%w: NT_FILE count %d too large", ErrBadNote, count)
	}
	table := desc[2*ptrSize:]
	names := desc[2*uint64(ptrSize)+tableLen:]
	out := make([]FileMapping, 0, count)
	for i := uint64(0); i < count; i++ {
		e := table[i*3*uint64(ptrSize):]
		m := FileMapping{
			Start:   word(e),
			End:     word(e[ptrSize:]),
			FileOff: word(e[2*ptrSize:]) * pageSize,
		}
		j := bytes.IndexByte(names, 0)
		if j < 0 {
			return nil, fmt.Errorf("%w: NT_FILE name %d unterminated", ErrBadNote, i)
		}
		m.Path = string(names[:j])
		names = names[j+1:]
		out = append(out, m)
	}
	return out, nil
}
