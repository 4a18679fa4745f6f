package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"v8heap/internal/elfx/elfxtest"
)

func findSample(t *testing.T, name string) string {
	t.Helper()
	// Walk up to find samples/ directory.
	dir, _ := os.Getwd()
	for {
		p := filepath.Join(dir, "samples", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Skipf("sample %s not found", name)
		}
		dir = parent
	}
}

func writeCore(t *testing.T, segs []elfxtest.Segment, maps []elfxtest.Mapping) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "core")
	if err := os.WriteFile(p, elfxtest.BuildCore(elf.EM_X86_64, segs, maps), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenSyntheticCore(t *testing.T) {
	data := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(data[0x10:], 0xdeadbeefcafef00d)
	path := writeCore(t, []elfxtest.Segment{{Vaddr: 0x400000, Data: data, Memsz: 0x200}}, nil)

	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if !ef.IsCore() {
		t.Error("IsCore = false")
	}
	if ef.PointerSize() != 8 {
		t.Errorf("PointerSize = %d", ef.PointerSize())
	}
	got, err := ef.ReadBytesAtVA(0x400010, 8)
	if err != nil {
		t.Fatal(err)
	}
	if v := binary.LittleEndian.Uint64(got); v != 0xdeadbeefcafef00d {
		t.Errorf("read 0x%x", v)
	}
}

func TestReadAtVABounds(t *testing.T) {
	path := writeCore(t, []elfxtest.Segment{{Vaddr: 0x1000, Data: make([]byte, 0x80), Memsz: 0x1000}}, nil)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	buf := make([]byte, 8)
	if err := ef.ReadAtVA(0x1078, buf); err != nil {
		t.Errorf("last word: %v", err)
	}
	// Crosses from file-backed into the undumped tail.
	if err := ef.ReadAtVA(0x107c, buf); !errors.Is(err, ErrNotInFile) {
		t.Errorf("straddling read: got %v, want ErrNotInFile", err)
	}
	if err := ef.ReadAtVA(0x1800, buf); !errors.Is(err, ErrNotInFile) {
		t.Errorf("undumped read: got %v, want ErrNotInFile", err)
	}
	if err := ef.ReadAtVA(0x9000, buf); !errors.Is(err, ErrNoSegment) {
		t.Errorf("unmapped read: got %v, want ErrNoSegment", err)
	}
}

func TestReadAtVAAdjacentSegments(t *testing.T) {
	lo := make([]byte, 0x40)
	hi := make([]byte, 0x40)
	binary.LittleEndian.PutUint64(lo[0x38:], 0x1111111111111111)
	binary.LittleEndian.PutUint64(hi[0x00:], 0x2222222222222222)
	path := writeCore(t, []elfxtest.Segment{
		{Vaddr: 0x2000, Data: lo},
		{Vaddr: 0x2040, Data: hi},
		{Vaddr: 0x3000, Data: make([]byte, 0x40), Memsz: 0x80},
		{Vaddr: 0x3080, Data: make([]byte, 0x40)},
	}, nil)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	buf := make([]byte, 16)
	if err := ef.ReadAtVA(0x2038, buf); err != nil {
		t.Fatalf("spanning read: %v", err)
	}
	if a, b := binary.LittleEndian.Uint64(buf), binary.LittleEndian.Uint64(buf[8:]); a != 0x1111111111111111 || b != 0x2222222222222222 {
		t.Errorf("spanning read = 0x%x 0x%x", a, b)
	}
	if err := ef.ReadAtVA(0x2000, make([]byte, 0x80)); err != nil {
		t.Errorf("both segments: %v", err)
	}
	if err := ef.ReadAtVA(0x2078, buf); !errors.Is(err, ErrNoSegment) {
		t.Errorf("past the second segment: got %v, want ErrNoSegment", err)
	}
	// The first segment's tail was not dumped, so its neighbour is unreachable.
	if err := ef.ReadAtVA(0x3038, buf); !errors.Is(err, ErrNotInFile) {
		t.Errorf("across an undumped tail: got %v, want ErrNotInFile", err)
	}
}

func TestFileMappings(t *testing.T) {
	maps := []elfxtest.Mapping{
		{Start: 0x555555554000, End: 0x555555556000, PageOff: 0, Path: "/usr/bin/node"},
		{Start: 0x555555556000, End: 0x555555558000, PageOff: 2, Path: "/usr/bin/node"},
		{Start: 0x7ffff7dd0000, End: 0x7ffff7df0000, PageOff: 0, Path: "/lib/libc.so.6"},
	}
	path := writeCore(t, []elfxtest.Segment{{Vaddr: 0x1000, Data: make([]byte, 16)}}, maps)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	got, err := ef.FileMappings()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d mappings, want 3", len(got))
	}
	if got[1].FileOff != 0x2000 || got[1].Path != "/usr/bin/node" {
		t.Errorf("mapping[1] = %+v", got[1])
	}
	if got[2].Start != 0x7ffff7dd0000 || got[2].Path != "/lib/libc.so.6" {
		t.Errorf("mapping[2] = %+v", got[2])
	}
}

func TestFileMappingsMissing(t *testing.T) {
	path := writeCore(t, []elfxtest.Segment{{Vaddr: 0x1000, Data: make([]byte, 16)}}, nil)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()
	if _, err := ef.FileMappings(); !errors.Is(err, ErrNoMappings) {
		t.Errorf("got %v, want ErrNoMappings", err)
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(tmp, []byte("not an ELF file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(tmp)
	if !errors.Is(err, ErrNotELF) {
		t.Fatalf("got %v, want ErrNotELF", err)
	}
}

func TestSymbolLookup(t *testing.T) {
	path := findSample(t, "node")
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	va, size, err := ef.Symbol("v8dbg_SmiTag")
	if err != nil {
		t.Fatal(err)
	}
	if va == 0 {
		t.Error("VA is 0")
	}
	if size == 0 {
		t.Error("size is 0")
	}
}

func TestSymbolNotFound(t *testing.T) {
	path := writeCore(t, []elfxtest.Segment{{Vaddr: 0x1000, Data: make([]byte, 16)}}, nil)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if _, _, err := ef.Symbol("v8dbg_NonExistent"); !errors.Is(err, ErrNoSymbol) {
		t.Fatalf("got %v, want ErrNoSymbol", err)
	}
}

func TestLoadSegments(t *testing.T) {
	path := writeCore(t, []elfxtest.Segment{
		{Vaddr: 0x1000, Data: make([]byte, 0x10)},
		{Vaddr: 0x8000, Data: nil, Memsz: 0x1000},
	}, nil)
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	segs := ef.LoadSegments()
	if len(segs) != 2 {
		t.Fatalf("got %d PT_LOAD segments, want 2", len(segs))
	}
	if segs[1].Filesz != 0 || segs[1].Memsz != 0x1000 {
		t.Errorf("segment[1] = %+v", segs[1])
	}
}

func FuzzELFOpen(f *testing.F) {
	f.Add([]byte("\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	f.Add([]byte("not an elf at all"))
	f.Add(elfxtest.BuildCore(elf.EM_X86_64, []elfxtest.Segment{{Vaddr: 0x1000, Data: make([]byte, 8)}},
		[]elfxtest.Mapping{{Start: 0x1000, End: 0x2000, Path: "/x"}}))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.core")
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return // expected
		}
		// If it opens, exercise the API.
		ef.FileSize()
		ef.LoadSegments()
		ef.FileMappings()
		ef.Symbol("v8dbg_SmiTag")
		ef.ReadBytesAtVA(0x1000, 8)
		ef.Close()
	})
}
