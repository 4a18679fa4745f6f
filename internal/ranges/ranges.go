// Package ranges loads and validates the list of readable memory ranges the
// heap scanner walks.
//
// The side-channel file has one range per line: start address and length in
// bytes, both hexadecimal, "0x" prefix optional. Blank lines and lines
// starting with '#' are ignored.
package ranges

import (
	"bufio"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"v8heap/internal/diag"
	"v8heap/internal/elfx"
	"v8heap/internal/target"
)

// EnvRangesFile names the environment variable holding the ranges file path.
const EnvRangesFile = "LLNODE_RANGESFILE"

// ErrNoRanges means no memory range information could be obtained at all.
var ErrNoRanges = errors.New("no memory range information available; cannot scan for objects (set " + EnvRangesFile + " or pass --ranges)")

// Range is a contiguous readable region of the snapshot.
type Range struct {
	Start  uint64
	Length uint64
}

// End returns the first address past the range.
func (r Range) End() uint64 { return r.Start + r.Length }

func (r Range) String() string {
	return fmt.Sprintf("0x%x-0x%x", r.Start, r.End())
}

// Parse reads a ranges file.
func Parse(r io.Reader) ([]Range, error) {
	var out []Range
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return nil, fmt.Errorf("ranges: line %d: want address and length, got %d fields", line, len(fields))
		}
		start, err := parseHex(fields[0])
		if err != nil {
			return nil, fmt.Errorf("ranges: line %d: address: %w", line, err)
		}
		length, err := parseHex(fields[1])
		if err != nil {
			return nil, fmt.Errorf("ranges: line %d: length: %w", line, err)
		}
		if start+length < start {
			return nil, fmt.Errorf("ranges: line %d: range 0x%x+0x%x overflows", line, start, length)
		}
		out = append(out, Range{Start: start, Length: length})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ranges: %w", err)
	}
	return out, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// ParseFile reads the ranges file at path.
func ParseFile(path string) ([]Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ranges: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Write emits rs in the side-channel format.
func Write(w io.Writer, rs []Range) error {
	bw := bufio.NewWriter(w)
	for _, r := range rs {
		if _, err := fmt.Fprintf(bw, "0x%016x 0x%016x\n", r.Start, r.Length); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FromSegments returns the PT_LOAD segments of a core that carry data in the
// file. Writable segments hold the V8 heap; readonly ones are kept when
// all is set.
func FromSegments(segs []elfx.SegmentInfo, all bool) []Range {
	var out []Range
	for _, s := range segs {
		if s.Filesz == 0 || s.Memsz == 0 {
			continue
		}
		if !all && s.Flags&elf.PF_W == 0 {
			continue
		}
		out = append(out, Range{Start: s.Vaddr, Length: s.Filesz})
	}
	return out
}

// Source produces candidate ranges for a catalog.
type Source func() ([]Range, error)

// File returns a Source reading path.
func File(path string) Source {
	return func() ([]Range, error) {
		rs, err := ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRanges, err)
		}
		return rs, nil
	}
}

// Static returns a Source yielding rs.
func Static(rs []Range) Source {
	return func() ([]Range, error) { return rs, nil }
}

// Resolve picks the ranges source: an explicit path, then $LLNODE_RANGESFILE,
// then the writable segments of a core target. It returns nil when nothing
// is available.
func Resolve(path string, t target.Target) Source {
	if path == "" {
		path = os.Getenv(EnvRangesFile)
	}
	if path != "" {
		return File(path)
	}
	if c, ok := t.(*target.Core); ok {
		return Static(FromSegments(c.CoreFile().LoadSegments(), false))
	}
	return nil
}

// Catalog holds the validated ranges of one target. It reloads when the
// target's identity changes. Safe for concurrent use.
type Catalog struct {
	r     *target.Reader
	src   Source
	diags *diag.Diags

	mu     sync.Mutex
	id     string
	loaded bool
	ranges []Range
}

// NewCatalog returns a catalog over the target behind r. src may be nil, in
// which case Load fails with ErrNoRanges.
func NewCatalog(r *target.Reader, src Source, d *diag.Diags) *Catalog {
	return &Catalog{r: r, src: src, diags: d}
}

// Load returns the validated ranges, loading them on first use or after the
// target identity changed.
func (c *Catalog) Load() ([]Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.r.Target().ID()
	if c.loaded && c.id == id {
		return c.ranges, nil
	}
	if c.src == nil {
		return nil, ErrNoRanges
	}
	rs, err := c.src()
	if err != nil {
		return nil, err
	}
	c.ranges = c.validate(rs)
	c.id = id
	c.loaded = true
	return c.ranges, nil
}

// Reset drops the cached ranges.
func (c *Catalog) Reset() {
	c.mu.Lock()
	c.loaded = false
	c.ranges = nil
	c.mu.Unlock()
}

// validate keeps ranges whose first and last word are readable.
func (c *Catalog) validate(rs []Range) []Range {
	ptr := uint64(c.r.PointerSize())
	out := make([]Range, 0, len(rs))
	for _, r := range rs {
		if r.Length < ptr {
			c.diags.Addf(r.Start, diag.SkippedRange, "range %s shorter than a word", r)
			continue
		}
		if _, ok := c.r.ReadWord(r.Start); !ok {
			c.diags.Addf(r.Start, diag.SkippedRange, "range %s: first word unreadable", r)
			continue
		}
		if _, ok := c.r.ReadWord(r.End() - ptr); !ok {
			c.diags.Addf(r.Start, diag.SkippedRange, "range %s: last word unreadable", r)
			continue
		}
		out = append(out, r)
	}
	return out
}
