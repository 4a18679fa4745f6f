package target

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"v8heap/internal/elfx"
)

// Core is a Target backed by an ELF core dump and, optionally, the
// executable that produced it. Symbols come from the executable, relocated
// by the load bias recorded in the core's NT_FILE note.
type Core struct {
	core *elfx.File
	exe  *elfx.File
	bias uint64
	id   string
}

// OpenCore opens a core file and an optional executable (exePath may be empty).
func OpenCore(corePath, exePath string) (*Core, error) {
	cf, err := elfx.Open(corePath)
	if err != nil {
		return nil, err
	}
	if !cf.IsCore() {
		cf.Close()
		return nil, fmt.Errorf("%w: %s", elfx.ErrNotCore, corePath)
	}
	var ef *elfx.File
	if exePath != "" {
		ef, err = elfx.Open(exePath)
		if err != nil {
			cf.Close()
			return nil, err
		}
	}
	return NewCore(cf, ef), nil
}

// NewCore wraps already opened files. exe may be nil.
func NewCore(core, exe *elfx.File) *Core {
	c := &Core{core: core, exe: exe}
	if exe != nil {
		c.bias = loadBias(core, exe)
	}
	path := core.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.id = fmt.Sprintf("%s:%d", path, core.FileSize())
	return c
}

func loadBias(core, exe *elfx.File) uint64 {
	if exe.ELF.Type != elf.ET_DYN {
		return 0
	}
	maps, err := core.FileMappings()
	if err != nil {
		return 0
	}
	var base uint64
	first := true
	for _, s := range exe.LoadSegments() {
		if first || s.Vaddr < base {
			base = s.Vaddr
			first = false
		}
	}
	base &^= 0xfff
	name := filepath.Base(exe.Path)
	for _, m := range maps {
		if m.FileOff == 0 && filepath.Base(m.Path) == name {
			return m.Start - base
		}
	}
	return 0
}

// Close releases both files.
func (c *Core) Close() error {
	err := c.core.Close()
	if c.exe != nil {
		if e := c.exe.Close(); err == nil {
			err = e
		}
	}
	return err
}

// Bias is the executable's load bias.
func (c *Core) Bias() uint64 { return c.bias }

// CoreFile returns the core file.
func (c *Core) CoreFile() *elfx.File { return c.core }

func (c *Core) ID() string                  { return c.id }
func (c *Core) PointerSize() int            { return c.core.PointerSize() }
func (c *Core) ByteOrder() binary.ByteOrder { return c.core.ByteOrder() }

// Machine returns the core's ELF machine.
func (c *Core) Machine() elf.Machine { return c.core.Machine() }

// ReadMemory reads from the core, falling back to the executable's file
// contents for read-only pages the core did not dump.
func (c *Core) ReadMemory(addr uint64, buf []byte) error {
	err := c.core.ReadAtVA(addr, buf)
	if err == nil {
		return nil
	}
	if c.exe != nil && addr >= c.bias {
		if c.exe.ReadAtVA(addr-c.bias, buf) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: 0x%x: %v", ErrUnmapped, addr, err)
}

func (c *Core) LookupSymbol(name string) (Symbol, bool) {
	src := c.exe
	bias := c.bias
	if src == nil {
		src, bias = c.core, 0
	}
	addr, size, err := src.Symbol(name)
	if err != nil {
		return Symbol{}, false
	}
	return Symbol{Name: name, Addr: addr + bias, Size: size}, true
}
