// Package disasm decodes the machine code of V8 Code objects for amd64 and
// arm64 targets.
package disasm

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch selects the instruction decoder.
type Arch int

const (
	AMD64 Arch = iota
	ARM64
)

func (a Arch) String() string {
	if a == ARM64 {
		return "arm64"
	}
	return "amd64"
}

// ArchFor maps an ELF machine to a decoder.
func ArchFor(m elf.Machine) (Arch, error) {
	switch m {
	case elf.EM_X86_64:
		return AMD64, nil
	case elf.EM_AARCH64:
		return ARM64, nil
	}
	return 0, fmt.Errorf("disasm: unsupported machine %v", m)
}

// ParseArch parses "amd64"/"x86_64" or "arm64"/"aarch64".
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "amd64", "x86_64", "x64":
		return AMD64, nil
	case "arm64", "aarch64":
		return ARM64, nil
	}
	return 0, fmt.Errorf("disasm: unknown arch %q", s)
}

// Flow classifies how an instruction transfers control.
type Flow uint8

const (
	FlowNone     Flow = iota
	FlowJump          // unconditional direct branch
	FlowCond          // conditional branch; falls through when not taken
	FlowCall          // call; returns to the next instruction
	FlowRet           // return
	FlowIndirect      // jump through a register or memory
)

// ConstKind says how Inst.Const was embedded.
type ConstKind uint8

const (
	ConstNone    ConstKind = iota
	ConstImm               // 64-bit immediate operand
	ConstLiteral           // address of a word loaded PC-relative
)

// Inst is a decoded instruction.
type Inst struct {
	Addr     uint64
	Raw      uint32 // first four bytes, little-endian; the whole instruction on arm64
	Bytes    []byte
	Size     int
	Mnemonic string
	Operands string
	Text     string

	Flow   Flow
	Target uint64 // direct branch or call target
	// Reg is the register of an indirect call or jump, or the destination
	// of a constant load.
	Reg       string
	Const     uint64
	ConstKind ConstKind
}

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	Arch     Arch
	BaseAddr uint64       // VA of the first byte in data
	MaxSteps int          // maximum instructions to decode; 0 = 1M
	Symbols  SymbolLookup // optional symbol resolver used in operand text
}

const defaultMaxSteps = 1_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes instructions from data up to MaxSteps or the end of data.
func Disassemble(data []byte, opts Options) []Inst {
	if opts.Arch == ARM64 {
		return disasmARM64(data, opts)
	}
	return disasmAMD64(data, opts)
}

func splitText(text string) (string, string) {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func disasmARM64(data []byte, opts Options) []Inst {
	n := len(data) / 4
	if max := opts.effectiveMax(); n > max {
		n = max
	}
	result := make([]Inst, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		raw := binary.LittleEndian.Uint32(data[off : off+4])
		inst := Inst{
			Addr:  opts.BaseAddr + uint64(off),
			Raw:   raw,
			Bytes: data[off : off+4],
			Size:  4,
		}
		if d, err := arm64asm.Decode(data[off : off+4]); err != nil {
			inst.Mnemonic = ".word"
			inst.Operands = fmt.Sprintf("0x%08x", raw)
			inst.Text = ".word " + inst.Operands
		} else {
			inst.Text = d.String()
			inst.Mnemonic, inst.Operands = splitText(inst.Text)
		}
		classifyARM64(&inst)
		result = append(result, inst)
	}
	return result
}

func disasmAMD64(data []byte, opts Options) []Inst {
	max := opts.effectiveMax()
	var symname x86asm.SymLookup
	if opts.Symbols != nil {
		symname = func(addr uint64) (string, uint64) {
			if name, ok := opts.Symbols(addr); ok {
				return name, addr
			}
			return "", 0
		}
	}
	var result []Inst
	for off := 0; off < len(data) && len(result) < max; {
		pc := opts.BaseAddr + uint64(off)
		inst := Inst{Addr: pc}
		d, err := x86asm.Decode(data[off:], 64)
		if err != nil || d.Len == 0 {
			inst.Size = 1
			inst.Mnemonic = ".byte"
			inst.Operands = fmt.Sprintf("0x%02x", data[off])
			inst.Text = ".byte " + inst.Operands
		} else {
			inst.Size = d.Len
			inst.Text = x86asm.IntelSyntax(d, pc, symname)
			inst.Mnemonic, inst.Operands = splitText(inst.Text)
			classifyAMD64(&inst, d)
		}
		inst.Bytes = data[off : off+inst.Size]
		var w [4]byte
		copy(w[:], inst.Bytes)
		inst.Raw = binary.LittleEndian.Uint32(w[:])
		result = append(result, inst)
		off += inst.Size
	}
	return result
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <hex bytes>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	width := 0
	for _, inst := range insts {
		if inst.Size > width {
			width = inst.Size
		}
	}
	var b strings.Builder
	for _, inst := range insts {
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "%s:\n", name)
			}
		}
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		for i := 0; i < width; i++ {
			if i < len(inst.Bytes) {
				fmt.Fprintf(&b, "%02x ", inst.Bytes[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteByte(' ')
		b.WriteString(inst.Text)
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
