package disasm

import (
	"debug/elf"
	"encoding/binary"
	"strings"
	"testing"
)

func arm64Code(words ...uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func TestDisassembleARM64NOP(t *testing.T) {
	insts := Disassemble(arm64Code(0xd503201f, 0xd503201f), Options{Arch: ARM64, BaseAddr: 0x1000})
	if len(insts) != 2 {
		t.Fatalf("got %d instructions, want 2", len(insts))
	}
	if insts[0].Addr != 0x1000 || insts[1].Addr != 0x1004 {
		t.Errorf("addrs = 0x%x 0x%x", insts[0].Addr, insts[1].Addr)
	}
	if !strings.Contains(strings.ToLower(insts[0].Text), "nop") {
		t.Errorf("expected NOP, got: %s", insts[0].Text)
	}
}

func TestDisassembleAMD64(t *testing.T) {
	code := []byte{
		0x90,                         // nop
		0xe8, 0x10, 0x00, 0x00, 0x00, // call +0x10
		0xc3,                         // ret
	}
	insts := Disassemble(code, Options{Arch: AMD64, BaseAddr: 0x4000})
	if len(insts) != 3 {
		t.Fatalf("got %d instructions", len(insts))
	}
	if insts[1].Size != 5 || insts[1].Flow != FlowCall || insts[1].Target != 0x4006+0x10 {
		t.Errorf("call = %+v", insts[1])
	}
	if insts[2].Flow != FlowRet || insts[2].Addr != 0x4006 {
		t.Errorf("ret = %+v", insts[2])
	}
	if !strings.EqualFold(insts[0].Mnemonic, "nop") {
		t.Errorf("mnemonic = %q", insts[0].Mnemonic)
	}
}

func TestDisassembleBadByte(t *testing.T) {
	// A call opcode with its displacement cut off.
	insts := Disassemble([]byte{0xc3, 0xe8}, Options{Arch: AMD64})
	if len(insts) != 2 || insts[1].Mnemonic != ".byte" || insts[1].Size != 1 {
		t.Fatalf("insts = %+v", insts)
	}
}

func TestDisassembleMaxSteps(t *testing.T) {
	words := make([]uint32, 100)
	for i := range words {
		words[i] = 0xd503201f
	}
	if insts := Disassemble(arm64Code(words...), Options{Arch: ARM64, MaxSteps: 10}); len(insts) != 10 {
		t.Fatalf("arm64: got %d instructions, want 10", len(insts))
	}
	nops := make([]byte, 100)
	for i := range nops {
		nops[i] = 0x90
	}
	if insts := Disassemble(nops, Options{Arch: AMD64, MaxSteps: 10}); len(insts) != 10 {
		t.Fatalf("amd64: got %d instructions, want 10", len(insts))
	}
}

func TestDisassembleShort(t *testing.T) {
	if insts := Disassemble(nil, Options{}); len(insts) != 0 {
		t.Fatalf("got %d instructions for nil data", len(insts))
	}
	if insts := Disassemble([]byte{0x01, 0x02}, Options{Arch: ARM64}); len(insts) != 0 {
		t.Fatalf("got %d instructions for 2 bytes", len(insts))
	}
}

func TestArch(t *testing.T) {
	if a, err := ArchFor(elf.EM_AARCH64); err != nil || a != ARM64 {
		t.Errorf("ArchFor(aarch64) = %v, %v", a, err)
	}
	if _, err := ArchFor(elf.EM_MIPS); err == nil {
		t.Error("mips accepted")
	}
	if a, err := ParseArch("x86_64"); err != nil || a != AMD64 {
		t.Errorf("ParseArch = %v, %v", a, err)
	}
}

func TestFormat(t *testing.T) {
	code := []byte{0x49, 0xba, 0x11, 0x22, 0x33, 0x44, 0x00, 0x00, 0x00, 0x00, 0xc3}
	insts := Disassemble(code, Options{Arch: AMD64, BaseAddr: 0x1000})
	name := func(w uint64) (string, bool) {
		if w == 0x44332211 {
			return "<JSFunction foo>", true
		}
		return "", false
	}
	text := Format(insts, MapLookup(map[uint64]string{0x1000: "Builtin:Foo"}), ConstAnnotator(name, nil))
	if !strings.HasPrefix(text, "Builtin:Foo:\n0x00001000  49 ba 11") {
		t.Errorf("header: %s", text)
	}
	if !strings.Contains(text, "; <JSFunction foo>") {
		t.Errorf("missing constant annotation: %s", text)
	}
	if Format(insts, nil) != Format(insts, nil) {
		t.Error("non-deterministic output")
	}
}
