package callgraph

import (
	"strings"
	"testing"

	"github.com/zboralski/lattice/render"

	"v8heap/internal/disasm"
)

// inst classifies an arm64 word the way the disassembler does.
func inst(addr uint64, raw uint32) disasm.Inst {
	b := []byte{byte(raw), byte(raw >> 8), byte(raw >> 16), byte(raw >> 24)}
	return disasm.Disassemble(b, disasm.Options{Arch: disasm.ARM64, BaseAddr: addr})[0]
}

func sample() Func {
	// entry (B0): mov, bl, cbz -> B2
	// B1: mov, blr x16, b -> B3
	// B2: bl, ret
	// B3: ret
	insts := []disasm.Inst{
		inst(0x1000, 0xD2800000), // MOV X0, #0
		inst(0x1004, 0x94000040), // BL 0x1104
		inst(0x1008, 0xB4000080), // CBZ X0, 0x1018
		inst(0x100C, 0x58000090), // LDR X16, 0x101c
		inst(0x1010, 0xD63F0200), // BLR X16
		inst(0x1014, 0x14000003), // B 0x1020
		inst(0x1018, 0x940000C0), // BL 0x1318
		inst(0x101C, 0xD65F03C0), // RET
		inst(0x1020, 0xD65F03C0), // RET
	}
	edges := []disasm.CallEdge{
		{FromPC: 0x1004, Kind: "call", TargetPC: 0x1104, TargetName: "Builtin:StackCheck"},
		{FromPC: 0x1010, Kind: "call_reg", Reg: "X16", Via: "<JSFunction render>"},
		{FromPC: 0x1018, Kind: "call", TargetPC: 0x1318},
	}
	return Func{
		Name:  "LazyCompile:draw",
		Insts: insts,
		Edges: edges,
		Refs:  map[uint64]string{0x100C: "<String: \"frame\">"},
	}
}

func TestBuildFuncCFG(t *testing.T) {
	f, n := BuildFuncCFG(sample())
	if n != 4 || len(f.Blocks) != 4 {
		t.Fatalf("blocks = %d/%d, want 4", n, len(f.Blocks))
	}
	if f.Name != "LazyCompile:draw" {
		t.Errorf("name = %q", f.Name)
	}

	b0 := f.Blocks[0]
	if len(b0.Calls) != 1 || b0.Calls[0].Callee != "Builtin:StackCheck" {
		t.Errorf("B0 calls = %+v", b0.Calls)
	}
	if len(b0.Succs) != 2 || b0.Succs[0].Cond != "T" || b0.Succs[0].BlockID != 2 {
		t.Errorf("B0 succs = %+v", b0.Succs)
	}

	b1 := f.Blocks[1]
	if len(b1.Calls) != 2 {
		t.Fatalf("B1 calls = %+v", b1.Calls)
	}
	if b1.Calls[0].Callee != `"<String: \"frame\">"` || b1.Calls[1].Callee != "<JSFunction render>" {
		t.Errorf("B1 calls = %+v", b1.Calls)
	}
	if len(b1.Succs) != 1 || b1.Succs[0].BlockID != 3 {
		t.Errorf("B1 succs = %+v", b1.Succs)
	}

	b2 := f.Blocks[2]
	if len(b2.Calls) != 1 || b2.Calls[0].Callee != "0x1318" || !b2.Term {
		t.Errorf("B2 = %+v", b2)
	}

	dot := render.DOTCFG(BuildCFG([]Func{sample()}), "draw")
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildCallGraph(t *testing.T) {
	funcs := []Func{
		sample(),
		{
			Name: "<JSFunction render>",
			Edges: []disasm.CallEdge{
				{FromPC: 0x2000, Kind: "call", TargetPC: 0x1104, TargetName: "Builtin:StackCheck"},
				{FromPC: 0x2008, Kind: "call", TargetPC: 0x1104, TargetName: "Builtin:StackCheck"},
				{FromPC: 0x2010, Kind: "call_reg", Reg: "R10"},
			},
		},
	}
	cg := BuildCallGraph(funcs)
	if len(cg.Nodes) != 2 {
		t.Errorf("nodes = %v", cg.Nodes)
	}
	// draw: StackCheck and render. render: StackCheck once.
	if len(cg.Edges) != 3 {
		t.Errorf("edges = %+v", cg.Edges)
	}
	for _, e := range cg.Edges {
		if strings.HasPrefix(e.Callee, "0x") || e.Callee == "" {
			t.Errorf("unnamed callee in call graph: %+v", e)
		}
	}
	if dot := render.DOT(cg, "calls"); dot == "" {
		t.Error("expected non-empty DOT output")
	}
}
