package disasm

import "testing"

// arm builds an arm64 instruction and classifies it as Disassemble would.
func arm(addr uint64, raw uint32) Inst {
	inst := Inst{Addr: addr, Raw: raw, Size: 4}
	classifyARM64(&inst)
	return inst
}

func TestClassifyARM64(t *testing.T) {
	tests := []struct {
		name   string
		raw    uint32
		pc     uint64
		flow   Flow
		target uint64
		reg    string
	}{
		{"ret", 0xD65F03C0, 0x1000, FlowRet, 0, ""},
		{"b", 0x14000000 | 0x40, 0x1000, FlowJump, 0x1100, ""},
		{"b negative", 0x14000000 | (0x03FFFFFF - 3), 0x1000, FlowJump, 0xFF0, ""},
		{"bl", 0x9400048D, 0x1000, FlowCall, 0x1000 + 0x48D*4, ""},
		{"bl negative", 0x94000000 | 0x03FFFFFE, 0x2000, FlowCall, 0x2000 - 8, ""},
		{"b.eq", 0x54000000 | 4<<5, 0x1000, FlowCond, 0x1010, ""},
		{"cbz x0", 0xB4000080, 0x1008, FlowCond, 0x1018, ""},
		{"cbnz w1", 0x35000041, 0x1000, FlowCond, 0x1008, ""},
		{"tbnz", 0x37000000 | 3<<5, 0x1000, FlowCond, 0x100C, ""},
		{"blr x16", 0xD63F0200, 0x1000, FlowCall, 0, "X16"},
		{"br x17", 0xD61F0220, 0x1000, FlowIndirect, 0, "X17"},
		{"nop", 0xD503201F, 0x1000, FlowNone, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := arm(tt.pc, tt.raw)
			if inst.Flow != tt.flow || inst.Target != tt.target || inst.Reg != tt.reg {
				t.Errorf("flow=%d target=0x%x reg=%q, want %d 0x%x %q",
					inst.Flow, inst.Target, inst.Reg, tt.flow, tt.target, tt.reg)
			}
		})
	}

	// LDR X16, #0x20
	lit := arm(0x2000, 0x58000000|8<<5|16)
	if lit.ConstKind != ConstLiteral || lit.Const != 0x2020 || lit.Reg != "X16" {
		t.Errorf("ldr literal = %+v", lit)
	}
	if IsBranchTerminator(arm(0x1000, 0x9400048D)) {
		t.Error("BL must not end a block")
	}
}

func TestBuildCFGLinear(t *testing.T) {
	insts := []Inst{
		arm(0x1000, 0xD503201F), // NOP
		arm(0x1004, 0xD503201F), // NOP
		arm(0x1008, 0xD65F03C0), // RET
	}
	cfg := BuildCFG("linear", insts)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if blk.Start != 0 || blk.End != 3 || !blk.IsTerm || !blk.IsEntry || len(blk.Succs) != 0 {
		t.Errorf("block = %+v", blk)
	}
}

func TestBuildCFGDiamondARM64(t *testing.T) {
	insts := []Inst{
		arm(0x1000, 0xD2800000), // MOV X0, #0
		arm(0x1004, 0x94000040), // BL +0x100
		arm(0x1008, 0xB4000080), // CBZ X0, 0x1018
		arm(0x100C, 0xD2800021), // MOV X1, #1
		arm(0x1010, 0x14000004), // B 0x1020
		arm(0x1014, 0xD503201F), // NOP (dead)
		arm(0x1018, 0xD503201F), // NOP
		arm(0x101C, 0xD65F03C0), // RET
		arm(0x1020, 0xD65F03C0), // RET
	}
	cfg := BuildCFG("diamond", insts)
	if len(cfg.Blocks) != 5 {
		t.Fatalf("blocks = %d, want 5", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 2 || b0.Succs[0] != (Succ{BlockID: 3, Cond: "T"}) || b0.Succs[1] != (Succ{BlockID: 1, Cond: "F"}) {
		t.Errorf("B0 succs = %+v", b0.Succs)
	}
	if s := cfg.Blocks[1].Succs; len(s) != 1 || s[0].BlockID != 4 {
		t.Errorf("B1 succs = %+v", s)
	}
	if s := cfg.Blocks[2].Succs; len(s) != 1 || s[0].BlockID != 3 {
		t.Errorf("dead block should fall through: %+v", s)
	}
	if !cfg.Blocks[3].IsTerm || !cfg.Blocks[4].IsTerm {
		t.Error("RET blocks should be terminal")
	}
}

func TestBuildCFGAMD64(t *testing.T) {
	code := []byte{
		0x74, 0x03, // je 0x1005
		0x90,       // nop
		0xeb, 0x01, // jmp 0x1006
		0x90,       // nop
		0xc3,       // ret
	}
	cfg := BuildCFG("x64", Disassemble(code, Options{Arch: AMD64, BaseAddr: 0x1000}))
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}
	want := [][]Succ{
		{{BlockID: 2, Cond: "T"}, {BlockID: 1, Cond: "F"}},
		{{BlockID: 3}},
		{{BlockID: 3}},
		nil,
	}
	for i, w := range want {
		got := cfg.Blocks[i].Succs
		if len(got) != len(w) {
			t.Errorf("B%d succs = %+v, want %+v", i, got, w)
			continue
		}
		for j := range w {
			if got[j] != w[j] {
				t.Errorf("B%d succ %d = %+v, want %+v", i, j, got[j], w[j])
			}
		}
	}
	if !cfg.Blocks[3].IsTerm {
		t.Error("ret block not terminal")
	}
}

func TestBuildCFGEmpty(t *testing.T) {
	if cfg := BuildCFG("empty", nil); len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d", len(cfg.Blocks))
	}
}
