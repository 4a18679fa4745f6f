package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// BranchInfo describes a decoded block terminator.
type BranchInfo struct {
	Target uint64 // absolute target address (0 if RET or indirect)
	Cond   bool   // true if conditional (has fallthrough)
	IsRet  bool   // true if RET
}

// DecodeBranch returns the branch described by inst, or nil when inst does
// not end a basic block. Calls are not terminators: they return to the next
// instruction.
func DecodeBranch(inst Inst) *BranchInfo {
	switch inst.Flow {
	case FlowRet:
		return &BranchInfo{IsRet: true}
	case FlowJump:
		return &BranchInfo{Target: inst.Target}
	case FlowCond:
		return &BranchInfo{Target: inst.Target, Cond: true}
	case FlowIndirect:
		// No static target: treated like a return for block splitting.
		return &BranchInfo{IsRet: true}
	}
	return nil
}

// IsBranchTerminator returns true if the instruction terminates a basic block.
func IsBranchTerminator(inst Inst) bool {
	return DecodeBranch(inst) != nil
}

func relTarget(pc uint64, off int64) uint64 { return uint64(int64(pc) + off) }

// classifyARM64 fills the flow and constant fields from the raw encoding.
func classifyARM64(inst *Inst) {
	raw, pc := inst.Raw, inst.Addr
	switch {
	// RET (0xD65F03C0 exactly, or RET Xn = 0xD65F0000 | Rn<<5)
	case raw&0xFFFFFC1F == 0xD65F0000:
		inst.Flow = FlowRet
	// BR Xn
	case raw&0xFFFFFC1F == 0xD61F0000:
		inst.Flow = FlowIndirect
		inst.Reg = fmt.Sprintf("X%d", (raw>>5)&0x1F)
	// BLR Xn
	case raw&0xFFFFFC1F == 0xD63F0000:
		inst.Flow = FlowCall
		inst.Reg = fmt.Sprintf("X%d", (raw>>5)&0x1F)
	// B: 000101 imm26
	case raw&0xFC000000 == 0x14000000:
		inst.Flow = FlowJump
		inst.Target = relTarget(pc, int64(signExtend(raw&0x03FFFFFF, 26))*4)
	// BL: 100101 imm26
	case raw&0xFC000000 == 0x94000000:
		inst.Flow = FlowCall
		inst.Target = relTarget(pc, int64(signExtend(raw&0x03FFFFFF, 26))*4)
	// B.cond: 01010100 imm19 0 cond
	case raw&0xFF000010 == 0x54000000,
		// CBZ/CBNZ: x 011010 op imm19 Rt
		raw&0x7E000000 == 0x34000000:
		inst.Flow = FlowCond
		inst.Target = relTarget(pc, int64(signExtend((raw>>5)&0x7FFFF, 19))*4)
	// TBZ/TBNZ: b5 011011 op b40 imm14 Rt
	case raw&0x7E000000 == 0x36000000:
		inst.Flow = FlowCond
		inst.Target = relTarget(pc, int64(signExtend((raw>>5)&0x3FFF, 14))*4)
	// LDR Xt, label: 01 011 0 00 imm19 Rt
	case raw&0xFF000000 == 0x58000000:
		inst.Const = relTarget(pc, int64(signExtend((raw>>5)&0x7FFFF, 19))*4)
		inst.ConstKind = ConstLiteral
		inst.Reg = fmt.Sprintf("X%d", raw&0x1F)
	}
}

// signExtend sign-extends a value from the given bit width to int32.
func signExtend(val uint32, bits int) int32 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	if val&sign != 0 {
		return int32(val | ^mask) // negative
	}
	return int32(val & mask)
}

var condJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JCXZ: true, x86asm.JE: true, x86asm.JECXZ: true, x86asm.JG: true,
	x86asm.JGE: true, x86asm.JL: true, x86asm.JLE: true, x86asm.JNE: true,
	x86asm.JNO: true, x86asm.JNP: true, x86asm.JNS: true, x86asm.JO: true,
	x86asm.JP: true, x86asm.JRCXZ: true, x86asm.JS: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// classifyAMD64 fills the flow and constant fields from a decoded instruction.
func classifyAMD64(inst *Inst, d x86asm.Inst) {
	next := inst.Addr + uint64(d.Len)
	switch {
	case d.Op == x86asm.RET || d.Op == x86asm.LRET:
		inst.Flow = FlowRet
	case d.Op == x86asm.JMP || d.Op == x86asm.CALL:
		flow := FlowJump
		if d.Op == x86asm.CALL {
			flow = FlowCall
		}
		switch a := d.Args[0].(type) {
		case x86asm.Rel:
			inst.Flow = flow
			inst.Target = relTarget(next, int64(a))
		case x86asm.Reg:
			inst.Reg = a.String()
			inst.Flow = flow
			if flow == FlowJump {
				inst.Flow = FlowIndirect
			}
		default:
			inst.Flow = flow
			if flow == FlowJump {
				inst.Flow = FlowIndirect
			}
		}
	case condJumps[d.Op]:
		if rel, ok := d.Args[0].(x86asm.Rel); ok {
			inst.Flow = FlowCond
			inst.Target = relTarget(next, int64(rel))
		}
	case d.Op == x86asm.MOV:
		dst, ok := d.Args[0].(x86asm.Reg)
		if !ok {
			return
		}
		switch src := d.Args[1].(type) {
		case x86asm.Imm:
			// movabs reg, imm64 embeds heap constants and builtin addresses.
			if d.DataSize == 64 {
				inst.Reg = dst.String()
				inst.Const = uint64(src)
				inst.ConstKind = ConstImm
			}
		case x86asm.Mem:
			if src.Base == x86asm.RIP {
				inst.Reg = dst.String()
				inst.Const = relTarget(next, src.Disp)
				inst.ConstKind = ConstLiteral
			}
		}
	}
}
