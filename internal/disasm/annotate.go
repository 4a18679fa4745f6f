package disasm

import "fmt"

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// Namer describes a word embedded in code, typically a tagged heap
// reference such as a JSFunction or a string constant.
type Namer func(word uint64) (string, bool)

// WordReader reads one target word.
type WordReader func(addr uint64) (uint64, bool)

// ConstAnnotator names constants embedded in instructions. Immediates are
// named directly; PC-relative literals are loaded with read first.
func ConstAnnotator(name Namer, read WordReader) Annotator {
	return func(inst Inst) string {
		switch inst.ConstKind {
		case ConstImm:
			if s, ok := name(inst.Const); ok {
				return s
			}
		case ConstLiteral:
			if read == nil {
				return ""
			}
			w, ok := read(inst.Const)
			if !ok {
				return fmt.Sprintf("[0x%x] <unreadable>", inst.Const)
			}
			if s, ok := name(w); ok {
				return s
			}
			return fmt.Sprintf("[0x%x] = 0x%x", inst.Const, w)
		}
		return ""
	}
}

// TargetAnnotator names direct branch and call targets.
func TargetAnnotator(lookup SymbolLookup) Annotator {
	return func(inst Inst) string {
		if inst.Target == 0 || (inst.Flow != FlowCall && inst.Flow != FlowJump && inst.Flow != FlowCond) {
			return ""
		}
		if name, ok := lookup(inst.Target); ok {
			return "<" + name + ">"
		}
		return ""
	}
}

// MapLookup returns a SymbolLookup over a fixed address table.
func MapLookup(names map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		name, ok := names[addr]
		return name, ok
	}
}
