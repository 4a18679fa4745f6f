package disasm

// CallEdge is a call site found in a code object.
type CallEdge struct {
	FromPC     uint64 `json:"from_pc"`
	Kind       string `json:"kind"`                // "call" or "call_reg"
	TargetPC   uint64 `json:"target_pc,omitempty"` // direct calls only
	TargetName string `json:"target_name,omitempty"`
	Reg        string `json:"reg,omitempty"` // register of an indirect call
	Via        string `json:"via,omitempty"` // what was last loaded into Reg
}

// RegDef records the last constant loaded into a register.
type RegDef struct {
	Annotation string
	Age        int // instructions since definition
}

// RegTracker remembers constant loads for a window of w instructions, so
// that "mov r10, <builtin>; call r10" resolves to the builtin.
type RegTracker struct {
	defs map[string]RegDef
	w    int
}

// NewRegTracker creates a tracker with the given window size.
func NewRegTracker(w int) *RegTracker {
	return &RegTracker{defs: make(map[string]RegDef), w: w}
}

// Tick ages every definition by one and expires those past the window.
func (rt *RegTracker) Tick() {
	for r, d := range rt.defs {
		d.Age++
		if d.Age > rt.w {
			delete(rt.defs, r)
			continue
		}
		rt.defs[r] = d
	}
}

// Define records that reg now holds annotation.
func (rt *RegTracker) Define(reg, annotation string) {
	rt.defs[reg] = RegDef{Annotation: annotation}
}

// Lookup returns the annotation for reg, or "" if expired or unknown.
func (rt *RegTracker) Lookup(reg string) string { return rt.defs[reg].Annotation }

// Kill forgets reg.
func (rt *RegTracker) Kill(reg string) { delete(rt.defs, reg) }

// ExtractCallEdges lists the call sites in insts. Direct targets are named
// with symbols; register calls are attributed to the constant the
// annotators last saw loaded into that register within w instructions.
func ExtractCallEdges(insts []Inst, symbols SymbolLookup, annotators []Annotator, w int) []CallEdge {
	rt := NewRegTracker(w)
	var edges []CallEdge
	for _, inst := range insts {
		rt.Tick()
		if inst.Flow == FlowCall {
			e := CallEdge{FromPC: inst.Addr, Kind: "call"}
			if inst.Target != 0 {
				e.TargetPC = inst.Target
				if symbols != nil {
					e.TargetName, _ = symbols(inst.Target)
				}
			} else {
				e.Kind = "call_reg"
				e.Reg = inst.Reg
				e.Via = rt.Lookup(inst.Reg)
			}
			edges = append(edges, e)
			continue
		}
		if inst.ConstKind == ConstNone || inst.Reg == "" {
			continue
		}
		var annotation string
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				annotation = s
				break
			}
		}
		if annotation == "" {
			rt.Kill(inst.Reg)
			continue
		}
		rt.Define(inst.Reg, annotation)
	}
	return edges
}
