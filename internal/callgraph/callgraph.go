// Package callgraph converts decoded V8 code objects into lattice graphs:
// one control flow graph per code object and a call graph across them.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"v8heap/internal/disasm"
)

// Func is one disassembled code object.
type Func struct {
	Name  string
	Insts []disasm.Inst
	Edges []disasm.CallEdge
	// Refs names heap constants loaded by the instruction at a PC.
	Refs map[uint64]string
}

// callee names the target of e, preferring the symbol of a direct call over
// the constant a register was loaded with.
func callee(e disasm.CallEdge) string {
	if e.TargetName != "" {
		return e.TargetName
	}
	return e.Via
}

// BuildCallGraph links every code object to the callees it names.
// Register calls with no known constant are left out.
func BuildCallGraph(funcs []Func) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.Edges {
			name := callee(e)
			if name == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{Caller: f.Name, Callee: name})
		}
	}
	g.Dedup()
	return g
}

// fallbackName labels a call whose target has no name.
func fallbackName(e disasm.CallEdge) string {
	if e.Kind == "call_reg" {
		return "[" + e.Reg + "]"
	}
	return fmt.Sprintf("0x%x", e.TargetPC)
}
