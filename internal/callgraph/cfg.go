package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"v8heap/internal/disasm"
)

const maxRefLabel = 48

// BuildCFG builds a lattice control flow graph for each code object.
func BuildCFG(funcs []Func) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds the graph for one code object and reports its block
// count, so callers can skip straight-line code.
func BuildFuncCFG(f Func) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(f.Name, f.Insts)
	return convert(&dcfg, f.Edges, f.Refs), len(dcfg.Blocks)
}

func convert(dcfg *disasm.FuncCFG, edges []disasm.CallEdge, refs map[uint64]string) *lattice.FuncCFG {
	byPC := make(map[uint64]disasm.CallEdge, len(edges))
	for _, e := range edges {
		byPC[e.FromPC] = e
	}

	out := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, s := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: s.BlockID, Cond: s.Cond})
		}
		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			pc := dcfg.Insts[idx].Addr
			if e, ok := byPC[pc]; ok {
				name := callee(e)
				if name == "" {
					name = fallbackName(e)
				}
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: name})
			}
			if ref, ok := refs[pc]; ok {
				if len(ref) > maxRefLabel {
					ref = ref[:maxRefLabel-3] + "..."
				}
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: fmt.Sprintf("%q", ref)})
			}
		}
		sort.SliceStable(lb.Calls, func(i, j int) bool { return lb.Calls[i].Offset < lb.Calls[j].Offset })
		out.Blocks = append(out.Blocks, lb)
	}
	return out
}
