package main

import (
	"fmt"

	"github.com/zboralski/lattice"
	lrender "github.com/zboralski/lattice/render"

	"v8heap/internal/callgraph"
	"v8heap/internal/disasm"
	"v8heap/internal/output"
	"v8heap/internal/printer"
	"v8heap/internal/render"
	"v8heap/internal/v8"
)

// regWindow is how many instructions a constant load stays attached to its
// register when resolving indirect calls.
const regWindow = 8

func (sh *shell) disasm(args []string) error {
	fs := sh.flags("disasm")
	dot := fs.Bool("dot", false, "render basic blocks with instructions as DOT")
	cfg := fs.Bool("cfg", false, "render the lattice control flow graph as DOT")
	calls := fs.Bool("calls", false, "list call sites")
	maxSteps := fs.Int("max-steps", 0, "maximum instructions to decode (0 = all)")
	maxBytes := fs.Int64("max-bytes", 1<<20, "maximum instruction bytes read")
	outDir := fs.String("out", "", "also write asm, call edges and CFG to this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: disasm [--dot|--cfg|--calls] [--out dir] <code address>")
	}
	raw, err := parseAddr(fs.Arg(0))
	if err != nil {
		return err
	}

	s, err := sh.session()
	if err != nil {
		return err
	}
	obj, err := s.Heap.Decode(raw)
	if err != nil {
		return fmt.Errorf("disasm: 0x%x: %w", raw, err)
	}
	code, ok := obj.(v8.Code)
	if !ok {
		name, _ := obj.Base().TypeName()
		return fmt.Errorf("disasm: 0x%x is %s, not a Code object", raw, name)
	}
	data, err := code.Instructions(*maxBytes)
	if err != nil {
		return fmt.Errorf("disasm: 0x%x: %w", raw, err)
	}
	start := code.Start().Or(0)
	arch, err := s.Arch()
	if err != nil {
		return err
	}

	name := fmt.Sprintf("code_%x", raw)
	lookup := disasm.MapLookup(map[uint64]string{start: name})
	insts := disasm.Disassemble(data, disasm.Options{Arch: arch, BaseAddr: start, MaxSteps: *maxSteps, Symbols: lookup})

	p := sh.printer(printer.Options{})
	anns := []disasm.Annotator{
		disasm.ConstAnnotator(p.Namer(), p.WordReader()),
		disasm.TargetAnnotator(lookup),
	}
	edges := disasm.ExtractCallEdges(insts, lookup, anns, regWindow)
	fn := callgraph.Func{Name: name, Insts: insts, Edges: edges, Refs: constRefs(insts, anns[0])}

	switch {
	case *dot:
		fmt.Fprint(sh.out, render.CFGDOT(disasm.BuildCFG(name, insts), render.Paper, anns...))
	case *cfg:
		fmt.Fprint(sh.out, cfgDOT(fn))
	case *calls:
		for _, e := range edges {
			target := e.TargetName
			if target == "" {
				target = e.Via
			}
			if target == "" && e.TargetPC != 0 {
				target = fmt.Sprintf("0x%x", e.TargetPC)
			}
			fmt.Fprintf(sh.out, "0x%08x  %-8s %s\n", e.FromPC, e.Kind, target)
		}
	default:
		fmt.Fprint(sh.out, disasm.Format(insts, lookup, anns...))
	}

	if *outDir == "" {
		return nil
	}
	if err := output.WriteASM(*outDir, name, insts, lookup, anns...); err != nil {
		return err
	}
	if err := output.WriteEdgesJSON(*outDir, name, edges); err != nil {
		return err
	}
	if err := output.WriteDOT(*outDir, name, cfgDOT(fn)); err != nil {
		return err
	}
	fmt.Fprintf(sh.errOut, "wrote %d instructions, %d call sites to %s\n", len(insts), len(edges), *outDir)
	return nil
}

// cfgDOT renders one code object's lattice control flow graph.
func cfgDOT(fn callgraph.Func) string {
	lcfg, _ := callgraph.BuildFuncCFG(fn)
	g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}
	return lrender.DOTCFG(g, fn.Name)
}

// constRefs names the heap constants loaded by each instruction.
func constRefs(insts []disasm.Inst, ann disasm.Annotator) map[uint64]string {
	refs := make(map[uint64]string)
	for _, inst := range insts {
		if inst.ConstKind == disasm.ConstNone {
			continue
		}
		if s := ann(inst); s != "" {
			refs[inst.Addr] = s
		}
	}
	return refs
}
