package render

import (
	"fmt"
	"strings"

	"v8heap/internal/disasm"
)

const (
	maxBlockLines = 16
	maxComment    = 40
)

// CFGDOT renders the basic blocks of a code object as DOT, one node per
// block listing its instructions. The first non-empty annotation of an
// instruction is appended as a comment.
func CFGDOT(cfg disasm.FuncCFG, t Theme, annotators ...disasm.Annotator) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph code {\n")
	b.WriteString("  rankdir=TB;\n  nodesep=0.3;\n  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n  label=<<font face=\"Helvetica\" point-size=\"9\">%s</font>>;\n\n",
		dotEscape(cfg.Name))

	for _, blk := range cfg.Blocks {
		lines := make([]string, 0, blk.End-blk.Start)
		for i := blk.Start; i < blk.End && i < len(cfg.Insts); i++ {
			lines = append(lines, instLine(cfg.Insts[i], t, annotators))
		}
		if len(lines) > maxBlockLines {
			half := maxBlockLines / 2
			elided := fmt.Sprintf("... %d more", len(lines)-2*half)
			lines = append(append(lines[:half:half], elided), lines[len(lines)-half:]...)
		}
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
		}
		if blk.IsTerm {
			attrs += fmt.Sprintf(", fillcolor=%q", t.ExitFill)
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=\"T\", fontsize=7];\n", blk.ID, s.BlockID, t.EdgeTaken)
			case "F":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=\"F\", fontsize=7];\n", blk.ID, s.BlockID, t.EdgeFallthrough)
			default:
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q];\n", blk.ID, s.BlockID, t.EdgePlain)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func instLine(inst disasm.Inst, t Theme, annotators []disasm.Annotator) string {
	line := dotEscape(fmt.Sprintf("0x%x: %s", inst.Addr, inst.Text))
	for _, ann := range annotators {
		if s := ann(inst); s != "" {
			line += fmt.Sprintf(" <font color=\"%s\">; %s</font>", t.Comment, dotEscape(truncLabel(s, maxComment)))
			break
		}
	}
	return line
}
