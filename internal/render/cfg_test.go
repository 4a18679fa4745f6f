package render

import (
	"strings"
	"testing"

	"v8heap/internal/disasm"
)

func TestCFGDOT(t *testing.T) {
	code := []byte{
		0x74, 0x03, // je 0x1005
		0x90,       // nop
		0xeb, 0x01, // jmp 0x1006
		0x90,       // nop
		0xc3,       // ret
	}
	insts := disasm.Disassemble(code, disasm.Options{Arch: disasm.AMD64, BaseAddr: 0x1000})
	cfg := disasm.BuildCFG("Builtin:<Probe>", insts)
	ann := func(inst disasm.Inst) string {
		if inst.Addr == 0x1002 {
			return "<String: \"a&b\">"
		}
		return ""
	}
	dot := CFGDOT(cfg, Paper, ann)
	for _, want := range []string{
		"digraph code {",
		"Builtin:&lt;Probe&gt;",
		"bb0 -> bb2 [color=\"#1565C0\", label=\"T\"",
		"bb0 -> bb1 [color=\"#C62828\", label=\"F\"",
		"bb1 -> bb3 [color=\"#424242\"]",
		"; &lt;String: &quot;a&amp;b&quot;&gt;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("missing %q in:\n%s", want, dot)
		}
	}
	if CFGDOT(disasm.FuncCFG{Name: "empty"}, Paper) != "" {
		t.Error("empty graph rendered")
	}
}

func TestCFGDOTElides(t *testing.T) {
	code := make([]byte, 40)
	for i := range code {
		code[i] = 0x90
	}
	cfg := disasm.BuildCFG("long", disasm.Disassemble(code, disasm.Options{Arch: disasm.AMD64}))
	dot := CFGDOT(cfg, Paper)
	if !strings.Contains(dot, "... 24 more") {
		t.Errorf("long block not elided:\n%s", dot)
	}
}

func TestTruncLabel(t *testing.T) {
	if got := truncLabel("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncLabel = %q", got)
	}
	if got := truncLabel("abc", 6); got != "abc" {
		t.Errorf("truncLabel = %q", got)
	}
}
