package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"v8heap/internal/constants"
	"v8heap/internal/diag"
	"v8heap/internal/disasm"
	"v8heap/internal/ranges"
	"v8heap/internal/refs"
	"v8heap/internal/scan"
	"v8heap/internal/v8"
	"v8heap/internal/v8/v8test"
)

func TestHistogramJSON(t *testing.T) {
	fx := v8test.New()
	point := fx.NewClass("Point", "x", "y")
	p1 := fx.NewObject(point, v8test.Smi(1), v8test.Smi(2))
	p2 := fx.NewObject(point, v8test.Smi(3), v8test.Smi(4))

	d := &diag.Diags{Quiet: true}
	h := v8.New(constants.New(fx.Target(), d), v8.Options{})
	start, n := fx.Region(p1, p2)
	cat := ranges.NewCatalog(h.Reader(), ranges.Static([]ranges.Range{{Start: start, Length: n}}), d)
	hist, err := scan.New(h, cat, d, scan.Options{Workers: 1}).Histogram(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var b bytes.Buffer
	if err := WriteHistogramJSON(&b, hist, h.HeapObjectTag()); err != nil {
		t.Fatal(err)
	}
	var got Histogram
	if err := json.Unmarshal(b.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, b.String())
	}
	if got.Count != 2 || got.Size != 80 || len(got.Records) != 1 {
		t.Fatalf("histogram = %+v", got)
	}
	r := got.Records[0]
	if r.Map != point || r.Name != "Point" || r.Sample != p1 || strings.Join(r.Keys, ",") != "x,y" {
		t.Errorf("record = %+v", r)
	}
}

func TestRefsJSON(t *testing.T) {
	var b bytes.Buffer
	err := WriteRefsJSON(&b, []refs.Ref{
		{Holder: 0x11, TypeName: "Point", Field: "x", Index: -1, Value: 0x21},
		{Holder: 0x31, TypeName: "(Array)", Index: 0, Value: 0x21},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []RefEntry
	if err := json.Unmarshal(b.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Field != "x" || got[0].Index != nil {
		t.Errorf("named slot = %+v", got[0])
	}
	if got[1].Index == nil || *got[1].Index != 0 || got[1].Field != "" {
		t.Errorf("element slot = %+v", got[1])
	}
}

func TestInstancesJSON(t *testing.T) {
	var b bytes.Buffer
	if err := WriteInstancesJSON(&b, "Point", []uint64{0x1000, 0x1028}, 1); err != nil {
		t.Fatal(err)
	}
	var got Instances
	if err := json.Unmarshal(b.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "Point" || got.Count != 2 || len(got.Instances) != 2 || got.Instances[0] != 0x1001 || got.Instances[1] != 0x1029 {
		t.Errorf("instances = %+v", got)
	}
	if !strings.Contains(b.String(), "\n  \"type\"") {
		t.Errorf("not indented:\n%s", b.String())
	}
}

func TestConstantsJSON(t *testing.T) {
	fx := v8test.New(v8test.Without("HeapObjectTagMask"))
	s := constants.New(fx.Target(), &diag.Diags{Quiet: true})
	var b bytes.Buffer
	if err := WriteConstantsJSON(&b, s); err != nil {
		t.Fatal(err)
	}
	var got Constants
	if err := json.Unmarshal(b.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Layout != "modern" {
		t.Errorf("layout = %q", got.Layout)
	}
	states := make(map[string]string)
	for _, c := range got.Constants {
		states[c.Name] = c.State
	}
	if states["PointerSizeLog2"] != "resolved" {
		t.Errorf("PointerSizeLog2 state = %q", states["PointerSizeLog2"])
	}
	if states["HeapObjectTagMask"] != "absent" {
		t.Errorf("HeapObjectTagMask state = %q", states["HeapObjectTagMask"])
	}
}

func TestWriteASM(t *testing.T) {
	dir := t.TempDir()
	insts := disasm.Disassemble([]byte{0x90, 0xc3}, disasm.Options{Arch: disasm.AMD64, BaseAddr: 0x1000})
	lookup := disasm.MapLookup(map[uint64]string{0x1000: "stub"})
	if err := WriteASM(dir, "code/stub", insts, lookup); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "asm", "code", "stub.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "stub:\n0x00001000") {
		t.Errorf("asm = %q", data)
	}

	if err := WriteEdgesJSON(dir, "code/stub", nil); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(filepath.Join(dir, "asm", "code", "stub.edges.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("edges = %q", data)
	}

	if err := WriteDOT(filepath.Join(dir, "dot"), "g", "digraph {}\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dot", "g.dot")); err != nil {
		t.Error(err)
	}
}
