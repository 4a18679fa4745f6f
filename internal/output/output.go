// Package output writes v8heap results as JSON documents and as files in
// an output directory.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"v8heap/internal/constants"
	"v8heap/internal/disasm"
	"v8heap/internal/refs"
	"v8heap/internal/scan"
)

// HistogramEntry is one hidden class of a scan. Addresses are tagged.
type HistogramEntry struct {
	Map          uint64   `json:"map"`
	Name         string   `json:"name"`
	Count        int64    `json:"count"`
	Size         int64    `json:"size"`
	InstanceSize int64    `json:"instance_size"`
	Descriptors  int64    `json:"descriptors"`
	Elements     int64    `json:"elements"`
	Keys         []string `json:"keys,omitempty"`
	Sample       uint64   `json:"sample,omitempty"`
}

// Histogram is the JSON form of a scan.
type Histogram struct {
	Target  string           `json:"target"`
	Found   int64            `json:"found"`
	Count   int64            `json:"count"`
	Size    int64            `json:"size"`
	Records []HistogramEntry `json:"records"`
}

// NewHistogram converts hist for encoding. tag is added to every address.
func NewHistogram(hist *scan.Histogram, tag uint64) Histogram {
	count, size := hist.Totals()
	out := Histogram{
		Target:  hist.TargetID,
		Found:   hist.Found(),
		Count:   count,
		Size:    size,
		Records: []HistogramEntry{},
	}
	for _, r := range hist.Sorted() {
		e := HistogramEntry{
			Map:          r.Map + tag,
			Name:         r.Name,
			Count:        r.Count(),
			Size:         r.Size(),
			InstanceSize: r.InstanceSize,
			Descriptors:  r.Descriptors,
			Elements:     r.Elements,
			Keys:         r.Keys,
		}
		if s := r.Sample(); s != 0 {
			e.Sample = s + tag
		}
		out.Records = append(out.Records, e)
	}
	return out
}

// WriteHistogramJSON writes hist to w.
func WriteHistogramJSON(w io.Writer, hist *scan.Histogram, tag uint64) error {
	return writeJSON(w, "histogram", NewHistogram(hist, tag))
}

// Instances lists the objects of one type. Addresses are tagged.
type Instances struct {
	Type      string   `json:"type"`
	Count     int      `json:"count"`
	Instances []uint64 `json:"instances"`
}

// WriteInstancesJSON writes the untagged object addresses found for typ to w.
func WriteInstancesJSON(w io.Writer, typ string, addrs []uint64, tag uint64) error {
	out := Instances{Type: typ, Count: len(addrs), Instances: make([]uint64, len(addrs))}
	for i, a := range addrs {
		out.Instances[i] = a + tag
	}
	return writeJSON(w, "instances", out)
}

// RefEntry is one reference search result.
type RefEntry struct {
	Holder   uint64 `json:"holder"`
	TypeName string `json:"type"`
	Field    string `json:"field,omitempty"`
	Index    *int64 `json:"index,omitempty"`
	Value    uint64 `json:"value"`
	Text     string `json:"text,omitempty"`
}

// WriteRefsJSON writes reference search results to w.
func WriteRefsJSON(w io.Writer, rs []refs.Ref) error {
	out := make([]RefEntry, 0, len(rs))
	for _, r := range rs {
		e := RefEntry{Holder: r.Holder, TypeName: r.TypeName, Value: r.Value, Text: r.Text}
		if r.Index >= 0 {
			idx := r.Index
			e.Index = &idx
		} else {
			e.Field = r.Field
		}
		out = append(out, e)
	}
	return writeJSON(w, "refs", out)
}

// ConstantEntry is one schema constant.
type ConstantEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	State string `json:"state"`
}

// Constants is the JSON form of a schema dump.
type Constants struct {
	Version   string          `json:"version"`
	Layout    string          `json:"descriptor_layout"`
	Constants []ConstantEntry `json:"constants"`
}

// WriteConstantsJSON loads every constant of s and writes them to w.
func WriteConstantsJSON(w io.Writer, s *constants.Schema) error {
	s.LoadAll()
	out := Constants{
		Version: s.Common().Version(),
		Layout:  s.DescriptorArray().Layout.String(),
	}
	for _, c := range s.Loader().Entries() {
		out.Constants = append(out.Constants, ConstantEntry{Name: c.Name, Value: c.Value, State: c.State.String()})
	}
	return writeJSON(w, "constants", out)
}

// WriteASM writes disassembled instructions to asm/<name>.txt.
func WriteASM(dir string, name string, insts []disasm.Inst, lookup disasm.SymbolLookup, annotators ...disasm.Annotator) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}

	text := disasm.Format(insts, lookup, annotators...)
	return os.WriteFile(path, []byte(text), 0644)
}

// WriteDOT writes a rendered graph to <name>.dot under dir.
func WriteDOT(dir, name, dot string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, name+".dot"), []byte(dot), 0644)
}

// WriteEdgesJSON writes the call edges of one code object to
// asm/<name>.edges.json.
func WriteEdgesJSON(dir, name string, edges []disasm.CallEdge) error {
	path := filepath.Join(dir, "asm", name+".edges.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()
	if edges == nil {
		edges = []disasm.CallEdge{}
	}
	return writeJSON(f, path, edges)
}

func writeJSON(w io.Writer, what string, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", what, err)
	}
	return nil
}
