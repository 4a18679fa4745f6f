package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"v8heap/internal/v8"
)

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader("color: never\nworkers: 8\nwide: utf16\nranges_file: /tmp/r.txt\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Color != ColorNever || s.Workers != 8 || s.RangesFile != "/tmp/r.txt" {
		t.Errorf("settings = %+v", s)
	}
	if s.TreePadding != 2 || s.PageSize != 10 {
		t.Errorf("defaults lost: %+v", s)
	}
	if opts := s.HeapOptions(); opts.Wide != v8.WideUTF16 || opts.MaxConstructorHops != 64 {
		t.Errorf("heap options = %+v", opts)
	}
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if s != Default() {
		t.Errorf("settings = %+v", s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"colour: never\n",
		"color: sometimes\n",
		"wide: ebcdic\n",
		"workers: -1\n",
		"workers: [1]\n",
	}
	for _, in := range tests {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("Parse(%q) succeeded", in)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if s, err := Load(filepath.Join(dir, "missing.yaml"), false); err != nil || s != Default() {
		t.Fatalf("optional missing file: %+v, %v", s, err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml"), true); err == nil {
		t.Fatal("required missing file accepted")
	}

	path := filepath.Join(dir, "v8heap.yaml")
	if err := os.WriteFile(path, []byte("string_length: 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path, true)
	if err != nil || s.StringLength != 40 {
		t.Fatalf("Load = %+v, %v", s, err)
	}

	data, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(strings.NewReader(string(data)))
	if err != nil || back != s {
		t.Errorf("marshal round trip = %+v, %v", back, err)
	}
}

func TestSetGet(t *testing.T) {
	s := Default()
	if err := s.Set("color", "always"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("tree_padding", "4"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get("tree_padding"); v != "4" {
		t.Errorf("tree_padding = %s", v)
	}
	if err := s.Set("color", "purple"); err == nil {
		t.Error("invalid color accepted")
	}
	if s.Color != ColorAlways {
		t.Errorf("failed Set changed color to %q", s.Color)
	}
	if err := s.Set("workers", "many"); err == nil {
		t.Error("non-numeric workers accepted")
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(nope) = %v", err)
	}
	if keys := s.Keys(); len(keys) != 8 || keys[0] != "color" {
		t.Errorf("keys = %v", keys)
	}
}
