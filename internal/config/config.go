// Package config holds user settings: defaults, an optional YAML file and
// runtime changes made with "settings set".
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"v8heap/internal/v8"
)

// DefaultFile is the settings file looked up in the home directory.
const DefaultFile = ".v8heap.yaml"

// ErrUnknownKey reports a setting name that does not exist.
var ErrUnknownKey = errors.New("config: unknown setting")

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Settings are the user-tunable knobs.
type Settings struct {
	Color              string `yaml:"color"`
	TreePadding        int    `yaml:"tree_padding"`
	RangesFile         string `yaml:"ranges_file"`
	Workers            int    `yaml:"workers"`
	StringLength       int    `yaml:"string_length"` // preview length of inspected strings
	Wide               string `yaml:"wide"`          // "lowbyte" or "utf16"
	MaxConstructorHops int    `yaml:"max_constructor_hops"`
	PageSize           int    `yaml:"page_size"` // findjsinstances rows per page
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Color:              ColorAuto,
		TreePadding:        2,
		Workers:            4,
		StringLength:       16,
		Wide:               "lowbyte",
		MaxConstructorHops: 64,
		PageSize:           10,
	}
}

// DefaultPath returns ~/.v8heap.yaml, or "" when there is no home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFile)
}

// Load reads path over the defaults. A missing file is only an error when
// required is set.
func Load(path string, required bool) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return s, nil
		}
		return s, fmt.Errorf("config: %w", err)
	}
	if err := s.decode(bytes.NewReader(data)); err != nil {
		return Default(), fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML settings over the defaults.
func Parse(r io.Reader) (Settings, error) {
	s := Default()
	if err := s.decode(r); err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	return s, nil
}

func (s *Settings) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return s.Validate()
}

// Validate checks enumerated and numeric settings.
func (s Settings) Validate() error {
	switch s.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", s.Color)
	}
	if _, err := v8.ParseWideMode(s.Wide); err != nil {
		return err
	}
	if s.TreePadding < 0 || s.Workers < 0 || s.StringLength < 0 || s.MaxConstructorHops < 0 || s.PageSize < 0 {
		return fmt.Errorf("numeric settings must not be negative")
	}
	return nil
}

// HeapOptions converts the settings to decoder limits.
func (s Settings) HeapOptions() v8.Options {
	wide, _ := v8.ParseWideMode(s.Wide)
	return v8.Options{MaxConstructorHops: s.MaxConstructorHops, Wide: wide}
}

// Marshal renders the settings as YAML.
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// field binds a setting name to its storage.
type field struct {
	str *string
	num *int
}

func (s *Settings) fields() map[string]field {
	return map[string]field{
		"color":                {str: &s.Color},
		"tree_padding":         {num: &s.TreePadding},
		"ranges_file":          {str: &s.RangesFile},
		"workers":              {num: &s.Workers},
		"string_length":        {num: &s.StringLength},
		"wide":                 {str: &s.Wide},
		"max_constructor_hops": {num: &s.MaxConstructorHops},
		"page_size":            {num: &s.PageSize},
	}
}

// Keys lists the setting names.
func (s *Settings) Keys() []string {
	var keys []string
	for k := range s.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting as text.
func (s *Settings) Get(key string) (string, error) {
	f, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.str != nil {
		return *f.str, nil
	}
	return strconv.Itoa(*f.num), nil
}

// Set changes a setting. The settings are left unchanged if the new value
// is invalid.
func (s *Settings) Set(key, value string) error {
	next := *s
	f, ok := next.fields()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.str != nil {
		*f.str = value
	} else {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*f.num = n
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*s = next
	return nil
}
