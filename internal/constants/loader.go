// Package constants resolves V8 postmortem debug constants (v8dbg_* symbols)
// from a target into named layout groups.
package constants

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"v8heap/internal/diag"
	"v8heap/internal/target"
)

// Prefix is prepended to every postmortem constant name.
const Prefix = "v8dbg_"

var (
	ErrNoSymbol   = errors.New("constants: symbol not found")
	ErrSymbolSize = errors.New("constants: unexpected symbol size")
	ErrUnreadable = errors.New("constants: symbol value unreadable")
)

// State of a Constant.
type State uint8

const (
	Unresolved State = iota
	Resolved
	Absent
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Absent:
		return "absent"
	}
	return "unresolved"
}

// Constant is one schema entry. Name is the symbol that produced Value,
// or the primary name when the constant is absent and Value is the default.
type Constant struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	State State  `json:"-"`
}

// Ok reports whether the constant was resolved from the target.
func (c Constant) Ok() bool { return c.State == Resolved }

// Get returns the value and whether it was resolved.
func (c Constant) Get() (int64, bool) { return c.Value, c.State == Resolved }

// Is reports whether the constant was resolved through the given name.
func (c Constant) Is(name string) bool { return c.State == Resolved && c.Name == name }

// Usable reports whether Value may be used: either resolved, or absent with
// a non-negative default.
func (c Constant) Usable() bool {
	return c.State == Resolved || (c.State == Absent && c.Value >= 0)
}

func (c Constant) String() string {
	return fmt.Sprintf("%s=%d (%s)", c.Name, c.Value, c.State)
}

// Derived builds a resolved constant computed from other constants.
func Derived(name string, v int64) Constant {
	return Constant{Name: name, Value: v, State: Resolved}
}

// Loader reads constants from a target, memoizing every lookup so each
// absent constant produces exactly one diagnostic.
type Loader struct {
	t     target.Target
	r     *target.Reader
	diags *diag.Diags

	mu    sync.Mutex
	cache map[string]Constant
}

// NewLoader returns a Loader over t. d may be nil.
func NewLoader(t target.Target, d *diag.Diags) *Loader {
	return &Loader{t: t, r: target.NewReader(t), diags: d, cache: make(map[string]Constant)}
}

// Target returns the target constants are read from.
func (l *Loader) Target() target.Target { return l.t }

// Resolve tries primary then each fallback (all with Prefix) and returns the
// first that resolves. Otherwise the constant is Absent with value def.
func (l *Loader) Resolve(primary string, fallbacks []string, def int64) Constant {
	names := append([]string{primary}, fallbacks...)
	return l.resolve(names, def, Prefix)
}

// Raw resolves a symbol without the prefix.
func (l *Loader) Raw(name string, def int64) Constant {
	return l.resolve([]string{name}, def, "")
}

func (l *Loader) resolve(names []string, def int64, prefix string) Constant {
	key := prefix + strings.Join(names, "|")

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.cache[key]; ok {
		return c
	}

	var errs []string
	for _, name := range names {
		v, err := l.read(prefix + name)
		if err == nil {
			c := Constant{Name: name, Value: v, State: Resolved}
			l.cache[key] = c
			return c
		}
		errs = append(errs, err.Error())
	}
	c := Constant{Name: names[0], Value: def, State: Absent}
	l.cache[key] = c
	l.diags.Addf(0, diag.MissingConstant, "failed to load %s%s: %s", prefix, names[0], strings.Join(errs, "; "))
	return c
}

func (l *Loader) read(name string) (int64, error) {
	sym, ok := l.t.LookupSymbol(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSymbol, name)
	}
	var width int
	switch {
	case sym.Size >= 8:
		width = 8
	case sym.Size == 4 || sym.Size == 2 || sym.Size == 1:
		width = int(sym.Size)
	default:
		return 0, fmt.Errorf("%w: %s has size %d", ErrSymbolSize, name, sym.Size)
	}
	v, ok := l.r.ReadSigned(sym.Addr, width)
	if !ok {
		return 0, fmt.Errorf("%w: %s at 0x%x", ErrUnreadable, name, sym.Addr)
	}
	return v, nil
}

// Entries returns every constant looked up so far, sorted by name.
func (l *Loader) Entries() []Constant {
	l.mu.Lock()
	out := make([]Constant, 0, len(l.cache))
	for _, c := range l.cache {
		out = append(out, c)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
