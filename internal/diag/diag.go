// Package diag accumulates non-fatal diagnostics produced while reading a heap snapshot.
package diag

import (
	"fmt"
	"sync"
)

// Kind classifies a diagnostic message.
type Kind string

const (
	MissingConstant Kind = "missing_constant"
	SkippedRange    Kind = "skipped_range"
	UnreadableBlock Kind = "unreadable_block"
	Corrupt         Kind = "corrupt"
)

// Diag records a non-fatal issue.
type Diag struct {
	Addr uint64 `json:"addr"`
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Addr, d.Msg)
}

// Diags accumulates diagnostics. Safe for concurrent use; the zero value is ready.
// A Diags with Quiet set drops everything it is given.
type Diags struct {
	Quiet bool

	mu    sync.Mutex
	items []Diag
}

func (d *Diags) Add(addr uint64, kind Kind, msg string) {
	if d == nil || d.Quiet {
		return
	}
	d.mu.Lock()
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: msg})
	d.mu.Unlock()
}

func (d *Diags) Addf(addr uint64, kind Kind, format string, args ...any) {
	if d == nil || d.Quiet {
		return
	}
	d.Add(addr, kind, fmt.Sprintf(format, args...))
}

// Items returns a copy of the accumulated diagnostics.
func (d *Diags) Items() []Diag {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diag, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Diags) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Drain returns the accumulated diagnostics and clears the list.
func (d *Diags) Drain() []Diag {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.items
	d.items = nil
	return out
}

// Count returns the number of diagnostics of the given kind.
func (d *Diags) Count(kind Kind) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, it := range d.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}
