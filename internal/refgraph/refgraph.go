// Package refgraph builds the retainer graph of a heap value: who holds
// it, who holds those holders, and so on, as a lattice graph.
package refgraph

import (
	"context"
	"fmt"

	"github.com/zboralski/lattice"

	"v8heap/internal/refs"
)

// Options bounds the walk.
type Options struct {
	Depth    int // holder levels to follow; 0 = 3
	MaxNodes int // 0 = 200
}

// Label names a value as "Type 0x...".
func Label(f *refs.Finder, raw uint64) string {
	if o, ok := f.Heap().Object(raw).Get(); ok {
		if name, err := o.TypeName(); err == nil {
			return fmt.Sprintf("%s 0x%x", name, raw)
		}
	}
	return fmt.Sprintf("0x%x", raw)
}

// Build walks holders breadth first from root. Each edge points from a
// holder to the value it references. The walk stops at opts.Depth levels
// or once opts.MaxNodes values have been reached.
func Build(ctx context.Context, f *refs.Finder, root uint64, opts Options) (*lattice.Graph, error) {
	if opts.Depth <= 0 {
		opts.Depth = 3
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = 200
	}
	g := &lattice.Graph{}
	labels := map[uint64]string{root: Label(f, root)}
	g.Nodes = append(g.Nodes, labels[root])

	level := []uint64{root}
	for depth := 0; depth < opts.Depth && len(level) > 0; depth++ {
		var next []uint64
		for _, v := range level {
			found, err := f.FindValue(ctx, v)
			if err != nil {
				return nil, err
			}
			for _, r := range found {
				if _, ok := labels[r.Holder]; !ok {
					if len(labels) >= opts.MaxNodes {
						continue
					}
					labels[r.Holder] = fmt.Sprintf("%s 0x%x", r.TypeName, r.Holder)
					g.Nodes = append(g.Nodes, labels[r.Holder])
					next = append(next, r.Holder)
				}
				g.Edges = append(g.Edges, lattice.Edge{Caller: labels[r.Holder], Callee: labels[v]})
			}
		}
		level = next
	}
	g.Dedup()
	return g, nil
}
