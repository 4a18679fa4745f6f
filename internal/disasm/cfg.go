package disasm

import "sort"

// BasicBlock is a run of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with a return, an indirect jump or a branch out of the code object
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken, "F" = fallthrough
}

// FuncCFG is the control flow graph of one Code object.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// BuildCFG splits a code object's instruction stream into basic blocks.
// Leaders are the first instruction, every in-range branch target and every
// instruction following a terminator.
func BuildCFG(name string, insts []Inst) FuncCFG {
	cfg := FuncCFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}

	index := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		index[inst.Addr] = i
	}
	inRange := func(addr uint64) (int, bool) {
		i, ok := index[addr]
		return i, ok
	}

	isLeader := map[int]bool{0: true}
	for i, inst := range insts {
		br := DecodeBranch(inst)
		if br == nil {
			continue
		}
		if i+1 < len(insts) {
			isLeader[i+1] = true
		}
		if br.IsRet {
			continue
		}
		if t, ok := inRange(br.Target); ok {
			isLeader[t] = true
		}
	}
	starts := make([]int, 0, len(isLeader))
	for i := range isLeader {
		starts = append(starts, i)
	}
	sort.Ints(starts)

	blockAt := make(map[int]int, len(starts))
	cfg.Blocks = make([]BasicBlock, len(starts))
	for id, start := range starts {
		end := len(insts)
		if id+1 < len(starts) {
			end = starts[id+1]
		}
		cfg.Blocks[id] = BasicBlock{ID: id, Start: start, End: end, IsEntry: start == 0}
		blockAt[start] = id
	}

	for id := range cfg.Blocks {
		blk := &cfg.Blocks[id]
		next, hasNext := blockAt[blk.End]
		br := DecodeBranch(insts[blk.End-1])
		switch {
		case br == nil:
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
		case br.IsRet:
			blk.IsTerm = true
		default:
			target := -1
			if t, ok := inRange(br.Target); ok {
				target = blockAt[t]
			}
			if br.Cond {
				if target >= 0 {
					blk.Succs = append(blk.Succs, Succ{BlockID: target, Cond: "T"})
				}
				if hasNext {
					blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
				}
			} else if target >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: target})
			} else {
				blk.IsTerm = true
			}
		}
	}
	return cfg
}
