package mir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// SimplifyCFG rewrites f in place: jumps are threaded through empty goto
// blocks, blocks no longer reachable from the entry are dropped and the rest
// are renumbered in their original order. Locals and statements are left
// alone, so only the number of program points changes.
func SimplifyCFG(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}
	thread := func(id BlockID) BlockID { return jumpTarget(f, id) }
	for i := range f.Blocks {
		f.Blocks[i].Term.mapTargets(thread)
	}
	f.Entry = thread(f.Entry)
	renumber(f, Reachable(f))
}

// Simplified returns a simplified copy of f. f is not modified; statements
// and locals are shared with it.
func Simplified(f *Func) *Func {
	if f == nil {
		return nil
	}
	out := *f
	out.Blocks = slices.Clone(f.Blocks)
	SimplifyCFG(&out)
	return &out
}

// jumpTarget follows id through empty goto blocks. A cycle made only of
// such blocks is left in place.
func jumpTarget(f *Func, id BlockID) BlockID {
	var seen map[BlockID]bool
	for {
		bb := f.Block(id)
		if bb == nil || len(bb.Stmts) > 0 || bb.Term.Kind != TermGoto || seen[id] {
			return id
		}
		if seen == nil {
			seen = make(map[BlockID]bool)
		}
		seen[id] = true
		id = bb.Term.Goto.Target
	}
}

// Reachable reports, per block, whether it can be reached from the entry.
func Reachable(f *Func) []bool {
	reachable := make([]bool, len(f.Blocks))
	stack := []BlockID{f.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.Block(id) == nil || reachable[id] {
			continue
		}
		reachable[id] = true
		succ := f.Blocks[id].Term.Successors()
		for i := len(succ) - 1; i >= 0; i-- {
			stack = append(stack, succ[i])
		}
	}
	return reachable
}

func renumber(f *Func, keep []bool) {
	newID := make([]BlockID, len(f.Blocks))
	kept := f.Blocks[:0]
	for i, bb := range f.Blocks {
		if !keep[i] {
			newID[i] = NoBlockID
			continue
		}
		newID[i] = blockID(len(kept))
		kept = append(kept, bb)
	}
	for i := range kept {
		kept[i].ID = blockID(i)
		kept[i].Term.mapTargets(func(id BlockID) BlockID {
			if id < 0 || int(id) >= len(newID) {
				return id
			}
			return newID[id]
		})
	}
	clear(f.Blocks[len(kept):])
	f.Blocks = kept
	if int(f.Entry) < len(newID) && f.Entry >= 0 {
		f.Entry = newID[f.Entry]
	}
}

func blockID(n int) BlockID {
	id, err := safecast.Conv[BlockID](n)
	if err != nil {
		panic(fmt.Errorf("block id overflow: %w", err))
	}
	return id
}
