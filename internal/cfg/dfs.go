package cfg

import "sysyc/internal/ir"

// Event marks whether a DFS step enters or leaves a node.
type Event int

const (
	Enter Event = iota
	Leave
)

type eventNode struct {
	event Event
	node  ir.Block
}

// DfsContext drives an event-based depth-first traversal. The same
// context can be reused; each Iter call resets it.
type DfsContext struct {
	stack   []eventNode
	visited map[ir.Block]bool
}

func NewDfsContext() *DfsContext {
	return &DfsContext{visited: map[ir.Block]bool{}}
}

// Iter starts a traversal from the function's entry block and returns an
// iterator of (Event, Block) pairs. Successors are visited left-to-right
// as they appear in the terminator.
func (d *DfsContext) Iter(ctx *ir.Context, fn ir.Func) *DfsIterator {
	d.stack = d.stack[:0]
	d.visited = map[ir.Block]bool{}
	d.stack = append(d.stack, eventNode{Enter, fn.Entry(ctx)})
	return &DfsIterator{ctx: ctx, dfs: d}
}

// PreOrder collects the Enter events of a full traversal.
func (d *DfsContext) PreOrder(ctx *ir.Context, fn ir.Func) []ir.Block {
	var out []ir.Block
	it := d.Iter(ctx, fn)
	for {
		event, node, ok := it.Next()
		if !ok {
			return out
		}
		if event == Enter {
			out = append(out, node)
		}
	}
}

// PostOrder collects the Leave events of a full traversal, i.e. the
// reverse-completion order.
func (d *DfsContext) PostOrder(ctx *ir.Context, fn ir.Func) []ir.Block {
	var out []ir.Block
	it := d.Iter(ctx, fn)
	for {
		event, node, ok := it.Next()
		if !ok {
			return out
		}
		if event == Leave {
			out = append(out, node)
		}
	}
}

// DfsIterator yields traversal events one at a time.
type DfsIterator struct {
	ctx *ir.Context
	dfs *DfsContext
}

// Next pops the event stack. On entering an unvisited node it pushes the
// matching Leave event and then the Enter events of the successors in
// reverse, so the first successor is visited first.
func (it *DfsIterator) Next() (Event, ir.Block, bool) {
	d := it.dfs
	for {
		if len(d.stack) == 0 {
			return 0, ir.Block{}, false
		}
		top := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]

		if top.event == Enter {
			if d.visited[top.node] {
				continue
			}
			d.visited[top.node] = true
			d.stack = append(d.stack, eventNode{Leave, top.node})
			succs := top.node.Succs(it.ctx)
			for i := len(succs) - 1; i >= 0; i-- {
				if !d.visited[succs[i]] {
					d.stack = append(d.stack, eventNode{Enter, succs[i]})
				}
			}
		}
		return top.event, top.node, true
	}
}
