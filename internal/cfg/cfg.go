// Package cfg builds per-function control-flow-graph information and
// depth-first traversals over it. Nodes are basic blocks; edges come from
// the terminator targets of each block.
package cfg

import (
	"fmt"
	"strings"

	"sysyc/internal/ir"
)

// CfgInfo caches the successor and predecessor lists of every block
// reachable from a function's entry.
type CfgInfo struct {
	region ir.Func
	succs  map[ir.Block][]ir.Block
	preds  map[ir.Block][]ir.Block
}

// New walks the graph from the entry block and fills both maps.
func New(ctx *ir.Context, fn ir.Func) *CfgInfo {
	info := &CfgInfo{
		region: fn,
		succs:  map[ir.Block][]ir.Block{},
		preds:  map[ir.Block][]ir.Block{},
	}

	entry := fn.Entry(ctx)
	worklist := []ir.Block{entry}
	visited := map[ir.Block]bool{}

	for len(worklist) > 0 {
		node := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[node] {
			continue
		}
		visited[node] = true

		// Reachable nodes get entries even when they have no edges.
		if _, ok := info.succs[node]; !ok {
			info.succs[node] = nil
		}
		if _, ok := info.preds[node]; !ok {
			info.preds[node] = nil
		}

		for _, succ := range node.Succs(ctx) {
			info.succs[node] = append(info.succs[node], succ)
			info.preds[succ] = append(info.preds[succ], node)
			worklist = append(worklist, succ)
		}
	}
	return info
}

// Region returns the function this CFG describes.
func (c *CfgInfo) Region() ir.Func { return c.region }

// Succs returns the cached successors of a reachable node.
func (c *CfgInfo) Succs(b ir.Block) []ir.Block { return c.succs[b] }

// Preds returns the cached predecessors of a reachable node.
func (c *CfgInfo) Preds(b ir.Block) []ir.Block { return c.preds[b] }

// ReachableNodes returns the set of blocks reachable from the entry.
func (c *CfgInfo) ReachableNodes(ctx *ir.Context) map[ir.Block]bool {
	reachable := map[ir.Block]bool{}
	worklist := []ir.Block{c.region.Entry(ctx)}
	for len(worklist) > 0 {
		node := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if reachable[node] {
			continue
		}
		reachable[node] = true
		worklist = append(worklist, c.succs[node]...)
	}
	return reachable
}

// Dot renders the reachable subgraph in Graphviz format, with each node
// labelled by its instructions. Iteration follows the function's block
// list so the output is deterministic.
func (c *CfgInfo) Dot(ctx *ir.Context) string {
	var sb strings.Builder
	sb.WriteString("digraph CFG {\n")

	reachable := c.ReachableNodes(ctx)
	for _, node := range c.region.Blocks(ctx) {
		if !reachable[node] {
			continue
		}
		label := node.Name(ctx) + ":\\l"
		for _, inst := range node.Insts(ctx) {
			label += "    " + inst.Display(ctx) + "\\l"
		}
		fmt.Fprintf(&sb, "    %q [shape=box,label=\"%s\"];\n", node.Name(ctx), label)
	}
	for _, node := range c.region.Blocks(ctx) {
		if !reachable[node] {
			continue
		}
		for _, succ := range c.succs[node] {
			fmt.Fprintf(&sb, "    %q -> %q;\n", node.Name(ctx), succ.Name(ctx))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// CombineDot merges the CFGs of several functions into one graph, one
// cluster per function.
func CombineDot(ctx *ir.Context, cfgs []*CfgInfo) string {
	var sb strings.Builder
	sb.WriteString("digraph CFG {\n")
	for _, c := range cfgs {
		name := c.region.Name(ctx)
		fmt.Fprintf(&sb, "    subgraph cluster_%s {\n", name)
		fmt.Fprintf(&sb, "        label=%q;\n", name)

		reachable := c.ReachableNodes(ctx)
		for _, node := range c.region.Blocks(ctx) {
			if !reachable[node] {
				continue
			}
			label := node.Name(ctx) + ":\\l"
			for _, inst := range node.Insts(ctx) {
				label += "    " + inst.Display(ctx) + "\\l"
			}
			fmt.Fprintf(&sb, "        %q [shape=box,label=\"%s\"];\n", node.Name(ctx), label)
		}
		for _, node := range c.region.Blocks(ctx) {
			if !reachable[node] {
				continue
			}
			for _, succ := range c.succs[node] {
				fmt.Fprintf(&sb, "        %q -> %q;\n", node.Name(ctx), succ.Name(ctx))
			}
		}
		sb.WriteString("    }\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
