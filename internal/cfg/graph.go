// Package cfg builds per-function control-flow graphs of basic blocks.
// Blocks live in an arena indexed by BlockID and edges are plain index
// pairs, so loop back-edges are ordinary entries with no reference cycles.
package cfg

import (
	"fmt"
	"strings"

	"ceiscan/internal/ir"
)

// BlockID indexes a block inside its graph's arena.
type BlockID int

// EdgeKind distinguishes forward flow from loop repetition.
type EdgeKind int

const (
	Forward EdgeKind = iota
	BackEdge
)

func (k EdgeKind) String() string {
	if k == BackEdge {
		return "back"
	}
	return "forward"
}

// Edge is a directed relation between two blocks.
type Edge struct {
	From BlockID
	To   BlockID
	Kind EdgeKind
}

// Block is a maximal straight-line run of operations.
type Block struct {
	ID  BlockID
	Ops []ir.Operation
}

// Graph is the CFG of one function. Entry is always block 0. UnboundedTail
// marks a function whose trailing loop has no reachable break.
type Graph struct {
	Function      string
	Blocks        []*Block
	Edges         []Edge
	Entry         BlockID
	UnboundedTail bool
}

func newGraph(function string) *Graph {
	g := &Graph{Function: function}
	g.Entry = g.newBlock().ID
	return g
}

func (g *Graph) newBlock() *Block {
	b := &Block{ID: BlockID(len(g.Blocks))}
	g.Blocks = append(g.Blocks, b)
	return b
}

func (g *Graph) addEdge(from, to BlockID, kind EdgeKind) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind})
}

// Block returns the arena entry for an id.
func (g *Graph) Block(id BlockID) *Block {
	return g.Blocks[id]
}

// Succs returns the outgoing edges of a block in insertion order.
func (g *Graph) Succs(id BlockID) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// BackEdges returns every loop edge of the graph.
func (g *Graph) BackEdges() []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == BackEdge {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s: %d blocks, entry b%d", g.Function, len(g.Blocks), g.Entry)
	if g.UnboundedTail {
		sb.WriteString(", unbounded tail")
	}
	sb.WriteString("\n")
	for _, b := range g.Blocks {
		fmt.Fprintf(&sb, "  b%d:\n", b.ID)
		for _, op := range b.Ops {
			fmt.Fprintf(&sb, "    %s %s %s\n", op.Loc, op.Kind, op.Target)
		}
		for _, e := range g.Succs(b.ID) {
			fmt.Fprintf(&sb, "    -> b%d (%s)\n", e.To, e.Kind)
		}
	}
	return sb.String()
}
