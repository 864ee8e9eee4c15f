// Package order decides, per function CFG, whether any execution path lets
// an interaction run before a paired effect has been committed.
package order

import (
	"sort"

	"ceiscan/internal/cfg"
	"ceiscan/internal/ir"

	log "github.com/sirupsen/logrus"
)

// ViolationKind names the detection rule a finding came from.
type ViolationKind string

const (
	// SequentialCEI is "call out first, then write state" on a forward path.
	SequentialCEI ViolationKind = "SequentialCEI"
	// LoopCEI is an interaction and effect co-occurring in one loop body,
	// where the back-edge re-runs the interaction before the prior
	// iteration's effect is final to external observers.
	LoopCEI ViolationKind = "LoopCEI"
)

// Finding is one detected ordering violation.
type Finding struct {
	Function       string
	Kind           ViolationKind
	InteractionLoc ir.Location
	EffectLoc      ir.Location
}

type findingKey struct {
	function string
	kind     ViolationKind
	iloc     ir.Location
	eloc     ir.Location
}

type opRef struct {
	block cfg.BlockID
	idx   int
	op    ir.Operation
}

// Analyze traverses one function's CFG and reports every violating pairing.
// The graph is only read; repeated runs yield identical, identically ordered
// results.
func Analyze(g *cfg.Graph) []Finding {
	loops := naturalLoops(g)

	seen := make(map[findingKey]struct{})
	var findings []Finding
	add := func(kind ViolationKind, iloc, eloc ir.Location) {
		key := findingKey{function: g.Function, kind: kind, iloc: iloc, eloc: eloc}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		findings = append(findings, Finding{
			Function:       g.Function,
			Kind:           kind,
			InteractionLoc: iloc,
			EffectLoc:      eloc,
		})
	}

	// Loop rule: inside a cyclic region, an interaction at or before an
	// effect in per-iteration order violates regardless of nominal CEI
	// ordering within one pass.
	for _, lp := range loops {
		seq := iterationOps(g, lp)
		for i, ref := range seq {
			if ref.op.Kind != ir.KindInteraction {
				continue
			}
			for j := i + 1; j < len(seq); j++ {
				if seq[j].op.Kind == ir.KindEffect {
					add(LoopCEI, ref.op.Loc, seq[j].op.Loc)
					break
				}
			}
		}
	}

	// Sequential rule: forward traversal only, paired with the nearest
	// effect by block distance. A pair living in one common loop body is
	// the loop rule's jurisdiction.
	for _, b := range g.Blocks {
		for k, op := range b.Ops {
			if op.Kind != ir.KindInteraction {
				continue
			}
			eref, ok := nearestEffect(g, b.ID, k)
			if !ok {
				// An interaction with no paired effect is not a CEI
				// issue by itself.
				continue
			}
			if sameLoop(loops, b.ID, eref.block) {
				continue
			}
			add(SequentialCEI, op.Loc, eref.op.Loc)
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.InteractionLoc != b.InteractionLoc {
			return a.InteractionLoc.Less(b.InteractionLoc)
		}
		if a.EffectLoc != b.EffectLoc {
			return a.EffectLoc.Less(b.EffectLoc)
		}
		return a.Kind < b.Kind
	})
	if len(findings) > 0 {
		log.Debugf("%s: %d ordering violations", g.Function, len(findings))
	}
	return findings
}

type loop struct {
	header cfg.BlockID
	blocks map[cfg.BlockID]bool
}

// naturalLoops computes, for every back-edge t->h, the block set that can
// reach t without passing through h, plus h itself.
func naturalLoops(g *cfg.Graph) []loop {
	preds := make(map[cfg.BlockID][]cfg.BlockID)
	for _, e := range g.Edges {
		preds[e.To] = append(preds[e.To], e.From)
	}

	var loops []loop
	for _, e := range g.BackEdges() {
		lp := loop{header: e.To, blocks: map[cfg.BlockID]bool{e.To: true}}
		stack := []cfg.BlockID{e.From}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if lp.blocks[n] {
				continue
			}
			lp.blocks[n] = true
			stack = append(stack, preds[n]...)
		}
		loops = append(loops, lp)
	}
	return loops
}

// iterationOps flattens one loop body into per-iteration order: depth-first
// from the header over forward edges, restricted to the loop's blocks.
func iterationOps(g *cfg.Graph, lp loop) []opRef {
	var seq []opRef
	visited := make(map[cfg.BlockID]bool)
	var walk func(id cfg.BlockID)
	walk = func(id cfg.BlockID) {
		visited[id] = true
		for i, op := range g.Block(id).Ops {
			seq = append(seq, opRef{block: id, idx: i, op: op})
		}
		for _, e := range g.Succs(id) {
			if e.Kind != cfg.Forward || !lp.blocks[e.To] || visited[e.To] {
				continue
			}
			walk(e.To)
		}
	}
	walk(lp.header)
	return seq
}

// nearestEffect finds the effect with the lowest block distance reachable
// from an interaction over forward edges only. Distance zero is a later
// operation in the same block.
func nearestEffect(g *cfg.Graph, from cfg.BlockID, opIdx int) (opRef, bool) {
	blk := g.Block(from)
	for j := opIdx + 1; j < len(blk.Ops); j++ {
		if blk.Ops[j].Kind == ir.KindEffect {
			return opRef{block: from, idx: j, op: blk.Ops[j]}, true
		}
	}

	visited := map[cfg.BlockID]bool{from: true}
	frontier := []cfg.BlockID{from}
	for len(frontier) > 0 {
		var next []cfg.BlockID
		for _, id := range frontier {
			for _, e := range g.Succs(id) {
				if e.Kind != cfg.Forward || visited[e.To] {
					continue
				}
				visited[e.To] = true
				next = append(next, e.To)
			}
		}
		for _, id := range next {
			for j, op := range g.Block(id).Ops {
				if op.Kind == ir.KindEffect {
					return opRef{block: id, idx: j, op: op}, true
				}
			}
		}
		frontier = next
	}
	return opRef{}, false
}

// sameLoop reports whether one loop body contains both blocks.
func sameLoop(loops []loop, a, b cfg.BlockID) bool {
	for _, lp := range loops {
		if lp.blocks[a] && lp.blocks[b] {
			return true
		}
	}
	return false
}
