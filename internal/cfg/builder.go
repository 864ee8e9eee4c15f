package cfg

import (
	"fmt"

	"ceiscan/internal/ir"

	log "github.com/sirupsen/logrus"
)

// AnalysisError marks one function whose statement tree cannot be shaped
// into a well-formed CFG. It never aborts the surrounding run.
type AnalysisError struct {
	Function string
	Loc      ir.Location
	Reason   string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Function, e.Loc, e.Reason)
}

type loopFrame struct {
	// join is the block a break jumps to, allocated on the first break.
	join  BlockID
	taken bool
}

type builder struct {
	g     *Graph
	fn    *ir.Function
	loops []*loopFrame
}

// Build assembles the CFG of one function. A malformed tree (break outside
// a loop, statements that no reconvergence target can reach) returns an
// *AnalysisError scoped to that function.
func Build(fn *ir.Function) (*Graph, error) {
	b := &builder{g: newGraph(fn.Name), fn: fn}
	if _, _, err := b.buildSeq(fn.Body, b.g.Entry); err != nil {
		return nil, err
	}
	log.Debugf("%s: CFG built, %d blocks", fn.Name, len(b.g.Blocks))
	return b.g, nil
}

// buildSeq threads a statement sequence through the graph starting at cur.
// It returns the block open at the end of the sequence and whether control
// never reaches past it.
func (b *builder) buildSeq(stmts []ir.Stmt, cur BlockID) (BlockID, bool, error) {
	for i, st := range stmts {
		var (
			terminated bool
			err        error
		)
		switch node := st.(type) {
		case *ir.OpStmt:
			blk := b.g.Block(cur)
			blk.Ops = append(blk.Ops, node.Op)

		case *ir.BreakStmt:
			terminated, err = b.buildBreak(node, cur)

		case *ir.IfStmt:
			cur, terminated, err = b.buildIf(node, cur)

		case *ir.WhileStmt:
			cur, err = b.buildWhile(node, cur)

		case *ir.LoopStmt:
			cur, terminated, err = b.buildLoop(node, cur)

		default:
			err = &AnalysisError{Function: b.fn.Name, Reason: fmt.Sprintf("unsupported statement %T", st)}
		}
		if err != nil {
			return cur, false, err
		}
		if terminated {
			if i < len(stmts)-1 {
				return cur, false, &AnalysisError{
					Function: b.fn.Name,
					Loc:      stmtLoc(stmts[i+1]),
					Reason:   "unreachable statements: no reconvergence target reachable",
				}
			}
			return cur, true, nil
		}
	}
	return cur, false, nil
}

func (b *builder) buildBreak(node *ir.BreakStmt, cur BlockID) (bool, error) {
	if len(b.loops) == 0 {
		return false, &AnalysisError{
			Function: b.fn.Name,
			Loc:      node.Loc,
			Reason:   "break outside of a loop",
		}
	}
	frame := b.loops[len(b.loops)-1]
	if frame.join < 0 {
		frame.join = b.g.newBlock().ID
	}
	b.g.addEdge(cur, frame.join, Forward)
	frame.taken = true
	return true, nil
}

// buildIf splits into two arms that reconverge at a join block. An empty
// else arm still gets its own block so the conditional always carries two
// outgoing forward edges.
func (b *builder) buildIf(node *ir.IfStmt, cur BlockID) (BlockID, bool, error) {
	thenEntry := b.g.newBlock().ID
	b.g.addEdge(cur, thenEntry, Forward)
	elseEntry := b.g.newBlock().ID
	b.g.addEdge(cur, elseEntry, Forward)

	thenEnd, thenTerm, err := b.buildSeq(node.Then, thenEntry)
	if err != nil {
		return cur, false, err
	}
	elseEnd, elseTerm, err := b.buildSeq(node.Else, elseEntry)
	if err != nil {
		return cur, false, err
	}
	if thenTerm && elseTerm {
		return cur, true, nil
	}
	join := b.g.newBlock().ID
	if !thenTerm {
		b.g.addEdge(thenEnd, join, Forward)
	}
	if !elseTerm {
		b.g.addEdge(elseEnd, join, Forward)
	}
	return join, false, nil
}

// buildWhile shapes a condition-gated loop: header with one edge into the
// body and one past the loop, and a back-edge from the body end to the
// header.
func (b *builder) buildWhile(node *ir.WhileStmt, cur BlockID) (BlockID, error) {
	header := b.g.newBlock().ID
	b.g.addEdge(cur, header, Forward)
	bodyEntry := b.g.newBlock().ID
	b.g.addEdge(header, bodyEntry, Forward)
	join := b.g.newBlock().ID
	b.g.addEdge(header, join, Forward)

	b.loops = append(b.loops, &loopFrame{join: join})
	bodyEnd, bodyTerm, err := b.buildSeq(node.Body, bodyEntry)
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil {
		return cur, err
	}
	if !bodyTerm {
		b.g.addEdge(bodyEnd, header, BackEdge)
	}
	return join, nil
}

// buildLoop shapes an unconditional loop. Without a reachable break there is
// no forward exit edge: the graph gets an unbounded tail and control never
// reaches past the loop.
func (b *builder) buildLoop(node *ir.LoopStmt, cur BlockID) (BlockID, bool, error) {
	header := b.g.newBlock().ID
	b.g.addEdge(cur, header, Forward)
	bodyEntry := b.g.newBlock().ID
	b.g.addEdge(header, bodyEntry, Forward)

	frame := &loopFrame{join: -1}
	b.loops = append(b.loops, frame)
	bodyEnd, bodyTerm, err := b.buildSeq(node.Body, bodyEntry)
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil {
		return cur, false, err
	}
	if !bodyTerm {
		b.g.addEdge(bodyEnd, header, BackEdge)
	}
	if !frame.taken {
		b.g.UnboundedTail = true
		return cur, true, nil
	}
	return frame.join, false, nil
}

func stmtLoc(st ir.Stmt) ir.Location {
	switch node := st.(type) {
	case *ir.OpStmt:
		return node.Op.Loc
	case *ir.IfStmt:
		return node.Loc
	case *ir.WhileStmt:
		return node.Loc
	case *ir.LoopStmt:
		return node.Loc
	case *ir.BreakStmt:
		return node.Loc
	}
	return ir.Location{}
}
