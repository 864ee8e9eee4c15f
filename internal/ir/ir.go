// Package ir holds the intermediate representation handed to the scanner by
// the front-end: functions, their statement trees and the operations inside.
package ir

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OpKind classifies one operation for the ordering analysis.
type OpKind string

func (k OpKind) String() string {
	return string(k)
}

const (
	// KindUnknown is the state before the tagger has run.
	KindUnknown     OpKind = ""
	KindEffect      OpKind = "Effect"
	KindInteraction OpKind = "Interaction"
	KindNeutral     OpKind = "Neutral"
)

// Location is a source position inside the contract file.
type Location struct {
	Line   int `yaml:"line"`
	Column int `yaml:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Less orders locations by line, then column.
func (l Location) Less(other Location) bool {
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// Operation is a single call or primitive action inside a function body.
// Target is the resolved call-target identifier the front-end saw. The
// payload fields depend on the kind: Key carries the storage slot of an
// effect, Callee the contract method of an interaction.
type Operation struct {
	Target string
	Kind   OpKind
	Loc    Location

	Key    common.Hash
	Callee string
}

// SlotKey derives the canonical 256-bit storage slot for a named slot.
// Hex literals are taken verbatim.
func SlotKey(name string) common.Hash {
	if has0xPrefix(name) {
		return common.HexToHash(name)
	}
	return crypto.Keccak256Hash([]byte(name))
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Stmt is one node of a function's statement tree.
type Stmt interface {
	stmtNode()
}

// OpStmt wraps a single operation.
type OpStmt struct {
	Op Operation
}

// IfStmt is a conditional with two arms; Else may be empty.
type IfStmt struct {
	Loc  Location
	Then []Stmt
	Else []Stmt
}

// WhileStmt is a condition-gated loop.
type WhileStmt struct {
	Loc  Location
	Body []Stmt
}

// LoopStmt is an unconditional loop; it only terminates through a break.
type LoopStmt struct {
	Loc  Location
	Body []Stmt
}

// BreakStmt exits the innermost enclosing loop.
type BreakStmt struct {
	Loc Location
}

func (*OpStmt) stmtNode()    {}
func (*IfStmt) stmtNode()    {}
func (*WhileStmt) stmtNode() {}
func (*LoopStmt) stmtNode()  {}
func (*BreakStmt) stmtNode() {}

// Function is one analyzable unit, immutable once loaded.
type Function struct {
	Name string
	// Writes lists the storage slots the ABI declares this method mutates.
	Writes []string
	Body   []Stmt
}

// Operations walks the statement tree in source order and returns every
// operation it contains.
func (fn *Function) Operations() []*Operation {
	var ops []*Operation
	var walk func(stmts []Stmt)
	walk = func(stmts []Stmt) {
		for _, st := range stmts {
			switch node := st.(type) {
			case *OpStmt:
				ops = append(ops, &node.Op)
			case *IfStmt:
				walk(node.Then)
				walk(node.Else)
			case *WhileStmt:
				walk(node.Body)
			case *LoopStmt:
				walk(node.Body)
			}
		}
	}
	walk(fn.Body)
	return ops
}

// Clone returns a deep copy of the function so transforms can annotate
// operations without touching the loaded input.
func (fn *Function) Clone() *Function {
	cp := &Function{
		Name:   fn.Name,
		Writes: append([]string(nil), fn.Writes...),
		Body:   cloneStmts(fn.Body),
	}
	return cp
}

func cloneStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, 0, len(stmts))
	for _, st := range stmts {
		switch node := st.(type) {
		case *OpStmt:
			op := node.Op
			out = append(out, &OpStmt{Op: op})
		case *IfStmt:
			out = append(out, &IfStmt{
				Loc:  node.Loc,
				Then: cloneStmts(node.Then),
				Else: cloneStmts(node.Else),
			})
		case *WhileStmt:
			out = append(out, &WhileStmt{Loc: node.Loc, Body: cloneStmts(node.Body)})
		case *LoopStmt:
			out = append(out, &LoopStmt{Loc: node.Loc, Body: cloneStmts(node.Body)})
		case *BreakStmt:
			out = append(out, &BreakStmt{Loc: node.Loc})
		}
	}
	return out
}
