package ir

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The loader reads the front-end's exported IR documents. One document holds
// one contract with its methods; the statement tree nests under body.
//
//	contract: Vault
//	functions:
//	  - name: deposit
//	    writes: [balances]
//	    body:
//	      - loop:
//	          line: 10
//	          column: 5
//	          body:
//	            - op: {target: abi.Pool.deposit, callee: Pool.deposit, line: 12, column: 9}
//	            - op: {target: storage.write, slot: balances, line: 14, column: 9}

type fileSpec struct {
	Contract  string         `yaml:"contract"`
	Functions []functionSpec `yaml:"functions"`
}

type functionSpec struct {
	Name   string    `yaml:"name"`
	Writes []string  `yaml:"writes"`
	Body   yaml.Node `yaml:"body"`
}

type opSpec struct {
	Target string `yaml:"target"`
	Slot   string `yaml:"slot"`
	Callee string `yaml:"callee"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
}

type branchSpec struct {
	Line   int       `yaml:"line"`
	Column int       `yaml:"column"`
	Then   yaml.Node `yaml:"then"`
	Else   yaml.Node `yaml:"else"`
}

type loopSpec struct {
	Line   int       `yaml:"line"`
	Column int       `yaml:"column"`
	Body   yaml.Node `yaml:"body"`
}

type breakSpec struct {
	Line   int `yaml:"line"`
	Column int `yaml:"column"`
}

// LoadFile reads a contract IR document from disk.
func LoadFile(path string) ([]*Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Parse(data)
}

// Parse decodes one contract IR document into its functions.
func Parse(data []byte) ([]*Function, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, "decode contract document")
	}

	functions := make([]*Function, 0, len(spec.Functions))
	for i := range spec.Functions {
		fs := &spec.Functions[i]
		if fs.Name == "" {
			return nil, errors.Errorf("function %d has no name", i)
		}
		body, err := decodeStmts(&fs.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", fs.Name)
		}
		functions = append(functions, &Function{
			Name:   fs.Name,
			Writes: fs.Writes,
			Body:   body,
		})
	}
	return functions, nil
}

func decodeStmts(node *yaml.Node) ([]Stmt, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, errors.Errorf("line %d: statement list must be a sequence", node.Line)
	}
	stmts := make([]Stmt, 0, len(node.Content))
	for _, item := range node.Content {
		st, err := decodeStmt(item)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func decodeStmt(node *yaml.Node) (Stmt, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, errors.Errorf("line %d: statement must be a single-key mapping", node.Line)
	}
	key, value := node.Content[0].Value, node.Content[1]

	switch key {
	case "op":
		var spec opSpec
		if err := value.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "line %d: op", value.Line)
		}
		if spec.Target == "" {
			return nil, errors.Errorf("line %d: op has no target", value.Line)
		}
		op := Operation{
			Target: spec.Target,
			Callee: spec.Callee,
			Loc:    Location{Line: spec.Line, Column: spec.Column},
		}
		if spec.Slot != "" {
			op.Key = SlotKey(spec.Slot)
		}
		return &OpStmt{Op: op}, nil

	case "if":
		var spec branchSpec
		if err := value.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "line %d: if", value.Line)
		}
		then, err := decodeStmts(&spec.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeStmts(&spec.Else)
		if err != nil {
			return nil, err
		}
		return &IfStmt{
			Loc:  Location{Line: spec.Line, Column: spec.Column},
			Then: then,
			Else: els,
		}, nil

	case "while":
		var spec loopSpec
		if err := value.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "line %d: while", value.Line)
		}
		body, err := decodeStmts(&spec.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Loc: Location{Line: spec.Line, Column: spec.Column}, Body: body}, nil

	case "loop":
		var spec loopSpec
		if err := value.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "line %d: loop", value.Line)
		}
		body, err := decodeStmts(&spec.Body)
		if err != nil {
			return nil, err
		}
		return &LoopStmt{Loc: Location{Line: spec.Line, Column: spec.Column}, Body: body}, nil

	case "break":
		var spec breakSpec
		if err := value.Decode(&spec); err != nil {
			return nil, errors.Wrapf(err, "line %d: break", value.Line)
		}
		return &BreakStmt{Loc: Location{Line: spec.Line, Column: spec.Column}}, nil

	default:
		return nil, errors.Errorf("line %d: unknown statement kind %q", node.Line, key)
	}
}
