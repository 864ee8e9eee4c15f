// Package tagger classifies the operations of a function body as effects,
// interactions or neutral primitives from an explicit classification table.
package tagger

import (
	"fmt"
	"os"

	"ceiscan/internal/ir"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Table maps known primitive and call-target identifiers to their kind.
// It is read-only after construction and safe to share across workers.
type Table struct {
	kinds map[string]ir.OpKind
}

// NewTable builds a table from effect and interaction identifier lists.
// An identifier listed on both sides is rejected.
func NewTable(effects, interactions []string) (*Table, error) {
	kinds := make(map[string]ir.OpKind, len(effects)+len(interactions))
	for _, id := range effects {
		kinds[id] = ir.KindEffect
	}
	for _, id := range interactions {
		if kinds[id] == ir.KindEffect {
			return nil, errors.Errorf("target %q listed as both effect and interaction", id)
		}
		kinds[id] = ir.KindInteraction
	}
	return &Table{kinds: kinds}, nil
}

// Lookup returns the classification for a target identifier, or KindUnknown.
func (t *Table) Lookup(target string) ir.OpKind {
	return t.kinds[target]
}

func (t *Table) Size() int {
	return len(t.kinds)
}

type tableSpec struct {
	Effects      []string `yaml:"effects"`
	Interactions []string `yaml:"interactions"`
}

// LoadTable reads a classification table document from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, "decode classification table")
	}
	return NewTable(spec.Effects, spec.Interactions)
}

// Advisory reports a call target absent from the classification table.
// The operation is treated as neutral, not assumed safe.
type Advisory struct {
	Function string
	Loc      ir.Location
	Target   string
}

func (adv Advisory) String() string {
	return fmt.Sprintf("%s %s: unclassified call target %q treated as neutral",
		adv.Function, adv.Loc, adv.Target)
}

// Tag returns a copy of the function with every operation annotated with its
// kind, plus one advisory per unclassified call target. The input function is
// not touched; identical input always yields identical output.
func Tag(table *Table, fn *ir.Function) (*ir.Function, []Advisory) {
	tagged := fn.Clone()
	var advisories []Advisory
	for _, op := range tagged.Operations() {
		kind := table.Lookup(op.Target)
		if kind == ir.KindUnknown {
			kind = ir.KindNeutral
			advisories = append(advisories, Advisory{
				Function: fn.Name,
				Loc:      op.Loc,
				Target:   op.Target,
			})
			log.Debugf("%s: unknown target %s at %s", fn.Name, op.Target, op.Loc)
		}
		op.Kind = kind
	}
	return tagged, advisories
}
