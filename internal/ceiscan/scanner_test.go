package ceiscan

import (
	"testing"

	"ceiscan/internal/ir"
	"ceiscan/internal/order"
	"ceiscan/internal/tagger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) (*tagger.Table, []*ir.Function) {
	t.Helper()
	table, err := tagger.LoadTable("../../testdata/table.yaml")
	require.NoError(t, err)
	functions, err := ir.LoadFile("../../testdata/vault.yaml")
	require.NoError(t, err)
	return table, functions
}

func Test_RunVaultFixture(t *testing.T) {
	table, functions := loadFixture(t)
	rep := NewScanner(table, 0).Run(functions)

	// deposit: one LoopCEI for the call-then-store loop, no sequential
	// finding for the same pair.
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, "deposit", rep.Findings[0].Function)
	assert.Equal(t, order.LoopCEI, rep.Findings[0].Kind)
	assert.Equal(t, ir.Location{Line: 12, Column: 9}, rep.Findings[0].InteractionLoc)
	assert.Equal(t, ir.Location{Line: 14, Column: 9}, rep.Findings[0].EffectLoc)

	// withdraw: straight-line call-then-store.
	assert.Equal(t, "withdraw", rep.Findings[1].Function)
	assert.Equal(t, order.SequentialCEI, rep.Findings[1].Kind)

	// balance_of reads a slot through an unclassified primitive.
	require.Len(t, rep.Advisories, 1)
	assert.Equal(t, "balance_of", rep.Advisories[0].Function)
	assert.Equal(t, "std.storage.get", rep.Advisories[0].Target)

	assert.Empty(t, rep.Errors)
}

func Test_RunOrderInvariant(t *testing.T) {
	table, functions := loadFixture(t)
	forward := NewScanner(table, 1).Run(functions)

	reversed := make([]*ir.Function, 0, len(functions))
	for i := len(functions) - 1; i >= 0; i-- {
		reversed = append(reversed, functions[i])
	}
	backward := NewScanner(table, 1).Run(reversed)

	assert.Equal(t, forward.Findings, backward.Findings)
	assert.Equal(t, forward.Advisories, backward.Advisories)
}

func Test_RunIdempotent(t *testing.T) {
	table, functions := loadFixture(t)
	scanner := NewScanner(table, 2)
	first := scanner.Run(functions)
	second := scanner.Run(functions)
	assert.Equal(t, first.String(), second.String())
}

func Test_RunIsolatesMalformedFunction(t *testing.T) {
	table, functions := loadFixture(t)
	functions = append(functions, &ir.Function{
		Name: "malformed",
		Body: []ir.Stmt{&ir.BreakStmt{Loc: ir.Location{Line: 40, Column: 5}}},
	})

	rep := NewScanner(table, 0).Run(functions)

	// The malformed function yields exactly one analysis error and the
	// other functions are still analyzed.
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "malformed", rep.Errors[0].Function)
	assert.Len(t, rep.Findings, 2)
}

func Test_BuildGraphs(t *testing.T) {
	table, functions := loadFixture(t)
	graphs := NewScanner(table, 0).BuildGraphs(functions)
	require.Len(t, graphs, 3)
	assert.True(t, graphs[0].UnboundedTail)
	assert.Contains(t, graphs[0].String(), "deposit")
}
