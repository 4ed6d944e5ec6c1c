package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func n(op OpKind, name string) NodeID {
	return NodeID{Op: op, Schema: "pkg/Kind/v1", Name: name}
}

func TestTopoSort_Linear(t *testing.T) {
	g := New()
	g.AddEdge(n(OpSource, "a"), n(OpStructural, "a"))
	g.AddEdge(n(OpStructural, "a"), n(OpRender, "a"))

	order, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, n(OpSource, "a"), order[0])
	assert.Equal(t, n(OpStructural, "a"), order[1])
	assert.Equal(t, n(OpRender, "a"), order[2])
}

func TestTopoSort_DetectsCycle(t *testing.T) {
	g := New()
	g.AddEdge(n(OpSubstitute, "a"), n(OpSubstitute, "b"))
	g.AddEdge(n(OpSubstitute, "b"), n(OpSubstitute, "a"))

	_, err := g.TopoSort()
	require.Error(t, err)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Cycles, 1)
}

func TestCycles_ReportsAllSimpleCycles(t *testing.T) {
	g := New()
	// Two disjoint cycles: a<->b and c<->d.
	g.AddEdge(n(OpSubstitute, "a"), n(OpSubstitute, "b"))
	g.AddEdge(n(OpSubstitute, "b"), n(OpSubstitute, "a"))
	g.AddEdge(n(OpSubstitute, "c"), n(OpSubstitute, "d"))
	g.AddEdge(n(OpSubstitute, "d"), n(OpSubstitute, "c"))

	cycles := g.Cycles()
	assert.Len(t, cycles, 2) // each elementary cycle reported exactly once
}

func TestCycles_NoCyclesInDAG(t *testing.T) {
	g := New()
	g.AddEdge(n(OpSource, "a"), n(OpStructural, "a"))
	g.AddEdge(n(OpStructural, "a"), n(OpRender, "a"))

	assert.Empty(t, g.Cycles())
}

func TestEvaluate_BlocksDescendantsOfFailure(t *testing.T) {
	g := New()
	a := n(OpStructural, "a")
	b := n(OpLayer, "a")
	c := n(OpRender, "a")
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	res, err := g.Evaluate(func(id NodeID) error {
		if id == a {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status[a])
	assert.Equal(t, StatusBlocked, res.Status[b])
	assert.Equal(t, StatusBlocked, res.Status[c])
	require.True(t, res.Failed())
	assert.Len(t, res.Errors, 1)
}

func TestEvaluate_IndependentBranchesUnaffected(t *testing.T) {
	g := New()
	a1 := n(OpStructural, "a")
	a2 := n(OpRender, "a")
	b1 := n(OpStructural, "b")
	b2 := n(OpRender, "b")
	g.AddEdge(a1, a2)
	g.AddEdge(b1, b2)

	res, err := g.Evaluate(func(id NodeID) error {
		if id == a1 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status[b1])
	assert.Equal(t, StatusOK, res.Status[b2])
	assert.Equal(t, StatusBlocked, res.Status[a2])
}

func TestAncestors_TransitiveClosure(t *testing.T) {
	g := New()
	g.AddEdge(n(OpSource, "a"), n(OpStructural, "a"))
	g.AddEdge(n(OpStructural, "a"), n(OpRender, "a"))
	g.AddEdge(n(OpSource, "b"), n(OpStructural, "b"))

	anc := g.Ancestors(n(OpRender, "a"))
	assert.ElementsMatch(t, []NodeID{n(OpSource, "a"), n(OpStructural, "a"), n(OpRender, "a")}, anc)
}
