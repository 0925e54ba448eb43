package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morphc/internal/compiler"
	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/ir"
	"github.com/roach88/morphc/internal/scene"
)

func testMemory(t *testing.T) *scene.Memory {
	t.Helper()
	m := scene.NewMemory(config.Default().Units)
	_, err := m.AddJoint("hip", "")
	require.NoError(t, err)
	_, err = m.AddJoint("spine", "hip")
	require.NoError(t, err)
	m.AddChannel(scene.Channel{Name: "Ctrl", Value: 0})
	m.AddChannel(scene.Channel{Name: "Out", Value: 0})

	d := &ir.Batch{
		Variables: []ir.Binding{{Name: "a", Source: ir.Prop("Ctrl"), Role: ir.RoleTerm}},
		Expr:      &ir.WeightedSum{Vars: []ir.WeightedVar{{Name: "a", Factor: 2}}},
	}
	require.NoError(t, m.Commit(context.Background(), []ir.Attachment{{Target: ir.ChannelRef("Out"), Driver: d}}))
	return m
}

func TestAssertValue_RestoresChannels(t *testing.T) {
	m := testMemory(t)
	expect := 3.0
	a := Assertion{Type: AssertValue, Target: "Out", Set: map[string]float64{"Ctrl": 1.5}, Expect: &expect}

	assert.Empty(t, EvaluateAssertions(m, nil, []Assertion{a}))

	c, ok := m.Channel("Ctrl")
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Value)
}

func TestAssertValue_Mismatch(t *testing.T) {
	m := testMemory(t)
	expect := 1.0
	a := Assertion{Type: AssertValue, Target: "Out", Set: map[string]float64{"Ctrl": 1}, Expect: &expect}

	failures := EvaluateAssertions(m, nil, []Assertion{a})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "Out = 2")
	assert.Contains(t, failures[0], "Out = 2*a")
}

func TestAssertDriver(t *testing.T) {
	m := testMemory(t)

	assert.Empty(t, EvaluateAssertions(m, nil, []Assertion{
		{Type: AssertDriver, Target: "Out", Kind: "batch", Text: "2*a"},
		{Type: AssertDetached, Target: "Ctrl"},
	}))

	failures := EvaluateAssertions(m, nil, []Assertion{
		{Type: AssertDriver, Target: "Out", Kind: "sum"},
		{Type: AssertDriver, Target: "Ctrl", Kind: "batch"},
		{Type: AssertDetached, Target: "Out"},
	})
	assert.Len(t, failures, 3)
}

func TestAssertParent(t *testing.T) {
	m := testMemory(t)

	assert.Empty(t, EvaluateAssertions(m, nil, []Assertion{
		{Type: AssertParent, Joint: "spine", Parent: "hip"},
		{Type: AssertParent, Joint: "hip", Parent: ""},
	}))
	assert.Len(t, EvaluateAssertions(m, nil, []Assertion{
		{Type: AssertParent, Joint: "spine", Parent: ""},
		{Type: AssertParent, Joint: "missing", Parent: ""},
	}), 2)
}

func TestAssertProblems(t *testing.T) {
	report := &compiler.Report{Problems: []*compiler.Error{
		{Code: compiler.ErrCodeDependencyCycle, Target: "@0.rotation.x", Message: "loop"},
	}}

	assert.Empty(t, EvaluateAssertions(nil, report, []Assertion{
		{Type: AssertProblems, Code: "DEPENDENCY_CYCLE", Count: 1},
		{Type: AssertProblems, Code: "EXPRESSION_OVERFLOW", Count: 0},
	}))
	assert.Len(t, EvaluateAssertions(nil, report, []Assertion{
		{Type: AssertProblems, Code: "DEPENDENCY_CYCLE", Count: 0},
	}), 1)
}

func TestParseTarget(t *testing.T) {
	m := testMemory(t)

	tgt, err := ParseTarget(m, "Out")
	require.NoError(t, err)
	assert.Equal(t, ir.ChannelRef("Out"), tgt)

	tgt, err = ParseTarget(m, "spine:?rotation/z")
	require.NoError(t, err)
	assert.Equal(t, ir.JointRef(1, ir.Rotation, ir.Axis(2)), tgt)

	_, err = ParseTarget(m, "spine:?center_point/x")
	assert.Error(t, err)

	_, err = ParseTarget(m, "tail:?rotation/z")
	assert.ErrorIs(t, err, ir.ErrNotFound)
}
