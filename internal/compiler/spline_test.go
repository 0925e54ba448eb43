package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morphc/internal/eval"
	"github.com/roach88/morphc/internal/ir"
)

func TestSplineCompile(t *testing.T) {
	c := SplineCompiler{MaxExprLen: 255, Precision: 8}
	src := ir.Prop("ctl(fin)")

	tests := []struct {
		name   string
		points []ir.Point
		text   string
	}{
		{"ramp down", []ir.Point{{X: 0, Y: 1}, {X: 2, Y: 0}}, "(1 if a<0 else -0.5*a+1 if a<2 else 0)"},
		{"unsorted input", []ir.Point{{X: 2, Y: 0}, {X: 0, Y: 1}}, "(1 if a<0 else -0.5*a+1 if a<2 else 0)"},
		{"negative side", []ir.Point{{X: -2, Y: 1}, {X: -1, Y: 0}, {X: 0, Y: 0}}, "(0 if a>-1 else -a-1 if a>-2 else 1)"},
		{"collinear middle merged", []ir.Point{{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}},
			"(1 if a<0 else a+1 if a<2 else 3 if a<3 else 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Compile("out", src, tt.points)
			require.NoError(t, err)
			require.Nil(t, res.Linear)
			require.NotNil(t, res.Driver)
			assert.Equal(t, tt.text, res.Driver.Render())
			assert.Equal(t, src, res.Driver.Source)
		})
	}
}

func TestSplineMatchesInterpolation(t *testing.T) {
	c := SplineCompiler{MaxExprLen: 255, Precision: 8}
	res, err := c.Compile("out", ir.Prop("x"), []ir.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 3, Y: 0}})
	require.NoError(t, err)
	require.NotNil(t, res.Driver)

	prog, err := eval.Parse(res.Driver.Render())
	require.NoError(t, err)
	for x, want := range map[float64]float64{-1: 0, 0: 0, 0.5: 0.5, 1: 1, 2: 0.5, 3: 0, 10: 0} {
		got, err := prog.Eval(map[string]float64{"a": x})
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9, "x=%v", x)
	}
}

func TestSplineTaperEvaluates(t *testing.T) {
	c := SplineCompiler{MaxExprLen: 255, Precision: 8}
	res, err := c.Compile("out", ir.Prop("x"), []ir.Point{{X: 0, Y: 1}, {X: 1, Y: 0.5}, {X: 2, Y: 0}})
	require.NoError(t, err)
	require.NotNil(t, res.Driver)

	for x, want := range map[float64]float64{0.5: 0.75, 1.5: 0.25, 2.5: 0} {
		got, err := eval.Evaluate(res.Driver.Render(), map[string]float64{"a": x})
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9, "x=%v", x)
	}
}

func TestSplineLinear(t *testing.T) {
	c := SplineCompiler{MaxExprLen: 255, Precision: 8}

	res, err := c.Compile("out", ir.Prop("x"), []ir.Point{{X: 0, Y: 0}, {X: 2, Y: 1}})
	require.NoError(t, err)
	require.Nil(t, res.Driver)
	require.NotNil(t, res.Linear)
	assert.Equal(t, 0.5, res.Linear.Factor)

	res, err = c.Compile("out", ir.Prop("x"), []ir.Point{{X: -2, Y: 1}, {X: 0, Y: 0}})
	require.NoError(t, err)
	require.NotNil(t, res.Linear)
	assert.Equal(t, -0.5, res.Linear.Factor)

	res, err = c.Compile("out", ir.Prop("x"), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Linear)
	assert.Equal(t, 0.0, res.Linear.Factor)
}

func TestSplineDuplicateXLastWins(t *testing.T) {
	pts := sortPoints([]ir.Point{{X: 1, Y: 5}, {X: 0, Y: 0}, {X: 1, Y: 2}})
	assert.Equal(t, []ir.Point{{X: 0, Y: 0}, {X: 1, Y: 2}}, pts)
}

func TestSplineOverflow(t *testing.T) {
	c := SplineCompiler{MaxExprLen: 10, Precision: 8}
	_, err := c.Compile("out", ir.Prop("x"), []ir.Point{{X: 0, Y: 1}, {X: 2, Y: 0}})
	require.Error(t, err)
	assert.True(t, IsOverflowError(err))
}
