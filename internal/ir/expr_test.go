package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in        float64
		precision int
		want      string
	}{
		{0.5, 8, "0.5"},
		{1, 8, "1"},
		{-2.25, 8, "-2.25"},
		{0.123456789, 8, "0.12345679"},
		{1e-9, 8, "0"},
		{-1e-9, 8, "0"},
		{100, 3, "100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in, tt.precision), "FormatNumber(%v, %d)", tt.in, tt.precision)
	}
}

func TestRenderWeightedSum(t *testing.T) {
	tests := []struct {
		name string
		vars []WeightedVar
		want string
	}{
		{"empty", nil, "0"},
		{"unit", []WeightedVar{{"a", 1}}, "a"},
		{"weighted", []WeightedVar{{"a", 1}, {"b", 0.5}}, "a+0.5*b"},
		{"negative", []WeightedVar{{"a", -1}, {"b", -0.25}}, "-a-0.25*b"},
		{"leading weight", []WeightedVar{{"a", 2}, {"b", 1}}, "2*a+b"},
		{"zero skipped", []WeightedVar{{"a", 0}, {"b", 3}}, "3*b"},
		{"all zero", []WeightedVar{{"a", 1e-12}}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(&WeightedSum{Vars: tt.vars}, DefaultPrecision))
		})
	}
}

func TestRenderScaled(t *testing.T) {
	e := &Scaled{
		Factors: []string{"L", "a"},
		Inner:   &WeightedSum{Vars: []WeightedVar{{"b", 0.5}, {"c", 1}}},
	}
	assert.Equal(t, "L*a*(0.5*b+c)", Render(e, DefaultPrecision))
}

func TestRenderConditional(t *testing.T) {
	c := &Conditional{
		Var:       "a",
		Direction: Ascending,
		Segments: []SplineSegment{
			{Threshold: 0, Slope: 0, Offset: 1},
			{Threshold: 2, Slope: -0.5, Offset: 1},
		},
		Else: 0,
	}
	assert.Equal(t, "(1 if a<0 else -0.5*a+1 if a<2 else 0)", Render(c, DefaultPrecision))

	c.Direction = Descending
	c.Segments = []SplineSegment{{Threshold: -1, Slope: 1, Offset: -0.5}}
	c.Else = 2
	assert.Equal(t, "(a-0.5 if a>-1 else 2)", Render(c, DefaultPrecision))
}

func TestRenderConstant(t *testing.T) {
	assert.Equal(t, "-3.5", Render(&Constant{Value: -3.5}, DefaultPrecision))
	assert.Equal(t, "0", Render(nil, DefaultPrecision))
}

func TestFactorsOf(t *testing.T) {
	e := &Scaled{
		Factors: []string{"g"},
		Inner:   &WeightedSum{Vars: []WeightedVar{{"a", 0.5}, {"b", -2}}},
	}
	assert.Equal(t, map[string]float64{"a": 0.5, "b": -2}, FactorsOf(e))
	assert.Equal(t, []string{"g"}, ScaleFactors(e))
	assert.Empty(t, ScaleFactors(&WeightedSum{}))
}
