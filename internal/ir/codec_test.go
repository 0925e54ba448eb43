package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() *Batch {
	hip := JointAxis(0, Rotation, 1, 0.017453292519943295)
	return &Batch{
		Variables: []Binding{
			{Name: "L", Source: Prop("hip/Adjust Location"), Role: RoleLocation},
			{Name: "a", Source: Prop("smile(fin)"), Role: RoleTerm},
			{Name: "b", Source: hip, Role: RoleTerm},
		},
		Expr: &Scaled{
			Factors: []string{"L"},
			Inner:   &WeightedSum{Vars: []WeightedVar{{"a", 0.5}, {"b", -1}}},
		},
		Precision: 6,
	}
}

func TestDriverRoundTrip(t *testing.T) {
	drivers := map[string]CompiledDriver{
		"batch": sampleBatch(),
		"sum": &SumNode{
			Inputs: []Binding{
				{Name: "a", Source: Prop("out#b1"), Role: RoleInput},
				{Name: "b", Source: Prop("out#rem"), Role: RoleRemainder},
			},
			Expr: &WeightedSum{Vars: []WeightedVar{{"a", 1}, {"b", 1}}},
		},
		"spline": &SplineDriver{
			Source:    Prop("blink(fin)"),
			Var:       "a",
			Direction: Ascending,
			Segments: []SplineSegment{
				{Threshold: 0, Slope: 0, Offset: 1},
				{Threshold: 2, Slope: -0.5, Offset: 1},
			},
			Else:   0,
			Points: []Point{{0, 1}, {2, 0}},
		},
		"opaque": &Opaque{
			Text: "var*2",
			Vars: []Binding{{Name: "var", Source: Prop("x"), Role: RoleTerm}},
		},
		"constant": &Batch{Variables: []Binding{}, Expr: &Constant{Value: 0}},
	}

	for name, d := range drivers {
		t.Run(name, func(t *testing.T) {
			data, err := MarshalDriver(d)
			require.NoError(t, err)

			got, err := UnmarshalDriver(data)
			require.NoError(t, err)
			assert.Equal(t, d.Kind(), got.Kind())
			assert.Equal(t, d.Render(), got.Render())
			assert.Equal(t, d.Bindings(), got.Bindings())

			again, err := MarshalDriver(got)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

func TestSplineRoundTripKeepsPoints(t *testing.T) {
	s := &SplineDriver{
		Source:    JointAxis(2, Translation, 0, 0.01),
		Var:       "a",
		Direction: Descending,
		Segments:  []SplineSegment{{Threshold: 1, Slope: 2, Offset: 0}},
		Else:      2,
		Points:    []Point{{1, 2}, {0, 0}},
		Precision: 4,
	}
	data, err := MarshalDriver(s)
	require.NoError(t, err)

	got, err := UnmarshalDriver(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestMarshalDriverIsCanonical(t *testing.T) {
	data, err := MarshalDriver(&Opaque{Text: "a<b"})
	require.NoError(t, err)
	assert.Equal(t, `{"bindings":[],"kind":"opaque","text":"a<b","version":"1"}`, string(data))
}

func TestMarshalDriverNil(t *testing.T) {
	_, err := MarshalDriver(nil)
	require.Error(t, err)
}

func TestUnmarshalDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{"not json", `{`, "unmarshal driver"},
		{"unknown kind", `{"kind":"mystery","version":"1","bindings":[]}`, "unknown kind"},
		{"missing expr", `{"kind":"batch","version":"1","bindings":[]}`, "missing expression"},
		{"unknown op", `{"kind":"sum","version":"1","bindings":[],"expr":{"op":"pow"}}`, "unknown expression op"},
		{"bad number", `{"kind":"batch","version":"1","bindings":[],"expr":{"op":"const","value":"x"}}`, "invalid number"},
		{"spline without binding", `{"kind":"spline","version":"1","bindings":[],"expr":{"op":"cond","var":"a","direction":"<","value":"0"}}`, "malformed spline"},
		{"bad source kind", `{"kind":"opaque","version":"1","bindings":[{"name":"a","role":"term","source":{"kind":"bone","joint":0,"axis":0}}]}`, "unknown source kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDriver([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBatchTerms(t *testing.T) {
	terms := sampleBatch().Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, Prop("smile(fin)"), terms[0].Source)
	assert.Equal(t, 0.5, terms[0].Factor)
	assert.Equal(t, -1.0, terms[1].Factor)
}

func TestBindingsAreCopies(t *testing.T) {
	b := sampleBatch()
	got := b.Bindings()
	got[0].Name = "changed"
	assert.Equal(t, "L", b.Variables[0].Name)
}
