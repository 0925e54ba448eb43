package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morphc/internal/ir"
)

func testSynth(maxTerms int) SumSynthesizer {
	return NewSumSynthesizer(Options{MaxTerms: maxTerms, MaxExprLen: 255, Precision: 8})
}

func TestSumSingleBatchAttachesDirectly(t *testing.T) {
	out := ir.ChannelRef("out")
	comp, err := testSynth(12).Compile(TargetInput{Target: out, Base: "out", Terms: propTerms(1, 0.5)})
	require.NoError(t, err)

	assert.Equal(t, ir.KindBatch, comp.Driver.Kind())
	assert.Equal(t, "a+0.5*b", comp.Driver.Render())
	assert.Empty(t, comp.Helpers)
	assert.Equal(t, 2, comp.Terms)
	assert.Equal(t, 1, comp.Batches)
	require.Len(t, comp.Attachments, 1)
	assert.Equal(t, out, comp.Attachments[0].Target)
}

func TestSumNoTermsAttachesZero(t *testing.T) {
	comp, err := testSynth(12).Compile(TargetInput{Target: ir.ChannelRef("out"), Base: "out"})
	require.NoError(t, err)
	assert.Equal(t, "0", comp.Driver.Render())
	assert.Equal(t, 0, comp.Batches)
}

func TestSumSplitsIntoHelpers(t *testing.T) {
	out := ir.ChannelRef("out")
	comp, err := testSynth(3).Compile(TargetInput{Target: out, Base: "out", Terms: propTerms(0.1, 0.2, 0.3, 0.4, 0.5)})
	require.NoError(t, err)

	assert.Equal(t, []ir.ChannelID{"out#b1", "out#b2"}, comp.Helpers)
	assert.Equal(t, 2, comp.Batches)
	assert.Equal(t, ir.KindSum, comp.Driver.Kind())
	assert.Equal(t, "a+b", comp.Driver.Render())

	require.Len(t, comp.Attachments, 3)
	assert.Equal(t, ir.ChannelRef("out#b1"), comp.Attachments[0].Target)
	assert.Equal(t, "0.1*a+0.2*b+0.3*c", comp.Attachments[0].Driver.Render())
	assert.Equal(t, out, comp.Attachments[2].Target, "target is attached last")

	for _, b := range comp.Driver.Bindings() {
		assert.Equal(t, ir.RoleInput, b.Role)
	}
}

func TestSumAdjustersWrapSumNode(t *testing.T) {
	comp, err := testSynth(3).Compile(TargetInput{
		Target:    ir.ChannelRef("out"),
		Base:      "out",
		Terms:     propTerms(1, 1, 1, 1),
		Adjusters: []ir.Source{ir.Prop("strength")},
	})
	require.NoError(t, err)
	assert.Equal(t, "a*(b+c)", comp.Driver.Render())

	bindings := comp.Driver.Bindings()
	assert.Equal(t, ir.RoleAdjuster, bindings[0].Role)
	assert.Equal(t, ir.Prop("strength"), bindings[0].Source)
}

func TestSumAdjusterWithFewTermsStaysSingleBatch(t *testing.T) {
	comp, err := testSynth(12).Compile(TargetInput{
		Target:    ir.ChannelRef("out"),
		Base:      "out",
		Terms:     propTerms(0.5),
		Adjusters: []ir.Source{ir.Prop("strength")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.KindBatch, comp.Driver.Kind())
	assert.Equal(t, "a*(0.5*b)", comp.Driver.Render())
}

func TestSumRemainderAndRest(t *testing.T) {
	foreign := &ir.Opaque{Text: "x*2", Vars: []ir.Binding{{Name: "x", Source: ir.Prop("k"), Role: ir.RoleTerm}}}
	comp, err := testSynth(12).Compile(TargetInput{
		Target:    ir.ChannelRef("out"),
		Base:      "out",
		Terms:     propTerms(1),
		Remainder: foreign,
		Rest:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a+b+c", comp.Driver.Render())

	roles := []ir.Role{}
	for _, b := range comp.Driver.Bindings() {
		roles = append(roles, b.Role)
	}
	assert.Equal(t, []ir.Role{ir.RoleInput, ir.RoleRemainder, ir.RoleRest}, roles)
	assert.Equal(t, ir.Prop("out#rem"), comp.Driver.Bindings()[1].Source)
	assert.Equal(t, ir.Prop("out#rest"), comp.Driver.Bindings()[2].Source)

	var remAttached bool
	for _, a := range comp.Attachments {
		if a.Target == ir.ChannelRef("out#rem") {
			remAttached = true
			assert.Same(t, foreign, a.Driver)
		}
	}
	assert.True(t, remAttached)
}

func TestSumSingleSplineAttachesDirectly(t *testing.T) {
	comp, err := testSynth(12).Compile(TargetInput{
		Target:  ir.ChannelRef("out"),
		Base:    "out",
		Splines: []SplineContribution{{Source: ir.Prop("ctl"), Points: []ir.Point{{X: 0, Y: 1}, {X: 2, Y: 0}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.KindSpline, comp.Driver.Kind())
	assert.Empty(t, comp.Helpers)
}

func TestSumLocationWrapsSingleSpline(t *testing.T) {
	loc := &Wrap{Name: "L", Source: ir.Prop("hip/Adjust Location"), Role: ir.RoleLocation}
	spline := SplineContribution{Source: ir.JointAxis(1, ir.Translation, 0, 1), Points: []ir.Point{{X: 0, Y: 1}, {X: 2, Y: 0}}}

	comp, err := testSynth(12).Compile(TargetInput{
		Target:   ir.JointRef(0, ir.Translation, 0),
		Base:     "hip:?translation/x",
		Splines:  []SplineContribution{spline},
		Location: loc,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.KindSum, comp.Driver.Kind())
	assert.Equal(t, "L*(a)", comp.Driver.Render())
	assert.Equal(t, []ir.ChannelID{"hip:?translation/x#s1"}, comp.Helpers)
	assert.Equal(t, ir.RoleLocation, comp.Driver.Bindings()[0].Role)

	t.Run("with terms the batches stay unwrapped", func(t *testing.T) {
		comp, err := testSynth(12).Compile(TargetInput{
			Target:   ir.JointRef(0, ir.Translation, 0),
			Base:     "hip:?translation/x",
			Terms:    []ir.Term{{Source: ir.Prop("ctl"), Factor: 2}},
			Splines:  []SplineContribution{spline},
			Location: loc,
		})
		require.NoError(t, err)
		assert.Equal(t, "L*(a+b)", comp.Driver.Render())
		require.Len(t, comp.Attachments, 3)
		assert.Equal(t, ir.ChannelRef("hip:?translation/x#b1"), comp.Attachments[0].Target)
		assert.Equal(t, "2*a", comp.Attachments[0].Driver.Render())
	})
}

func TestSumLinearSplineBecomesTerm(t *testing.T) {
	comp, err := testSynth(12).Compile(TargetInput{
		Target:  ir.ChannelRef("out"),
		Base:    "out",
		Terms:   []ir.Term{{Source: ir.Prop("ctl"), Factor: 1}},
		Splines: []SplineContribution{{Source: ir.Prop("ctl"), Points: []ir.Point{{X: 0, Y: 0}, {X: 1, Y: 0.5}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.KindBatch, comp.Driver.Kind())
	assert.Equal(t, "1.5*a", comp.Driver.Render())
}

func TestSumSplineWithTerms(t *testing.T) {
	comp, err := testSynth(12).Compile(TargetInput{
		Target:  ir.ChannelRef("blink(fin)"),
		Base:    "blink(fin)",
		Terms:   []ir.Term{{Source: ir.Prop("blink"), Factor: 1}},
		Splines: []SplineContribution{{Source: ir.Prop("ctl"), Points: []ir.Point{{X: 0, Y: 1}, {X: 2, Y: 0}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.ChannelID{"blink(fin)#b1", "blink(fin)#s1"}, comp.Helpers)
	assert.Equal(t, "a+b", comp.Driver.Render())
}

func TestSumSkipsHelperNamesInUse(t *testing.T) {
	terms := append(propTerms(1, 1, 1), ir.Term{Source: ir.Prop("out#b1"), Factor: 1})
	comp, err := testSynth(2).Compile(TargetInput{Target: ir.ChannelRef("out"), Base: "out", Terms: terms})
	require.NoError(t, err)
	assert.Equal(t, []ir.ChannelID{"out#b2", "out#b3"}, comp.Helpers)
}

func TestSumDetachesStaleHelpers(t *testing.T) {
	comp, err := testSynth(3).Compile(TargetInput{
		Target:          ir.ChannelRef("out"),
		Base:            "out",
		Terms:           propTerms(1, 1, 1, 1),
		PreviousHelpers: []ir.ChannelID{"out#b1", "out#b2", "out#b3"},
	})
	require.NoError(t, err)

	var detached []ir.TargetRef
	for _, a := range comp.Attachments {
		if a.Driver == nil {
			detached = append(detached, a.Target)
		}
	}
	assert.Equal(t, []ir.TargetRef{ir.ChannelRef("out#b3")}, detached)
}

func TestSumOverflow(t *testing.T) {
	_, err := testSynth(2).Compile(TargetInput{Target: ir.ChannelRef("out"), Base: "out", Terms: propTerms(1, 1, 1, 1, 1)})
	require.Error(t, err)
	assert.True(t, IsOverflowError(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 5, ce.Terms)
}
