package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/morphc/internal/ir"
)

func TestCollectorSumsRepeatedSources(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("out")

	c.Add(out, ir.Term{Source: ir.Prop("a"), Factor: 0.5})
	c.Add(out, ir.Term{Source: ir.Prop("b"), Factor: 1})
	c.Add(out, ir.Term{Source: ir.Prop("a"), Factor: 0.25})

	assert.Equal(t, []ir.Term{
		{Source: ir.Prop("a"), Factor: 0.75},
		{Source: ir.Prop("b"), Factor: 1},
	}, c.Terms(out))
}

func TestCollectorSeedIsIdempotent(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("smile(fin)")
	seed := ir.Term{Source: ir.Prop("smile"), Factor: 1}

	c.Seed(out, seed)
	c.Seed(out, seed)
	assert.Equal(t, []ir.Term{seed}, c.Terms(out))
}

func TestCollectorTargetsInInsertionOrder(t *testing.T) {
	c := NewTermCollector()
	c.Touch(ir.ChannelRef("z"))
	c.Add(ir.ChannelRef("a"), ir.Term{Source: ir.Prop("x"), Factor: 1})
	c.Touch(ir.ChannelRef("z"))
	c.Add(ir.JointRef(0, ir.Rotation, 0), ir.Term{Source: ir.Prop("x"), Factor: 1})

	assert.Equal(t, []ir.TargetRef{
		ir.ChannelRef("z"),
		ir.ChannelRef("a"),
		ir.JointRef(0, ir.Rotation, 0),
	}, c.Targets())
	assert.Nil(t, c.Terms(ir.ChannelRef("missing")))
}

func TestCollectorAdjustersDeduplicated(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("out")
	c.AddAdjuster(out, ir.Prop("strength"))
	c.AddAdjuster(out, ir.Prop("strength"))
	c.AddAdjuster(out, ir.Prop("master"))

	assert.Equal(t, []ir.Source{ir.Prop("strength"), ir.Prop("master")}, c.Adjusters(out))
}

func TestCollectorMergePrefixesRecovered(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("out")
	c.Add(out, ir.Term{Source: ir.Prop("x"), Factor: 2})

	c.Merge(out, &Recovered{
		Terms: []ir.Term{
			{Source: ir.Prop("x"), Factor: 5},
			{Source: ir.Prop("y"), Factor: 1},
		},
		Adjusters: []ir.Source{ir.Prop("strength")},
	})

	assert.Equal(t, []ir.Term{
		{Source: ir.Prop("y"), Factor: 1},
		{Source: ir.Prop("x"), Factor: 2},
	}, c.Terms(out), "fresh contribution replaces the recovered one")
	assert.Equal(t, []ir.Source{ir.Prop("strength")}, c.Adjusters(out))

	// A second merge is ignored.
	c.Merge(out, &Recovered{Terms: []ir.Term{{Source: ir.Prop("z"), Factor: 1}}})
	assert.Len(t, c.Terms(out), 2)
}

func TestCollectorFreshTermReplacesRecovered(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("out")
	c.Merge(out, &Recovered{Terms: []ir.Term{{Source: ir.Prop("y"), Factor: 1}}})

	c.Add(out, ir.Term{Source: ir.Prop("y"), Factor: 3})
	c.Add(out, ir.Term{Source: ir.Prop("y"), Factor: 1})
	assert.Equal(t, []ir.Term{{Source: ir.Prop("y"), Factor: 4}}, c.Terms(out))
}

func TestCollectorSplines(t *testing.T) {
	c := NewTermCollector()
	out := ir.ChannelRef("out")
	sp := SplineContribution{Source: ir.Prop("ctl"), Points: []ir.Point{{X: 0, Y: 0}, {X: 1, Y: 2}}}

	c.Merge(out, &Recovered{Splines: []SplineContribution{sp}})
	assert.Equal(t, []SplineContribution{sp}, c.Splines(out))

	fresh := SplineContribution{Source: ir.Prop("ctl"), Points: []ir.Point{{X: 0, Y: 1}, {X: 1, Y: 0}}}
	c.AddSpline(out, fresh)
	assert.Equal(t, []SplineContribution{fresh}, c.Splines(out))
	assert.Empty(t, c.Terms(out))
}

func TestRestAccumulator(t *testing.T) {
	r := NewRestAccumulator()
	hip := ir.JointRef(0, ir.Translation, 1)
	knee := ir.JointRef(1, ir.Translation, 1)
	r.Add(hip, ir.Term{Source: ir.Prop("tall(fin)"), Factor: 2})
	r.Add(knee, ir.Term{Source: ir.Prop("tall(fin)"), Factor: 1})

	assert.Empty(t, r.Targets())
	assert.Equal(t, 2, r.Pending())

	r.Activate(0)
	assert.Equal(t, []ir.TargetRef{hip}, r.Targets())
	assert.Equal(t, 1, r.Pending())
	assert.Equal(t, []ir.Term{{Source: ir.Prop("tall(fin)"), Factor: 2}}, r.Terms(hip))

	r.ActivateAll()
	assert.Len(t, r.Targets(), 2)
	assert.Equal(t, 0, r.Pending())
}
