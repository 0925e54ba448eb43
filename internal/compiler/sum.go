package compiler

import (
	"fmt"

	"github.com/roach88/morphc/internal/ir"
)

// locationVar is the fixed name of the location adjuster in a batch.
const locationVar = "L"

// TargetInput is everything needed to compile one target.
type TargetInput struct {
	Target    ir.TargetRef
	Base      string
	Terms     []ir.Term
	Splines   []SplineContribution
	Adjusters []ir.Source

	// Location wraps every batch when set.
	Location *Wrap

	// Remainder is moved to the target's #rem channel; KeepRemainder
	// references a #rem channel that is already attached.
	Remainder     ir.CompiledDriver
	KeepRemainder bool

	// Rest adds the target's #rest channel as an input.
	Rest bool

	// PreviousHelpers are detached unless reused.
	PreviousHelpers []ir.ChannelID
}

// Compilation is one target compiled in memory, ready to commit.
type Compilation struct {
	Target      ir.TargetRef
	Driver      ir.CompiledDriver
	Attachments []ir.Attachment
	Terms       int
	Batches     int
	Helpers     []ir.ChannelID
}

// SumSynthesizer compiles a target's contributions into either a single
// driver or a SumNode over helper channels.
type SumSynthesizer struct {
	Batcher Batcher
	Splines SplineCompiler
}

// NewSumSynthesizer builds a synthesizer from opts.
func NewSumSynthesizer(opts Options) SumSynthesizer {
	return SumSynthesizer{
		Batcher: opts.batcher(),
		Splines: SplineCompiler{MaxExprLen: opts.MaxExprLen, Precision: opts.precision()},
	}
}

// Compile builds the attachments for in. Nothing is written; on error the
// caller commits nothing for the target.
func (s SumSynthesizer) Compile(in TargetInput) (*Compilation, error) {
	terms := append([]ir.Term(nil), in.Terms...)
	var splines []*ir.SplineDriver
	for _, sc := range in.Splines {
		res, err := s.Splines.Compile(in.Base, sc.Source, sc.Points)
		if err != nil {
			return nil, err
		}
		if res.Linear != nil {
			terms = mergeTerm(terms, *res.Linear)
			continue
		}
		splines = append(splines, res.Driver)
	}
	live := LiveTerms(terms, s.Batcher.Precision)

	var locWraps, adjWraps []Wrap
	if in.Location != nil {
		locWraps = append(locWraps, *in.Location)
	}
	for _, a := range in.Adjusters {
		adjWraps = append(adjWraps, Wrap{Source: a, Role: ir.RoleAdjuster})
	}

	out := &Compilation{Target: in.Target, Terms: len(live) + len(splines)}
	extra := len(splines)
	if in.Remainder != nil || in.KeepRemainder {
		extra++
	}
	if in.Rest {
		extra++
	}

	// One contribution: attach it directly.
	if extra == 0 {
		batches, err := s.Batcher.Batch(in.Base, live, append(append([]Wrap(nil), locWraps...), adjWraps...))
		if err != nil && !IsOverflowError(err) {
			return nil, err
		}
		if err == nil && len(batches) <= 1 {
			var d ir.CompiledDriver = &ir.Batch{Expr: &ir.WeightedSum{}, Precision: s.Batcher.Precision}
			if len(batches) == 1 {
				d = batches[0]
				out.Batches = 1
			}
			out.attach(in.Target, d)
			out.detachStale(in.PreviousHelpers)
			return out, nil
		}
	}
	if extra == 1 && len(splines) == 1 && len(live) == 0 && len(adjWraps) == 0 && len(locWraps) == 0 {
		out.attach(in.Target, splines[0])
		out.detachStale(in.PreviousHelpers)
		return out, nil
	}

	// Spline helpers cannot carry a wrap, so with a spline present the
	// location factor moves from the batches to the sum node.
	sumWraps, batchWraps := adjWraps, locWraps
	if len(splines) > 0 && len(locWraps) > 0 {
		sumWraps = append(append([]Wrap(nil), locWraps...), adjWraps...)
		batchWraps = nil
	}

	batches, err := s.Batcher.Batch(in.Base, live, batchWraps)
	if err != nil {
		return nil, err
	}
	out.Batches = len(batches)

	used := make(map[ir.ChannelID]bool)
	for _, t := range live {
		if t.Source.Kind == ir.SourceProp {
			used[t.Source.Channel] = true
		}
	}

	var inputs []ir.Binding
	n := 1
	for _, b := range batches {
		ch := nextHelper(in.Base, batchTag, &n, used)
		out.attach(ir.ChannelRef(ch), b)
		out.Helpers = append(out.Helpers, ch)
		inputs = append(inputs, ir.Binding{Source: ir.Prop(ch), Role: ir.RoleInput})
	}
	n = 1
	for _, sp := range splines {
		ch := nextHelper(in.Base, splineTag, &n, used)
		out.attach(ir.ChannelRef(ch), sp)
		out.Helpers = append(out.Helpers, ch)
		inputs = append(inputs, ir.Binding{Source: ir.Prop(ch), Role: ir.RoleInput})
	}
	if in.Remainder != nil || in.KeepRemainder {
		rem := RemainderChannel(in.Base)
		if in.Remainder != nil {
			out.attach(ir.ChannelRef(rem), in.Remainder)
		}
		inputs = append(inputs, ir.Binding{Source: ir.Prop(rem), Role: ir.RoleRemainder})
	}
	if in.Rest {
		inputs = append(inputs, ir.Binding{Source: ir.Prop(RestChannel(in.Base)), Role: ir.RoleRest})
	}

	sum, err := s.sumNode(in.Base, out.Terms, sumWraps, inputs)
	if err != nil {
		return nil, err
	}
	out.detachStale(in.PreviousHelpers)
	out.attach(in.Target, sum)
	return out, nil
}

// sumNode names the wraps first, then the inputs, and checks both ceilings.
func (s SumSynthesizer) sumNode(base string, terms int, wraps []Wrap, inputs []ir.Binding) (*ir.SumNode, error) {
	if len(wraps)+len(inputs) > s.Batcher.MaxTerms {
		return nil, NewOverflowError(base, terms,
			fmt.Sprintf("sum needs %d variables (max %d)", len(wraps)+len(inputs), s.Batcher.MaxTerms))
	}
	var fixed []string
	for _, w := range wraps {
		if w.Name != "" {
			fixed = append(fixed, w.Name)
		}
	}
	namer := NewVariableNamer(fixed...)
	node := &ir.SumNode{Precision: s.Batcher.Precision}
	var factors []string
	for _, a := range wraps {
		name := a.Name
		if name == "" {
			name, _ = namer.Next()
		}
		factors = append(factors, name)
		node.Inputs = append(node.Inputs, ir.Binding{Name: name, Source: a.Source, Role: a.Role})
	}
	sum := &ir.WeightedSum{}
	for _, in := range inputs {
		name, _ := namer.Next()
		in.Name = name
		node.Inputs = append(node.Inputs, in)
		sum.Vars = append(sum.Vars, ir.WeightedVar{Name: name, Factor: 1})
	}
	node.Expr = wrapExpr(sum, factors)
	if n := len(node.Render()); n > s.Batcher.MaxExprLen {
		return nil, NewOverflowError(base, terms,
			fmt.Sprintf("sum renders to %d characters (max %d)", n, s.Batcher.MaxExprLen))
	}
	return node, nil
}

func nextHelper(base, tag string, n *int, used map[ir.ChannelID]bool) ir.ChannelID {
	for {
		ch := HelperChannel(base, tag, *n)
		*n++
		if !used[ch] {
			return ch
		}
	}
}

func (c *Compilation) attach(t ir.TargetRef, d ir.CompiledDriver) {
	c.Attachments = append(c.Attachments, ir.Attachment{Target: t, Driver: d})
	if t == c.Target {
		c.Driver = d
	}
}

func (c *Compilation) detachStale(previous []ir.ChannelID) {
	keep := make(map[ir.ChannelID]bool, len(c.Helpers))
	for _, h := range c.Helpers {
		keep[h] = true
	}
	for _, h := range previous {
		if !keep[h] {
			c.Attachments = append(c.Attachments, ir.Attachment{Target: ir.ChannelRef(h)})
		}
	}
}

func mergeTerm(terms []ir.Term, t ir.Term) []ir.Term {
	for i := range terms {
		if terms[i].Source == t.Source && !terms[i].Neutralized {
			terms[i].Factor += t.Factor
			return terms
		}
	}
	return append(terms, t)
}
