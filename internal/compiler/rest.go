package compiler

import (
	"github.com/roach88/morphc/internal/ir"
)

// RestAccumulator collects rest-pose contributions (center_point and
// end_point outputs) apart from live-pose terms. Only activated joints get
// their contributions compiled, into the target's "#rest" channel.
type RestAccumulator struct {
	terms  *TermCollector
	active map[ir.JointID]bool
	all    bool
}

// NewRestAccumulator returns an empty accumulator with nothing activated.
func NewRestAccumulator() *RestAccumulator {
	return &RestAccumulator{terms: NewTermCollector(), active: make(map[ir.JointID]bool)}
}

// Add records a rest term for target.
func (r *RestAccumulator) Add(target ir.TargetRef, term ir.Term) {
	r.terms.Add(target, term)
}

// Activate enables compilation of j's rest contributions.
func (r *RestAccumulator) Activate(j ir.JointID) {
	r.active[j] = true
}

// ActivateAll enables every rest contribution.
func (r *RestAccumulator) ActivateAll() {
	r.all = true
}

// Active reports whether target's rest contributions are compiled.
func (r *RestAccumulator) Active(target ir.TargetRef) bool {
	return r.all || r.active[target.Joint]
}

// Targets returns the activated targets that received rest terms.
func (r *RestAccumulator) Targets() []ir.TargetRef {
	var out []ir.TargetRef
	for _, t := range r.terms.Targets() {
		if r.Active(t) {
			out = append(out, t)
		}
	}
	return out
}

// Pending returns the number of targets whose rest terms stay inactive.
func (r *RestAccumulator) Pending() int {
	n := 0
	for _, t := range r.terms.Targets() {
		if !r.Active(t) {
			n++
		}
	}
	return n
}

// Terms returns the rest terms of target.
func (r *RestAccumulator) Terms(target ir.TargetRef) []ir.Term {
	return r.terms.Terms(target)
}
