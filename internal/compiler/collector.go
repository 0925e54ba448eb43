package compiler

import (
	"github.com/roach88/morphc/internal/ir"
)

// SplineContribution is a piecewise-linear input to a target.
type SplineContribution struct {
	Source ir.Source
	Points []ir.Point
}

type contribution struct {
	term      ir.Term
	spline    *SplineContribution
	recovered bool
	removed   bool
}

func (c *contribution) source() ir.Source {
	if c.spline != nil {
		return c.spline.Source
	}
	return c.term.Source
}

// targetEntry is everything known about one target in a session.
type targetEntry struct {
	target    ir.TargetRef
	contribs  []*contribution
	terms     map[ir.Source]*contribution
	adjusters []ir.Source
	adjSeen   map[ir.Source]bool

	// seeded marks entries whose raw channel term came from ingest, so a
	// repeated seed does not add up.
	seeded map[ir.Source]bool

	// recovery bookkeeping, set by Merge
	recoveredDone bool
	remainder     ir.CompiledDriver
	keepRemainder bool
	keepRest      bool
	helpers       []ir.ChannelID
}

func newTargetEntry(t ir.TargetRef) *targetEntry {
	return &targetEntry{
		target:  t,
		terms:   make(map[ir.Source]*contribution),
		adjSeen: make(map[ir.Source]bool),
		seeded:  make(map[ir.Source]bool),
	}
}

// Terms returns the live term contributions in first-insertion order.
func (e *targetEntry) Terms() []ir.Term {
	var out []ir.Term
	for _, c := range e.contribs {
		if !c.removed && c.spline == nil {
			out = append(out, c.term)
		}
	}
	return out
}

// Splines returns the live spline contributions in first-insertion order.
func (e *targetEntry) Splines() []SplineContribution {
	var out []SplineContribution
	for _, c := range e.contribs {
		if !c.removed && c.spline != nil {
			out = append(out, *c.spline)
		}
	}
	return out
}

// Adjusters returns the adjuster sources, deduplicated.
func (e *targetEntry) Adjusters() []ir.Source {
	return append([]ir.Source(nil), e.adjusters...)
}

// replaceRecovered drops recovered contributions for src; a fresh
// contribution supersedes what the attached driver already held.
func (e *targetEntry) replaceRecovered(src ir.Source) {
	for _, c := range e.contribs {
		if c.recovered && !c.removed && c.source() == src {
			c.removed = true
			if c.spline == nil {
				delete(e.terms, src)
			}
		}
	}
}

func (e *targetEntry) addTerm(t ir.Term) {
	e.replaceRecovered(t.Source)
	if c, ok := e.terms[t.Source]; ok {
		c.term.Factor += t.Factor
		c.term.Neutralized = c.term.Neutralized && t.Neutralized
		return
	}
	c := &contribution{term: t}
	e.terms[t.Source] = c
	e.contribs = append(e.contribs, c)
}

func (e *targetEntry) addSpline(s SplineContribution) {
	e.replaceRecovered(s.Source)
	e.contribs = append(e.contribs, &contribution{spline: &s})
}

func (e *targetEntry) addAdjuster(src ir.Source) {
	if e.adjSeen[src] {
		return
	}
	e.adjSeen[src] = true
	e.adjusters = append(e.adjusters, src)
}

// TermCollector accumulates contributions per target for one session.
type TermCollector struct {
	entries map[ir.TargetRef]*targetEntry
	order   []ir.TargetRef
}

// NewTermCollector returns an empty collector.
func NewTermCollector() *TermCollector {
	return &TermCollector{entries: make(map[ir.TargetRef]*targetEntry)}
}

func (c *TermCollector) entry(t ir.TargetRef) *targetEntry {
	e, ok := c.entries[t]
	if !ok {
		e = newTargetEntry(t)
		c.entries[t] = e
		c.order = append(c.order, t)
	}
	return e
}

// Touch registers target without adding anything to it.
func (c *TermCollector) Touch(t ir.TargetRef) {
	c.entry(t)
}

// Add records a term. The same source added twice in a session sums.
func (c *TermCollector) Add(t ir.TargetRef, term ir.Term) {
	c.entry(t).addTerm(term)
}

// Seed records a term once per session no matter how often it is seeded.
func (c *TermCollector) Seed(t ir.TargetRef, term ir.Term) {
	e := c.entry(t)
	if e.seeded[term.Source] {
		return
	}
	e.seeded[term.Source] = true
	e.addTerm(term)
}

// AddSpline records a spline contribution.
func (c *TermCollector) AddSpline(t ir.TargetRef, s SplineContribution) {
	c.entry(t).addSpline(s)
}

// AddAdjuster records a multiplicative adjuster; duplicates are ignored.
func (c *TermCollector) AddAdjuster(t ir.TargetRef, src ir.Source) {
	c.entry(t).addAdjuster(src)
}

// Targets returns every touched target in first-insertion order.
func (c *TermCollector) Targets() []ir.TargetRef {
	return append([]ir.TargetRef(nil), c.order...)
}

// Terms returns the live terms of t.
func (c *TermCollector) Terms(t ir.TargetRef) []ir.Term {
	if e, ok := c.entries[t]; ok {
		return e.Terms()
	}
	return nil
}

// Splines returns the spline contributions of t.
func (c *TermCollector) Splines(t ir.TargetRef) []SplineContribution {
	if e, ok := c.entries[t]; ok {
		return e.Splines()
	}
	return nil
}

// Adjusters returns the adjusters of t.
func (c *TermCollector) Adjusters(t ir.TargetRef) []ir.Source {
	if e, ok := c.entries[t]; ok {
		return e.Adjusters()
	}
	return nil
}

// Merge folds what was recovered from t's attached driver into the entry.
// Recovered contributions come before session contributions and are
// replaced, not summed, by a session contribution for the same source.
func (c *TermCollector) Merge(t ir.TargetRef, rec *Recovered) {
	e := c.entry(t)
	if e.recoveredDone || rec == nil {
		return
	}
	e.recoveredDone = true

	var prefix []*contribution
	for _, term := range rec.Terms {
		if _, fresh := e.terms[term.Source]; fresh || hasSpline(e, term.Source) {
			continue
		}
		rc := &contribution{term: term, recovered: true}
		e.terms[term.Source] = rc
		prefix = append(prefix, rc)
	}
	for _, s := range rec.Splines {
		if _, fresh := e.terms[s.Source]; fresh || hasSpline(e, s.Source) {
			continue
		}
		s := s
		prefix = append(prefix, &contribution{spline: &s, recovered: true})
	}
	e.contribs = append(prefix, e.contribs...)

	for _, a := range rec.Adjusters {
		e.addAdjuster(a)
	}
	e.remainder = rec.Remainder
	e.keepRemainder = rec.KeepRemainder
	e.keepRest = rec.KeepRest
	e.helpers = rec.Helpers
}

func hasSpline(e *targetEntry, src ir.Source) bool {
	for _, c := range e.contribs {
		if !c.removed && c.spline != nil && c.spline.Source == src {
			return true
		}
	}
	return false
}
