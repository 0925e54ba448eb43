package compiler

import (
	"fmt"

	"github.com/roach88/morphc/internal/ir"
)

// Batcher splits a term list into size-bounded weighted-sum expressions.
type Batcher struct {
	MaxTerms   int
	MaxExprLen int
	Precision  int
}

// Wrap is a multiplicative variable placed around a batch, "L*(...)".
// An empty Name is filled from the batch's namer.
type Wrap struct {
	Name   string
	Source ir.Source
	Role   ir.Role
}

// Batch packs terms greedily, in order, into as few batches as the ceilings
// allow. Every wrap is repeated on every batch and counts against both
// ceilings. Zero-weight and neutralized terms are dropped; an empty result
// means nothing needs to be attached.
func (b Batcher) Batch(target string, terms []ir.Term, wraps []Wrap) ([]*ir.Batch, error) {
	live := LiveTerms(terms, b.Precision)
	if len(live) == 0 {
		return nil, nil
	}
	if len(wraps) >= b.MaxTerms {
		return nil, NewOverflowError(target, len(live),
			fmt.Sprintf("%d adjusters leave no room for terms (max %d variables)", len(wraps), b.MaxTerms))
	}

	var batches []*ir.Batch
	for i := 0; i < len(live); {
		batch, n := b.fill(live[i:], wraps)
		if n == 0 {
			return nil, NewOverflowError(target, len(live),
				fmt.Sprintf("term %s does not fit in %d characters", live[i].Source, b.MaxExprLen))
		}
		batches = append(batches, batch)
		i += n
	}
	return batches, nil
}

// fill builds one batch from the head of terms and returns how many terms
// it took.
func (b Batcher) fill(terms []ir.Term, wraps []Wrap) (*ir.Batch, int) {
	var fixed []string
	for _, w := range wraps {
		if w.Name != "" {
			fixed = append(fixed, w.Name)
		}
	}
	namer := NewVariableNamer(fixed...)

	batch := &ir.Batch{Precision: b.Precision}
	var factors []string
	for _, w := range wraps {
		name := w.Name
		if name == "" {
			name, _ = namer.Next()
		}
		factors = append(factors, name)
		batch.Variables = append(batch.Variables, ir.Binding{Name: name, Source: w.Source, Role: w.Role})
	}

	sum := &ir.WeightedSum{}
	batch.Expr = wrapExpr(sum, factors)
	n := 0
	for _, t := range terms {
		if len(batch.Variables)+1 > b.MaxTerms {
			break
		}
		name, ok := namer.Next()
		if !ok {
			break
		}
		sum.Vars = append(sum.Vars, ir.WeightedVar{Name: name, Factor: t.Factor})
		if len(batch.Render()) > b.MaxExprLen {
			sum.Vars = sum.Vars[:len(sum.Vars)-1]
			break
		}
		batch.Variables = append(batch.Variables, ir.Binding{Name: name, Source: t.Source, Role: ir.RoleTerm})
		n++
	}
	return batch, n
}

func wrapExpr(inner ir.Expr, factors []string) ir.Expr {
	if len(factors) == 0 {
		return inner
	}
	return &ir.Scaled{Factors: factors, Inner: inner}
}

// LiveTerms drops neutralized terms and terms whose factor renders as zero.
func LiveTerms(terms []ir.Term, precision int) []ir.Term {
	var out []ir.Term
	for _, t := range terms {
		if t.Neutralized || ir.FormatNumber(t.Factor, precision) == "0" {
			continue
		}
		out = append(out, t)
	}
	return out
}
