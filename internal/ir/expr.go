package ir

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPrecision is the number of decimals used for numeric literals.
const DefaultPrecision = 8

// Expr is the internal expression AST. It is rendered to text only at the
// channel store boundary.
// Only WeightedSum, Scaled, Conditional and Constant implement this.
type Expr interface {
	exprNode() // Sealed
}

// WeightedVar is one "factor*name" summand.
type WeightedVar struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// WeightedSum renders as "a+0.5*b-c". An empty sum renders as "0".
type WeightedSum struct {
	Vars []WeightedVar `json:"vars"`
}

func (*WeightedSum) exprNode() {}

// Scaled multiplies Inner by each named variable: "g*L*(inner)".
type Scaled struct {
	Factors []string `json:"factors"`
	Inner   Expr     `json:"inner"`
}

func (*Scaled) exprNode() {}

// Direction is the comparison used by a conditional chain.
type Direction string

const (
	Ascending  Direction = "<"
	Descending Direction = ">"
)

// SplineSegment is one linear piece: slope*x+offset while x has not
// crossed Threshold.
type SplineSegment struct {
	Threshold float64 `json:"threshold"`
	Slope     float64 `json:"slope"`
	Offset    float64 `json:"offset"`
}

// Conditional is a nested "lin if x<t else ..." chain over one variable.
type Conditional struct {
	Var       string          `json:"var"`
	Direction Direction       `json:"direction"`
	Segments  []SplineSegment `json:"segments"`
	Else      float64         `json:"else"`
}

func (*Conditional) exprNode() {}

// Constant is a literal value.
type Constant struct {
	Value float64 `json:"value"`
}

func (*Constant) exprNode() {}

// FormatNumber renders f with fixed precision and trailing zeros trimmed.
func FormatNumber(f float64, precision int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" || s == "" {
		s = "0"
	}
	return s
}

// Render produces the scripted-expression text for e.
func Render(e Expr, precision int) string {
	var b strings.Builder
	render(&b, e, precision)
	return b.String()
}

func render(b *strings.Builder, e Expr, precision int) {
	switch x := e.(type) {
	case *WeightedSum:
		renderSum(b, x, precision)
	case *Scaled:
		for _, f := range x.Factors {
			b.WriteString(f)
			b.WriteByte('*')
		}
		b.WriteByte('(')
		render(b, x.Inner, precision)
		b.WriteByte(')')
	case *Conditional:
		renderConditional(b, x, precision)
	case *Constant:
		b.WriteString(FormatNumber(x.Value, precision))
	default:
		b.WriteString("0")
	}
}

func renderSum(b *strings.Builder, s *WeightedSum, precision int) {
	n := 0
	for _, v := range s.Vars {
		lit := FormatNumber(v.Factor, precision)
		if lit == "0" {
			continue
		}
		switch {
		case v.Factor == 1:
			if n > 0 {
				b.WriteByte('+')
			}
		case v.Factor == -1:
			b.WriteByte('-')
		default:
			if lit[0] != '-' && n > 0 {
				b.WriteByte('+')
			}
			b.WriteString(lit)
			b.WriteByte('*')
		}
		b.WriteString(v.Name)
		n++
	}
	if n == 0 {
		b.WriteByte('0')
	}
}

// renderConditional writes "(o0 if a<t0 else s1*a+o1 if a<t1 else e)".
func renderConditional(b *strings.Builder, c *Conditional, precision int) {
	b.WriteByte('(')
	for _, seg := range c.Segments {
		renderLinear(b, c.Var, seg.Slope, seg.Offset, precision)
		b.WriteString(" if ")
		b.WriteString(c.Var)
		b.WriteString(string(c.Direction))
		b.WriteString(FormatNumber(seg.Threshold, precision))
		b.WriteString(" else ")
	}
	b.WriteString(FormatNumber(c.Else, precision))
	b.WriteByte(')')
}

func renderLinear(b *strings.Builder, name string, slope, offset float64, precision int) {
	slopeLit := FormatNumber(slope, precision)
	offLit := FormatNumber(offset, precision)
	switch {
	case slopeLit == "0":
		b.WriteString(offLit)
		return
	case slope == 1:
		b.WriteString(name)
	case slope == -1:
		b.WriteByte('-')
		b.WriteString(name)
	default:
		b.WriteString(slopeLit)
		b.WriteByte('*')
		b.WriteString(name)
	}
	if offLit == "0" {
		return
	}
	if offLit[0] != '-' {
		b.WriteByte('+')
	}
	b.WriteString(offLit)
}
