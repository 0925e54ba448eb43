package ir

// DriverKind tags the CompiledDriver union.
type DriverKind string

const (
	KindBatch  DriverKind = "batch"
	KindSum    DriverKind = "sum"
	KindSpline DriverKind = "spline"
	KindOpaque DriverKind = "opaque"
)

// CompiledDriver is what gets attached to a TargetRef.
// Only *Batch, *SumNode, *SplineDriver and *Opaque implement this.
type CompiledDriver interface {
	Kind() DriverKind

	// Render returns the scripted-expression text.
	Render() string

	// Bindings returns the variables referenced by Render, in name order
	// of first appearance.
	Bindings() []Binding

	driver() // Sealed
}

// Batch is one size-bounded weighted-sum expression.
type Batch struct {
	Variables []Binding `json:"variables"`
	Expr      Expr      `json:"expr"`
	Precision int       `json:"precision"`
}

func (*Batch) driver() {}
func (*Batch) Kind() DriverKind { return KindBatch }
func (b *Batch) Render() string { return Render(b.Expr, precisionOr(b.Precision)) }
func (b *Batch) Bindings() []Binding { return cloneBindings(b.Variables) }

// Terms returns the (Source, factor) pairs of the batch's term variables.
// Adjuster and location variables are not terms.
func (b *Batch) Terms() []Term {
	factors := FactorsOf(b.Expr)
	var terms []Term
	for _, v := range b.Variables {
		if v.Role != RoleTerm {
			continue
		}
		f, ok := factors[v.Name]
		if !ok {
			continue
		}
		terms = append(terms, Term{Source: v.Source, Factor: f})
	}
	return terms
}

// SumNode aggregates batch outputs, spline outputs, a remainder and an
// optional rest channel with unit weight.
type SumNode struct {
	Inputs    []Binding `json:"inputs"`
	Expr      Expr      `json:"expr"`
	Precision int       `json:"precision"`
}

func (*SumNode) driver() {}
func (*SumNode) Kind() DriverKind { return KindSum }
func (s *SumNode) Render() string { return Render(s.Expr, precisionOr(s.Precision)) }
func (s *SumNode) Bindings() []Binding { return cloneBindings(s.Inputs) }

// Point is a spline control point in runtime units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SplineDriver is a piecewise-linear function of a single Source.
type SplineDriver struct {
	Source    Source          `json:"source"`
	Var       string          `json:"var"`
	Direction Direction       `json:"direction"`
	Segments  []SplineSegment `json:"segments"`
	Else      float64         `json:"else"`
	Points    []Point         `json:"points"`
	Precision int             `json:"precision"`
}

func (*SplineDriver) driver() {}
func (*SplineDriver) Kind() DriverKind { return KindSpline }

// Conditional returns the AST form of the spline.
func (s *SplineDriver) Conditional() *Conditional {
	return &Conditional{Var: s.Var, Direction: s.Direction, Segments: s.Segments, Else: s.Else}
}

func (s *SplineDriver) Render() string {
	return Render(s.Conditional(), precisionOr(s.Precision))
}

func (s *SplineDriver) Bindings() []Binding {
	return []Binding{{Name: s.Var, Source: s.Source, Role: RoleTerm}}
}

// Opaque is a driver this compiler did not produce. It is carried verbatim.
type Opaque struct {
	Text string    `json:"text"`
	Vars []Binding `json:"vars"`
}

func (*Opaque) driver() {}
func (*Opaque) Kind() DriverKind { return KindOpaque }
func (o *Opaque) Render() string { return o.Text }
func (o *Opaque) Bindings() []Binding { return cloneBindings(o.Vars) }

// FactorsOf returns name -> factor for every weighted variable of a sum,
// looking through Scaled wrappers.
func FactorsOf(e Expr) map[string]float64 {
	out := make(map[string]float64)
	for {
		switch x := e.(type) {
		case *Scaled:
			e = x.Inner
			continue
		case *WeightedSum:
			for _, v := range x.Vars {
				out[v.Name] += v.Factor
			}
		}
		return out
	}
}

// ScaleFactors returns the multiplicative variable names wrapping e.
func ScaleFactors(e Expr) []string {
	var names []string
	for {
		s, ok := e.(*Scaled)
		if !ok {
			return names
		}
		names = append(names, s.Factors...)
		e = s.Inner
	}
}

func precisionOr(p int) int {
	if p <= 0 {
		return DefaultPrecision
	}
	return p
}

func cloneBindings(b []Binding) []Binding {
	out := make([]Binding, len(b))
	copy(out, b)
	return out
}
