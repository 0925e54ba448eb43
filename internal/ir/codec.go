package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire form of drivers. Floats travel as shortest round-trip strings so the
// canonical encoding stays integer-only.

type wireSource struct {
	Kind      string `json:"kind"`
	Channel   string `json:"channel,omitempty"`
	Joint     int    `json:"joint"`
	Transform string `json:"transform,omitempty"`
	Axis      int    `json:"axis"`
	Unit      string `json:"unit,omitempty"`
}

type wireBinding struct {
	Name   string     `json:"name"`
	Role   string     `json:"role"`
	Source wireSource `json:"source"`
}

type wireVar struct {
	Name   string `json:"name"`
	Factor string `json:"factor"`
}

type wireSegment struct {
	Threshold string `json:"threshold"`
	Slope     string `json:"slope"`
	Offset    string `json:"offset"`
}

type wireExpr struct {
	Op        string        `json:"op"`
	Vars      []wireVar     `json:"vars,omitempty"`
	Factors   []string      `json:"factors,omitempty"`
	Inner     *wireExpr     `json:"inner,omitempty"`
	Var       string        `json:"var,omitempty"`
	Direction string        `json:"direction,omitempty"`
	Segments  []wireSegment `json:"segments,omitempty"`
	Value     string        `json:"value,omitempty"`
}

type wireDriver struct {
	Kind      string        `json:"kind"`
	Version   string        `json:"version"`
	Bindings  []wireBinding `json:"bindings"`
	Expr      *wireExpr     `json:"expr,omitempty"`
	Precision int           `json:"precision,omitempty"`
	Points    [][2]string   `json:"points,omitempty"`
	Text      string        `json:"text,omitempty"`
}

// MarshalDriver encodes a driver as canonical JSON.
func MarshalDriver(d CompiledDriver) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("marshal driver: nil driver")
	}
	w := wireDriver{Kind: string(d.Kind()), Version: IRVersion, Bindings: []wireBinding{}}
	for _, b := range d.Bindings() {
		w.Bindings = append(w.Bindings, toWireBinding(b))
	}
	switch x := d.(type) {
	case *Batch:
		w.Expr = toWireExpr(x.Expr)
		w.Precision = x.Precision
	case *SumNode:
		w.Expr = toWireExpr(x.Expr)
		w.Precision = x.Precision
	case *SplineDriver:
		w.Expr = toWireExpr(x.Conditional())
		w.Precision = x.Precision
		for _, p := range x.Points {
			w.Points = append(w.Points, [2]string{fstr(p.X), fstr(p.Y)})
		}
	case *Opaque:
		w.Text = x.Text
	}
	data, err := canonicalize(w)
	if err != nil {
		return nil, fmt.Errorf("marshal driver: %w", err)
	}
	return data, nil
}

// UnmarshalDriver decodes a driver produced by MarshalDriver.
func UnmarshalDriver(data []byte) (CompiledDriver, error) {
	var w wireDriver
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal driver: %w", err)
	}
	bindings := make([]Binding, 0, len(w.Bindings))
	for i, wb := range w.Bindings {
		b, err := fromWireBinding(wb)
		if err != nil {
			return nil, fmt.Errorf("unmarshal driver: bindings[%d]: %w", i, err)
		}
		bindings = append(bindings, b)
	}

	switch DriverKind(w.Kind) {
	case KindBatch, KindSum:
		expr, err := fromWireExpr(w.Expr)
		if err != nil {
			return nil, fmt.Errorf("unmarshal driver: %w", err)
		}
		if DriverKind(w.Kind) == KindBatch {
			return &Batch{Variables: bindings, Expr: expr, Precision: w.Precision}, nil
		}
		return &SumNode{Inputs: bindings, Expr: expr, Precision: w.Precision}, nil

	case KindSpline:
		expr, err := fromWireExpr(w.Expr)
		if err != nil {
			return nil, fmt.Errorf("unmarshal driver: %w", err)
		}
		cond, ok := expr.(*Conditional)
		if !ok || len(bindings) != 1 {
			return nil, fmt.Errorf("unmarshal driver: malformed spline")
		}
		s := &SplineDriver{
			Source:    bindings[0].Source,
			Var:       cond.Var,
			Direction: cond.Direction,
			Segments:  cond.Segments,
			Else:      cond.Else,
			Precision: w.Precision,
		}
		for _, p := range w.Points {
			x, err := parseF(p[0])
			if err != nil {
				return nil, fmt.Errorf("unmarshal driver: %w", err)
			}
			y, err := parseF(p[1])
			if err != nil {
				return nil, fmt.Errorf("unmarshal driver: %w", err)
			}
			s.Points = append(s.Points, Point{X: x, Y: y})
		}
		return s, nil

	case KindOpaque:
		return &Opaque{Text: w.Text, Vars: bindings}, nil
	}
	return nil, fmt.Errorf("unmarshal driver: unknown kind %q", w.Kind)
}

func toWireBinding(b Binding) wireBinding {
	ws := wireSource{Joint: int(b.Source.Joint), Axis: int(b.Source.Axis)}
	if b.Source.Kind == SourceProp {
		ws.Kind = "prop"
		ws.Channel = string(b.Source.Channel)
	} else {
		ws.Kind = "joint"
		ws.Transform = b.Source.Transform.String()
		ws.Unit = fstr(b.Source.UnitFactor)
	}
	return wireBinding{Name: b.Name, Role: string(b.Role), Source: ws}
}

func fromWireBinding(w wireBinding) (Binding, error) {
	b := Binding{Name: w.Name, Role: Role(w.Role)}
	switch w.Source.Kind {
	case "prop":
		b.Source = Prop(ChannelID(w.Source.Channel))
	case "joint":
		kind, err := ParseTransformKind(w.Source.Transform)
		if err != nil {
			return b, err
		}
		unit, err := parseF(w.Source.Unit)
		if err != nil {
			return b, err
		}
		b.Source = JointAxis(JointID(w.Source.Joint), kind, Axis(w.Source.Axis), unit)
	default:
		return b, fmt.Errorf("unknown source kind %q", w.Source.Kind)
	}
	return b, nil
}

func toWireExpr(e Expr) *wireExpr {
	switch x := e.(type) {
	case *WeightedSum:
		w := &wireExpr{Op: "sum"}
		for _, v := range x.Vars {
			w.Vars = append(w.Vars, wireVar{Name: v.Name, Factor: fstr(v.Factor)})
		}
		return w
	case *Scaled:
		return &wireExpr{Op: "scaled", Factors: x.Factors, Inner: toWireExpr(x.Inner)}
	case *Conditional:
		w := &wireExpr{Op: "cond", Var: x.Var, Direction: string(x.Direction), Value: fstr(x.Else)}
		for _, s := range x.Segments {
			w.Segments = append(w.Segments, wireSegment{
				Threshold: fstr(s.Threshold),
				Slope:     fstr(s.Slope),
				Offset:    fstr(s.Offset),
			})
		}
		return w
	case *Constant:
		return &wireExpr{Op: "const", Value: fstr(x.Value)}
	}
	return nil
}

func fromWireExpr(w *wireExpr) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("missing expression")
	}
	switch w.Op {
	case "sum":
		s := &WeightedSum{}
		for _, v := range w.Vars {
			f, err := parseF(v.Factor)
			if err != nil {
				return nil, err
			}
			s.Vars = append(s.Vars, WeightedVar{Name: v.Name, Factor: f})
		}
		return s, nil
	case "scaled":
		inner, err := fromWireExpr(w.Inner)
		if err != nil {
			return nil, err
		}
		return &Scaled{Factors: w.Factors, Inner: inner}, nil
	case "cond":
		c := &Conditional{Var: w.Var, Direction: Direction(w.Direction)}
		var err error
		if c.Else, err = parseF(w.Value); err != nil {
			return nil, err
		}
		for _, ws := range w.Segments {
			var seg SplineSegment
			if seg.Threshold, err = parseF(ws.Threshold); err != nil {
				return nil, err
			}
			if seg.Slope, err = parseF(ws.Slope); err != nil {
				return nil, err
			}
			if seg.Offset, err = parseF(ws.Offset); err != nil {
				return nil, err
			}
			c.Segments = append(c.Segments, seg)
		}
		return c, nil
	case "const":
		v, err := parseF(w.Value)
		if err != nil {
			return nil, err
		}
		return &Constant{Value: v}, nil
	}
	return nil, fmt.Errorf("unknown expression op %q", w.Op)
}

func fstr(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseF(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}
