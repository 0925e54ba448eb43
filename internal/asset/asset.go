// Package asset defines the decoded morph formula graph and loads it from
// CUE asset files.
//
// An asset file declares morphs under the top-level "morph" struct:
//
//	morph: eCTRLSmile: {
//		formulas: [{
//			output: "Smile_L:?value"
//			inputs: [{ref: "eCTRLSmile:?value", factor: 0.5}]
//		}, {
//			output: "pJCMForeArmFwd:?value"
//			inputs: [{ref: "lForearmBend:?rotation/x", points: [[0, 0], [135, 1]]}]
//		}]
//	}
//
// References use the "name:?channel[/axis]" form. Channels are "value",
// "translation", "rotation", "scale", and the rest-pose offsets
// "center_point" and "end_point".
package asset

import (
	"fmt"
	"strings"

	"github.com/roach88/morphc/internal/ir"
)

// Stage selects how a formula's inputs combine with the target.
type Stage string

const (
	// StageSum inputs are added as weighted terms.
	StageSum Stage = "sum"
	// StageMult inputs multiply the whole sum (strength sliders).
	StageMult Stage = "mult"
)

// Asset is one morph asset and the formulas it contributes.
type Asset struct {
	Name     string    `json:"name"`
	File     string    `json:"file,omitempty"`
	Formulas []Formula `json:"formulas"`
}

// Formula drives one output from a list of inputs.
type Formula struct {
	Output Ref     `json:"output"`
	Stage  Stage   `json:"stage"`
	Inputs []Input `json:"inputs"`
}

// Point is a control point in asset units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Input is one formula operand. Points, when present, make the input a
// piecewise-linear function of Ref instead of a weighted term.
type Input struct {
	Ref    Ref     `json:"ref"`
	Factor float64 `json:"factor"`
	Points []Point `json:"points,omitempty"`
}

// RefKind classifies the channel part of a reference.
type RefKind int

const (
	RefValue RefKind = iota
	RefTransform
	RefRest
)

// Ref is a parsed "name:?channel/axis" reference.
type Ref struct {
	Name      string           `json:"name"`
	Kind      RefKind          `json:"kind"`
	Transform ir.TransformKind `json:"transform"`
	Axis      ir.Axis          `json:"axis"`
	Channel   string           `json:"channel"`
}

func (r Ref) String() string {
	switch r.Kind {
	case RefValue:
		return r.Name + ":?value"
	case RefTransform:
		return fmt.Sprintf("%s:?%s/%s", r.Name, r.Transform, r.Axis)
	}
	return fmt.Sprintf("%s:?%s/%s", r.Name, r.Channel, r.Axis)
}

// ParseRef parses a reference such as "lShldrBend:?rotation/z".
func ParseRef(s string) (Ref, error) {
	name, channel, ok := strings.Cut(s, ":?")
	if !ok {
		// Bare names refer to a value channel.
		if strings.TrimSpace(s) == "" {
			return Ref{}, fmt.Errorf("empty reference")
		}
		return Ref{Name: s, Kind: RefValue, Channel: "value"}, nil
	}
	if name == "" {
		return Ref{}, fmt.Errorf("reference %q: missing name", s)
	}
	if channel == "value" {
		return Ref{Name: name, Kind: RefValue, Channel: channel}, nil
	}

	prop, axisStr, ok := strings.Cut(channel, "/")
	if !ok {
		return Ref{}, fmt.Errorf("reference %q: channel %q needs an axis", s, channel)
	}
	axis, err := ir.ParseAxis(axisStr)
	if err != nil {
		return Ref{}, fmt.Errorf("reference %q: %w", s, err)
	}

	// Both rest offsets shift the joint's one rest translation, so they land
	// on the same target and sum there. Channel keeps the original name.
	switch prop {
	case "center_point", "end_point":
		return Ref{Name: name, Kind: RefRest, Transform: ir.Translation, Axis: axis, Channel: prop}, nil
	}
	kind, err := ir.ParseTransformKind(prop)
	if err != nil {
		return Ref{}, fmt.Errorf("reference %q: %w", s, err)
	}
	return Ref{Name: name, Kind: RefTransform, Transform: kind, Axis: axis, Channel: prop}, nil
}
