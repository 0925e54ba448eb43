package ir

import (
	"fmt"
	"strconv"
)

// ChannelID is the canonical name of a scalar channel.
type ChannelID string

// JointID is an index into the joint arena (see Hierarchy).
type JointID int

// NoJoint marks the absence of a joint (root parent, unresolved reference).
const NoJoint JointID = -1

// TransformKind selects one of a joint's local transform components.
type TransformKind int

const (
	Translation TransformKind = iota
	Rotation
	Scale
)

var transformKindNames = [...]string{"translation", "rotation", "scale"}

func (k TransformKind) String() string {
	if k < 0 || int(k) >= len(transformKindNames) {
		return fmt.Sprintf("transform(%d)", int(k))
	}
	return transformKindNames[k]
}

// ParseTransformKind parses "translation", "rotation" or "scale".
func ParseTransformKind(s string) (TransformKind, error) {
	for i, name := range transformKindNames {
		if name == s {
			return TransformKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown transform kind %q", s)
}

// Axis is a transform component index: 0=x, 1=y, 2=z.
type Axis int

// String returns "x", "y" or "z".
func (a Axis) String() string {
	switch a {
	case 0:
		return "x"
	case 1:
		return "y"
	case 2:
		return "z"
	}
	return strconv.Itoa(int(a))
}

// ParseAxis parses "x", "y", "z" (or "0".."2").
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "0":
		return 0, nil
	case "y", "1":
		return 1, nil
	case "z", "2":
		return 2, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// SourceKind tags the Source union.
type SourceKind int

const (
	SourceProp SourceKind = iota
	SourceJointAxis
)

// Source is a driver input: a channel, or one axis of a joint's local transform.
//
// Source is comparable and is used directly as a map key for deduplication.
// Only the fields belonging to Kind are meaningful; constructors zero the rest.
type Source struct {
	Kind       SourceKind    `json:"kind"`
	Channel    ChannelID     `json:"channel,omitempty"`
	Joint      JointID       `json:"joint"`
	Transform  TransformKind `json:"transform"`
	Axis       Axis          `json:"axis"`
	UnitFactor float64       `json:"unit_factor,omitempty"`
}

// Prop returns a channel source.
func Prop(ch ChannelID) Source {
	return Source{Kind: SourceProp, Channel: ch, Joint: NoJoint}
}

// JointAxis returns a joint transform component source.
func JointAxis(j JointID, kind TransformKind, axis Axis, unit float64) Source {
	return Source{Kind: SourceJointAxis, Joint: j, Transform: kind, Axis: axis, UnitFactor: unit}
}

func (s Source) String() string {
	if s.Kind == SourceProp {
		return "prop:" + string(s.Channel)
	}
	return fmt.Sprintf("joint:%d.%s.%s", s.Joint, s.Transform, s.Axis)
}

// Term is one weighted contribution of a Source to a target.
type Term struct {
	Source Source  `json:"source"`
	Factor float64 `json:"factor"`

	// Neutralized is set when the term was replaced by the constant 0
	// to break a joint dependency cycle.
	Neutralized bool `json:"neutralized,omitempty"`
}

// TargetKind tags the TargetRef union.
type TargetKind int

const (
	ChannelTarget TargetKind = iota
	JointChannelTarget
)

// TargetRef identifies the value a compiled driver is attached to.
type TargetRef struct {
	Kind      TargetKind    `json:"kind"`
	Channel   ChannelID     `json:"channel,omitempty"`
	Joint     JointID       `json:"joint"`
	Transform TransformKind `json:"transform"`
	Axis      Axis          `json:"axis"`
}

// ChannelRef returns a channel target.
func ChannelRef(ch ChannelID) TargetRef {
	return TargetRef{Kind: ChannelTarget, Channel: ch, Joint: NoJoint}
}

// JointRef returns a joint transform component target.
func JointRef(j JointID, kind TransformKind, axis Axis) TargetRef {
	return TargetRef{Kind: JointChannelTarget, Joint: j, Transform: kind, Axis: axis}
}

// Key is the stable string identity of the target. Helper channels
// synthesized for a target are named after it.
func (t TargetRef) Key() string {
	if t.Kind == ChannelTarget {
		return string(t.Channel)
	}
	return fmt.Sprintf("@%d.%s.%s", t.Joint, t.Transform, t.Axis)
}

func (t TargetRef) String() string {
	return t.Key()
}

// Source returns the Source that reads this target's value.
func (t TargetRef) Source(unit float64) Source {
	if t.Kind == ChannelTarget {
		return Prop(t.Channel)
	}
	return JointAxis(t.Joint, t.Transform, t.Axis, unit)
}

// Role says why a variable is bound in a driver.
type Role string

const (
	RoleTerm      Role = "term"
	RoleAdjuster  Role = "adjuster"
	RoleLocation  Role = "location"
	RoleInput     Role = "input"
	RoleRemainder Role = "remainder"
	RoleRest      Role = "rest"
)

// Binding ties an expression variable name to its Source.
type Binding struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
	Role   Role   `json:"role"`
}

// Attachment is one atomic replace (or detach, when Driver is nil) of the
// driver on Target.
type Attachment struct {
	Target TargetRef
	Driver CompiledDriver
}

// JointPair is a joint target and the descendant joint whose transform
// drove it. A broken pair stays broken: its terms are neutralized on every
// later import without moving the descendant again.
type JointPair struct {
	Driven JointID `json:"driven"`
	Driver JointID `json:"driver"`
}
