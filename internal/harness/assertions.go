package harness

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/morphc/internal/asset"
	"github.com/roach88/morphc/internal/compiler"
	"github.com/roach88/morphc/internal/ir"
	"github.com/roach88/morphc/internal/scene"
)

// defaultTolerance is used by value assertions that don't set one.
const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes the attached drivers to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Drivers  []string // Attached drivers, "target = text"
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Drivers) > 0 {
		fmt.Fprintf(&buf, "\nDrivers:\n")
		for _, d := range e.Drivers {
			fmt.Fprintf(&buf, "  %s\n", d)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the scene and the last
// pass's report, returning one message per failure.
func EvaluateAssertions(mem *scene.Memory, report *compiler.Report, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(mem, report, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion[%d] (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluateAssertion(mem *scene.Memory, report *compiler.Report, a Assertion) error {
	switch a.Type {
	case AssertValue:
		return assertValue(mem, a)
	case AssertDriver:
		return assertDriver(mem, a)
	case AssertDetached:
		return assertDetached(mem, a)
	case AssertProblems:
		return assertProblems(report, a)
	case AssertParent:
		return assertParent(mem, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertValue evaluates the target with the assertion's channel values set
// and restores the previous values afterwards.
func assertValue(mem *scene.Memory, a Assertion) error {
	t, err := ParseTarget(mem, a.Target)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(a.Set))
	for name := range a.Set {
		names = append(names, name)
	}
	sort.Strings(names)
	previous := make(map[string]float64, len(names))
	for _, name := range names {
		if c, ok := mem.Channel(name); ok {
			previous[name] = c.Value
		}
		mem.SetValue(name, a.Set[name])
	}
	defer func() {
		for _, name := range names {
			mem.SetValue(name, previous[name])
		}
	}()

	got, err := mem.Frame().Value(t)
	if err != nil {
		return err
	}
	tol := a.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	if math.Abs(got-*a.Expect) > tol {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %g (±%g) with %v", a.Target, *a.Expect, tol, a.Set),
			Actual:   fmt.Sprintf("%s = %g", a.Target, got),
			Drivers:  DescribeDrivers(mem),
		}
	}
	return nil
}

func assertDriver(mem *scene.Memory, a Assertion) error {
	t, err := ParseTarget(mem, a.Target)
	if err != nil {
		return err
	}
	d, ok, err := mem.AttachedDriver(context.Background(), t)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{
			Type:     AssertDriver,
			Expected: fmt.Sprintf("%s driven by a %s driver", a.Target, a.Kind),
			Actual:   "no driver attached",
			Drivers:  DescribeDrivers(mem),
		}
	}
	if string(d.Kind()) != a.Kind || (a.Text != "" && d.Render() != a.Text) {
		expected := fmt.Sprintf("%s driver", a.Kind)
		if a.Text != "" {
			expected = fmt.Sprintf("%s driver %q", a.Kind, a.Text)
		}
		return &AssertionError{
			Type:     AssertDriver,
			Expected: expected,
			Actual:   fmt.Sprintf("%s driver %q", d.Kind(), d.Render()),
		}
	}
	return nil
}

func assertDetached(mem *scene.Memory, a Assertion) error {
	t, err := ParseTarget(mem, a.Target)
	if err != nil {
		return err
	}
	d, ok, err := mem.AttachedDriver(context.Background(), t)
	if err != nil {
		return err
	}
	if ok {
		return &AssertionError{
			Type:     AssertDetached,
			Expected: fmt.Sprintf("%s has no driver", a.Target),
			Actual:   fmt.Sprintf("%s driver %q", d.Kind(), d.Render()),
		}
	}
	return nil
}

func assertProblems(report *compiler.Report, a Assertion) error {
	got := 0
	if report != nil {
		got = report.Count(compiler.ErrorCode(a.Code))
	}
	if got != a.Count {
		var problems []string
		if report != nil {
			for _, p := range report.Problems {
				problems = append(problems, p.Error())
			}
		}
		return &AssertionError{
			Type:     AssertProblems,
			Expected: fmt.Sprintf("%d %s problems", a.Count, a.Code),
			Actual:   fmt.Sprintf("%d: %s", got, strings.Join(problems, "; ")),
		}
	}
	return nil
}

func assertParent(mem *scene.Memory, a Assertion) error {
	h, err := mem.Hierarchy(context.Background())
	if err != nil {
		return err
	}
	j, ok := h.Lookup(a.Joint)
	if !ok {
		return fmt.Errorf("joint %q: %w", a.Joint, ir.ErrNotFound)
	}
	got := ""
	if p := h.ParentOf(j); p != ir.NoJoint {
		got = h.Name(p)
	}
	if got != a.Parent {
		return &AssertionError{
			Type:     AssertParent,
			Expected: fmt.Sprintf("%s parented to %q", a.Joint, a.Parent),
			Actual:   fmt.Sprintf("parented to %q", got),
		}
	}
	return nil
}

// ParseTarget resolves a target written as a channel name or as
// "joint:?kind/axis".
func ParseTarget(mem *scene.Memory, s string) (ir.TargetRef, error) {
	if !strings.Contains(s, ":?") {
		return ir.ChannelRef(ir.ChannelID(s)), nil
	}
	ref, err := asset.ParseRef(s)
	if err != nil {
		return ir.TargetRef{}, err
	}
	if ref.Kind != asset.RefTransform {
		return ir.TargetRef{}, fmt.Errorf("target %q: expected a channel name or a joint transform", s)
	}
	j, err := mem.ResolveJoint(context.Background(), ref.Name)
	if err != nil {
		return ir.TargetRef{}, err
	}
	return ir.JointRef(j, ref.Transform, ref.Axis), nil
}

// DescribeDrivers lists the attached drivers as "target = text", sorted.
func DescribeDrivers(mem *scene.Memory) []string {
	h, _ := mem.Hierarchy(context.Background())
	var out []string
	for _, a := range mem.Drivers() {
		out = append(out, fmt.Sprintf("%s = %s", TargetName(h, a.Target), a.Driver.Render()))
	}
	return out
}

// TargetName formats a target with joint names instead of ids.
func TargetName(h *ir.Hierarchy, t ir.TargetRef) string {
	if t.Kind == ir.ChannelTarget || h == nil {
		return t.Key()
	}
	return fmt.Sprintf("%s:?%s/%s", h.Name(t.Joint), t.Transform, t.Axis)
}

// SourceName formats a source with joint names instead of ids.
func SourceName(h *ir.Hierarchy, s ir.Source) string {
	if s.Kind == ir.SourceProp || h == nil {
		return s.String()
	}
	return fmt.Sprintf("joint:%s.%s.%s", h.Name(s.Joint), s.Transform, s.Axis)
}
