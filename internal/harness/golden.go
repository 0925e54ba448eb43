package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/morphc/internal/compiler"
	"github.com/roach88/morphc/internal/ir"
	"github.com/roach88/morphc/internal/scene"
)

// StoreSnapshot captures the compiled drivers and the session problems of a
// scenario run.
type StoreSnapshot struct {
	ScenarioName string
	Sessions     int
	Drivers      []DriverSnapshot
	Problems     []string
	Reparents    []string
}

// DriverSnapshot is one attached driver with joint names spelled out.
type DriverSnapshot struct {
	Target   string
	Kind     string
	Text     string
	Bindings []string
}

// NewStoreSnapshot builds a snapshot of mem and the reports of every pass.
func NewStoreSnapshot(name string, mem *scene.Memory, reports []*compiler.Report) (*StoreSnapshot, error) {
	h, err := mem.Hierarchy(context.Background())
	if err != nil {
		return nil, err
	}
	s := &StoreSnapshot{
		ScenarioName: name,
		Sessions:     len(reports),
		Drivers:      []DriverSnapshot{},
		Problems:     []string{},
		Reparents:    []string{},
	}
	for _, a := range mem.Drivers() {
		d := DriverSnapshot{
			Target:   TargetName(h, a.Target),
			Kind:     string(a.Driver.Kind()),
			Text:     a.Driver.Render(),
			Bindings: []string{},
		}
		for _, b := range a.Driver.Bindings() {
			d.Bindings = append(d.Bindings, fmt.Sprintf("%s=%s (%s)", b.Name, SourceName(h, b.Source), b.Role))
		}
		s.Drivers = append(s.Drivers, d)
	}
	for _, r := range reports {
		for _, p := range r.Problems {
			s.Problems = append(s.Problems, fmt.Sprintf("%s %s", p.Code, p.Target))
		}
		for _, rp := range r.Reparents {
			s.Reparents = append(s.Reparents, fmt.Sprintf("%s: %s -> %s", rp.Name, h.Name(rp.From), jointOrRoot(h, rp.To)))
		}
	}
	return s, nil
}

func jointOrRoot(h *ir.Hierarchy, j ir.JointID) string {
	if j == ir.NoJoint {
		return "(root)"
	}
	return h.Name(j)
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// accepts maps, slices, strings and integers.
func (s *StoreSnapshot) toCanonicalMap() map[string]any {
	drivers := make([]any, len(s.Drivers))
	for i, d := range s.Drivers {
		drivers[i] = map[string]any{
			"target":   d.Target,
			"kind":     d.Kind,
			"text":     d.Text,
			"bindings": stringsToAny(d.Bindings),
		}
	}
	return map[string]any{
		"scenario":  s.ScenarioName,
		"sessions":  s.Sessions,
		"drivers":   drivers,
		"problems":  stringsToAny(s.Problems),
		"reparents": stringsToAny(s.Reparents),
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// MarshalSnapshot renders the snapshot as canonical JSON.
func MarshalSnapshot(s *StoreSnapshot) ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the compiled drivers
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, mem, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	snap, err := NewStoreSnapshot(scenario.Name, mem, result.Reports)
	if err != nil {
		return nil, err
	}
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
