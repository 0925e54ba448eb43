package scene

import (
	"fmt"
	"log/slog"

	"github.com/roach88/morphc/internal/eval"
	"github.com/roach88/morphc/internal/ir"
)

// Frame evaluates targets against the scene's current values. Results are
// cached for the lifetime of the frame; take a new frame after changing
// values.
type Frame struct {
	m        *Memory
	values   map[ir.TargetRef]float64
	visiting map[ir.TargetRef]bool
}

// Frame starts an evaluation pass.
func (m *Memory) Frame() *Frame {
	return &Frame{
		m:        m,
		values:   make(map[ir.TargetRef]float64),
		visiting: make(map[ir.TargetRef]bool),
	}
}

// Value evaluates a target.
func (f *Frame) Value(t ir.TargetRef) (float64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return f.value(t)
}

// Channel evaluates a channel by name.
func (f *Frame) Channel(name string) (float64, error) {
	return f.Value(ir.ChannelRef(ir.ChannelID(name)))
}

// Joint evaluates one component of a joint's local transform.
func (f *Frame) Joint(name string, kind ir.TransformKind, axis ir.Axis) (float64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	j, ok := f.m.hierarchy.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("joint %q: %w", name, ir.ErrNotFound)
	}
	return f.value(ir.JointRef(j, kind, axis))
}

func (f *Frame) value(t ir.TargetRef) (float64, error) {
	if v, ok := f.values[t]; ok {
		return v, nil
	}
	if f.visiting[t] {
		// Channel loops read as 0 instead of recursing.
		slog.Debug("evaluation loop", "target", t.Key())
		return 0, nil
	}
	f.visiting[t] = true
	defer delete(f.visiting, t)

	var (
		base float64
		ch   *Channel
	)
	switch t.Kind {
	case ir.ChannelTarget:
		ch = f.m.channels[t.Channel]
		if ch != nil {
			base = ch.Value
		}
	case ir.JointChannelTarget:
		if !f.m.hierarchy.Valid(t.Joint) {
			return 0, fmt.Errorf("evaluate %s: %w", t.Key(), ir.ErrNotFound)
		}
		base = f.m.local[t.Joint][t.Transform][t.Axis]
	}

	v := base
	if d, ok := f.m.drivers[t]; ok {
		out, err := f.driver(d)
		if err != nil {
			return 0, fmt.Errorf("evaluate %s: %w", t.Key(), err)
		}
		if t.Kind == ir.ChannelTarget {
			v = out
		} else {
			// Joint drivers offset the posed value.
			v = base + out
		}
	}
	if ch != nil {
		v = ch.Clamp(v)
	}
	f.values[t] = v
	return v, nil
}

func (f *Frame) driver(d ir.CompiledDriver) (float64, error) {
	text := d.Render()
	prog, ok := f.m.progs[text]
	if !ok {
		var err error
		if prog, err = eval.Parse(text); err != nil {
			return 0, err
		}
		f.m.progs[text] = prog
	}

	vars := make(map[string]float64)
	for _, b := range d.Bindings() {
		v, err := f.value(sourceTarget(b.Source))
		if err != nil {
			return 0, err
		}
		vars[b.Name] = v
	}
	return prog.Eval(vars)
}

func sourceTarget(s ir.Source) ir.TargetRef {
	if s.Kind == ir.SourceProp {
		return ir.ChannelRef(s.Channel)
	}
	return ir.JointRef(s.Joint, s.Transform, s.Axis)
}
