// Package scene is an in-memory channel store and its per-frame runtime.
//
// Memory implements compiler.ChannelStore. Evaluate reads values the way a
// host application would: a driven target takes its driver's value, clamped
// to the channel's limits; an undriven one keeps its stored value.
package scene

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/eval"
	"github.com/roach88/morphc/internal/ir"
)

// Channel is one scalar channel.
type Channel struct {
	Name  string   `json:"name" yaml:"name"`
	Value float64  `json:"value" yaml:"value"`
	Min   *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Clamp limits v to the channel's range.
func (c *Channel) Clamp(v float64) float64 {
	if c.Min != nil && v < *c.Min {
		return *c.Min
	}
	if c.Max != nil && v > *c.Max {
		return *c.Max
	}
	return v
}

// Memory is a ChannelStore held entirely in memory.
//
// Thread-safety: all methods lock; Memory is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	units     config.Units
	channels  map[ir.ChannelID]*Channel
	order     []ir.ChannelID
	hierarchy *ir.Hierarchy
	local     [][3][3]float64
	drivers   map[ir.TargetRef]ir.CompiledDriver
	commits   int
	progs     map[string]*eval.Program
	broken    []ir.JointPair
}

// NewMemory returns an empty scene using units for transform conversion.
func NewMemory(units config.Units) *Memory {
	return &Memory{
		units:     units,
		channels:  make(map[ir.ChannelID]*Channel),
		hierarchy: ir.NewHierarchy(),
		drivers:   make(map[ir.TargetRef]ir.CompiledDriver),
		progs:     make(map[string]*eval.Program),
	}
}

// AddJoint appends a joint under parent ("" for a root).
func (m *Memory) AddJoint(name, parent string) (ir.JointID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hierarchy.Lookup(name); ok {
		return ir.NoJoint, fmt.Errorf("joint %q already exists", name)
	}
	p := ir.NoJoint
	if parent != "" {
		var ok bool
		if p, ok = m.hierarchy.Lookup(parent); !ok {
			return ir.NoJoint, fmt.Errorf("joint %q: parent %q: %w", name, parent, ir.ErrNotFound)
		}
	}
	id := m.hierarchy.Add(name, p)
	m.local = append(m.local, [3][3]float64{{}, {}, {1, 1, 1}})
	return id, nil
}

// SetTransform sets a joint's undriven local transform component.
func (m *Memory) SetTransform(j ir.JointID, kind ir.TransformKind, axis ir.Axis, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hierarchy.Valid(j) {
		return fmt.Errorf("joint %d: %w", j, ir.ErrNotFound)
	}
	m.local[j][kind][axis] = v
	return nil
}

// AddChannel creates or replaces a channel.
func (m *Memory) AddChannel(c Channel) ir.ChannelID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ir.ChannelID(c.Name)
	if _, ok := m.channels[id]; !ok {
		m.order = append(m.order, id)
	}
	cc := c
	m.channels[id] = &cc
	return id
}

// SetValue sets a channel's stored value, creating the channel if needed.
func (m *Memory) SetValue(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelLocked(name).Value = v
}

// Channel returns a copy of the named channel.
func (m *Memory) Channel(name string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[ir.ChannelID(name)]
	if !ok {
		return Channel{}, false
	}
	return *c, true
}

// Channels returns every channel in creation order.
func (m *Memory) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.channels[id])
	}
	return out
}

// Commits returns how many commits have been applied.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Drivers returns every attachment, channel targets first, in key order.
func (m *Memory) Drivers() []ir.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ir.Attachment, 0, len(m.drivers))
	for t, d := range m.drivers {
		out = append(out, ir.Attachment{Target: t, Driver: d})
	}
	sortAttachments(out)
	return out
}

func sortAttachments(a []ir.Attachment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].Target.Kind != a[j].Target.Kind {
			return a[i].Target.Kind < a[j].Target.Kind
		}
		return a[i].Target.Key() < a[j].Target.Key()
	})
}

func (m *Memory) channelLocked(name string) *Channel {
	id := ir.ChannelID(name)
	c, ok := m.channels[id]
	if !ok {
		c = &Channel{Name: name}
		m.channels[id] = c
		m.order = append(m.order, id)
	}
	return c
}

// --- compiler.ChannelStore ---

func (m *Memory) ResolveChannel(_ context.Context, name string) (ir.ChannelID, error) {
	if name == "" {
		return "", fmt.Errorf("empty channel name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelLocked(name)
	return ir.ChannelID(name), nil
}

func (m *Memory) InstallAdjuster(_ context.Context, name string, value float64) (ir.ChannelID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ir.ChannelID(name)
	if _, ok := m.channels[id]; !ok {
		m.channelLocked(name).Value = value
	}
	return id, nil
}

func (m *Memory) ResolveJoint(_ context.Context, name string) (ir.JointID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.hierarchy.Lookup(name)
	if !ok {
		return ir.NoJoint, fmt.Errorf("joint %q: %w", name, ir.ErrNotFound)
	}
	return j, nil
}

func (m *Memory) JointParent(_ context.Context, id ir.JointID) (ir.JointID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hierarchy.Valid(id) {
		return ir.NoJoint, fmt.Errorf("joint %d: %w", id, ir.ErrNotFound)
	}
	return m.hierarchy.ParentOf(id), nil
}

func (m *Memory) Hierarchy(context.Context) (*ir.Hierarchy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hierarchy.Clone(), nil
}

func (m *Memory) ReparentJoint(_ context.Context, id, parent ir.JointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hierarchy.Valid(id) || (parent != ir.NoJoint && !m.hierarchy.Valid(parent)) {
		return fmt.Errorf("reparent %d -> %d: %w", id, parent, ir.ErrNotFound)
	}
	m.hierarchy.Reparent(id, parent)
	return nil
}

func (m *Memory) BrokenCycles(context.Context) ([]ir.JointPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ir.JointPair(nil), m.broken...), nil
}

func (m *Memory) MarkCycleBroken(_ context.Context, pair ir.JointPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hierarchy.Valid(pair.Driven) || !m.hierarchy.Valid(pair.Driver) {
		return fmt.Errorf("cycle %d <- %d: %w", pair.Driven, pair.Driver, ir.ErrNotFound)
	}
	for _, p := range m.broken {
		if p == pair {
			return nil
		}
	}
	m.broken = append(m.broken, pair)
	return nil
}

func (m *Memory) AttachedDriver(_ context.Context, t ir.TargetRef) (ir.CompiledDriver, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[t]
	return d, ok, nil
}

// Commit validates every attachment before applying any.
func (m *Memory) Commit(_ context.Context, attachments []ir.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range attachments {
		if a.Target.Kind == ir.JointChannelTarget && !m.hierarchy.Valid(a.Target.Joint) {
			return fmt.Errorf("commit %s: %w", a.Target.Key(), ir.ErrNotFound)
		}
	}
	for _, a := range attachments {
		if a.Driver == nil {
			delete(m.drivers, a.Target)
			continue
		}
		if a.Target.Kind == ir.ChannelTarget {
			m.channelLocked(string(a.Target.Channel))
		}
		m.drivers[a.Target] = a.Driver
	}
	m.commits++
	return nil
}

func (m *Memory) UnitFactor(kind ir.TransformKind) float64 {
	return m.units.Factor(kind)
}
