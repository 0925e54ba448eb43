package scene

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/morphc/internal/config"
	"github.com/roach88/morphc/internal/ir"
)

// File is the YAML form of a scene.
//
//	joints:
//	  - name: hip
//	  - name: lThighBend
//	    parent: hip
//	    rotation: [0, 0, 10]
//	channels:
//	  - name: eCTRLSmile
//	    value: 1
//	    min: 0
//	    max: 1
type File struct {
	Joints   []JointSpec `yaml:"joints"`
	Channels []Channel   `yaml:"channels"`
}

// JointSpec is one joint and its undriven local transform.
type JointSpec struct {
	Name        string    `yaml:"name"`
	Parent      string    `yaml:"parent,omitempty"`
	Translation []float64 `yaml:"translation,omitempty"`
	Rotation    []float64 `yaml:"rotation,omitempty"`
	Scale       []float64 `yaml:"scale,omitempty"`
}

// LoadFile reads a scene from a YAML file.
func LoadFile(path string, units config.Units) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()
	m, err := Load(f, units)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", path, err)
	}
	return m, nil
}

// Load reads a scene from YAML. Parents must be listed before children.
func Load(r io.Reader, units config.Units) (*Memory, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Build(file, units)
}

// Build creates a scene from its decoded form.
func Build(file File, units config.Units) (*Memory, error) {
	m := NewMemory(units)
	for _, js := range file.Joints {
		j, err := m.AddJoint(js.Name, js.Parent)
		if err != nil {
			return nil, err
		}
		for kind, vals := range map[ir.TransformKind][]float64{
			ir.Translation: js.Translation,
			ir.Rotation:    js.Rotation,
			ir.Scale:       js.Scale,
		} {
			if len(vals) == 0 {
				continue
			}
			if len(vals) != 3 {
				return nil, fmt.Errorf("joint %q: %s needs 3 components, got %d", js.Name, kind, len(vals))
			}
			for axis, v := range vals {
				if err := m.SetTransform(j, kind, ir.Axis(axis), v); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, c := range file.Channels {
		if c.Name == "" {
			return nil, fmt.Errorf("channel without name")
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, fmt.Errorf("channel %q: min %v > max %v", c.Name, *c.Min, *c.Max)
		}
		m.AddChannel(c)
	}
	return m, nil
}

// Export returns the scene's joints and channels in file form. Drivers are
// not part of the file.
func (m *Memory) Export() File {
	m.mu.Lock()
	defer m.mu.Unlock()
	var file File
	for i, name := range m.hierarchy.Names {
		js := JointSpec{Name: name}
		if p := m.hierarchy.Parent[i]; p != ir.NoJoint {
			js.Parent = m.hierarchy.Names[p]
		}
		loc := m.local[i]
		if loc[ir.Translation] != ([3]float64{}) {
			js.Translation = loc[ir.Translation][:]
		}
		if loc[ir.Rotation] != ([3]float64{}) {
			js.Rotation = loc[ir.Rotation][:]
		}
		if loc[ir.Scale] != ([3]float64{1, 1, 1}) {
			js.Scale = loc[ir.Scale][:]
		}
		file.Joints = append(file.Joints, js)
	}
	for _, id := range m.order {
		file.Channels = append(file.Channels, *m.channels[id])
	}
	return file
}
