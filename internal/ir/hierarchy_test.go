package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func chain() *Hierarchy {
	h := NewHierarchy()
	root := h.Add("root", NoJoint)
	spine := h.Add("spine", root)
	h.Add("head", spine)
	h.Add("tail", root)
	return h
}

func TestHierarchyBasics(t *testing.T) {
	h := chain()
	assert.Equal(t, 4, h.Len())
	assert.True(t, h.Valid(3))
	assert.False(t, h.Valid(4))
	assert.False(t, h.Valid(NoJoint))

	assert.Equal(t, NoJoint, h.ParentOf(0))
	assert.Equal(t, JointID(1), h.ParentOf(2))
	assert.Equal(t, NoJoint, h.ParentOf(9))

	assert.Equal(t, "head", h.Name(2))
	assert.Equal(t, "joint(9)", h.Name(9))

	id, ok := h.Lookup("tail")
	assert.True(t, ok)
	assert.Equal(t, JointID(3), id)
	_, ok = h.Lookup("missing")
	assert.False(t, ok)
}

func TestHierarchyIsDescendant(t *testing.T) {
	h := chain()
	assert.True(t, h.IsDescendant(2, 0))
	assert.True(t, h.IsDescendant(2, 1))
	assert.False(t, h.IsDescendant(1, 2))
	assert.False(t, h.IsDescendant(0, 0))
	assert.False(t, h.IsDescendant(3, 1))
}

func TestHierarchyIsDescendantTerminatesOnLoop(t *testing.T) {
	h := NewHierarchy()
	h.Add("a", 1)
	h.Add("b", 0)
	assert.False(t, h.IsDescendant(0, 5))
}

func TestHierarchyReparentAndClone(t *testing.T) {
	h := chain()
	c := h.Clone()

	h.Reparent(2, 0)
	assert.Equal(t, JointID(0), h.ParentOf(2))
	assert.Equal(t, JointID(1), c.ParentOf(2))

	h.Reparent(42, 0)
	assert.Equal(t, 4, h.Len())
}
