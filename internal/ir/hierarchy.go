package ir

import "fmt"

// Hierarchy is the joint tree as an arena: joint i has name Names[i] and
// parent Parent[i] (NoJoint for roots). Reparenting is a single slice write.
type Hierarchy struct {
	Names  []string
	Parent []JointID
}

// NewHierarchy returns an empty arena.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{}
}

// Add appends a joint and returns its id.
func (h *Hierarchy) Add(name string, parent JointID) JointID {
	h.Names = append(h.Names, name)
	h.Parent = append(h.Parent, parent)
	return JointID(len(h.Names) - 1)
}

// Len returns the number of joints.
func (h *Hierarchy) Len() int {
	return len(h.Names)
}

// Valid reports whether j indexes a joint of the arena.
func (h *Hierarchy) Valid(j JointID) bool {
	return j >= 0 && int(j) < len(h.Names)
}

// ParentOf returns the parent of j, or NoJoint.
func (h *Hierarchy) ParentOf(j JointID) JointID {
	if !h.Valid(j) {
		return NoJoint
	}
	return h.Parent[j]
}

// Name returns the joint's name, or a placeholder for invalid ids.
func (h *Hierarchy) Name(j JointID) string {
	if !h.Valid(j) {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return h.Names[j]
}

// Lookup finds a joint by exact name.
func (h *Hierarchy) Lookup(name string) (JointID, bool) {
	for i, n := range h.Names {
		if n == name {
			return JointID(i), true
		}
	}
	return NoJoint, false
}

// Reparent sets j's parent.
func (h *Hierarchy) Reparent(j, parent JointID) {
	if h.Valid(j) {
		h.Parent[j] = parent
	}
}

// IsDescendant reports whether j lies strictly below ancestor.
func (h *Hierarchy) IsDescendant(j, ancestor JointID) bool {
	// Bounded walk: a malformed parent table must not loop forever.
	for steps, p := 0, h.ParentOf(j); p != NoJoint && steps <= h.Len(); steps, p = steps+1, h.ParentOf(p) {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (h *Hierarchy) Clone() *Hierarchy {
	return &Hierarchy{
		Names:  append([]string(nil), h.Names...),
		Parent: append([]JointID(nil), h.Parent...),
	}
}
