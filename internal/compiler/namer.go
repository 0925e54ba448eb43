package compiler

const variableAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// VariableNamer hands out single-letter variable names for one expression.
// Each expression gets its own namer; there is no shared counter.
type VariableNamer struct {
	reserved map[string]bool
	next     int
}

// NewVariableNamer returns a namer that never yields the reserved names.
func NewVariableNamer(reserved ...string) *VariableNamer {
	n := &VariableNamer{reserved: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		n.reserved[r] = true
	}
	return n
}

// Next returns the next free name, or false when the alphabet is exhausted.
func (n *VariableNamer) Next() (string, bool) {
	for n.next < len(variableAlphabet) {
		name := variableAlphabet[n.next : n.next+1]
		n.next++
		if !n.reserved[name] {
			return name, true
		}
	}
	return "", false
}
