package testutil

import (
	"fmt"
	"sync"
)

// SessionIDs generates "<prefix>-1", "<prefix>-2", ... as session ids.
// It satisfies compiler.SessionIDGenerator.
//
// Thread-safety: SessionIDs is safe for concurrent use.
type SessionIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSessionIDs creates a generator. An empty prefix means "session".
func NewSessionIDs(prefix string) *SessionIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SessionIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
