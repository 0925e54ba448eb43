package compiler

import (
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/morphc/internal/ir"
)

// TargetResult summarizes one compiled target.
type TargetResult struct {
	Target  string        `json:"target"`
	Kind    ir.DriverKind `json:"kind"`
	Text    string        `json:"text"`
	Terms   int           `json:"terms"`
	Batches int           `json:"batches"`
	Helpers []string      `json:"helpers,omitempty"`
	Hash    string        `json:"hash"`
}

// Reparent records a structural change made by the cycle breaker.
type Reparent struct {
	Joint    ir.JointID `json:"joint"`
	Name     string     `json:"name"`
	From     ir.JointID `json:"from"`
	To       ir.JointID `json:"to"`
	Driven   ir.JointID `json:"driven"`
	DrivenBy string     `json:"driven_by"`
}

// Pair returns the broken (driven, driver) joint pair.
func (r Reparent) Pair() ir.JointPair {
	return ir.JointPair{Driven: r.Driven, Driver: r.Joint}
}

// Report is the session-level outcome. Per-target failures are collected
// here instead of aborting the import.
type Report struct {
	SessionID string         `json:"session_id"`
	Targets   []TargetResult `json:"targets"`
	Problems  []*Error       `json:"problems,omitempty"`
	Reparents []Reparent     `json:"reparents,omitempty"`

	// Adjusters lists joints whose location adjuster was installed.
	Adjusters []string `json:"adjusters,omitempty"`
}

func newReport(sessionID string) *Report {
	return &Report{SessionID: sessionID, Targets: []TargetResult{}}
}

func (r *Report) add(e *Error) {
	r.Problems = append(r.Problems, e)
}

// Failed returns the problems that prevented a target from compiling.
func (r *Report) Failed() []*Error {
	var out []*Error
	for _, p := range r.Problems {
		if p.Fatal() {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of problems with the given code.
func (r *Report) Count(code ErrorCode) int {
	n := 0
	for _, p := range r.Problems {
		if p.Code == code {
			n++
		}
	}
	return n
}

// Err aggregates the fatal problems, or returns nil when every target compiled.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, p := range r.Failed() {
		result = multierror.Append(result, p)
	}
	return result.ErrorOrNil()
}
