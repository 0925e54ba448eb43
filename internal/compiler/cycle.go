package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/morphc/internal/ir"
)

// CycleBreaker removes joint dependency loops before anything is compiled.
//
// A joint target J driven by a transform of one of its descendants K would
// make J's pose depend on itself. The breaker moves K one level up the
// hierarchy and replaces the offending term with a constant 0. K moves only
// the first time the pair is seen; pairs broken by earlier imports are
// neutralized in place.
type CycleBreaker struct {
	Hierarchy *ir.Hierarchy

	done map[ir.JointPair]bool
}

// NewCycleBreaker returns a breaker over a hierarchy snapshot. Reparents are
// applied to h; the caller writes them back to the store. broken lists the
// pairs already resolved by earlier imports.
func NewCycleBreaker(h *ir.Hierarchy, broken ...ir.JointPair) *CycleBreaker {
	b := &CycleBreaker{Hierarchy: h, done: make(map[ir.JointPair]bool)}
	for _, p := range broken {
		b.done[p] = true
	}
	return b
}

// Break scans every entry of the collectors in order.
func (b *CycleBreaker) Break(collectors ...*TermCollector) ([]Reparent, []*Error) {
	var (
		reparents []Reparent
		problems  []*Error
	)
	for _, c := range collectors {
		if c == nil {
			continue
		}
		for _, t := range c.order {
			if t.Kind != ir.JointChannelTarget {
				continue
			}
			r, p := b.breakEntry(c.entries[t])
			reparents = append(reparents, r...)
			problems = append(problems, p...)
		}
	}
	return reparents, problems
}

func (b *CycleBreaker) breakEntry(e *targetEntry) ([]Reparent, []*Error) {
	var (
		reparents []Reparent
		problems  []*Error
	)
	j := e.target.Joint
	for _, c := range e.contribs {
		if c.removed {
			continue
		}
		src := c.source()
		if src.Kind != ir.SourceJointAxis || !b.Hierarchy.IsDescendant(src.Joint, j) {
			continue
		}

		c.spline = nil
		c.term = ir.Term{Source: src, Factor: 0, Neutralized: true}

		problems = append(problems, &Error{
			Code:   ErrCodeDependencyCycle,
			Target: e.target.Key(),
			Message: fmt.Sprintf("%s is driven by descendant %s; term neutralized",
				b.Hierarchy.Name(j), b.Hierarchy.Name(src.Joint)),
		})

		pair := ir.JointPair{Driven: j, Driver: src.Joint}
		if b.done[pair] {
			continue
		}
		b.done[pair] = true

		from := b.Hierarchy.ParentOf(src.Joint)
		to := b.Hierarchy.ParentOf(from)
		b.Hierarchy.Reparent(src.Joint, to)
		reparents = append(reparents, Reparent{
			Joint:    src.Joint,
			Driven:   j,
			Name:     b.Hierarchy.Name(src.Joint),
			From:     from,
			To:       to,
			DrivenBy: b.Hierarchy.Name(j),
		})
		slog.Warn("dependency cycle broken",
			"target", b.Hierarchy.Name(j),
			"joint", b.Hierarchy.Name(src.Joint),
			"old_parent", b.Hierarchy.Name(from),
			"new_parent", b.Hierarchy.Name(to))
	}
	return reparents, problems
}

// ChannelCycle is a loop between channel targets, e.g. two morphs that
// drive each other. Channel loops are reported, not broken: the runtime
// evaluates them with a recursion guard.
type ChannelCycle struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// AnalyzeChannelCycles finds loops among the channel targets of c.
//
// The algorithm:
//  1. Build channel -> dependent channel edges from Prop terms and splines
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
func AnalyzeChannelCycles(c *TermCollector) []ChannelCycle {
	graph := buildChannelGraph(c)
	if len(graph) == 0 {
		return []ChannelCycle{}
	}

	var cycles []ChannelCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// dependencyGraph maps channel -> channels whose value depends on it.
type dependencyGraph map[string][]string

func buildChannelGraph(c *TermCollector) dependencyGraph {
	graph := make(dependencyGraph)
	for _, t := range c.order {
		if t.Kind != ir.ChannelTarget {
			continue
		}
		to := string(t.Channel)
		if graph[to] == nil {
			graph[to] = []string{}
		}
		e := c.entries[t]
		for _, ct := range e.contribs {
			src := ct.source()
			if ct.removed || src.Kind != ir.SourceProp {
				continue
			}
			from := string(src.Channel)
			graph[from] = append(graph[from], to)
		}
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) ChannelCycle {
	if len(scc) == 1 {
		return ChannelCycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("channel drives itself: %s → %s", scc[0], scc[0]),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return ChannelCycle{
		Path:    path,
		Message: fmt.Sprintf("channel loop: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
