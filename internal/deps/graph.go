// Package deps models the requires-graph between PRs and validates a release
// set against it.
package deps

import (
	"fmt"
	"sort"

	"github.com/cmtonkinson/releasepilot/internal/decision"
)

// Graph is a directed requires-relation over PR numbers. An edge (A, B)
// means PR A requires PR B to be admitted first.
type Graph struct {
	edges map[int]map[int]bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{edges: make(map[int]map[int]bool)}
}

// AddEdge records that from requires to. Self-loops and non-positive PR
// numbers are rejected.
func (g *Graph) AddEdge(from, to int) error {
	if from <= 0 || to <= 0 {
		return fmt.Errorf("deps: PR numbers must be positive, got (%d, %d)", from, to)
	}
	if from == to {
		return fmt.Errorf("deps: PR #%d cannot require itself", from)
	}
	if g.edges[from] == nil {
		g.edges[from] = make(map[int]bool)
	}
	g.edges[from][to] = true
	return nil
}

// Requires returns the PRs required by pr, ascending. Nil when pr has no
// recorded requirements.
func (g *Graph) Requires(pr int) []int {
	targets := g.edges[pr]
	if len(targets) == 0 {
		return nil
	}
	out := make([]int, 0, len(targets))
	for to := range targets {
		out = append(out, to)
	}
	sort.Ints(out)
	return out
}

// Len reports the number of PRs with at least one outgoing edge.
func (g *Graph) Len() int {
	return len(g.edges)
}

// FromDecisions builds the graph from the requires sets of the given
// decisions. Self-loops and invalid numbers come from an external capability
// and are dropped rather than failing the run.
func FromDecisions(decisions []decision.Decision) *Graph {
	g := New()
	for _, d := range decisions {
		for _, required := range d.Requires {
			// AddEdge only fails on self-loops and bad ids here.
			_ = g.AddEdge(d.PR, required)
		}
	}
	return g
}
