// SPDX-License-Identifier: MPL-2.0

// Package dag orders modules by their requirements. An edge from A to B
// means A must be initialized before B, that is, B requires A.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports a dependency cycle. Cycle lists the modules along
	// the loop with the first module repeated at the end, e.g. [A B A].
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph with deterministic iteration order.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is for programmatic detection.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Both nodes are implicitly added. Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, n := range g.adjacency[from] {
		if n == to {
			return
		}
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Dependents returns the nodes that must run after node.
func (g *Graph) Dependents(node string) []string {
	return append([]string(nil), g.adjacency[node]...)
}

// TopologicalSort returns a valid initialization order using Kahn's algorithm.
// Nodes at the same level appear in insertion order. If the graph contains a
// cycle, a CycleError naming one concrete loop is returned.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycle := g.FindCycle(); cycle != nil {
			return nil, &CycleError{Cycle: cycle}
		}
		// Unreachable for a consistent graph; report the stuck nodes.
		var stuck []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				stuck = append(stuck, node)
			}
		}
		return nil, &CycleError{Cycle: stuck}
	}

	return result, nil
}

// FindCycle returns the first cycle reachable in insertion order, closed by
// repeating its first node, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		finished
	)
	state := make(map[string]int, len(g.nodes))

	type frame struct {
		node string
		next int
	}

	for _, start := range g.nodes {
		if state[start] != unvisited {
			continue
		}
		stack := []frame{{node: start}}
		path := []string{start}
		state[start] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := g.adjacency[top.node]
			if top.next >= len(neighbors) {
				state[top.node] = finished
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			n := neighbors[top.next]
			top.next++
			switch state[n] {
			case onStack:
				for i, p := range path {
					if p == n {
						return append(append([]string(nil), path[i:]...), n)
					}
				}
			case unvisited:
				state[n] = onStack
				stack = append(stack, frame{node: n})
				path = append(path, n)
			}
		}
	}
	return nil
}
