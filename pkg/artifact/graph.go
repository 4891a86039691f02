// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph is the agent initialization graph. An edge From → To means
// From is constructed before To. The graph defines startup order only; it
// plays no part in message routing.
type DependencyGraph struct {
	nodes []string
	index map[string]int
	edges []Edge
	// out adjacency (From → []To) and in-degree per node, by index
	out map[int][]int
	in  map[int]int
}

// NewDependencyGraph builds a graph from nodes and edges. Edge endpoints that
// are not in nodes are added in order of first appearance; duplicate edges
// are collapsed.
func NewDependencyGraph(nodes []string, edges []Edge) *DependencyGraph {
	g := &DependencyGraph{
		index: make(map[string]int),
		out:   make(map[int][]int),
		in:    make(map[int]int),
	}
	for _, n := range nodes {
		g.addNode(n)
	}
	for _, e := range edges {
		g.AddEdge(e.From, e.To)
	}
	return g
}

func (g *DependencyGraph) addNode(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, name)
	g.index[name] = i
	return i
}

// AddEdge records that from is initialized before to.
func (g *DependencyGraph) AddEdge(from, to string) {
	f, t := g.addNode(from), g.addNode(to)
	for _, existing := range g.out[f] {
		if existing == t {
			return
		}
	}
	g.out[f] = append(g.out[f], t)
	g.in[t]++
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// Nodes returns node names in declaration order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns edges in insertion order.
func (g *DependencyGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Has reports whether name is a node of the graph.
func (g *DependencyGraph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Dependencies returns the nodes that must be initialized before name.
func (g *DependencyGraph) Dependencies(name string) []string {
	var deps []string
	for _, e := range g.edges {
		if e.To == name {
			deps = append(deps, e.From)
		}
	}
	return deps
}

// Dependents returns the nodes initialized after (and because of) name.
func (g *DependencyGraph) Dependents(name string) []string {
	var deps []string
	for _, e := range g.edges {
		if e.From == name {
			deps = append(deps, e.To)
		}
	}
	return deps
}

// TopologicalOrder returns an initialization order in which every edge's
// From precedes its To (Kahn's algorithm). Among nodes that are ready at the
// same time, declaration order wins, so the result is deterministic. A cyclic
// graph yields an *Error wrapping ErrCycleDetected naming the nodes on or
// behind the cycle.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	in := make(map[int]int, len(g.in))
	for k, v := range g.in {
		in[k] = v
	}

	var ready []int
	for i := range g.nodes {
		if in[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[n])

		released := false
		for _, t := range g.out[n] {
			in[t]--
			if in[t] == 0 {
				ready = append(ready, t)
				released = true
			}
		}
		if released {
			sort.Ints(ready)
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for i, name := range g.nodes {
			if in[i] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, &Error{
			Kind:   ErrCycleDetected,
			File:   GraphFile,
			Detail: fmt.Sprintf("no topological order exists; unresolved nodes: %s", strings.Join(stuck, ", ")),
		}
	}
	return order, nil
}
