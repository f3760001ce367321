// Package buildorder orders the subprojects of a bundle so that every
// subproject comes after the subprojects it depends on.
package buildorder

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// Node is one subproject. RepoIndex is the position of its repository in
	// the bundle and Index the declaration position inside the repository.
	Node struct {
		Repo      string
		RepoIndex int
		Name      string
		Index     int
	}

	// Graph is a directed graph keyed by subproject name. An edge from A to B
	// means A must be built before B.
	Graph struct {
		nodes []Node
		index map[string]int
		// adjacency maps each node to the nodes that depend on it.
		adjacency map[string][]string
	}

	// CyclicDependencyError names the subprojects sitting on a dependency
	// cycle, in build-order comparator order.
	CyclicDependencyError struct {
		Nodes []string
	}
)

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency between subprojects: %s", strings.Join(e.Nodes, ", "))
}

func NewGraph() *Graph {
	return &Graph{
		index:     make(map[string]int),
		adjacency: make(map[string][]string),
	}
}

// Less is the tie-break between nodes that are ready at the same time:
// repository position in the bundle first, then declaration position.
func Less(a, b Node) bool {
	if a.RepoIndex != b.RepoIndex {
		return a.RepoIndex < b.RepoIndex
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Name < b.Name
}

func compare(a, b Node) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

func (g *Graph) AddNode(n Node) error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("node name is required")
	}
	if _, ok := g.index[n.Name]; ok {
		return fmt.Errorf("node %q already exists", n.Name)
	}
	g.index[n.Name] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// AddEdge records that from must come before to. Self-edges are kept and
// reported as cycles by Sort. Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) error {
	if !g.Has(from) {
		return fmt.Errorf("node %q not found", from)
	}
	if !g.Has(to) {
		return fmt.Errorf("node %q not found", to)
	}
	if slices.Contains(g.adjacency[from], to) {
		return nil
	}
	g.adjacency[from] = append(g.adjacency[from], to)
	return nil
}

// Sort returns every node in dependency order using Kahn's algorithm. Among
// ready nodes the smallest by Less goes first, so the result depends only on
// the graph and never on map iteration.
func (g *Graph) Sort() ([]Node, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.adjacency {
		for _, to := range targets {
			inDegree[to]++
		}
	}

	var ready []Node
	for _, n := range g.nodes {
		if inDegree[n.Name] == 0 {
			ready = insertSorted(ready, n)
		}
	}

	order := make([]Node, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, to := range g.adjacency[n.Name] {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = insertSorted(ready, g.nodes[g.index[to]])
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &CyclicDependencyError{Nodes: g.cycleMembers()}
	}
	return order, nil
}

func insertSorted(ready []Node, n Node) []Node {
	i, _ := slices.BinarySearchFunc(ready, n, compare)
	return slices.Insert(ready, i, n)
}

// cycleMembers returns the nodes of every strongly connected component that
// contains a cycle (Tarjan). Nodes that are only blocked behind a cycle are
// left out.
func (g *Graph) cycleMembers() []string {
	var (
		counter int
		stack   []string
		onStack = make(map[string]bool)
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		members []Node
	)

	var strongConnect func(name string)
	strongConnect = func(name string) {
		indices[name] = counter
		lowlink[name] = counter
		counter++
		stack = append(stack, name)
		onStack[name] = true

		for _, to := range g.adjacency[name] {
			if _, seen := indices[to]; !seen {
				strongConnect(to)
				lowlink[name] = min(lowlink[name], lowlink[to])
			} else if onStack[to] {
				lowlink[name] = min(lowlink[name], indices[to])
			}
		}

		if lowlink[name] != indices[name] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == name {
				break
			}
		}
		if len(component) > 1 || slices.Contains(g.adjacency[name], name) {
			for _, member := range component {
				members = append(members, g.nodes[g.index[member]])
			}
		}
	}

	for _, n := range g.nodes {
		if _, seen := indices[n.Name]; !seen {
			strongConnect(n.Name)
		}
	}

	slices.SortFunc(members, compare)
	names := make([]string, 0, len(members))
	for _, n := range members {
		names = append(names, n.Name)
	}
	return names
}
