package compiler

import (
	"slices"
)

// containmentGraph maps a branch group id to the ids of the elements in
// its branches.
type containmentGraph map[string][]string

// findContainmentCycle returns a cycle path through the containment graph,
// or nil when the graph is a forest.
//
// The algorithm:
//  1. Use Tarjan's algorithm to find strongly connected components
//  2. The first SCC with size > 1, or a self-loop, is a cycle
//  3. Reconstruct a readable path through that SCC
//
// Nodes are visited in sorted order so the reported cycle is stable.
func findContainmentCycle(graph containmentGraph) []string {
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 {
			if hasSelfLoop(scc[0], graph) {
				return []string{scc[0], scc[0]}
			}
			continue
		}
		slices.Sort(scc)
		return reconstructCyclePath(scc, graph)
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph containmentGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of element ids.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph containmentGraph) [][]string {
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

		// v is a root node: pop the stack and emit an SCC
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
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node, follow edges to other SCC members,
// continue until we return to the start node.
func reconstructCyclePath(scc []string, graph containmentGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
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
