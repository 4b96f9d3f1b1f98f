package bake

import (
	"fmt"
	"sort"
)

// toposort orders a set of node ids so that every node appears after all
// the nodes in its own dependency set. It is used by plan emission (§4.5)
// to linearize the chosen (rule, bindings) pairs by prerequisite order;
// independent entries are left in whatever relative order the peeling
// happens to produce, since the Backend is free to run them in parallel.
//
// Adapted from a simple, unoptimized Kahn's-algorithm toposort: repeatedly
// peel off nodes with no remaining (unprocessed) dependencies until the
// graph is empty, or report the surviving nodes as a cycle.
func toposort(deps map[int]map[int]struct{}) ([]int, error) {
	dag := make(map[int]map[int]struct{}, len(deps))
	for node, links := range deps {
		cp := make(map[int]struct{}, len(links))
		for l := range links {
			cp[l] = struct{}{}
		}
		dag[node] = cp
	}

	var result []int
	for len(dag) != 0 {
		ready := nodesWithoutLinks(dag)
		if len(ready) == 0 {
			var remaining []int
			for n := range dag {
				remaining = append(remaining, n)
			}
			sort.Ints(remaining)
			return nil, fmt.Errorf("bake: cyclic plan dependency among nodes %v", remaining)
		}
		sort.Ints(ready)

		for _, n := range ready {
			result = append(result, n)
			delete(dag, n)
			for _, links := range dag {
				delete(links, n)
			}
		}
	}

	return result, nil
}

func nodesWithoutLinks(dag map[int]map[int]struct{}) []int {
	var result []int
	for n, links := range dag {
		if len(links) == 0 {
			result = append(result, n)
		}
	}
	return result
}
