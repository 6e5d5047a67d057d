package condense

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Component is one strongly-connected component of a condensed graph.
type Component struct {
	Keys         []string
	Dependencies []int // component ids this component depends on (self-loops excluded)
	Root         bool  // true if any member key was flagged as a root
}

// Condensation is a DAG of Components: every input node appears in
// exactly one component, and Components[c].Dependencies never contains
// c itself.
type Condensation struct {
	Components     map[int]Component
	RootComponents []int
}

// Edge is a directed edge between two node keys, by key rather than by
// id: callers of this package (the installer) key nodes by an opaque
// string identifier, not a dense integer.
type Edge struct {
	Source string
	Target string
}

// Condense computes the strongly-connected-component condensation of the
// graph described by keys and edges. isRoot flags which keys count as
// roots for script-execution purposes; a component is a root if any of
// its member keys is.
func Condense(keys []string, edges []Edge, isRoot func(key string) bool) Condensation {
	ids := make(map[string]int64, len(keys))
	names := make(map[int64]string, len(keys))
	g := simple.NewDirectedGraph()

	sortedKeys := append([]string(nil), keys...)
	sort.Strings(sortedKeys)

	for i, k := range sortedKeys {
		id := int64(i)
		ids[k] = id
		names[id] = k
		g.AddNode(simple.Node(id))
	}

	for _, e := range edges {
		s, sok := ids[e.Source]
		t, tok := ids[e.Target]
		if !sok || !tok {
			continue
		}
		if !g.HasEdgeFromTo(s, t) {
			g.SetEdge(g.NewEdge(g.Node(s), g.Node(t)))
		}
	}

	sccs := newTarjanSCC(g).findSCCs()

	compOf := make(map[int64]int, len(keys))
	components := make(map[int]Component, len(sccs))

	for compID, scc := range sccs {
		memberKeys := make([]string, 0, len(scc))
		root := false
		for _, id := range scc {
			compOf[id] = compID
			key := names[id]
			memberKeys = append(memberKeys, key)
			if isRoot != nil && isRoot(key) {
				root = true
			}
		}
		sort.Strings(memberKeys)
		components[compID] = Component{Keys: memberKeys, Root: root}
	}

	depSet := make(map[int]map[int]bool, len(components))
	for _, e := range edges {
		s, sok := ids[e.Source]
		t, tok := ids[e.Target]
		if !sok || !tok {
			continue
		}
		cs, ct := compOf[s], compOf[t]
		if cs == ct {
			continue // self-loop within the component, excluded
		}
		if depSet[cs] == nil {
			depSet[cs] = make(map[int]bool)
		}
		depSet[cs][ct] = true
	}

	for compID, comp := range components {
		deps := make([]int, 0, len(depSet[compID]))
		for d := range depSet[compID] {
			deps = append(deps, d)
		}
		sort.Ints(deps)
		comp.Dependencies = deps
		components[compID] = comp
	}

	var roots []int
	for compID, comp := range components {
		if comp.Root {
			roots = append(roots, compID)
		}
	}
	sort.Ints(roots)

	return Condensation{Components: components, RootComponents: roots}
}
