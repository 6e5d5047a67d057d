package graph

import (
	"sort"

	"github.com/ritzau/pkginstall/internal/model"
)

// Project performs reachability from every local-root node, drops
// unreachable nodes and their incident links, dense-renumbers the
// remaining nodes in (name, version) lexicographic order, and emits the
// public graph shape.
func (graph *Graph) Project() model.Graph {
	roots := make([]int64, 0)
	for _, id := range graph.NodeIDs() {
		if graph.nodes[id].isLocal {
			roots = append(roots, id)
		}
	}

	reachable := graph.reachableFrom(roots)

	type entry struct {
		id      int64
		name    string
		version string
	}
	entries := make([]entry, 0, len(reachable))
	for id := range reachable {
		entries = append(entries, entry{id: id, name: graph.nodes[id].name, version: graph.nodes[id].version})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}
		if entries[i].version != entries[j].version {
			return entries[i].version < entries[j].version
		}
		return entries[i].id < entries[j].id
	})

	denseID := make(map[int64]int, len(entries))
	nodes := make([]model.Node, len(entries))
	for i, e := range entries {
		denseID[e.id] = i
		nodes[i] = model.Node{ID: i, Name: e.name, Version: e.version}
	}

	var links []model.Link
	for _, e := range entries {
		for _, child := range graph.Forward(e.id) {
			if _, ok := reachable[child]; !ok {
				continue
			}
			links = append(links, model.Link{SourceID: denseID[e.id], TargetID: denseID[child]})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].SourceID != links[j].SourceID {
			return links[i].SourceID < links[j].SourceID
		}
		return links[i].TargetID < links[j].TargetID
	})

	return model.Graph{Nodes: nodes, Links: links}
}

func (graph *Graph) reachableFrom(roots []int64) map[int64]struct{} {
	seen := make(map[int64]struct{}, len(graph.nodes))
	queue := append([]int64(nil), roots...)
	for _, r := range roots {
		seen[r] = struct{}{}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range graph.Forward(id) {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return seen
}
