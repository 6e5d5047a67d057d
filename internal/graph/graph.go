// Package graph implements the mutable, in-memory dependency graph used
// by the resolver: an arena of internal nodes (possibly several "virtual"
// nodes sharing the same name and version but differing in resolved peer
// dependencies), directed links between them, and pending peer-dependency
// links awaiting resolution.
//
// The link arena is a gonum directed graph (as in the teacher's
// pkg/graph/file_graph.go): gonum's simple.DirectedGraph already
// maintains both forward (From) and reverse (To) adjacency internally,
// so the "reverse index stays consistent with the forward index" invariant
// holds by construction rather than needing a second hand-maintained map.
// Per-node metadata (name, version, locality, resolved and pending peer
// dependencies) lives in a parallel side table keyed by the same id.
package graph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// PendingPeerLink is an unresolved peer dependency attached to a node.
type PendingPeerLink struct {
	TargetName  string
	TargetRange string
	Optional    bool
}

// EnrichedPeerLink is a PendingPeerLink paired with the node that holds it
// (Source) and one of Source's current reverse-neighbors (Parent).
type EnrichedPeerLink struct {
	Parent      int64
	Source      int64
	TargetName  string
	TargetRange string
	Optional    bool
}

type nodeData struct {
	name     string
	version  string
	isLocal  bool
	peerDeps map[string]int64 // name -> resolved target node id
	pending  []PendingPeerLink
}

func (n *nodeData) clonePeerDeps() map[string]int64 {
	out := make(map[string]int64, len(n.peerDeps))
	for k, v := range n.peerDeps {
		out[k] = v
	}
	return out
}

// Graph is the mutable dependency graph. Zero value is not usable; use
// New.
type Graph struct {
	g       *simple.DirectedGraph
	nodes   map[int64]*nodeData
	baseIDs map[string]int64 // "name@version" -> id of the base (no peer deps) node
	nextID  int64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		g:       simple.NewDirectedGraph(),
		nodes:   make(map[int64]*nodeData),
		baseIDs: make(map[string]int64),
	}
}

func baseKey(name, version string) string {
	return name + "@" + version
}

// AddNode creates the base node (empty peer deps) for (name, version).
// Creating a second base node for the same (name, version) is an error —
// see DESIGN.md's Open Questions decision on duplicate manifests.
func (graph *Graph) AddNode(name, version string, isLocal bool) (int64, error) {
	key := baseKey(name, version)
	if _, exists := graph.baseIDs[key]; exists {
		return 0, fmt.Errorf("duplicate manifest for %s@%s", name, version)
	}

	id := graph.nextID
	graph.nextID++

	graph.g.AddNode(simple.Node(id))
	graph.nodes[id] = &nodeData{
		name:     name,
		version:  version,
		isLocal:  isLocal,
		peerDeps: make(map[string]int64),
	}
	graph.baseIDs[key] = id

	return id, nil
}

// GetBaseNode returns the id of the unique node with empty peer deps for
// (name, version), if one exists.
func (graph *Graph) GetBaseNode(name, version string) (int64, bool) {
	id, ok := graph.baseIDs[baseKey(name, version)]
	return id, ok
}

// Name returns the node's package name.
func (graph *Graph) Name(id int64) string { return graph.nodes[id].name }

// Version returns the node's package version.
func (graph *Graph) Version(id int64) string { return graph.nodes[id].version }

// IsLocal reports whether the node came from a local manifest.
func (graph *Graph) IsLocal(id int64) bool { return graph.nodes[id].isLocal }

// PeerDeps returns a copy of the node's resolved peer-dependency map.
func (graph *Graph) PeerDeps(id int64) map[string]int64 {
	return graph.nodes[id].clonePeerDeps()
}

// NodeIDs returns every node id currently in the graph, in no particular
// order.
func (graph *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(graph.nodes))
	for id := range graph.nodes {
		ids = append(ids, id)
	}
	return ids
}

// AddLink idempotently inserts a directed edge source->target.
func (graph *Graph) AddLink(source, target int64) {
	if graph.g.HasEdgeFromTo(source, target) {
		return
	}
	graph.g.SetEdge(graph.g.NewEdge(graph.g.Node(source), graph.g.Node(target)))
}

// HasLink reports whether a direct edge source->target exists.
func (graph *Graph) HasLink(source, target int64) bool {
	return graph.g.HasEdgeFromTo(source, target)
}

// RemoveLink removes the directed edge source->target, if present.
func (graph *Graph) RemoveLink(source, target int64) {
	graph.g.RemoveEdge(source, target)
}

// Forward returns the ids of source's direct children, sorted for
// deterministic iteration.
func (graph *Graph) Forward(source int64) []int64 {
	it := graph.g.From(source)
	ids := make([]int64, 0, it.Len())
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reverse returns the ids of source's direct parents (reverse-neighbors),
// sorted for deterministic iteration.
func (graph *Graph) Reverse(source int64) []int64 {
	it := graph.g.To(source)
	ids := make([]int64, 0, it.Len())
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ChildByName returns the id of source's forward child named name, if
// any. Every forward link is considered; links added by CreateVirtual for
// a fulfilled peer are not told apart from regular dependency links.
func (graph *Graph) ChildByName(source int64, name string) (int64, bool) {
	it := graph.g.From(source)
	for it.Next() {
		id := it.Node().ID()
		if graph.nodes[id].name == name {
			return id, true
		}
	}
	return 0, false
}

// AddPeerLink appends a pending peer-dependency link to source.
func (graph *Graph) AddPeerLink(source int64, targetName, targetRange string, optional bool) {
	n := graph.nodes[source]
	n.pending = append(n.pending, PendingPeerLink{
		TargetName:  targetName,
		TargetRange: targetRange,
		Optional:    optional,
	})
}

// HasPeerLink reports whether id has any pending peer-dependency links.
func (graph *Graph) HasPeerLink(id int64) bool {
	return len(graph.nodes[id].pending) > 0
}

// PendingOf returns a copy of id's pending peer links.
func (graph *Graph) PendingOf(id int64) []PendingPeerLink {
	src := graph.nodes[id].pending
	out := make([]PendingPeerLink, len(src))
	copy(out, src)
	return out
}

// GetPeerLinks enumerates every (parent, source, targetName, targetRange,
// optional) tuple where source has pending peer links and parent is a
// reverse-neighbor of source. Peer links belonging to local nodes are
// excluded: locals never propagate peer dependencies upward.
func (graph *Graph) GetPeerLinks() []EnrichedPeerLink {
	var out []EnrichedPeerLink

	ids := graph.NodeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, source := range ids {
		data := graph.nodes[source]
		if data.isLocal || len(data.pending) == 0 {
			continue
		}
		parents := graph.Reverse(source)
		for _, parent := range parents {
			for _, p := range data.pending {
				out = append(out, EnrichedPeerLink{
					Parent:      parent,
					Source:      source,
					TargetName:  p.TargetName,
					TargetRange: p.TargetRange,
					Optional:    p.Optional,
				})
			}
		}
	}

	return out
}

func peerDepsEqual(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// FindVirtual returns the id of an existing node sharing source's (name,
// version) whose peer-deps equal source's peer-deps plus the given
// fulfilled entry, if one exists.
func (graph *Graph) FindVirtual(source int64, fulfilledName string, fulfilledTarget int64) (int64, bool) {
	srcData := graph.nodes[source]
	want := srcData.clonePeerDeps()
	want[fulfilledName] = fulfilledTarget

	ids := graph.NodeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		cand := graph.nodes[id]
		if cand.name != srcData.name || cand.version != srcData.version {
			continue
		}
		if peerDepsEqual(cand.peerDeps, want) {
			return id, true
		}
	}
	return 0, false
}

// CreateVirtual clones source into a new node whose peer deps are
// source's augmented with {fulfilledName: fulfilledTarget}. All of
// source's outbound links are duplicated onto the new node, a link to
// fulfilledTarget is added, and source's pending peer links are copied
// over minus any entry for fulfilledName.
func (graph *Graph) CreateVirtual(source int64, fulfilledName string, fulfilledTarget int64) int64 {
	srcData := graph.nodes[source]

	newID := graph.nextID
	graph.nextID++
	graph.g.AddNode(simple.Node(newID))

	peerDeps := srcData.clonePeerDeps()
	peerDeps[fulfilledName] = fulfilledTarget

	pending := make([]PendingPeerLink, 0, len(srcData.pending))
	for _, p := range srcData.pending {
		if p.TargetName == fulfilledName {
			continue
		}
		pending = append(pending, p)
	}

	graph.nodes[newID] = &nodeData{
		name:     srcData.name,
		version:  srcData.version,
		isLocal:  srcData.isLocal,
		peerDeps: peerDeps,
		pending:  pending,
	}

	for _, child := range graph.Forward(source) {
		graph.AddLink(newID, child)
	}
	graph.AddLink(newID, fulfilledTarget)

	return newID
}

// Rewire removes the link parent->oldChild and inserts parent->newChild.
func (graph *Graph) Rewire(parent, oldChild, newChild int64) {
	graph.RemoveLink(parent, oldChild)
	graph.AddLink(parent, newChild)
}
