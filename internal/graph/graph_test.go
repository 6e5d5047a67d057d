package graph

import "testing"

func TestAddNodeAndGetBaseNode(t *testing.T) {
	g := New()

	id, err := g.AddNode("a", "1.0.0", true)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	got, ok := g.GetBaseNode("a", "1.0.0")
	if !ok {
		t.Fatal("expected base node to exist")
	}
	if got != id {
		t.Errorf("GetBaseNode returned %d, want %d", got, id)
	}
}

func TestAddNodeDuplicateIsError(t *testing.T) {
	g := New()

	if _, err := g.AddNode("a", "1.0.0", true); err != nil {
		t.Fatalf("first AddNode failed: %v", err)
	}
	if _, err := g.AddNode("a", "1.0.0", false); err == nil {
		t.Fatal("expected duplicate AddNode to fail")
	}
}

func TestAddLinkIdempotent(t *testing.T) {
	g := New()
	a, _ := g.AddNode("a", "1.0.0", true)
	b, _ := g.AddNode("b", "1.0.0", false)

	g.AddLink(a, b)
	g.AddLink(a, b)

	if got := g.Forward(a); len(got) != 1 || got[0] != b {
		t.Errorf("Forward(a) = %v, want [%d]", got, b)
	}
	if got := g.Reverse(b); len(got) != 1 || got[0] != a {
		t.Errorf("Reverse(b) = %v, want [%d]", got, a)
	}
}

func TestRewire(t *testing.T) {
	g := New()
	a, _ := g.AddNode("a", "1.0.0", true)
	b, _ := g.AddNode("b", "1.0.0", false)
	c, _ := g.AddNode("c", "1.0.0", false)

	g.AddLink(a, b)
	g.Rewire(a, b, c)

	if g.HasLink(a, b) {
		t.Error("expected a->b to be removed after rewire")
	}
	if !g.HasLink(a, c) {
		t.Error("expected a->c to exist after rewire")
	}
}

func TestCreateVirtualAndFindVirtual(t *testing.T) {
	g := New()
	b, _ := g.AddNode("b", "1.0.0", false)
	d1, _ := g.AddNode("d", "1.0.0", false)
	d2, _ := g.AddNode("d", "2.0.0", false)
	g.AddLink(b, d1) // regular unrelated child so virtual clone carries it

	g.AddPeerLink(b, "d", "^1.0.0", false)

	virtual := g.CreateVirtual(b, "d", d2)

	if !g.HasLink(virtual, d2) {
		t.Error("expected virtual node to link to the fulfilled peer target")
	}
	if !g.HasLink(virtual, d1) {
		t.Error("expected virtual node to carry over source's outbound links")
	}
	if g.HasPeerLink(virtual) {
		t.Error("expected the fulfilled peer link to be removed from the virtual node's pending list")
	}

	found, ok := g.FindVirtual(b, "d", d2)
	if !ok || found != virtual {
		t.Errorf("FindVirtual = (%d, %v), want (%d, true)", found, ok, virtual)
	}

	if _, ok := g.FindVirtual(b, "d", d1); ok {
		t.Error("FindVirtual should not match a different fulfilled target")
	}
}

func TestGetPeerLinksExcludesLocal(t *testing.T) {
	g := New()
	root, _ := g.AddNode("root", "1.0.0", true)
	local, _ := g.AddNode("app", "1.0.0", true)
	regular, _ := g.AddNode("lib", "1.0.0", false)

	g.AddLink(root, local)
	g.AddLink(root, regular)

	g.AddPeerLink(local, "peer", "*", false)
	g.AddPeerLink(regular, "peer", "*", false)

	links := g.GetPeerLinks()
	if len(links) != 1 {
		t.Fatalf("expected 1 peer link (local excluded), got %d", len(links))
	}
	if links[0].Source != regular {
		t.Errorf("expected pending peer link source %d, got %d", regular, links[0].Source)
	}
	if links[0].Parent != root {
		t.Errorf("expected pending peer link parent %d, got %d", root, links[0].Parent)
	}
}

func TestProjectDropsUnreachableNodes(t *testing.T) {
	g := New()
	root, _ := g.AddNode("root", "1.0.0", true)
	kept, _ := g.AddNode("kept", "1.0.0", false)
	_, _ = g.AddNode("orphan", "1.0.0", false)

	g.AddLink(root, kept)

	pub := g.Project()

	if len(pub.Nodes) != 2 {
		t.Fatalf("expected 2 reachable nodes, got %d: %+v", len(pub.Nodes), pub.Nodes)
	}
	for _, n := range pub.Nodes {
		if n.Name == "orphan" {
			t.Error("unreachable node leaked into projection")
		}
	}
	if len(pub.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(pub.Links))
	}
}

func TestProjectDenseIDsSortedByNameVersion(t *testing.T) {
	g := New()
	root, _ := g.AddNode("root", "1.0.0", true)
	z, _ := g.AddNode("zeta", "1.0.0", false)
	a, _ := g.AddNode("alpha", "2.0.0", false)
	g.AddLink(root, z)
	g.AddLink(root, a)

	pub := g.Project()

	if len(pub.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(pub.Nodes))
	}
	for i, n := range pub.Nodes {
		if n.ID != i {
			t.Errorf("node %d has non-dense id %d", i, n.ID)
		}
	}
	if pub.Nodes[0].Name != "alpha" || pub.Nodes[1].Name != "root" || pub.Nodes[2].Name != "zeta" {
		t.Errorf("nodes not lex-sorted by name: %+v", pub.Nodes)
	}
}
