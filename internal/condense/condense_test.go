package condense

import "testing"

func TestCondenseAcyclicSingletons(t *testing.T) {
	keys := []string{"a", "b", "c"}
	edges := []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}}

	c := Condense(keys, edges, func(k string) bool { return k == "a" })

	if len(c.Components) != 3 {
		t.Fatalf("expected 3 singleton components, got %d: %+v", len(c.Components), c.Components)
	}
	for _, comp := range c.Components {
		if len(comp.Keys) != 1 {
			t.Errorf("expected singleton component, got %+v", comp)
		}
	}
	if len(c.RootComponents) != 1 {
		t.Fatalf("expected exactly 1 root component, got %d", len(c.RootComponents))
	}
}

func TestCondenseCycleMergesIntoOneComponent(t *testing.T) {
	keys := []string{"a", "b"}
	edges := []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}}

	c := Condense(keys, edges, func(k string) bool { return true })

	if len(c.Components) != 1 {
		t.Fatalf("expected 1 component for a 2-cycle, got %d: %+v", len(c.Components), c.Components)
	}
	for _, comp := range c.Components {
		if len(comp.Keys) != 2 {
			t.Errorf("expected both nodes in the same component, got %+v", comp)
		}
		if len(comp.Dependencies) != 0 {
			t.Errorf("expected no dependencies (self-loop excluded), got %+v", comp.Dependencies)
		}
	}
}

func TestCondenseDependenciesExcludeSelfLoop(t *testing.T) {
	keys := []string{"a"}
	edges := []Edge{{Source: "a", Target: "a"}}

	c := Condense(keys, edges, nil)

	if len(c.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(c.Components))
	}
	for _, comp := range c.Components {
		if len(comp.Dependencies) != 0 {
			t.Errorf("expected self-loop to be excluded from dependencies, got %+v", comp.Dependencies)
		}
	}
}

func TestCondenseDependencyOrdering(t *testing.T) {
	// a depends on b (a -> b): b's component must not depend on a's.
	keys := []string{"a", "b"}
	edges := []Edge{{Source: "a", Target: "b"}}

	c := Condense(keys, edges, nil)

	var aComp, bComp int
	for id, comp := range c.Components {
		if comp.Keys[0] == "a" {
			aComp = id
		} else {
			bComp = id
		}
	}

	if len(c.Components[aComp].Dependencies) != 1 || c.Components[aComp].Dependencies[0] != bComp {
		t.Errorf("expected a's component to depend on b's component, got %+v", c.Components[aComp])
	}
	if len(c.Components[bComp].Dependencies) != 0 {
		t.Errorf("expected b's component to have no dependencies, got %+v", c.Components[bComp])
	}
}
