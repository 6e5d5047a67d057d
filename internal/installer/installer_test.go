package installer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ritzau/pkginstall/internal/model"
)

// fakeScriptRunner records invocations instead of shelling out, and lets
// tests assert ordering between components.
type fakeScriptRunner struct {
	mu    *sync.Mutex
	order *[]string
}

func (f fakeScriptRunner) Run(ctx context.Context, dir, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.order = append(*f.order, command)
	return nil
}

func writePackageContent(t *testing.T, dir, name string, scripts map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	pkg := `{"name":"` + name + `"`
	if len(scripts) > 0 {
		pkg += `,"scripts":{`
		first := true
		for k, v := range scripts {
			if !first {
				pkg += ","
			}
			first = false
			pkg += `"` + k + `":"` + v + `"`
		}
		pkg += "}"
	}
	pkg += "}"
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstallBasicLayout(t *testing.T) {
	store := mustTempDir(t)
	aLoc := mustTempDir(t)
	bLoc := mustTempDir(t)
	writePackageContent(t, aLoc, "a", nil)
	writePackageContent(t, bLoc, "b", nil)
	if err := os.WriteFile(filepath.Join(bLoc, "bin.js"), []byte("#!/usr/bin/env node\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: aLoc, Root: true},
			{Key: "b", Name: "b", Location: bLoc, Bins: map[string]string{"b-cli": "bin.js"}},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b"}},
	}

	opts := NewOptions()
	var executed []string
	opts.ScriptRunner = fakeScriptRunner{mu: &sync.Mutex{}, order: &executed}

	if err := Install(context.Background(), store, g, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	aDest := filepath.Join(store, "a")
	bDest := filepath.Join(store, "b")

	if _, err := os.Stat(filepath.Join(aDest, "package.json")); err != nil {
		t.Errorf("expected a's content copied: %v", err)
	}

	link := filepath.Join(aDest, "node_modules", "b")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("expected symlink at %s: %v", link, err)
	}
	if target != bDest {
		t.Errorf("expected symlink to %s, got %s", bDest, target)
	}

	selfLink := filepath.Join(aDest, "node_modules", "a")
	if _, err := os.Lstat(selfLink); err != nil {
		t.Errorf("expected self-link for a: %v", err)
	}

	shim := filepath.Join(aDest, "node_modules", ".bin", "b-cli")
	if _, err := os.Stat(shim); err != nil {
		t.Errorf("expected bin shim at %s: %v", shim, err)
	}
}

func TestInstallScopedPackageLink(t *testing.T) {
	store := mustTempDir(t)
	aLoc := mustTempDir(t)
	bLoc := mustTempDir(t)
	writePackageContent(t, aLoc, "a", nil)
	writePackageContent(t, bLoc, "@scope/b", nil)

	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: aLoc, Root: true},
			{Key: "b", Name: "@scope/b", Location: bLoc},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b"}},
	}

	if err := Install(context.Background(), store, g, NewOptions()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	link := filepath.Join(store, "a", "node_modules", "@scope", "b")
	if _, err := os.Lstat(link); err != nil {
		t.Errorf("expected scoped symlink at %s: %v", link, err)
	}
}

func TestInstallKeepInPlacePurgesNodeModules(t *testing.T) {
	store := mustTempDir(t)
	aLoc := mustTempDir(t)
	writePackageContent(t, aLoc, "a", nil)
	stale := filepath.Join(aLoc, "node_modules", "stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}

	g := model.InstallGraph{
		Nodes: []model.InstallNode{{Key: "a", Name: "a", Location: aLoc, KeepInPlace: true, Root: true}},
	}

	if err := Install(context.Background(), store, g, NewOptions()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale node_modules to be purged, got err=%v", err)
	}
	if _, err := os.Lstat(filepath.Join(aLoc, "node_modules", "a")); err != nil {
		t.Errorf("expected self-link after purge: %v", err)
	}
}

func TestInstallRunsScriptsInDependencyOrder(t *testing.T) {
	store := mustTempDir(t)
	aLoc := mustTempDir(t)
	bLoc := mustTempDir(t)
	writePackageContent(t, aLoc, "a", map[string]string{"install": "echo a"})
	writePackageContent(t, bLoc, "b", map[string]string{"install": "echo b"})

	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: aLoc, Root: true},
			{Key: "b", Name: "b", Location: bLoc},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b"}},
	}

	opts := NewOptions()
	var executed []string
	opts.ScriptRunner = fakeScriptRunner{mu: &sync.Mutex{}, order: &executed}

	if err := Install(context.Background(), store, g, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if len(executed) != 2 || executed[0] != "echo b" || executed[1] != "echo a" {
		t.Errorf("expected b's script before a's, got %v", executed)
	}
}

func TestInstallCycleRunsBothConcurrently(t *testing.T) {
	store := mustTempDir(t)
	aLoc := mustTempDir(t)
	bLoc := mustTempDir(t)
	writePackageContent(t, aLoc, "a", map[string]string{"install": "echo a"})
	writePackageContent(t, bLoc, "b", map[string]string{"install": "echo b"})

	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: aLoc, Root: true},
			{Key: "b", Name: "b", Location: bLoc},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	}

	opts := NewOptions()
	var executed []string
	opts.ScriptRunner = fakeScriptRunner{mu: &sync.Mutex{}, order: &executed}

	if err := Install(context.Background(), store, g, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if len(executed) != 2 {
		t.Fatalf("expected both scripts to run, got %v", executed)
	}
}
