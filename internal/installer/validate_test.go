package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ritzau/pkginstall/internal/model"
)

func mustTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pkginstall-test-")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestValidateStoreMustBeAbsolute(t *testing.T) {
	err := validate("relative/path", model.InstallGraph{}, NewOptions())
	if err == nil || err.Error() != `Location is not an absolute path: "relative/path"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidateStoreMustBeEmpty(t *testing.T) {
	dir := mustTempDir(t)
	if err := os.WriteFile(filepath.Join(dir, "leftover"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := validate(dir, model.InstallGraph{}, NewOptions())
	want := `Location is not an empty directory: "` + dir + `"`
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %s", err, want)
	}
}

func TestValidateDuplicateKey(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{Nodes: []model.InstallNode{
		{Key: "k", Name: "a", Location: mustTempDir(t)},
		{Key: "k", Name: "b", Location: mustTempDir(t)},
	}}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Multiple nodes have the following key: "k"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidatePackageNameInvalid(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{Nodes: []model.InstallNode{
		{Key: "k", Name: "!!bad", Location: mustTempDir(t)},
	}}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Package name invalid: "!!bad"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidateScopedPackageNameOK(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{Nodes: []model.InstallNode{
		{Key: "k", Name: "@scope/name", Location: mustTempDir(t)},
	}}
	if err := validate(dir, g, NewOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidLinkTarget(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{
		Nodes: []model.InstallNode{{Key: "a", Name: "a", Location: mustTempDir(t)}},
		Links: []model.InstallLink{{Source: "a", Target: "missing"}},
	}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Invalid link target: "missing"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidateMultipleTargetsSameName(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: mustTempDir(t)},
			{Key: "b1", Name: "b", Location: mustTempDir(t)},
			{Key: "b2", Name: "b", Location: mustTempDir(t)},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b1"}, {Source: "a", Target: "b2"}},
	}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Package "a" depends on multiple packages called "b"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidateBinNameInvalid(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{Nodes: []model.InstallNode{
		{Key: "a", Name: "a", Location: mustTempDir(t), Bins: map[string]string{"a/b": "bin.js"}},
	}}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Package "a" exposes a bin script with an invalid name: "a/b"` {
		t.Fatalf("got %v", err)
	}
}

func TestValidateBinConflict(t *testing.T) {
	dir := mustTempDir(t)
	g := model.InstallGraph{
		Nodes: []model.InstallNode{
			{Key: "a", Name: "a", Location: mustTempDir(t)},
			{Key: "b1", Name: "b1", Location: mustTempDir(t), Bins: map[string]string{"foo": "bin.js"}},
			{Key: "b2", Name: "b2", Location: mustTempDir(t), Bins: map[string]string{"foo": "bin.js"}},
		},
		Links: []model.InstallLink{{Source: "a", Target: "b1"}, {Source: "a", Target: "b2"}},
	}
	err := validate(dir, g, NewOptions())
	if err == nil || err.Error() != `Several different scripts called "foo" need to be installed at the same location (a).` {
		t.Fatalf("got %v", err)
	}

	opts := NewOptions()
	opts.IgnoreBinConflicts = true
	if err := validate(dir, g, opts); err != nil {
		t.Fatalf("expected bin conflict to be ignored, got %v", err)
	}
}
