package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ritzau/pkginstall/internal/logging"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
)

// locations maps a node key to its resolved destination on disk.
// Written once during layout, read-only thereafter.
type locations map[string]string

// layout materializes every node's content at its destination, then adds
// node_modules symlinks and .bin shims for every link. Destinations are
// computed and content copied before any symlink is created; symlinks
// and shims run under a shared general-concurrency limiter.
func layout(ctx context.Context, store string, g model.InstallGraph, opts Options) (locations, error) {
	locs := make(locations, len(g.Nodes))
	for _, n := range g.Nodes {
		dest := n.Location
		if !n.KeepInPlace {
			dest = filepath.Join(store, n.Key)
		}
		locs[n.Key] = dest
	}

	placeGroup, placeCtx := errgroup.WithContext(ctx)
	for _, n := range g.Nodes {
		n := n
		placeGroup.Go(func() error {
			if err := placeNode(placeCtx, n, locs[n.Key], opts); err != nil {
				return err
			}
			publish(opts.Publisher, progress.TopicInstall, "node_placed", map[string]string{"key": n.Key})
			return nil
		})
	}
	if err := placeGroup.Wait(); err != nil {
		return nil, err
	}

	publish(opts.Publisher, progress.TopicInstall, "linking", nil)
	links := withSelfLinks(g)

	sem := semaphore.NewWeighted(int64(generalConcurrency(opts)))
	eg, egctx := errgroup.WithContext(ctx)
	for _, l := range links {
		l := l
		eg.Go(func() error {
			if err := sem.Acquire(egctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return linkNode(l, g, locs)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return locs, nil
}

func placeNode(ctx context.Context, n model.InstallNode, dest string, opts Options) error {
	if n.KeepInPlace {
		modules := filepath.Join(dest, "node_modules")
		if err := os.RemoveAll(modules); err != nil {
			return &IOError{Op: "remove", Path: modules, Err: err}
		}
		return nil
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dest, Err: err}
	}

	actions, err := scanCopyActions(n.Location, opts.FilesToExclude)
	if err != nil {
		return err
	}
	return runCopy(ctx, actions, dest, opts.WorkersLimit)
}

// withSelfLinks adds an implicit self-link for every node unless one is
// already present, per the spec's self-link invariant.
func withSelfLinks(g model.InstallGraph) []model.InstallLink {
	have := make(map[string]bool, len(g.Links))
	for _, l := range g.Links {
		if l.Source == l.Target {
			have[l.Source] = true
		}
	}
	links := append([]model.InstallLink(nil), g.Links...)
	for _, n := range g.Nodes {
		if !have[n.Key] {
			links = append(links, model.InstallLink{Source: n.Key, Target: n.Key})
		}
	}
	return links
}

func linkNode(l model.InstallLink, g model.InstallGraph, locs locations) error {
	srcDest, tgtDest := locs[l.Source], locs[l.Target]
	tgtNode := nodeByKey(g, l.Target)

	modulesDir := filepath.Join(srcDest, "node_modules")
	linkPath := modulePath(modulesDir, tgtNode.Name)
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: filepath.Dir(linkPath), Err: err}
	}
	if err := replaceSymlink(tgtDest, linkPath); err != nil {
		return err
	}

	for bin, rel := range tgtNode.Bins {
		binSrc := filepath.Join(tgtDest, rel)
		if _, err := os.Stat(binSrc); err != nil {
			continue // bin path doesn't exist: skip silently, per spec.
		}
		binDir := filepath.Join(modulesDir, ".bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			return &IOError{Op: "mkdir", Path: binDir, Err: err}
		}
		if err := writeShim(filepath.Join(binDir, bin), binSrc); err != nil {
			return err
		}
	}
	return nil
}

// modulePath builds node_modules/<name> for an unscoped name, or
// node_modules/<scope>/<name> for a scoped one.
func modulePath(modulesDir, name string) string {
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name, "/", 2)
		if len(parts) == 2 {
			return filepath.Join(modulesDir, parts[0], parts[1])
		}
	}
	return filepath.Join(modulesDir, name)
}

func replaceSymlink(target, linkPath string) error {
	_ = os.Remove(linkPath)
	if err := os.Symlink(target, linkPath); err != nil {
		return &IOError{Op: "symlink", Path: linkPath, Err: err}
	}
	return nil
}

// writeShim installs a POSIX shell shim at shimPath that execs binSrc
// with any arguments forwarded. Platforms with a native executable-stub
// convention would substitute one here; this spec treats the shim's
// internals as opaque beyond "resolves and forwards to the real binary".
func writeShim(shimPath, binSrc string) error {
	content := fmt.Sprintf("#!/bin/sh\nexec %q \"$@\"\n", binSrc)
	if err := os.WriteFile(shimPath, []byte(content), 0o755); err != nil {
		return &IOError{Op: "write shim", Path: shimPath, Err: err}
	}
	return nil
}

func nodeByKey(g model.InstallGraph, key string) model.InstallNode {
	for _, n := range g.Nodes {
		if n.Key == key {
			return n
		}
	}
	return model.InstallNode{}
}

func generalConcurrency(opts Options) int {
	if opts.GeneralConcurrency > 0 {
		return opts.GeneralConcurrency
	}
	return defaultGeneralConcurrency
}

func publish(p progress.Publisher, topic, eventType string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(topic, eventType, data); err != nil {
		logging.Warn("failed to publish progress event", "topic", topic, "type", eventType, "err", err)
	}
}
