package installer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/pkginstall/internal/condense"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
)

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

// runScripts condenses the final on-disk graph (including self-links) to
// a component DAG, marking a component as root if any of its nodes was
// flagged root by the caller, then walks the DAG so that no component's
// scripts start before every component it depends on has finished. Within
// a component, member packages run concurrently.
func runScripts(ctx context.Context, g model.InstallGraph, locs locations, opts Options) error {
	keys := make([]string, 0, len(g.Nodes))
	rootKeys := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		keys = append(keys, n.Key)
		if n.Root {
			rootKeys[n.Key] = true
		}
	}

	edges := make([]condense.Edge, 0, len(g.Links))
	for _, l := range withSelfLinks(g) {
		edges = append(edges, condense.Edge{Source: l.Source, Target: l.Target})
	}

	c := condense.Condense(keys, edges, func(k string) bool { return rootKeys[k] })

	done := make(map[int]chan struct{}, len(c.Components))
	for id := range c.Components {
		done[id] = make(chan struct{})
	}

	eg, egctx := errgroup.WithContext(ctx)
	for id, comp := range c.Components {
		id, comp := id, comp
		eg.Go(func() error {
			for _, dep := range comp.Dependencies {
				select {
				case <-done[dep]:
				case <-egctx.Done():
					return egctx.Err()
				}
			}

			if err := runComponent(egctx, comp, locs, opts); err != nil {
				close(done[id])
				return err
			}
			close(done[id])
			return nil
		})
	}
	return eg.Wait()
}

func runComponent(ctx context.Context, comp condense.Component, locs locations, opts Options) error {
	eg, egctx := errgroup.WithContext(ctx)
	for _, key := range comp.Keys {
		key := key
		eg.Go(func() error {
			return runNodeScripts(egctx, key, locs[key], opts)
		})
	}
	return eg.Wait()
}

func runNodeScripts(ctx context.Context, key, dest string, opts Options) error {
	data, err := os.ReadFile(filepath.Join(dest, "package.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &IOError{Op: "read package.json", Path: dest, Err: err}
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil // Malformed manifests don't block install; scripts are best-effort here.
	}

	for _, name := range []string{"install", "postinstall"} {
		cmd, ok := pkg.Scripts[name]
		if !ok || cmd == "" {
			continue
		}
		publish(opts.Publisher, progress.TopicScript, "started", map[string]string{"key": key, "script": name})
		if err := opts.ScriptRunner.Run(ctx, dest, cmd); err != nil {
			publish(opts.Publisher, progress.TopicScript, "failed", map[string]string{"key": key, "script": name})
			return &ScriptError{Key: key, Script: name, Command: cmd, Err: err}
		}
		publish(opts.Publisher, progress.TopicScript, "succeeded", map[string]string{"key": key, "script": name})
	}
	return nil
}
