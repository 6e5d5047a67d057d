// Package installer validates a resolved package graph, materializes it
// on disk as a content-isolated store of package directories linked
// through each other's node_modules, and runs lifecycle scripts in
// dependency order.
package installer

import (
	"context"

	"github.com/ritzau/pkginstall/internal/logging"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
)

// Install validates g against store and opts, lays out every node's
// content, wires node_modules symlinks and bin shims, and finally runs
// lifecycle scripts in strongly-connected-component order. Validation
// completes in full before any disk mutation; a failure at any later
// stage aborts the install without rollback.
func Install(ctx context.Context, store string, g model.InstallGraph, opts Options) error {
	if opts.ScriptRunner == nil {
		opts.ScriptRunner = NewShellScriptRunner()
	}
	if opts.FilesToExclude == nil {
		opts.FilesToExclude = map[string]bool{}
	}

	publish(opts.Publisher, progress.TopicInstall, "validating", nil)
	if err := validate(store, g, opts); err != nil {
		return err
	}

	publish(opts.Publisher, progress.TopicInstall, "copying", nil)
	locs, err := layout(ctx, store, g, opts)
	if err != nil {
		return err
	}

	publish(opts.Publisher, progress.TopicInstall, "scripts_running", nil)
	if err := runScripts(ctx, g, locs, opts); err != nil {
		return err
	}
	publish(opts.Publisher, progress.TopicInstall, "done", nil)

	logging.Info("install complete", "store", store, "nodes", len(g.Nodes))
	return nil
}
