// Command pkginstall resolves a set of package manifests against a
// resolution table, materializes the result on disk, and runs lifecycle
// scripts in dependency order. The registry lookups that produce
// manifests and resolutions are out of scope for this binary; it reads
// them, already resolved-to-versions, from a JSON request file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ritzau/pkginstall/internal/config"
	"github.com/ritzau/pkginstall/internal/installer"
	"github.com/ritzau/pkginstall/internal/logging"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
	"github.com/ritzau/pkginstall/internal/report"
	"github.com/ritzau/pkginstall/internal/resolver"
	"github.com/ritzau/pkginstall/internal/statusserver"
)

// nodeMeta is the on-disk content location for one manifest entry, keyed
// by "name@version" in the request file.
type nodeMeta struct {
	Location    string            `json:"location"`
	KeepInPlace bool              `json:"keepInPlace,omitempty"`
	Bins        map[string]string `json:"bins,omitempty"`
}

// installRequest is the CLI's input shape: everything the out-of-scope
// registry client and lockfile reader would otherwise have produced.
type installRequest struct {
	Manifests   []model.PackageManifest `json:"manifests"`
	Resolutions model.ResolutionMap     `json:"resolutions"`
	Locations   map[string]nodeMeta     `json:"locations"`
}

func main() {
	f := pflag.NewFlagSet("pkginstall", pflag.ExitOnError)
	requestPath := f.String("request", "", "path to the install request JSON file")
	f.String("store", "", "absolute path to the empty store directory packages are installed into")
	f.Int("workers", 0, "file-copy worker pool size (0: use WORKERS_LIMIT env var, then NumCPU)")
	f.Bool("ignore_bin_conflicts", false, "allow conflicting bin script names instead of failing (which one is installed is not defined)")
	f.Bool("fail_on_missing_peer", true, "abort resolution when a non-optional peer dependency is unmet")
	f.Bool("status", false, "start the read-only status/SSE server alongside the install")
	f.Int("port", 8080, "port for the status server (only used with --status)")
	f.String("verbosity", "", "log level: debug, info, warn, or error")
	_ = f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Verbosity != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Verbosity)); err == nil {
			logging.SetLevel(level)
		}
	}

	if *requestPath == "" {
		fmt.Fprintln(os.Stderr, "error: --request is required")
		os.Exit(1)
	}
	req, err := loadRequest(*requestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	publisher := progress.NewSSEPublisher()
	defer publisher.Close()

	var status *statusserver.Server
	if cfg.Status {
		status = statusserver.NewServer(publisher)
		go func() {
			if err := status.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
				logging.Error("status server exited", "err", err)
			}
		}()
	}

	if cfg.Store == "" {
		fmt.Fprintln(os.Stderr, "error: --store is required")
		os.Exit(1)
	}

	resolveOpts := resolver.NewOptions()
	resolveOpts.FailOnMissingPeer = cfg.FailOnMissingPeer
	resolveOpts.Publisher = publisher

	logging.Info("resolving dependency graph", "packages", len(req.Manifests))
	graph, err := resolver.Resolve(req.Manifests, req.Resolutions, resolveOpts)
	if err != nil {
		report.Print(report.Summary{Err: err})
		os.Exit(1)
	}
	if status != nil {
		status.SetGraph(graph)
	}

	installGraph, err := buildInstallGraph(graph, req)
	if err != nil {
		report.Print(report.Summary{Err: err})
		os.Exit(1)
	}

	installOpts := installer.NewOptions()
	installOpts.IgnoreBinConflicts = cfg.IgnoreBinConflicts
	installOpts.WorkersLimit = cfg.WorkersLimit
	installOpts.Publisher = publisher

	logging.Info("installing", "store", cfg.Store, "nodes", len(installGraph.Nodes))
	installErr := installer.Install(context.Background(), cfg.Store, installGraph, installOpts)

	report.Print(report.Summary{
		Nodes: len(graph.Nodes),
		Links: len(graph.Links),
		Err:   installErr,
	})
	if installErr != nil {
		os.Exit(1)
	}
}

func loadRequest(path string) (*installRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}
	var req installRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing request file: %w", err)
	}
	return &req, nil
}

// buildInstallGraph pairs the resolver's public graph nodes with their
// on-disk content locations, looked up by "name@version" in the
// request's Locations map, and marks a node root when some manifest
// with the same (name, version) was flagged is_local.
func buildInstallGraph(g model.Graph, req *installRequest) (model.InstallGraph, error) {
	localNames := make(map[string]bool, len(req.Manifests))
	for _, m := range req.Manifests {
		if m.IsLocal {
			localNames[m.Name+"@"+m.Version] = true
		}
	}

	keyByID := make(map[int]string, len(g.Nodes))
	nodes := make([]model.InstallNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nameVersion := n.Name + "@" + n.Version
		meta, ok := req.Locations[nameVersion]
		if !ok {
			return model.InstallGraph{}, fmt.Errorf("no content location for %s", nameVersion)
		}
		key := fmt.Sprintf("%s#%d", nameVersion, n.ID)
		keyByID[n.ID] = key
		nodes = append(nodes, model.InstallNode{
			Key:         key,
			Name:        n.Name,
			Location:    meta.Location,
			KeepInPlace: meta.KeepInPlace,
			Bins:        meta.Bins,
			Root:        localNames[nameVersion],
		})
	}

	links := make([]model.InstallLink, 0, len(g.Links))
	for _, l := range g.Links {
		links = append(links, model.InstallLink{Source: keyByID[l.SourceID], Target: keyByID[l.TargetID]})
	}

	return model.InstallGraph{Nodes: nodes, Links: links}, nil
}
