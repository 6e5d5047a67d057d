// Package resolver turns a set of package manifests and a resolution map
// into a concrete, virtualized dependency graph: it adds every manifest
// and its regular dependencies to a graph.Graph, then drives a
// fixed-point loop over pending peer dependencies, duplicating
// ("virtualizing") nodes whose peer dependencies must be satisfied
// differently from different parents.
package resolver

import (
	"fmt"

	"github.com/ritzau/pkginstall/internal/graph"
	"github.com/ritzau/pkginstall/internal/logging"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
	"github.com/ritzau/pkginstall/internal/semver"
)

// Options configures a resolve pass.
type Options struct {
	// FailOnMissingPeer aborts resolution with a PeerUnmetError when a
	// non-optional peer dependency cannot be satisfied. It is false in the
	// zero value; NewOptions sets it to true.
	FailOnMissingPeer bool

	// Publisher, if non-nil, receives resolve_progress events. Nil is a
	// valid, fully-functional value: publishing is always best-effort.
	Publisher progress.Publisher
}

// NewOptions returns Options with FailOnMissingPeer defaulted to true,
// matching spec.md's default.
func NewOptions() Options {
	return Options{FailOnMissingPeer: true}
}

// Resolve builds the dependency graph for manifests+resolutions and
// returns its public, projected shape.
func Resolve(manifests []model.PackageManifest, resolutions model.ResolutionMap, opts Options) (model.Graph, error) {
	g := graph.New()
	baseIDs := make(map[string]int64, len(manifests)) // "name@version" -> id

	publish(opts.Publisher, "phase_start", map[string]any{"phase": "add_nodes"})

	// Phase 1: add a base node for every manifest.
	for _, m := range manifests {
		id, err := g.AddNode(m.Name, m.Version, m.IsLocal)
		if err != nil {
			return model.Graph{}, err
		}
		baseIDs[m.Name+"@"+m.Version] = id
	}

	publish(opts.Publisher, "phase_done", map[string]any{"phase": "add_nodes", "count": len(manifests)})

	lookupTarget := func(m model.PackageManifest, depName, depRange string) (int64, error) {
		version, ok := resolutions.Lookup(depName, depRange)
		if !ok {
			return 0, &ResolutionMissingError{
				SourceName: m.Name, SourceVersion: m.Version,
				DepName: depName, DepRange: depRange,
			}
		}
		target, ok := g.GetBaseNode(depName, version)
		if !ok {
			return 0, &ResolutionMissingError{
				SourceName: m.Name, SourceVersion: m.Version,
				DepName: depName, DepRange: depRange,
			}
		}
		return target, nil
	}

	// Phase 2: regular dependencies.
	publish(opts.Publisher, "phase_start", map[string]any{"phase": "dependencies"})
	for _, m := range manifests {
		source := baseIDs[m.Name+"@"+m.Version]
		for depName, depRange := range m.Dependencies {
			target, err := lookupTarget(m, depName, depRange)
			if err != nil {
				return model.Graph{}, err
			}
			g.AddLink(source, target)
		}
	}
	publish(opts.Publisher, "phase_done", map[string]any{"phase": "dependencies"})

	// Phase 3: dev dependencies, local manifests only.
	publish(opts.Publisher, "phase_start", map[string]any{"phase": "dev_dependencies"})
	for _, m := range manifests {
		if !m.IsLocal {
			continue
		}
		source := baseIDs[m.Name+"@"+m.Version]
		for depName, depRange := range m.DevDependencies {
			target, err := lookupTarget(m, depName, depRange)
			if err != nil {
				return model.Graph{}, err
			}
			g.AddLink(source, target)
		}
	}
	publish(opts.Publisher, "phase_done", map[string]any{"phase": "dev_dependencies"})

	// Phase 4: optional dependencies. A missing resolution entry is still
	// fatal; a missing *target node* for an otherwise-resolved version is
	// silently skipped.
	publish(opts.Publisher, "phase_start", map[string]any{"phase": "optional_dependencies"})
	for _, m := range manifests {
		source := baseIDs[m.Name+"@"+m.Version]
		for depName, depRange := range m.OptionalDependencies {
			version, ok := resolutions.Lookup(depName, depRange)
			if !ok {
				return model.Graph{}, &ResolutionMissingError{
					SourceName: m.Name, SourceVersion: m.Version,
					DepName: depName, DepRange: depRange,
				}
			}
			target, ok := g.GetBaseNode(depName, version)
			if !ok {
				continue // missing target node: silently skipped
			}
			g.AddLink(source, target)
		}
	}
	publish(opts.Publisher, "phase_done", map[string]any{"phase": "optional_dependencies"})

	// Phase 5: combined peer-dependency map, registered as pending links.
	publish(opts.Publisher, "phase_start", map[string]any{"phase": "peer_dependencies"})
	for _, m := range manifests {
		source := baseIDs[m.Name+"@"+m.Version]

		combined := make(map[string]string, len(m.PeerDependenciesMeta)+len(m.PeerDependencies))
		for name := range m.PeerDependenciesMeta {
			combined[name] = "*"
		}
		for name, rng := range m.PeerDependencies {
			combined[name] = rng
		}

		for name, rng := range combined {
			optional := m.PeerDependenciesMeta[name].Optional
			g.AddPeerLink(source, name, rng, optional)
		}
	}
	publish(opts.Publisher, "phase_done", map[string]any{"phase": "peer_dependencies"})

	if err := fixedPoint(g, opts); err != nil {
		return model.Graph{}, err
	}

	return g.Project(), nil
}

func publish(p progress.Publisher, eventType string, data any) {
	if p == nil {
		return
	}
	_ = p.Publish(progress.TopicResolve, eventType, data)
}

func warnMismatch(name, sourceName, sourceVersion, parentName, parentVersion, resolvedVersion, rng string) {
	logging.Warn(fmt.Sprintf(
		"[WARNING] unmatching peer dependency, %s in %s@%s (parent: %s@%s) was resolved to version %s which does not satisfy the given range: %s",
		name, sourceName, sourceVersion, parentName, parentVersion, resolvedVersion, rng))
}

// satisfiesRange reports whether version satisfies rng, treating a parse
// failure as "not satisfied" rather than propagating the error: a
// malformed range must still result in a warning, never an abort.
func satisfiesRange(version, rng string) bool {
	ok, err := semver.Satisfies(version, rng)
	if err != nil {
		return false
	}
	return ok
}
