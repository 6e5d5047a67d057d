package resolver

import (
	"github.com/ritzau/pkginstall/internal/graph"
	"github.com/ritzau/pkginstall/internal/logging"
)

// resolutionKind is the outcome of trying to find a provider for one pending
// peer-dependency link.
type resolutionKind int

const (
	resolutionIgnored resolutionKind = iota
	resolutionRetryLater
	resolutionFailed
	resolutionConcrete
)

// fixedPoint drives the peer-dependency resolution loop to completion: it
// repeatedly pops a pending peer link, resolves its provider, and either
// virtualizes+rewires the graph or requeues/drops the link, until the
// queue empties or the watchdog detects a full revolution with no
// progress.
func fixedPoint(g *graph.Graph, opts Options) error {
	queue := g.GetPeerLinks()
	watchdog := len(queue) + 1

	for len(queue) > 0 && watchdog > 0 {
		e := queue[0]
		queue = queue[1:]

		if !g.HasLink(e.Parent, e.Source) {
			// Stale entry: the parent->source edge was rewired away
			// since this link was enqueued. Drop it silently.
			watchdog = len(queue) + 1
			continue
		}

		kind, providerID := resolveProvider(g, e)

		switch kind {
		case resolutionIgnored:
			continue
		case resolutionFailed:
			if opts.FailOnMissingPeer {
				return &PeerUnmetError{
					PeerName:      e.TargetName,
					SourceName:    g.Name(e.Source),
					SourceVersion: g.Version(e.Source),
					ParentName:    g.Name(e.Parent),
					ParentVersion: g.Version(e.Parent),
				}
			}
			logging.Warn("unmet optional-by-policy peer dependency, continuing",
				"peer", e.TargetName, "source", g.Name(e.Source), "sourceVersion", g.Version(e.Source))
			continue
		case resolutionRetryLater:
			queue = append(queue, e)
			watchdog--
			continue
		case resolutionConcrete:
			if !satisfiesRange(g.Version(providerID), e.TargetRange) {
				warnMismatch(e.TargetName, g.Name(e.Source), g.Version(e.Source),
					g.Name(e.Parent), g.Version(e.Parent), g.Version(providerID), e.TargetRange)
			}

			chosen, found := g.FindVirtual(e.Source, e.TargetName, providerID)
			if !found {
				chosen = g.CreateVirtual(e.Source, e.TargetName, providerID)

				for _, p := range g.PendingOf(chosen) {
					queue = append(queue, graph.EnrichedPeerLink{
						Parent: e.Parent, Source: chosen,
						TargetName: p.TargetName, TargetRange: p.TargetRange, Optional: p.Optional,
					})
				}
				for _, child := range g.Forward(chosen) {
					for _, p := range g.PendingOf(child) {
						queue = append(queue, graph.EnrichedPeerLink{
							Parent: chosen, Source: child,
							TargetName: p.TargetName, TargetRange: p.TargetRange, Optional: p.Optional,
						})
					}
				}
			}

			g.Rewire(e.Parent, e.Source, chosen)
			watchdog = len(queue) + 1
		}
	}

	if len(queue) > 0 {
		logging.Warn("peer-dependency fixed point abandoned remaining unresolved links", "remaining", len(queue))
	}

	return nil
}

// resolveProvider searches, in order: a regular child of source named
// target_name; a forward child of parent (or parent itself) named
// target_name; the optional flag; whether parent itself still has
// pending peer links (meaning it may yet be virtualized and the peer
// become findable later); and finally falls back to unmet.
func resolveProvider(g *graph.Graph, e graph.EnrichedPeerLink) (resolutionKind, int64) {
	if _, ok := g.ChildByName(e.Source, e.TargetName); ok {
		return resolutionIgnored, 0
	}

	for _, child := range g.Forward(e.Parent) {
		if g.Name(child) == e.TargetName {
			return resolutionConcrete, child
		}
	}
	if g.Name(e.Parent) == e.TargetName {
		return resolutionConcrete, e.Parent
	}

	if e.Optional {
		logging.Warn("optional peer dependency not found, skipping",
			"peer", e.TargetName, "source", g.Name(e.Source), "sourceVersion", g.Version(e.Source))
		return resolutionIgnored, 0
	}

	if g.HasPeerLink(e.Parent) {
		return resolutionRetryLater, 0
	}

	return resolutionFailed, 0
}
