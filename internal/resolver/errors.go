package resolver

import "fmt"

// ResolutionMissingError is returned when a manifest declares a regular
// dependency whose (name, range) pair has no entry in the resolution
// map, or whose resolved concrete version has no corresponding manifest
// node in the graph.
type ResolutionMissingError struct {
	SourceName    string
	SourceVersion string
	DepName       string
	DepRange      string
}

func (e *ResolutionMissingError) Error() string {
	return fmt.Sprintf("no resolution for %s@%s (required by %s@%s)",
		e.DepName, e.DepRange, e.SourceName, e.SourceVersion)
}

// PeerUnmetError is returned when a non-optional peer dependency cannot
// be satisfied and FailOnMissingPeer is set.
type PeerUnmetError struct {
	PeerName      string
	SourceName    string
	SourceVersion string
	ParentName    string
	ParentVersion string
}

func (e *PeerUnmetError) Error() string {
	return fmt.Sprintf(
		"unmet peer dependency %q required by %s@%s (parent: %s@%s)",
		e.PeerName, e.SourceName, e.SourceVersion, e.ParentName, e.ParentVersion)
}
