// Package report prints a colorized terminal summary of a resolve and
// install run.
package report

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/ritzau/pkginstall/internal/model"
)

// Summary holds the counts and any partial failure surfaced by one
// resolve+install run.
type Summary struct {
	Nodes    int
	Links    int
	Warnings []string
	Err      error
}

// FromGraph builds a Summary from a resolved graph and any warnings
// collected during resolution.
func FromGraph(g model.Graph, warnings []string) Summary {
	return Summary{Nodes: len(g.Nodes), Links: len(g.Links), Warnings: warnings}
}

// Print writes a formatted summary to stdout: a header, node/link counts,
// any peer-dependency warnings, and a final success/failure line colored
// by outcome.
func Print(s Summary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	bold.Println("pkginstall")
	bold.Println("==========")
	cyan.Printf("Resolved: %d package(s), %d link(s)\n", s.Nodes, s.Links)

	if len(s.Warnings) > 0 {
		yellow.Printf("Warnings: %d\n", len(s.Warnings))
		for _, w := range s.Warnings {
			yellow.Printf("  %s\n", w)
		}
	}
	fmt.Println()

	if s.Err != nil {
		red.Printf("Install failed: %v\n", s.Err)
		return
	}
	green.Println("Install complete.")
}
