package installer

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ritzau/pkginstall/internal/model"
)

var packageNameRe = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-zA-Z0-9-~][a-zA-Z0-9-._~]*$`)

// validate runs every input-validation check, in the order the caller's
// error message is expected in, before any disk mutation. The first
// failing check wins.
func validate(store string, g model.InstallGraph, opts Options) error {
	if err := validateStore(store); err != nil {
		return err
	}

	nodeByKey := make(map[string]model.InstallNode, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := nodeByKey[n.Key]; dup {
			return errDuplicateKey(n.Key)
		}
		nodeByKey[n.Key] = n
	}

	for _, n := range g.Nodes {
		if err := validateNodeLocation(n); err != nil {
			return err
		}
		if !packageNameRe.MatchString(n.Name) {
			return errPackageNameInvalid(n.Name)
		}
	}

	targetsByName := make(map[string]map[string]bool, len(g.Nodes))
	for _, l := range g.Links {
		src, ok := nodeByKey[l.Source]
		if !ok {
			return errInvalidLinkSource(l.Source)
		}
		tgt, ok := nodeByKey[l.Target]
		if !ok {
			return errInvalidLinkTarget(l.Target)
		}

		byName := targetsByName[src.Key]
		if byName == nil {
			byName = make(map[string]bool)
			targetsByName[src.Key] = byName
		}
		if byName[tgt.Name] {
			return errMultipleTargetsSameName(src.Key, tgt.Name)
		}
		byName[tgt.Name] = true
	}

	for _, n := range g.Nodes {
		for bin := range n.Bins {
			if strings.ContainsAny(bin, "/\\\n") {
				return errBinNameInvalid(n.Key, bin)
			}
		}
	}

	if !opts.IgnoreBinConflicts {
		if err := validateBinConflicts(g, nodeByKey); err != nil {
			return err
		}
	}

	return nil
}

func validateStore(store string) error {
	if !filepath.IsAbs(store) {
		return errLocationNotAbsolute(store)
	}
	info, err := os.Stat(store)
	if os.IsNotExist(err) {
		return errLocationDoesNotExist(store)
	}
	if err != nil {
		return errLocationDoesNotExist(store)
	}
	if !info.IsDir() {
		return errLocationNotDirectory(store)
	}
	entries, err := os.ReadDir(store)
	if err != nil {
		return errLocationNotDirectory(store)
	}
	if len(entries) != 0 {
		return errLocationNotEmpty(store)
	}
	return nil
}

func validateNodeLocation(n model.InstallNode) error {
	if !filepath.IsAbs(n.Location) {
		return errNodeLocationNotAbsolute(n.Location)
	}
	info, err := os.Stat(n.Location)
	if os.IsNotExist(err) {
		// Nonexistent node locations are permitted, treated as empty.
		return nil
	}
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return errNodeLocationNotDirectory(n.Location)
	}
	return nil
}

// validateBinConflicts checks that, for every source node, the union of
// bin names exposed by its link targets has no collisions.
func validateBinConflicts(g model.InstallGraph, nodeByKey map[string]model.InstallNode) error {
	binOwner := make(map[string]map[string]string, len(g.Nodes)) // source key -> bin name -> owning target key
	for _, l := range g.Links {
		tgt, ok := nodeByKey[l.Target]
		if !ok || len(tgt.Bins) == 0 {
			continue
		}
		owners := binOwner[l.Source]
		if owners == nil {
			owners = make(map[string]string)
			binOwner[l.Source] = owners
		}
		for bin := range tgt.Bins {
			if prev, exists := owners[bin]; exists && prev != l.Target {
				return errBinConflict(bin, l.Source)
			}
			owners[bin] = l.Target
		}
	}
	return nil
}
