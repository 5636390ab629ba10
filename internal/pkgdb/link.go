package pkgdb

// LinkDeps threads every DepPossibility in bin's dependency list onto the
// reverse-dependency list of its target PackageSet, for the given view
// (available selects PackageInstance.Available, otherwise Installed).
// It is not idempotent: each call appends the edges again, so calling it
// twice without an intervening UnlinkDeps is a bug the caller must avoid, mirroring the original's own single-threading
// discipline around pkg_hash's forward/reverse edges.
func LinkDeps(pi *PackageInstance, available bool) {
	bin := pi.Installed
	if available {
		bin = pi.Available
	}
	if bin == nil {
		return
	}
	for di := range bin.Deps {
		dep := &bin.Deps[di]
		for _, poss := range dep.Alternatives {
			poss.owner = pi
			poss.available = available
			if poss.Target == nil {
				continue
			}
			if available {
				poss.Target.revAvailable = append(poss.Target.revAvailable, poss)
			} else {
				poss.Target.revInstalled = append(poss.Target.revInstalled, poss)
			}
		}
	}
}

// UnlinkDeps removes every DepPossibility belonging to bin's view from its
// targets' reverse lists, undoing a prior LinkDeps call.
func UnlinkDeps(pi *PackageInstance, available bool) {
	bin := pi.Installed
	if available {
		bin = pi.Available
	}
	if bin == nil {
		return
	}
	for di := range bin.Deps {
		dep := &bin.Deps[di]
		for _, poss := range dep.Alternatives {
			if poss.Target == nil {
				continue
			}
			removePossibility(poss.Target, available, poss)
		}
	}
}

func removePossibility(set *PackageSet, available bool, target *DepPossibility) {
	list := &set.revInstalled
	if available {
		list = &set.revAvailable
	}
	for i, p := range *list {
		if p == target {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// RelinkDeps unlinks and relinks bin's view, used after replacing its
// dependency list wholesale (e.g. after installing a new available control
// stanza for the same instance).
func RelinkDeps(pi *PackageInstance, available bool) {
	UnlinkDeps(pi, available)
	LinkDeps(pi, available)
}
