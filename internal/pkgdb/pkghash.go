package pkgdb

import (
	"fmt"
	"strings"

	"github.com/dpkgcore/dpkg-go/internal/arena"
)

// PkgHash is the top-level package database: the set of interned
// PackageSets and Architectures for one status-file snapshot (spec.md §3).
type PkgHash struct {
	arena *arena.Arena

	sets  map[string]*PackageSet
	archs map[string]*Arch

	native *Arch
}

// New returns an empty PkgHash whose native architecture is nativeArch
// (e.g. "amd64").
func New(nativeArch string) *PkgHash {
	h := &PkgHash{
		arena: arena.New(),
		sets:  make(map[string]*PackageSet),
		archs: make(map[string]*Arch),
	}
	h.native = h.internArch(nativeArch, ArchNative)
	h.internArch("all", ArchAll)
	return h
}

// NativeArch returns the handle for the database's native architecture.
func (h *PkgHash) NativeArch() *Arch { return h.native }

func (h *PkgHash) internArch(name string, kind ArchKind) *Arch {
	key := strings.ToLower(name)
	if a, ok := h.archs[key]; ok {
		return a
	}
	a := &Arch{Name: h.arena.Intern(name), Kind: kind}
	h.archs[key] = a
	return a
}

// Arch returns the interned handle for an architecture name, classifying it
// on first sight (spec.md §3: none/empty/native/all/wildcard/foreign/
// unknown/illegal). It never fails: malformed names become ArchIllegal
// rather than erroring, since architecture strings are frequently echoed
// back verbatim in diagnostics.
func (h *PkgHash) Arch(name string) *Arch {
	if name == "" {
		return h.internArch("", ArchEmpty)
	}
	if a, ok := h.archs[strings.ToLower(name)]; ok {
		return a
	}
	kind := classifyArchName(name, h.native.Name)
	return h.internArch(name, kind)
}

func classifyArchName(name, native string) ArchKind {
	if name == "all" {
		return ArchAll
	}
	if name == native {
		return ArchNative
	}
	if name == "any" || strings.Contains(name, "-any") || strings.HasPrefix(name, "any-") {
		return ArchWildcard
	}
	if !isValidArchSyntax(name) {
		return ArchIllegal
	}
	return ArchForeign
}

func isValidArchSyntax(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return name[0] != '-'
}

// Set returns the PackageSet named name, creating it if necessary. Names
// are matched case-sensitively (dpkg package names are always lowercase by
// policy, but the database does not itself enforce that here).
func (h *PkgHash) Set(name string) *PackageSet {
	name = h.arena.Intern(name)
	if s, ok := h.sets[name]; ok {
		return s
	}
	s := &PackageSet{Name: name}
	h.sets[name] = s
	return s
}

// Lookup returns the PackageSet named name without creating it.
func (h *PkgHash) Lookup(name string) (*PackageSet, bool) {
	s, ok := h.sets[name]
	return s, ok
}

// Sets returns every known PackageSet, in no particular order.
func (h *PkgHash) Sets() []*PackageSet {
	out := make([]*PackageSet, 0, len(h.sets))
	for _, s := range h.sets {
		out = append(out, s)
	}
	return out
}

// Instance returns the instance of name at arch, creating both the
// PackageSet and the PackageInstance if they do not yet exist. This is the
// status-file slot-selection rule (spec.md §4.4): always strictly by-arch,
// since the status file is a converged snapshot where each instance's
// recorded architecture is already final.
func (h *PkgHash) Instance(name string, arch *Arch) *PackageInstance {
	set := h.Set(name)
	if pi := set.Instance(arch); pi != nil {
		return pi
	}
	pi := &PackageInstance{Arch: arch, set: set}
	set.Instances = append(set.Instances, pi)
	return pi
}

// canCoinstallAcrossArch reports whether pi is the kind of instance that
// §4.4's singleton/cross-grade rules may transplant to a different
// architecture or reuse regardless of arch: present and not Multi-Arch:
// same (an MA:same instance is, by definition, meant to coexist with
// sibling architectures and must never be reused in their place).
func canCoinstallAcrossArch(pi *PackageInstance) bool {
	return pi != nil && !(pi.Installed != nil && pi.Installed.MultiArchSame)
}

// InstanceForAvailable resolves the instance an available-file stanza at
// arch should attach to (spec.md §4.4's available-file rule): if the set
// already has a sole installed instance that is not Multi-Arch:same, the
// available view is attached to that instance regardless of the
// available-file entry's own architecture — a non-coinstallable package
// has exactly one slot to describe, whatever architecture is currently
// installed or was last recorded. Otherwise this falls back to the plain
// by-arch lookup/create Instance uses.
func (h *PkgHash) InstanceForAvailable(name string, arch *Arch) *PackageInstance {
	set := h.Set(name)
	if sole := set.SoleInstalled(); canCoinstallAcrossArch(sole) {
		return sole
	}
	return h.Instance(name, arch)
}

// InstanceForUpdate resolves the instance a status/journal update stanza at
// arch should attach to (spec.md §4.4's cross-grade rule): a crossgrade
// (a non-Multi-Arch:same package replaced by a build for a different
// architecture) updates the existing instance's recorded architecture in
// place instead of filing a second, independent instance alongside it,
// since such a package can never be coinstalled at two architectures
// simultaneously. An exact by-arch match, when one exists, always wins.
func (h *PkgHash) InstanceForUpdate(name string, arch *Arch) *PackageInstance {
	set := h.Set(name)
	if pi := set.Instance(arch); pi != nil {
		return pi
	}
	if sole := set.SoleInstalled(); canCoinstallAcrossArch(sole) {
		sole.Arch = arch
		return sole
	}
	return h.Instance(name, arch)
}

// Validate checks the cross-instance consistency rules of spec.md §4.4:
// a set may have at most one installed instance that is not Multi-Arch:
// same, and it may never mix an installed same-instance with an installed
// non-same instance.
func (h *PkgHash) Validate() error {
	for _, s := range h.sets {
		var sameCount, soloCount int
		for _, pi := range s.Instances {
			if pi.Status <= StatusNotInstalled {
				continue
			}
			bin := pi.Installed
			if bin != nil && bin.MultiArchSame {
				sameCount++
			} else {
				soloCount++
			}
		}
		if soloCount > 1 {
			return fmt.Errorf("pkgdb: package %q has more than one non-coinstallable installed instance", s.Name)
		}
		if soloCount > 0 && sameCount > 0 {
			return fmt.Errorf("pkgdb: package %q mixes Multi-Arch:same and non-same installed instances", s.Name)
		}
	}
	return nil
}
