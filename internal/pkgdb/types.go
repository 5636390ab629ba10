// Package pkgdb implements the in-memory package-set model: PackageSet,
// PackageInstance, the per-architecture PackageBin records, the dependency
// cross-linking graph, and the PkgHash that ties them together (spec.md §3,
// §4.3, §4.4).
package pkgdb

import (
	"fmt"

	"github.com/dpkgcore/dpkg-go/internal/deb822"
	"github.com/dpkgcore/dpkg-go/internal/version"
)

// ArchKind classifies an interned Architecture handle.
type ArchKind int

const (
	ArchNone ArchKind = iota
	ArchEmpty
	ArchNative
	ArchAll
	ArchWildcard
	ArchForeign
	ArchUnknown
	ArchIllegal
)

// Arch is an interned architecture handle. Two Archs are the same
// architecture iff they are the same pointer (spec.md §3).
type Arch struct {
	Name string
	Kind ArchKind
}

// Status is the installation-status lifecycle state of a PackageInstance.
type Status int

const (
	StatusNotInstalled Status = iota
	StatusConfigFiles
	StatusHalfInstalled
	StatusUnpacked
	StatusHalfConfigured
	StatusTriggersAwaited
	StatusTriggersPending
	StatusInstalled
)

var statusNames = [...]string{
	"not-installed", "config-files", "half-installed", "unpacked",
	"half-configured", "triggers-awaited", "triggers-pending", "installed",
}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus parses the third token of a Status field.
func ParseStatus(s string) (Status, error) {
	for i, n := range statusNames {
		if n == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status keyword %q", s)
}

// Want is the administrator's selection state for a package.
type Want int

const (
	WantUnknown Want = iota
	WantInstall
	WantHold
	WantDeinstall
	WantPurge
)

var wantNames = [...]string{"unknown", "install", "hold", "deinstall", "purge"}

func (w Want) String() string {
	if int(w) < 0 || int(w) >= len(wantNames) {
		return "unknown"
	}
	return wantNames[w]
}

// ParseWant parses the first token of a Status field.
func ParseWant(s string) (Want, error) {
	for i, n := range wantNames {
		if n == s {
			return Want(i), nil
		}
	}
	return 0, fmt.Errorf("unknown want keyword %q", s)
}

// EFlag is dpkg's internal error/ok flag for a PackageInstance.
type EFlag int

const (
	EFlagOk EFlag = iota
	EFlagReinstreq
)

var eflagNames = [...]string{"ok", "reinstreq"}

func (e EFlag) String() string {
	if int(e) < 0 || int(e) >= len(eflagNames) {
		return "unknown"
	}
	return eflagNames[e]
}

// ParseEFlag parses the second token of a Status field.
func ParseEFlag(s string) (EFlag, error) {
	for i, n := range eflagNames {
		if n == s {
			return EFlag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown eflag keyword %q", s)
}

// DepType enumerates the kinds of dependency relationship a Dependency can
// express.
type DepType int

const (
	DepSuggests DepType = iota
	DepRecommends
	DepDepends
	DepPreDepends
	DepBreaks
	DepConflicts
	DepProvides
	DepReplaces
	DepEnhances
)

var depTypeFieldNames = map[DepType]string{
	DepSuggests:   "Suggests",
	DepRecommends: "Recommends",
	DepDepends:    "Depends",
	DepPreDepends: "Pre-Depends",
	DepBreaks:     "Breaks",
	DepConflicts:  "Conflicts",
	DepProvides:   "Provides",
	DepReplaces:   "Replaces",
	DepEnhances:   "Enhances",
}

// FieldName returns the canonical control-file field name for a DepType.
func (t DepType) FieldName() string { return depTypeFieldNames[t] }

// allowsAlternatives reports whether a DepType may use the "|" alternative
// syntax (spec.md §4.3: forbidden for conflicts/breaks/replaces/provides).
func (t DepType) allowsAlternatives() bool {
	switch t {
	case DepConflicts, DepBreaks, DepReplaces, DepProvides:
		return false
	default:
		return true
	}
}

// hasImplicitWildcardArch reports whether DepPossibilities of this type
// default to a wildcard architecture qualifier rather than the pkgbin's own
// architecture (spec.md §3: Conflicts/Breaks/Replaces).
func (t DepType) hasImplicitWildcardArch() bool {
	switch t {
	case DepConflicts, DepBreaks, DepReplaces:
		return true
	default:
		return false
	}
}

// onlyAllowsEqRelation reports whether a DepPossibility of this type may
// only use "=" (or no version restriction at all) (spec.md §3/§4.3: "only
// = is allowed for provides").
func (t DepType) onlyAllowsEqRelation() bool {
	return t == DepProvides
}

// DepPossibility is one alternative within a Dependency's AND-clause.
type DepPossibility struct {
	Target         *PackageSet
	ArchQual       *Arch
	ArchIsImplicit bool
	Relation       version.Relation
	Version        version.Version

	owner     *PackageInstance
	available bool // which view (installed vs available) this possibility belongs to
}

// Dependency is one AND-clause: a set of alternative DepPossibilities, all
// of the same DepType.
type Dependency struct {
	Type         DepType
	Alternatives []*DepPossibility
}

// Conffile is a configuration file shipped by a package.
type Conffile struct {
	Path            string
	Hash            string // md5 hex, or the literal "newconffile"
	Obsolete        bool
	RemoveOnUpgrade bool
}

// PackageBin holds everything specific to one view (installed or available)
// of a package at a given architecture.
type PackageBin struct {
	Arch          *Arch
	MultiArchSame bool
	Essential     bool
	Version       version.Version
	Description   string
	Maintainer    string
	Source        string
	Origin        string
	Bugs          string
	InstalledSize int64

	Deps      []Dependency
	Conffiles []Conffile

	// Arbitrary preserves unrecognized fields verbatim, in original order.
	Arbitrary []deb822.Field
}

// PackageInstance is one per-architecture entry within a PackageSet. It
// holds the status-lifecycle state (which belongs to the instance, not to
// either view) plus the Installed and Available PackageBin records.
type PackageInstance struct {
	Arch      *Arch
	Installed *PackageBin
	Available *PackageBin

	Status        Status
	Want          Want
	EFlag         EFlag
	ConfigVersion *version.Version

	TrigPend []string
	TrigAw   []string

	set *PackageSet
}

// Set returns the PackageSet this instance belongs to.
func (pi *PackageInstance) Set() *PackageSet { return pi.set }

// PackageSet is a named bucket holding 1..N PackageInstances, at most one
// per architecture, plus the two reverse-dependency head lists.
type PackageSet struct {
	Name      string
	Instances []*PackageInstance

	revInstalled []*DepPossibility
	revAvailable []*DepPossibility
}

// Instance returns the instance for the given architecture, or nil.
func (s *PackageSet) Instance(arch *Arch) *PackageInstance {
	for _, pi := range s.Instances {
		if pi.Arch == arch {
			return pi
		}
	}
	return nil
}

// ReverseDeps returns the DepPossibilities that reference this set in the
// given view (installed vs available).
func (s *PackageSet) ReverseDeps(available bool) []*DepPossibility {
	if available {
		return s.revAvailable
	}
	return s.revInstalled
}

// SoleInstalled returns the set's one installed instance, or nil if there
// are zero or more than one.
func (s *PackageSet) SoleInstalled() *PackageInstance {
	var found *PackageInstance
	for _, pi := range s.Instances {
		if pi.Status > StatusNotInstalled {
			if found != nil {
				return nil
			}
			found = pi
		}
	}
	return found
}
