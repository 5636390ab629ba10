package pkgdb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dpkgcore/dpkg-go/internal/deb822"
	"github.com/dpkgcore/dpkg-go/internal/version"
)

func TestArchClassification(t *testing.T) {
	h := New("amd64")
	cases := []struct {
		name string
		kind ArchKind
	}{
		{"amd64", ArchNative},
		{"all", ArchAll},
		{"any", ArchWildcard},
		{"armhf", ArchForeign},
		{"linux-any", ArchWildcard},
		{"", ArchEmpty},
		{"Bad_Arch", ArchIllegal},
	}
	for _, c := range cases {
		a := h.Arch(c.name)
		if a.Kind != c.kind {
			t.Errorf("Arch(%q).Kind = %v, want %v", c.name, a.Kind, c.kind)
		}
	}
}

func TestArchInterningIsStable(t *testing.T) {
	h := New("amd64")
	a1 := h.Arch("armhf")
	a2 := h.Arch("armhf")
	if a1 != a2 {
		t.Fatalf("expected same pointer for repeated Arch() calls")
	}
}

func TestParseDepFieldSimple(t *testing.T) {
	h := New("amd64")
	deps, err := ParseDepField(h, DepDepends, "libc6 (>= 2.7), libfoo | libbar", nil)
	if err != nil {
		t.Fatalf("ParseDepField: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("got %d clauses, want 2", len(deps))
	}
	if len(deps[0].Alternatives) != 1 || deps[0].Alternatives[0].Target.Name != "libc6" {
		t.Errorf("clause 0: %+v", deps[0])
	}
	if len(deps[1].Alternatives) != 2 {
		t.Fatalf("clause 1 should have 2 alternatives, got %d", len(deps[1].Alternatives))
	}
}

func TestParseDepFieldRejectsAlternativesForConflicts(t *testing.T) {
	h := New("amd64")
	if _, err := ParseDepField(h, DepConflicts, "a | b", nil); err == nil {
		t.Fatalf("expected error for alternatives in Conflicts")
	}
}

func TestParseDepFieldRejectsNonEqRelationForProvides(t *testing.T) {
	h := New("amd64")
	if _, err := ParseDepField(h, DepProvides, "foo (>= 1.0)", nil); err == nil {
		t.Fatalf("expected error for non-= relation in Provides")
	}
	deps, err := ParseDepField(h, DepProvides, "foo (= 1.0), bar", nil)
	if err != nil {
		t.Fatalf("ParseDepField: %v", err)
	}
	if deps[0].Alternatives[0].Relation != version.RelEq {
		t.Errorf("got relation %v, want =", deps[0].Alternatives[0].Relation)
	}
	if deps[1].Alternatives[0].Relation != version.RelNone {
		t.Errorf("got relation %v, want none", deps[1].Alternatives[0].Relation)
	}
}

func TestParseDepFieldDeprecatedRelation(t *testing.T) {
	h := New("amd64")
	var warned string
	warn := func(format string, args ...any) { warned = fmt.Sprintf(format, args...) }
	deps, err := ParseDepField(h, DepDepends, "libc6 (< 2.7)", warn)
	if err != nil {
		t.Fatalf("ParseDepField: %v", err)
	}
	if warned == "" {
		t.Errorf("expected deprecation warning")
	}
	if relationToken(deps[0].Alternatives[0].Relation) != "<=" {
		t.Errorf("got relation %v, want <=", deps[0].Alternatives[0].Relation)
	}
}

func TestLinkDepsAndReverse(t *testing.T) {
	h := New("amd64")
	arch := h.NativeArch()

	pi := h.Instance("app", arch)
	deps, err := ParseDepField(h, DepDepends, "libfoo (>= 1.0)", nil)
	if err != nil {
		t.Fatalf("ParseDepField: %v", err)
	}
	pi.Installed = &PackageBin{Arch: arch, Deps: deps}
	LinkDeps(pi, false)

	libfoo, ok := h.Lookup("libfoo")
	if !ok {
		t.Fatalf("libfoo set not created")
	}
	rev := libfoo.ReverseDeps(false)
	if len(rev) != 1 || rev[0].owner != pi {
		t.Fatalf("expected one reverse edge owned by app, got %+v", rev)
	}

	UnlinkDeps(pi, false)
	if len(libfoo.ReverseDeps(false)) != 0 {
		t.Errorf("expected reverse edges cleared after UnlinkDeps")
	}
}

func TestValidateRejectsMixedMultiArch(t *testing.T) {
	h := New("amd64")
	amd64 := h.NativeArch()
	armhf := h.Arch("armhf")

	set := h.Set("libfoo")
	pi1 := h.Instance("libfoo", amd64)
	pi1.Status = StatusInstalled
	pi1.Installed = &PackageBin{Arch: amd64, MultiArchSame: false}

	pi2 := h.Instance("libfoo", armhf)
	pi2.Status = StatusInstalled
	pi2.Installed = &PackageBin{Arch: armhf, MultiArchSame: true}

	_ = set
	if err := h.Validate(); err == nil {
		t.Fatalf("expected validation error for mixed same/non-same installed instances")
	}
}

func TestInstanceForAvailableReusesSoleInstalledAcrossArch(t *testing.T) {
	h := New("amd64")
	amd64 := h.NativeArch()
	i386 := h.Arch("i386")

	pi := h.Instance("foo", amd64)
	pi.Status = StatusInstalled
	pi.Installed = &PackageBin{Arch: amd64}

	got := h.InstanceForAvailable("foo", i386)
	if got != pi {
		t.Fatalf("expected available-file load to reuse the sole installed instance, got a new one")
	}

	set, _ := h.Lookup("foo")
	if len(set.Instances) != 1 {
		t.Fatalf("expected no second instance to be created, got %d", len(set.Instances))
	}
}

func TestInstanceForAvailableFallsBackByArchWithNoInstalled(t *testing.T) {
	h := New("amd64")
	i386 := h.Arch("i386")

	pi := h.InstanceForAvailable("bar", i386)
	if pi.Arch != i386 {
		t.Fatalf("expected by-arch lookup when nothing is installed, got arch %v", pi.Arch)
	}
}

func TestInstanceForAvailableSkipsMultiArchSameSingleton(t *testing.T) {
	h := New("amd64")
	amd64 := h.NativeArch()
	i386 := h.Arch("i386")

	pi := h.Instance("libfoo", amd64)
	pi.Status = StatusInstalled
	pi.Installed = &PackageBin{Arch: amd64, MultiArchSame: true}

	got := h.InstanceForAvailable("libfoo", i386)
	if got == pi {
		t.Fatalf("Multi-Arch:same instance must not be reused across architectures")
	}
	if got.Arch != i386 {
		t.Errorf("got arch %v, want i386", got.Arch)
	}
}

func TestParseStatusField(t *testing.T) {
	w, e, s, err := ParseStatusField("install ok installed")
	if err != nil {
		t.Fatalf("ParseStatusField: %v", err)
	}
	if w != WantInstall || e != EFlagOk || s != StatusInstalled {
		t.Errorf("got %v %v %v", w, e, s)
	}
	if got := WriteStatusField(w, e, s); got != "install ok installed" {
		t.Errorf("round trip: got %q", got)
	}
}

func TestParsePackageBinRoundTrip(t *testing.T) {
	h := New("amd64")
	input := "Package: foo\n" +
		"Version: 1.2-1\n" +
		"Architecture: amd64\n" +
		"Depends: libc6 (>= 2.7)\n" +
		"Description: a test package\n" +
		"X-Custom-Field: kept\n"
	p := deb822.NewParser(strings.NewReader(input))
	st, err := p.Next()
	if err != nil {
		t.Fatalf("parse stanza: %v", err)
	}
	name, arch, bin, err := ParsePackageBin(h, st, nil)
	if err != nil {
		t.Fatalf("ParsePackageBin: %v", err)
	}
	if name != "foo" || arch.Name != "amd64" {
		t.Fatalf("got name=%q arch=%q", name, arch.Name)
	}
	if bin.Version.String() != "1.2-1" {
		t.Errorf("got version %q", bin.Version.String())
	}
	if len(bin.Arbitrary) != 1 || bin.Arbitrary[0].Name != "X-Custom-Field" {
		t.Errorf("arbitrary fields not preserved: %+v", bin.Arbitrary)
	}

	out := WritePackageBin(name, bin)
	if v, _ := out.Get("Depends"); v != "libc6 (>= 2.7)" {
		t.Errorf("round-tripped Depends = %q", v)
	}
	if v, _ := out.Get("X-Custom-Field"); v != "kept" {
		t.Errorf("arbitrary field not round-tripped")
	}
}

func TestConffilesRoundTrip(t *testing.T) {
	in := "#obsolete# /etc/foo.conf d41d8cd98f00b204e9800998ecf8427e\n/etc/bar.conf newconffile\n"
	cs, err := ParseConffilesField(in)
	if err != nil {
		t.Fatalf("ParseConffilesField: %v", err)
	}
	if len(cs) != 2 || !cs[0].Obsolete || cs[0].Path != "/etc/foo.conf" {
		t.Fatalf("got %+v", cs)
	}
	out := WriteConffilesField(cs)
	if !strings.Contains(out, "#obsolete#/etc/foo.conf") {
		t.Errorf("unexpected render: %q", out)
	}
}
