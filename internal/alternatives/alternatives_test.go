package alternatives

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDb(t *testing.T) (*Db, string) {
	t.Helper()
	root := t.TempDir()
	admDir := filepath.Join(root, "alternatives")
	altDir := filepath.Join(root, "alternatives-links")
	if err := os.MkdirAll(admDir, 0755); err != nil {
		t.Fatalf("mkdir admDir: %v", err)
	}
	if err := os.MkdirAll(altDir, 0755); err != nil {
		t.Fatalf("mkdir altDir: %v", err)
	}
	return New(admDir, altDir), root
}

// linkPath returns an absolute path under root for a public or slave
// link, creating its parent directory the way /usr/bin or
// /usr/share/man/man1 already exist on a real system.
func linkPath(t *testing.T, root string, parts ...string) string {
	t.Helper()
	p := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", p, err)
	}
	return p
}

func writeCandidate(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, "candidates", name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write candidate: %v", err)
	}
	return path
}

func TestInstallCreatesAutoLink(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	candidate := writeCandidate(t, root, "nano")

	g, err := db.Install("editor", link, candidate, 40, nil)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if g.Status != StatusAuto {
		t.Errorf("expected auto status, got %v", g.Status)
	}

	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink %s: %v", link, err)
	}
	wanted := filepath.Join(db.AltDir, "editor")
	if target != wanted {
		t.Errorf("link target = %s, want %s", target, wanted)
	}

	inner, err := os.Readlink(wanted)
	if err != nil {
		t.Fatalf("readlink %s: %v", wanted, err)
	}
	if inner != candidate {
		t.Errorf("indirection target = %s, want %s", inner, candidate)
	}
}

func TestInstallHigherPriorityWins(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	vim := writeCandidate(t, root, "vim")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install(nano): %v", err)
	}
	if _, err := db.Install("editor", link, vim, 60, nil); err != nil {
		t.Fatalf("Install(vim): %v", err)
	}

	target, _ := os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != vim {
		t.Errorf("auto mode should follow the higher-priority choice, got %s want %s", target, vim)
	}
}

func TestInstallSamePriorityKeepsCurrentChoice(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	vim := writeCandidate(t, root, "vim")

	if _, err := db.Install("editor", link, nano, 50, nil); err != nil {
		t.Fatalf("Install(nano): %v", err)
	}
	if _, err := db.Install("editor", link, vim, 50, nil); err != nil {
		t.Fatalf("Install(vim): %v", err)
	}

	target, _ := os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != nano {
		t.Errorf("a tied priority should not churn the link away from the current choice, got %s want %s", target, nano)
	}
}

func TestSetManualPinsChoiceThenAutoRestoresBest(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	vim := writeCandidate(t, root, "vim")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install(nano): %v", err)
	}
	if _, err := db.Install("editor", link, vim, 60, nil); err != nil {
		t.Fatalf("Install(vim): %v", err)
	}

	if err := db.Set("editor", nano); err != nil {
		t.Fatalf("Set: %v", err)
	}
	g, ok, err := db.Load("editor")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if g.Status != StatusManual {
		t.Errorf("expected manual status after Set, got %v", g.Status)
	}
	target, _ := os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != nano {
		t.Errorf("Set should pin to nano, got %s", target)
	}

	if err := db.Auto("editor"); err != nil {
		t.Fatalf("Auto: %v", err)
	}
	target, _ = os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != vim {
		t.Errorf("Auto should restore best choice vim, got %s", target)
	}
}

func TestRemoveChoiceFallsBackToAuto(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	vim := writeCandidate(t, root, "vim")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install(nano): %v", err)
	}
	if _, err := db.Install("editor", link, vim, 60, nil); err != nil {
		t.Fatalf("Install(vim): %v", err)
	}
	if err := db.Set("editor", vim); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := db.RemoveChoice("editor", vim); err != nil {
		t.Fatalf("RemoveChoice: %v", err)
	}

	g, ok, err := db.Load("editor")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if g.Status != StatusAuto {
		t.Errorf("removing the pinned choice should fall back to auto, got %v", g.Status)
	}
	if g.HasChoice(vim) {
		t.Errorf("vim should no longer be a registered choice")
	}
	target, _ := os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != nano {
		t.Errorf("expected fallback to nano, got %s", target)
	}
}

func TestRemoveAllTearsDownLinks(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := db.RemoveAll("editor"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Errorf("expected master link removed, lstat err=%v", err)
	}
	if _, err := os.Lstat(filepath.Join(db.AdmDir, "editor")); !os.IsNotExist(err) {
		t.Errorf("expected admin file removed, lstat err=%v", err)
	}
}

func TestInstallWithSlaveLinks(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	nanoMan := writeCandidate(t, root, "nano.1")

	slaveLink := linkPath(t, root, "man", "editor.1")
	slaves := []SlaveSpec{{Link: slaveLink, Name: "editor.1", File: nanoMan}}

	if _, err := db.Install("editor", link, nano, 40, slaves); err != nil {
		t.Fatalf("Install: %v", err)
	}

	target, err := os.Readlink(slaveLink)
	if err != nil {
		t.Fatalf("readlink slave: %v", err)
	}
	wanted := filepath.Join(db.AltDir, "editor.1")
	if target != wanted {
		t.Errorf("slave link target = %s, want %s", target, wanted)
	}
}

func TestCheckInstallArgsDetectsLinkConflict(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}

	vim := writeCandidate(t, root, "vim")
	err := db.CheckInstallArgs("pager", link, vim, nil)
	if err == nil {
		t.Fatalf("expected conflict error reusing link %s under a different name", link)
	}
	if !strings.Contains(err.Error(), "already managed by editor") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSaveLoadRoundTripPrunesUnusedSlaves(t *testing.T) {
	db, root := newTestDb(t)
	nano := writeCandidate(t, root, "nano")
	nanoMan := writeCandidate(t, root, "nano.1")

	g := NewGroup("editor")
	g.SetStatus(StatusManual)
	g.SetLink(linkPath(t, root, "bin", "editor"))
	g.AddSlave("editor.1", linkPath(t, root, "man", "editor.1"))
	g.AddSlave("orphan", linkPath(t, root, "man", "orphan.1"))
	g.AddChoice(&Choice{Path: nano, Priority: 40, Slaves: map[string]string{
		"editor.1": nanoMan,
	}})

	if err := db.Save(g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := db.Load("editor")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if loaded.HasSlave("orphan") {
		t.Errorf("expected unused slave 'orphan' to be pruned on save")
	}
	if !loaded.HasSlave("editor.1") {
		t.Errorf("expected slave 'editor.1' to survive")
	}
	if len(loaded.Choices) != 1 || loaded.Choices[0].Path != nano {
		t.Fatalf("unexpected choices: %+v", loaded.Choices)
	}
	if loaded.Choices[0].Slaves["editor.1"] != nanoMan {
		t.Errorf("slave file not preserved: %+v", loaded.Choices[0].Slaves)
	}
	if loaded.Status != StatusManual {
		t.Errorf("status not preserved: %v", loaded.Status)
	}
}

func TestSetSelectionsAppliesAutoAndManual(t *testing.T) {
	db, root := newTestDb(t)
	link := linkPath(t, root, "bin", "editor")
	nano := writeCandidate(t, root, "nano")
	vim := writeCandidate(t, root, "vim")

	if _, err := db.Install("editor", link, nano, 40, nil); err != nil {
		t.Fatalf("Install(nano): %v", err)
	}
	if _, err := db.Install("editor", link, vim, 60, nil); err != nil {
		t.Fatalf("Install(vim): %v", err)
	}

	input := strings.NewReader("editor manual " + nano + "\n")
	results, err := db.SetSelections(input)
	if err != nil {
		t.Fatalf("SetSelections: %v", err)
	}
	if len(results) != 1 || !results[0].Applied {
		t.Fatalf("unexpected results: %+v", results)
	}

	target, _ := os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != nano {
		t.Errorf("expected manual pin to nano, got %s", target)
	}

	sels, err := db.GetSelections()
	if err != nil {
		t.Fatalf("GetSelections: %v", err)
	}
	if len(sels) != 1 || sels[0].Status != StatusManual || sels[0].Current != nano {
		t.Errorf("unexpected selections: %+v", sels)
	}

	results, err = db.SetSelections(strings.NewReader("editor auto " + vim + "\n"))
	if err != nil {
		t.Fatalf("SetSelections(auto): %v", err)
	}
	if len(results) != 1 || !results[0].Applied {
		t.Fatalf("unexpected auto results: %+v", results)
	}
	target, _ = os.Readlink(filepath.Join(db.AltDir, "editor"))
	if target != vim {
		t.Errorf("expected auto mode to restore best choice vim, got %s", target)
	}
}
