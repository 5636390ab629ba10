package partqueue

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpkgcore/dpkg-go/internal/split"
)

func writeDeb(t *testing.T, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func splitInto(t *testing.T, dir, name string, size int) []string {
	t.Helper()
	srcPath := filepath.Join(dir, name)
	writeDeb(t, srcPath, size)
	ctrl := split.ControlInfo{Package: "foo", Version: "1.0", Arch: "amd64"}
	parts, err := split.Split(srcPath, filepath.Join(dir, "foo"), int64(split.HeaderAllowance+2000),
		func(string) (split.ControlInfo, error) { return ctrl, nil }, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	return parts
}

func TestDecomposeFilename(t *testing.T) {
	name := DepotName("0123456789abcdef0123456789abcdef", 0x1000, 1, 3)
	e, ok := decomposeFilename(name)
	if !ok {
		t.Fatalf("decomposeFilename(%q) failed", name)
	}
	if e.MaxPartLen != 0x1000 || e.ThisPartN != 1 || e.MaxPartN != 3 {
		t.Errorf("got %+v", e)
	}
}

func TestDecomposeFilenameRejectsJunk(t *testing.T) {
	if _, ok := decomposeFilename("not-a-part-file"); ok {
		t.Fatalf("expected junk filename to be rejected")
	}
}

func TestAutoAccumulatesThenReassembles(t *testing.T) {
	dir := t.TempDir()
	depot := filepath.Join(dir, "depot")
	if err := os.MkdirAll(depot, 0755); err != nil {
		t.Fatalf("mkdir depot: %v", err)
	}

	parts := splitInto(t, dir, "foo_1.0_amd64.deb", 5000)
	if len(parts) < 2 {
		t.Fatalf("need at least 2 parts for this test, got %d", len(parts))
	}

	output := filepath.Join(dir, "out.deb")
	for i, p := range parts[:len(parts)-1] {
		res, err := Auto(depot, p, output)
		if err != nil {
			t.Fatalf("Auto(part %d): %v", i, err)
		}
		if res.Complete {
			t.Fatalf("Auto(part %d) reported complete too early", i)
		}
	}

	res, err := Auto(depot, parts[len(parts)-1], output)
	if err != nil {
		t.Fatalf("Auto(last part): %v", err)
	}
	if !res.Complete {
		t.Fatalf("expected completion after filing the last part, missing=%v", res.Missing)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	entries, err := Scan(depot)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected depot to be empty after reassembly, got %d entries", len(entries))
	}
}

func TestAutoRejectsNonPartFileAsSentinel(t *testing.T) {
	dir := t.TempDir()
	depot := filepath.Join(dir, "depot")
	if err := os.MkdirAll(depot, 0755); err != nil {
		t.Fatalf("mkdir depot: %v", err)
	}

	notAPart := filepath.Join(dir, "plain.deb")
	if err := os.WriteFile(notAPart, []byte("not a split archive"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Auto(depot, notAPart, filepath.Join(dir, "out.deb"))
	if !errors.Is(err, ErrNotAPart) {
		t.Fatalf("expected ErrNotAPart, got %v", err)
	}
}

func TestListAndDiscard(t *testing.T) {
	dir := t.TempDir()
	depot := filepath.Join(dir, "depot")
	if err := os.MkdirAll(depot, 0755); err != nil {
		t.Fatalf("mkdir depot: %v", err)
	}

	junkPath := filepath.Join(depot, "junkfile")
	if err := os.WriteFile(junkPath, []byte("x"), 0644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	parts := splitInto(t, dir, "foo_1.0_amd64.deb", 5000)
	if len(parts) < 2 {
		t.Fatalf("need multiple parts")
	}
	// File only the first part into the depot, leaving the split incomplete.
	first := parts[0]
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "staged.deb"), data, 0644); err != nil {
		t.Fatalf("write staged: %v", err)
	}
	output := filepath.Join(dir, "unused-out.deb")
	if _, err := Auto(depot, filepath.Join(dir, "staged.deb"), output); err != nil {
		t.Fatalf("Auto: %v", err)
	}

	junk, pending, err := List(depot)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(junk) != 1 || junk[0].Filename != junkPath {
		t.Errorf("got junk %+v", junk)
	}
	if len(pending) != 1 || pending[0].Package != "foo" {
		t.Errorf("got pending %+v", pending)
	}

	deleted, err := Discard(depot, nil)
	if err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected to discard 2 files, got %d: %v", len(deleted), deleted)
	}
	remaining, _ := Scan(depot)
	if len(remaining) != 0 {
		t.Errorf("expected empty depot after discard, got %d", len(remaining))
	}
}
