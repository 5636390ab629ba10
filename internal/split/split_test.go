package split

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fakeExtractor(info ControlInfo) ControlExtractor {
	return func(string) (ControlInfo, error) { return info, nil }
}

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "foo_1.0_amd64.deb")

	payload := bytes.Repeat([]byte("abcdefghij"), 1000) // 10000 bytes
	if err := os.WriteFile(srcPath, payload, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctrl := ControlInfo{Package: "foo", Version: "1.0", Arch: "amd64"}
	prefix := filepath.Join(dir, "foo")
	maxPartSize := HeaderAllowance + 3000 // forces several parts

	parts, err := Split(srcPath, prefix, int64(maxPartSize), fakeExtractor(ctrl), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}

	partlist := make([]*PartInfo, 0, len(parts))
	var ref *PartInfo
	for _, p := range parts {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open part %s: %v", p, err)
		}
		pi, err := ReadPartInfo(f, p)
		f.Close()
		if err != nil {
			t.Fatalf("ReadPartInfo(%s): %v", p, err)
		}
		if pi == nil {
			t.Fatalf("ReadPartInfo(%s) returned nil, not a part file?", p)
		}
		if ref == nil {
			ref = pi
			partlist = make([]*PartInfo, pi.MaxPartN)
		}
		if err := AddToPartList(partlist, pi, ref); err != nil {
			t.Fatalf("AddToPartList: %v", err)
		}
	}
	for i, p := range partlist {
		if p == nil {
			t.Fatalf("missing part %d", i+1)
		}
	}

	outPath := filepath.Join(dir, "rejoined.deb")
	if err := Reassemble(partlist, outPath); err != nil {
		t.Fatalf("Reassemble: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading reassembled file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload does not match original: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestReadPartInfoRejectsNonPart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notapart")
	os.WriteFile(path, []byte("hello"), 0644)

	f, _ := os.Open(path)
	defer f.Close()
	pi, err := ReadPartInfo(f, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pi != nil {
		t.Fatalf("expected nil PartInfo for a non-ar file")
	}
}

func TestAddToPartListDetectsMismatch(t *testing.T) {
	ref := &PartInfo{Package: "foo", Version: "1.0", MD5: "aaaa", OrgLength: 100, MaxPartN: 2, MaxPartLen: 50, ThisPartN: 1}
	other := &PartInfo{Package: "bar", Version: "1.0", MD5: "aaaa", OrgLength: 100, MaxPartN: 2, MaxPartLen: 50, ThisPartN: 2}

	partlist := make([]*PartInfo, 2)
	if err := AddToPartList(partlist, ref, ref); err != nil {
		t.Fatalf("AddToPartList(ref): %v", err)
	}
	if err := AddToPartList(partlist, other, ref); err == nil {
		t.Fatalf("expected mismatch error for a different package")
	}
}
