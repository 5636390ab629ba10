package partqueue

import (
	"fmt"
	"os"
	"strings"

	"github.com/dpkgcore/dpkg-go/internal/split"
)

// JunkFile is a depot entry whose name did not parse as a part file.
type JunkFile struct {
	Filename string
	Size     int64
	Regular  bool
}

// PendingPackage summarizes one not-yet-reassembled split found in the
// depot: which part numbers are present and how many bytes they total.
type PendingPackage struct {
	Package      string
	MaxPartN     int
	PresentParts []int
	PresentBytes int64
}

// List reports the depot's junk files and its incomplete splits (queue.c's
// do_queue).
func List(depotDir string) ([]JunkFile, []PendingPackage, error) {
	entries, err := Scan(depotDir)
	if err != nil {
		return nil, nil, err
	}

	var junk []JunkFile
	consumed := make([]bool, len(entries))
	for i, e := range entries {
		if !e.IsJunk() {
			continue
		}
		consumed[i] = true
		st, err := os.Lstat(e.Filename)
		if err != nil {
			return nil, nil, fmt.Errorf("partqueue: stat %s: %w", e.Filename, err)
		}
		junk = append(junk, JunkFile{Filename: e.Filename, Size: st.Size(), Regular: st.Mode().IsRegular()})
	}

	var pending []PendingPackage
	for i, e := range entries {
		if consumed[i] {
			continue
		}
		f, err := os.Open(e.Filename)
		if err != nil {
			return nil, nil, fmt.Errorf("partqueue: opening %s: %w", e.Filename, err)
		}
		pi, err := split.ReadPartInfo(f, e.Filename)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		if pi == nil {
			continue
		}

		pp := PendingPackage{Package: pi.Package, MaxPartN: pi.MaxPartN}
		for j := i; j < len(entries); j++ {
			if consumed[j] || entries[j].IsJunk() {
				continue
			}
			qf, err := os.Open(entries[j].Filename)
			if err != nil {
				return nil, nil, fmt.Errorf("partqueue: opening %s: %w", entries[j].Filename, err)
			}
			qpi, err := split.ReadPartInfo(qf, entries[j].Filename)
			qf.Close()
			if err != nil {
				return nil, nil, err
			}
			if qpi == nil || !sameSplit(qpi, pi) {
				continue
			}
			st, err := os.Lstat(entries[j].Filename)
			if err != nil {
				return nil, nil, fmt.Errorf("partqueue: stat %s: %w", entries[j].Filename, err)
			}
			pp.PresentParts = append(pp.PresentParts, qpi.ThisPartN)
			pp.PresentBytes += st.Size()
			consumed[j] = true
		}
		pending = append(pending, pp)
	}

	return junk, pending, nil
}

func sameSplit(a, b *split.PartInfo) bool {
	return a.MD5 == b.MD5 && a.MaxPartN == b.MaxPartN && a.MaxPartLen == b.MaxPartLen
}

// Discard removes depot junk files, plus every part belonging to any of
// the named packages (case-insensitive). If packages is empty, every file
// in the depot is removed (queue.c's do_discard / discardsome).
func Discard(depotDir string, packages []string) ([]string, error) {
	entries, err := Scan(depotDir)
	if err != nil {
		return nil, err
	}

	// Resolve each non-junk entry's package name up front, same as
	// do_discard calling mustgetpartinfo before discardsome(ds_junk, ...).
	names := make([]string, len(entries))
	for i, e := range entries {
		if e.IsJunk() {
			continue
		}
		f, err := os.Open(e.Filename)
		if err != nil {
			return nil, fmt.Errorf("partqueue: opening %s: %w", e.Filename, err)
		}
		pi, err := split.ReadPartInfo(f, e.Filename)
		f.Close()
		if err != nil {
			return nil, err
		}
		if pi != nil {
			names[i] = pi.Package
		}
	}

	wantAll := len(packages) == 0
	wanted := make(map[string]bool, len(packages))
	for _, p := range packages {
		wanted[strings.ToLower(p)] = true
	}

	var deleted []string
	for i, e := range entries {
		remove := wantAll || e.IsJunk() || wanted[strings.ToLower(names[i])]
		if !remove {
			continue
		}
		if err := os.Remove(e.Filename); err != nil {
			return deleted, fmt.Errorf("partqueue: discarding %s: %w", e.Filename, err)
		}
		deleted = append(deleted, e.Filename)
	}
	return deleted, nil
}
