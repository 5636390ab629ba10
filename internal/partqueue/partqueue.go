// Package partqueue implements the split-part depot directory: the holding
// area (historically /var/lib/dpkg/parts/) where incoming multipart .deb
// parts accumulate until every part of a split is present and can be
// reassembled (spec.md §4.7).
//
// Each depot entry is named "<md5sum>.<maxpartlen>.<thispartn>.<maxpartn>",
// all numbers in lowercase hex, grounded on
// dpkg-split/queue.c's decompose_filename/scandepot.
package partqueue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dpkgcore/dpkg-go/internal/split"
)

// ErrNotAPart is returned by Auto when partFile does not begin with a
// debian-split archive member at all (spec.md §6: distinct from every
// other Auto failure, since dpkg-split exits 1 rather than 2 for it).
var ErrNotAPart = errors.New("partqueue: not part of a multipart archive")

// Entry is one file found in the depot. If it parses as a depot-named
// part file, MD5 is non-empty and the part-identifying fields are set;
// otherwise it is "junk" left around in the depot and only Filename is
// valid.
type Entry struct {
	Filename   string
	MD5        string
	MaxPartLen int64
	ThisPartN  int
	MaxPartN   int
}

// IsJunk reports whether the entry's filename did not parse as a depot
// part name.
func (e Entry) IsJunk() bool { return e.MD5 == "" }

// DepotName returns the canonical depot filename for a part identified by
// the given fields.
func DepotName(md5sum string, maxPartLen int64, thisPartN, maxPartN int) string {
	return fmt.Sprintf("%s.%x.%x.%x", md5sum, maxPartLen, thisPartN, maxPartN)
}

func decomposeFilename(name string) (Entry, bool) {
	const md5Len = 32
	if len(name) <= md5Len || name[md5Len] != '.' || strings.Trim(name[:md5Len], "0123456789abcdef") != "" {
		return Entry{}, false
	}
	rest := name[md5Len+1:]
	fields := strings.SplitN(rest, ".", 3)
	if len(fields) != 3 {
		return Entry{}, false
	}
	maxPartLen, err := strconv.ParseInt(fields[0], 16, 64)
	if err != nil {
		return Entry{}, false
	}
	thisPartN, err := strconv.ParseInt(fields[1], 16, 64)
	if err != nil {
		return Entry{}, false
	}
	maxPartN, err := strconv.ParseInt(fields[2], 16, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{MD5: name[:md5Len], MaxPartLen: maxPartLen, ThisPartN: int(thisPartN), MaxPartN: int(maxPartN)}, true
}

// Scan lists every file in the depot directory, classifying each as a
// parseable part or junk (queue.c's scandepot).
func Scan(depotDir string) ([]Entry, error) {
	des, err := os.ReadDir(depotDir)
	if err != nil {
		return nil, fmt.Errorf("partqueue: reading depot directory %s: %w", depotDir, err)
	}
	var out []Entry
	for _, de := range des {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(depotDir, name)
		if e, ok := decomposeFilename(name); ok {
			e.Filename = path
			out = append(out, e)
		} else {
			out = append(out, Entry{Filename: path})
		}
	}
	return out, nil
}

func entryMatches(e Entry, ref *split.PartInfo) bool {
	return !e.IsJunk() && e.MD5 == ref.MD5 && e.MaxPartN == ref.MaxPartN && e.MaxPartLen == ref.MaxPartLen
}

// AutoResult reports the outcome of an Auto call.
type AutoResult struct {
	// Complete is true if every part was present and Reassemble was
	// called to produce OutputFile.
	Complete   bool
	OutputFile string
	// Missing lists the 1-based part numbers still outstanding, when
	// Complete is false.
	Missing []int
}

// Auto implements dpkg-split --auto: feed one new part file in, and if it
// completes every part of its split, reassemble immediately into
// outputFile; otherwise file the new part away in the depot and report
// what's still missing (queue.c's do_auto).
func Auto(depotDir, partFile, outputFile string) (AutoResult, error) {
	f, err := os.Open(partFile)
	if err != nil {
		return AutoResult{}, fmt.Errorf("partqueue: opening part file %s: %w", partFile, err)
	}
	ref, err := split.ReadPartInfo(f, partFile)
	f.Close()
	if err != nil {
		return AutoResult{}, err
	}
	if ref == nil {
		return AutoResult{}, fmt.Errorf("%s: %w", partFile, ErrNotAPart)
	}

	entries, err := Scan(depotDir)
	if err != nil {
		return AutoResult{}, err
	}

	partlist := make([]*split.PartInfo, ref.MaxPartN)
	for _, e := range entries {
		if !entryMatches(e, ref) {
			continue
		}
		df, err := os.Open(e.Filename)
		if err != nil {
			return AutoResult{}, fmt.Errorf("partqueue: opening depot file %s: %w", e.Filename, err)
		}
		pi, err := split.ReadPartInfo(df, e.Filename)
		df.Close()
		if err != nil {
			return AutoResult{}, err
		}
		if pi == nil {
			continue
		}
		if err := split.AddToPartList(partlist, pi, ref); err != nil {
			return AutoResult{}, err
		}
	}

	otherAtThisSlot := partlist[ref.ThisPartN-1]
	partlist[ref.ThisPartN-1] = ref

	var missing []int
	for i, p := range partlist {
		if p == nil {
			missing = append(missing, i+1)
		}
	}

	if len(missing) > 0 {
		depotPath := filepath.Join(depotDir, DepotName(ref.MD5, ref.MaxPartLen, ref.ThisPartN, ref.MaxPartN))
		if err := fileIntoDepot(partFile, depotPath, ref.FileSize); err != nil {
			return AutoResult{}, err
		}
		if err := syncDir(depotDir); err != nil {
			return AutoResult{}, err
		}
		return AutoResult{Complete: false, Missing: missing}, nil
	}

	if err := split.Reassemble(partlist, outputFile); err != nil {
		return AutoResult{}, err
	}

	partlist[ref.ThisPartN-1] = otherAtThisSlot
	for _, p := range partlist {
		if p != nil {
			if err := os.Remove(p.Filename); err != nil {
				return AutoResult{}, fmt.Errorf("partqueue: removing used-up depot file %s: %w", p.Filename, err)
			}
		}
	}

	return AutoResult{Complete: true, OutputFile: outputFile}, nil
}

// fileIntoDepot copies the first size bytes of srcPath into a fresh depot
// file, written via a temp-name-then-rename within the depot directory so
// a concurrent scan never observes a partially written part (do_auto's
// "t.<pid>" scratch name, generalized to os.CreateTemp).
func fileIntoDepot(srcPath, depotPath string, size int64) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("partqueue: reopening part file %s: %w", srcPath, err)
	}
	defer src.Close()

	dir := filepath.Dir(depotPath)
	tmp, err := os.CreateTemp(dir, "t.*")
	if err != nil {
		return fmt.Errorf("partqueue: creating scratch depot file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.CopyN(tmp, src, size); err != nil {
		return fmt.Errorf("partqueue: extracting split part into %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("partqueue: syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("partqueue: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, depotPath); err != nil {
		return fmt.Errorf("partqueue: renaming %s to %s: %w", tmpName, depotPath, err)
	}
	ok = true
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
